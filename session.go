package avatarbuilder

import (
	"github.com/google/uuid"
)

type EventType string

const (
	// EventStart is emitted when a pose begins rendering.
	EventStart EventType = "start"
	// EventProgress is emitted when a pose's output file is ready.
	EventProgress EventType = "progress"
	// EventError is emitted when a pose is skipped.
	EventError EventType = "error"
	// EventDone closes a stream on transports that cannot close a channel.
	EventDone EventType = "done"
)

// Event is one progress notification for a session.
type Event struct {
	Type    EventType `json:"type"`
	Session string    `json:"session"`
	Pose    int       `json:"pose"`
	Frame   int       `json:"frame"`
	File    string    `json:"file,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// PoseResult is one finished pose output, relative to Summary.Dir.
type PoseResult struct {
	Pose     int
	Frame    int
	File     string
	Animated bool
}

// PoseFailure records why a pose produced no output.
type PoseFailure struct {
	Pose  int
	Frame int
	Err   error
}

// Summary is the outcome of one request.
type Summary struct {
	Session     string
	Fingerprint string
	Dir         string
	Cached      bool
	Poses       []PoseResult
	Failed      []PoseFailure
}

// Session is one in-flight request. Events is closed after the last pose
// event; Wait returns once the summary is final.
type Session struct {
	ID          string
	Fingerprint string
	Dir         string

	events  chan Event
	done    chan struct{}
	summary Summary
	err     error
}

func newSession(id, fingerprint, dir string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:          id,
		Fingerprint: fingerprint,
		Dir:         dir,
		// Room for a start and a result per pose, so a consumer that stops
		// reading never blocks the render.
		events: make(chan Event, 2*PoseCount),
		done:   make(chan struct{}),
	}
}

func (s *Session) Events() <-chan Event {
	return s.events
}

// Wait blocks until the render finishes.
func (s *Session) Wait() (Summary, error) {
	<-s.done
	return s.summary, s.err
}

func (s *Session) emit(ev Event) {
	ev.Session = s.ID
	s.events <- ev
}

func (s *Session) finish(sum Summary, err error) {
	s.summary = sum
	s.err = err
	close(s.events)
	close(s.done)
}
