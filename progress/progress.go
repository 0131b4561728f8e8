// Package progress relays session events over Redis pub/sub so a separate
// front end can follow a render.
package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	avatarbuilder "github.com/setanarut/avatarbuilder"
)

const DefaultPrefix = "avatarbuilder"

// Sink receives events for publication.
type Sink interface {
	Publish(ctx context.Context, ev avatarbuilder.Event) error
}

// Channel is the pub/sub channel carrying one session's events.
func Channel(prefix, session string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":session:" + session
}

// Forward publishes every event of a session to sink, followed by a done
// event once the session's stream closes.
func Forward(ctx context.Context, s *avatarbuilder.Session, sink Sink) error {
	for ev := range s.Events() {
		if err := sink.Publish(ctx, ev); err != nil {
			return fmt.Errorf("publish %s pose %d: %w", ev.Type, ev.Pose, err)
		}
	}
	return sink.Publish(ctx, avatarbuilder.Event{Type: avatarbuilder.EventDone, Session: s.ID})
}

// RedisPublisher publishes events as JSON to per-session channels.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev avatarbuilder.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(p.prefix, ev.Session), payload).Err()
}

// Subscribe follows one session's channel. The returned channel closes after
// the done event, when ctx ends, or when the subscription drops.
func Subscribe(ctx context.Context, client redis.UniversalClient, prefix, session string) (<-chan avatarbuilder.Event, error) {
	ps := client.Subscribe(ctx, Channel(prefix, session))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", session, err)
	}

	out := make(chan avatarbuilder.Event)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := Decode(msg.Payload)
				if err != nil {
					continue
				}
				if ev.Type == avatarbuilder.EventDone {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Decode parses one published event.
func Decode(payload string) (avatarbuilder.Event, error) {
	var ev avatarbuilder.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return avatarbuilder.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
