package avatarbuilder

import "errors"

var (
	// ErrAssetMissing marks an atlas or image that is not on disk.
	ErrAssetMissing = errors.New("asset missing")

	// ErrEmptyIntersection marks a pose whose layers share no sub-frame.
	ErrEmptyIntersection = errors.New("no common sub-frames")

	// ErrEncodeFailure marks a pose whose output could not be assembled.
	ErrEncodeFailure = errors.New("sequence encode failed")

	// ErrPrerequisite marks a failed base-color paperdoll; it aborts the request.
	ErrPrerequisite = errors.New("base color asset unavailable")

	// ErrNoPoses is returned when a request finishes without a single pose.
	ErrNoPoses = errors.New("no poses produced")

	ErrInvalidColor = errors.New("invalid color")
)
