package gesture

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the landmark source (camera) could not be
	// acquired. It is reported once and not retried.
	ErrSourceUnavailable = errors.New("landmark source unavailable")

	// ErrDetectorUnavailable means the inference backend failed to start.
	// Gesture control stays off for the rest of the session.
	ErrDetectorUnavailable = errors.New("hand detector unavailable")

	// ErrMalformedFrame is returned for a hand that cannot be turned into a
	// HandFrame (non-finite coordinates, collapsed palm).
	ErrMalformedFrame = errors.New("malformed hand frame")
)

// FrameFault is a single-tick failure. The tick that produced it was
// processed as hand-lost.
type FrameFault struct {
	Cause error
}

func (f *FrameFault) Error() string {
	return fmt.Sprintf("frame fault: %v", f.Cause)
}

func (f *FrameFault) Unwrap() error {
	return f.Cause
}
