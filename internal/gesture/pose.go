package gesture

import (
	"fmt"

	"github.com/ayusman/handtree/internal/detector"
)

// Pose is the instantaneous classification of one HandFrame.
type Pose int

const (
	PoseUnknown Pose = iota
	PoseOpen
	PoseFist
	PosePinch
	PosePointing
)

func (p Pose) String() string {
	switch p {
	case PoseOpen:
		return "OPEN"
	case PoseFist:
		return "FIST"
	case PosePinch:
		return "PINCH"
	case PosePointing:
		return "POINTING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pose) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pose) UnmarshalText(text []byte) error {
	for _, v := range []Pose{PoseUnknown, PoseOpen, PoseFist, PosePinch, PosePointing} {
		if v.String() == string(text) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown pose %q", text)
}

// Classifier holds the geometric thresholds for pose classification.
type Classifier struct {
	// ExtendRatio: a finger is extended when tip-to-wrist exceeds
	// PIP-to-wrist times this ratio.
	ExtendRatio float64
	// CurlRatio: a finger is curled when tip-to-wrist is below
	// PIP-to-wrist times this ratio. A finger may be neither.
	CurlRatio float64
	// PinchThreshold is the thumb-index tip distance, in palm units,
	// below which the hand is pinching.
	PinchThreshold float64
	// StrictPinch additionally requires middle, ring and pinky to be
	// extended for a pinch.
	StrictPinch bool
}

// DefaultClassifier returns the tuned default thresholds.
func DefaultClassifier() Classifier {
	return Classifier{
		ExtendRatio:    1.10,
		CurlRatio:      1.05,
		PinchThreshold: 0.35,
	}
}

// fingers lists (PIP, tip) for index, middle, ring, pinky.
var fingers = [4][2]int{
	{detector.IndexPIP, detector.IndexTip},
	{detector.MiddlePIP, detector.MiddleTip},
	{detector.RingPIP, detector.RingTip},
	{detector.PinkyPIP, detector.PinkyTip},
}

// fingerState reports the extended and curled predicates for each finger.
func (c Classifier) fingerState(f *HandFrame) (extended, curled [4]bool) {
	for i, joint := range fingers {
		tip := f.dist(joint[1], detector.Wrist)
		pip := f.dist(joint[0], detector.Wrist)
		extended[i] = tip > pip*c.ExtendRatio
		curled[i] = tip < pip*c.CurlRatio
	}
	return extended, curled
}

// PinchDistance is the thumb-index tip distance in palm units.
func (c Classifier) PinchDistance(f *HandFrame) float64 {
	return f.dist(detector.ThumbTip, detector.IndexTip) / f.Scale
}

// Classify returns the first matching pose in priority order PINCH,
// POINTING, FIST, OPEN. A hand that matches none is UNKNOWN.
func (c Classifier) Classify(f *HandFrame) Pose {
	if f == nil {
		return PoseUnknown
	}

	extended, curled := c.fingerState(f)

	if c.PinchDistance(f) < c.PinchThreshold {
		if !c.StrictPinch || (extended[1] && extended[2] && extended[3]) {
			return PosePinch
		}
	}

	if extended[0] && curled[1] && curled[2] && curled[3] {
		return PosePointing
	}

	if curled[0] && curled[1] && curled[2] && curled[3] {
		return PoseFist
	}

	if extended[0] && extended[1] && extended[2] && extended[3] {
		return PoseOpen
	}

	return PoseUnknown
}
