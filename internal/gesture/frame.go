// Package gesture turns per-frame hand landmarks into interaction events.
//
// One detection tick runs Classifier -> FilterState -> arbiter -> MotionState
// over an explicit ControllerState value (see Step). Frame ticks between
// detections only advance rotation inertia (see Coast). Nothing in this
// package blocks, logs, or keeps global state.
package gesture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/handtree/internal/detector"
)

// MinScale is the smallest palm size accepted for a frame.
const MinScale = 1e-6

// HandFrame is one validated hand for one detection tick.
type HandFrame struct {
	Landmarks [detector.NumLandmarks]detector.Point3D
	// Scale is the image-plane wrist to middle MCP distance. Every other
	// distance the classifier uses is relative to it.
	Scale float64
}

// NewHandFrame validates h and derives its scale. A positive ScaleHint is
// taken as given.
func NewHandFrame(h *detector.HandLandmarks) (*HandFrame, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: no landmarks", ErrMalformedFrame)
	}

	for i, p := range h.Points {
		if !p.IsFinite() {
			return nil, fmt.Errorf("%w: landmark %d is not finite", ErrMalformedFrame, i)
		}
	}

	scale := h.ScaleHint
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale hint %g", ErrMalformedFrame, scale)
	}
	if scale <= 0 {
		scale = h.ProjectedSize()
	}
	if scale < MinScale {
		return nil, fmt.Errorf("%w: palm size %g", ErrMalformedFrame, scale)
	}

	return &HandFrame{Landmarks: h.Points, Scale: scale}, nil
}

// point returns landmark i projected onto the image plane.
func (f *HandFrame) point(i int) r2.Vec {
	return r2.Vec{X: f.Landmarks[i].X, Y: f.Landmarks[i].Y}
}

// dist is the image-plane distance between landmarks a and b.
func (f *HandFrame) dist(a, b int) float64 {
	return r2.Norm(r2.Sub(f.point(a), f.point(b)))
}

// PinchPoint is the midpoint between the thumb and index fingertips.
func (f *HandFrame) PinchPoint() r2.Vec {
	return r2.Scale(0.5, r2.Add(f.point(detector.ThumbTip), f.point(detector.IndexTip)))
}

// SelectMainHand returns the hand with the largest projected size, or nil
// when hands is empty.
func SelectMainHand(hands []detector.HandLandmarks) *detector.HandLandmarks {
	var main *detector.HandLandmarks
	best := -1.0
	for i := range hands {
		if size := hands[i].ProjectedSize(); size > best {
			best = size
			main = &hands[i]
		}
	}
	return main
}
