package gesture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MotionState holds the continuous navigation signals.
type MotionState struct {
	// Velocity is the scene rotation speed. Positive pinch movement along
	// x produces negative velocity.
	Velocity float64
	// Zoom is always in [0, 1].
	Zoom float64

	Centroid    r2.Vec
	HasCentroid bool
	LastScale   float64
	HasScale    bool
}

// Track applies one NAVIGATION tick at pinch point p and palm size scale.
// Deltas are only taken against a previous sample; the first tick of a
// drag just records the position.
func (m MotionState) Track(p r2.Vec, scale float64, cfg Config) MotionState {
	if m.HasCentroid {
		m.Velocity = -(p.X - m.Centroid.X) * cfg.RotationSensitivity
	}
	if m.HasScale {
		m.Zoom = clampUnit(m.Zoom + (scale-m.LastScale)*cfg.ZoomSensitivity)
	}

	m.Centroid, m.HasCentroid = p, true
	m.LastScale, m.HasScale = scale, true
	return m
}

// Decay applies one inertia step. Velocity below RestEpsilon snaps to zero.
func (m MotionState) Decay(cfg Config) MotionState {
	if m.Velocity == 0 {
		return m
	}
	m.Velocity *= cfg.Decay
	if math.Abs(m.Velocity) < cfg.RestEpsilon {
		m.Velocity = 0
	}
	return m
}

// ClearNavigation forgets the last pinch sample so the next drag starts fresh.
func (m MotionState) ClearNavigation() MotionState {
	m.Centroid, m.HasCentroid = r2.Vec{}, false
	m.LastScale, m.HasScale = 0, false
	return m
}

// TicksToRest returns how many Decay steps bring velocity v to exactly zero.
func TicksToRest(v float64, cfg Config) int {
	a := math.Abs(v)
	switch {
	case a == 0:
		return 0
	case a*cfg.Decay < cfg.RestEpsilon:
		return 1
	}
	return int(math.Floor(math.Log(cfg.RestEpsilon/a)/math.Log(cfg.Decay))) + 1
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
