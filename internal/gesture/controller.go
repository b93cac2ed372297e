package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/handtree/internal/detector"
)

// Config holds every tunable of the engine.
type Config struct {
	Classifier Classifier

	// ConfirmFrames is how many consecutive identical raw poses commit a
	// non-PINCH stable pose.
	ConfirmFrames int

	// RotationSensitivity converts pinch x movement to rotation velocity.
	RotationSensitivity float64
	// Decay is the per-frame velocity multiplier outside NAVIGATION.
	Decay float64
	// RestEpsilon is the speed below which rotation stops outright.
	RestEpsilon float64

	// ZoomSensitivity converts palm size change to zoom change.
	ZoomSensitivity float64
	// InitialZoom is the zoom factor at session start.
	InitialZoom float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Classifier:          DefaultClassifier(),
		ConfirmFrames:       3,
		RotationSensitivity: 12.0,
		Decay:               0.90,
		RestEpsilon:         0.001,
		ZoomSensitivity:     6.0,
		InitialZoom:         0.5,
	}
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.ConfirmFrames < 1:
		return fmt.Errorf("confirm frames must be >= 1, got %d", c.ConfirmFrames)
	case c.Decay <= 0 || c.Decay >= 1:
		return fmt.Errorf("decay must be in (0, 1), got %g", c.Decay)
	case c.RestEpsilon <= 0:
		return fmt.Errorf("rest epsilon must be > 0, got %g", c.RestEpsilon)
	case c.InitialZoom < 0 || c.InitialZoom > 1:
		return fmt.Errorf("initial zoom must be in [0, 1], got %g", c.InitialZoom)
	case c.Classifier.ExtendRatio <= 0 || c.Classifier.CurlRatio <= 0:
		return errors.New("extend and curl ratios must be > 0")
	case c.Classifier.PinchThreshold <= 0:
		return fmt.Errorf("pinch threshold must be > 0, got %g", c.Classifier.PinchThreshold)
	}
	return nil
}

// ControllerState is everything the engine remembers between ticks.
type ControllerState struct {
	Filter     FilterState
	Mode       Mode
	PhotoFocus bool
	Tree       TreeState
	Motion     MotionState
}

// NewControllerState returns the session start state.
func NewControllerState(cfg Config) ControllerState {
	return ControllerState{Motion: MotionState{Zoom: cfg.InitialZoom}}
}

// Step runs one detection tick. A nil frame means the hand was lost.
func Step(cfg Config, s ControllerState, f *HandFrame) (ControllerState, Output) {
	prev := s
	var out Output

	if f == nil {
		s = handLost(s, &out)
	} else {
		raw := cfg.Classifier.Classify(f)
		out.Raw = raw
		before := s.Filter.Stable
		s.Filter = s.Filter.Update(raw, cfg.ConfirmFrames)
		s = arbitrate(cfg, s, before, raw, f, &out)
	}

	out.Stable = s.Filter.Stable
	out.Mode = s.Mode
	out.diffMotion(prev.Motion, s.Motion)
	return s, out
}

// handLost resets everything tied to the current hand. Rotation is stopped
// outright rather than left to coast.
func handLost(s ControllerState, out *Output) ControllerState {
	s.Filter = s.Filter.Reset()
	s.Mode = ModeIdle
	s.Motion = s.Motion.ClearNavigation()
	s.Motion.Velocity = 0
	if s.PhotoFocus {
		s.PhotoFocus = false
		out.setPhotoFocus(false)
	}
	return s
}

// Coast runs one frame tick: rotation inertia decays unless a drag is in
// progress.
func Coast(cfg Config, s ControllerState) (ControllerState, Output) {
	prev := s
	if s.Mode != ModeNavigation {
		s.Motion = s.Motion.Decay(cfg)
	}

	out := Output{Stable: s.Filter.Stable, Mode: s.Mode}
	out.diffMotion(prev.Motion, s.Motion)
	return s, out
}

// step is swapped in tests to exercise panic recovery.
var step = Step

// SafeStep builds a frame from hand and runs Step. A malformed hand or a
// panic inside the tick is returned as a *FrameFault, and the tick is
// processed as hand-lost instead.
func SafeStep(cfg Config, s ControllerState, hand *detector.HandLandmarks) (next ControllerState, out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, out = Step(cfg, s, nil)
			err = &FrameFault{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if hand == nil {
		next, out = Step(cfg, s, nil)
		return next, out, nil
	}

	frame, ferr := NewHandFrame(hand)
	if ferr != nil {
		next, out = Step(cfg, s, nil)
		return next, out, &FrameFault{Cause: ferr}
	}

	next, out = step(cfg, s, frame)
	return next, out, nil
}

// Controller owns a ControllerState and forwards every tick's output to an
// Emitter. It is not safe for concurrent use; one scheduling loop owns it.
type Controller struct {
	cfg     Config
	state   ControllerState
	emitter *Emitter
}

// NewController creates a Controller at the session start state.
func NewController(cfg Config, emitter *Emitter) *Controller {
	if emitter == nil {
		emitter = NewEmitter()
	}
	return &Controller{
		cfg:     cfg,
		state:   NewControllerState(cfg),
		emitter: emitter,
	}
}

// Detect runs one detection tick for hand (nil when no hand was seen).
func (c *Controller) Detect(hand *detector.HandLandmarks) (Output, error) {
	next, out, err := SafeStep(c.cfg, c.state, hand)
	c.state = next
	c.emitter.Emit(out)
	return out, err
}

// Tick runs one frame tick.
func (c *Controller) Tick() Output {
	next, out := Coast(c.cfg, c.state)
	c.state = next
	c.emitter.Emit(out)
	return out
}

// Advance runs one scheduling tick: inertia coasts, then, when detect is
// set, hand goes through a detection step. The two results are emitted as
// one Output so each callback fires at most once per tick.
func (c *Controller) Advance(detect bool, hand *detector.HandLandmarks) (Output, error) {
	next, out := Coast(c.cfg, c.state)
	var err error
	if detect {
		var stepOut Output
		next, stepOut, err = SafeStep(c.cfg, next, hand)
		out = out.Merge(stepOut)
	}
	c.state = next
	c.emitter.Emit(out)
	return out, err
}

// State returns a copy of the current state.
func (c *Controller) State() ControllerState {
	return c.state
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() Config {
	return c.cfg
}
