package gesture

import "fmt"

// Mode is the interaction mode. Exactly one is active at a time, so
// navigation and selection can never overlap.
type Mode int

const (
	ModeIdle Mode = iota
	ModeNavigation
	ModeClickArmed
)

func (m Mode) String() string {
	switch m {
	case ModeNavigation:
		return "NAVIGATION"
	case ModeClickArmed:
		return "CLICK_ARMED"
	default:
		return "IDLE"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for _, v := range []Mode{ModeIdle, ModeNavigation, ModeClickArmed} {
		if v.String() == string(text) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// TreeState is the bulk scene state driven by FIST and OPEN.
type TreeState int

const (
	TreeUnset TreeState = iota
	TreeFormed
	TreeChaos
)

func (t TreeState) String() string {
	switch t {
	case TreeFormed:
		return "FORMED"
	case TreeChaos:
		return "CHAOS"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t TreeState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text is
// TreeUnset.
func (t *TreeState) UnmarshalText(text []byte) error {
	for _, v := range []TreeState{TreeUnset, TreeFormed, TreeChaos} {
		if v.String() == string(text) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown tree state %q", text)
}

// arbitrate advances the mode after the filter has run for this tick.
// PINCH is continuous and applies every tick; every other rule fires only
// on the tick the stable pose changes.
func arbitrate(cfg Config, s ControllerState, prevStable, raw Pose, f *HandFrame, out *Output) ControllerState {
	stable := s.Filter.Stable

	if stable == PosePinch {
		s.Mode = ModeNavigation
		// While a release is being debounced the frame is not a pinch,
		// so its fingertips say nothing about the drag.
		if raw == PosePinch {
			s.Motion = s.Motion.Track(f.PinchPoint(), f.Scale, cfg)
		}
		return s
	}

	// Leaving navigation drops back to IDLE, and the pose that ended the
	// pinch is then handled like any other change.
	if s.Mode == ModeNavigation {
		s.Mode = ModeIdle
		s.Motion = s.Motion.ClearNavigation()
	}

	if stable == prevStable {
		return s
	}

	switch stable {
	case PosePointing:
		s.Mode = ModeClickArmed

	case PoseFist:
		if s.Mode == ModeClickArmed {
			s.Mode = ModeIdle
			s.PhotoFocus = !s.PhotoFocus
			out.setPhotoFocus(s.PhotoFocus)
			return s
		}
		s.Tree = TreeFormed
		out.setState(TreeFormed)

	case PoseOpen:
		s.Mode = ModeIdle
		s.Tree = TreeChaos
		out.setState(TreeChaos)
		if s.PhotoFocus {
			s.PhotoFocus = false
			out.setPhotoFocus(false)
		}

	case PoseUnknown:
		// The click must come straight from POINTING.
		if s.Mode == ModeClickArmed {
			s.Mode = ModeIdle
		}
	}

	return s
}
