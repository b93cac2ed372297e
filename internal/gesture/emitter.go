package gesture

import "time"

// Output is what one tick produced. Each signal carries a flag that is set
// only when the value changed or a discrete transition fired this tick.
type Output struct {
	Raw    Pose
	Stable Pose
	Mode   Mode

	StateChanged bool
	State        TreeState

	ZoomChanged bool
	Zoom        float64

	VelocityChanged bool
	Velocity        float64

	PhotoFocusChanged bool
	PhotoFocus        bool
}

func (o *Output) setState(t TreeState) {
	o.StateChanged = true
	o.State = t
}

func (o *Output) setPhotoFocus(v bool) {
	o.PhotoFocusChanged = true
	o.PhotoFocus = v
}

func (o *Output) diffMotion(before, after MotionState) {
	if after.Zoom != before.Zoom {
		o.ZoomChanged = true
		o.Zoom = after.Zoom
	}
	if after.Velocity != before.Velocity {
		o.VelocityChanged = true
		o.Velocity = after.Velocity
	}
}

// Merge folds next, produced later in the same scheduling tick, into o.
// Signals changed by next take its values; the rest keep o's.
func (o Output) Merge(next Output) Output {
	o.Raw, o.Stable, o.Mode = next.Raw, next.Stable, next.Mode
	if next.StateChanged {
		o.setState(next.State)
	}
	if next.ZoomChanged {
		o.ZoomChanged, o.Zoom = true, next.Zoom
	}
	if next.VelocityChanged {
		o.VelocityChanged, o.Velocity = true, next.Velocity
	}
	if next.PhotoFocusChanged {
		o.setPhotoFocus(next.PhotoFocus)
	}
	return o
}

// Empty reports whether the tick emitted nothing.
func (o Output) Empty() bool {
	return !o.StateChanged && !o.ZoomChanged && !o.VelocityChanged && !o.PhotoFocusChanged
}

// EventKind names one of the four outbound signals.
type EventKind string

const (
	EventStateChange EventKind = "state"
	EventZoom        EventKind = "zoom"
	EventRotate      EventKind = "rotate"
	EventPhotoFocus  EventKind = "photo_focus"
)

// Event is the wire form of a single signal.
type Event struct {
	Kind       EventKind `json:"kind"`
	State      TreeState `json:"state,omitempty"`
	Value      float64   `json:"value"`
	PhotoFocus bool      `json:"photo_focus"`
}

// Envelope is an Event stamped with the session and time it came from, the
// form sent to remote listeners.
type Envelope struct {
	Session   string `json:"session"`
	Timestamp int64  `json:"timestamp"`
	Event     Event  `json:"event"`
}

// NewEnvelope stamps ev with session and the Unix millisecond time of at.
func NewEnvelope(session string, ev Event, at time.Time) Envelope {
	return Envelope{Session: session, Timestamp: at.UnixMilli(), Event: ev}
}

// Events flattens the changed signals, in a fixed order.
func (o Output) Events() []Event {
	var events []Event
	if o.StateChanged {
		events = append(events, Event{Kind: EventStateChange, State: o.State})
	}
	if o.ZoomChanged {
		events = append(events, Event{Kind: EventZoom, Value: o.Zoom})
	}
	if o.VelocityChanged {
		events = append(events, Event{Kind: EventRotate, Value: o.Velocity})
	}
	if o.PhotoFocusChanged {
		events = append(events, Event{Kind: EventPhotoFocus, PhotoFocus: o.PhotoFocus})
	}
	return events
}

// Callbacks receives engine output. Nil fields are skipped.
type Callbacks struct {
	OnStateChange      func(state TreeState)
	OnZoomChange       func(factor float64)
	OnRotateChange     func(velocity float64)
	OnPhotoFocusChange func(focused bool)
}

// EventCallbacks adapts a single event handler to Callbacks.
func EventCallbacks(fn func(Event)) Callbacks {
	return Callbacks{
		OnStateChange: func(state TreeState) {
			fn(Event{Kind: EventStateChange, State: state})
		},
		OnZoomChange: func(factor float64) {
			fn(Event{Kind: EventZoom, Value: factor})
		},
		OnRotateChange: func(velocity float64) {
			fn(Event{Kind: EventRotate, Value: velocity})
		},
		OnPhotoFocusChange: func(focused bool) {
			fn(Event{Kind: EventPhotoFocus, PhotoFocus: focused})
		},
	}
}

// Emitter forwards Output to every registered Callbacks, each signal at
// most once per tick.
type Emitter struct {
	sinks []Callbacks
}

// NewEmitter creates an Emitter with the given sinks.
func NewEmitter(sinks ...Callbacks) *Emitter {
	return &Emitter{sinks: sinks}
}

// Add registers another sink. Call before the session starts.
func (e *Emitter) Add(cb Callbacks) {
	e.sinks = append(e.sinks, cb)
}

// Emit forwards the changed signals of out.
func (e *Emitter) Emit(out Output) {
	if out.Empty() {
		return
	}
	for _, cb := range e.sinks {
		if out.StateChanged && cb.OnStateChange != nil {
			cb.OnStateChange(out.State)
		}
		if out.ZoomChanged && cb.OnZoomChange != nil {
			cb.OnZoomChange(out.Zoom)
		}
		if out.VelocityChanged && cb.OnRotateChange != nil {
			cb.OnRotateChange(out.Velocity)
		}
		if out.PhotoFocusChanged && cb.OnPhotoFocusChange != nil {
			cb.OnPhotoFocusChange(out.PhotoFocus)
		}
	}
}
