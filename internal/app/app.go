// Package app runs a gesture session: it owns the landmark source and the
// scheduling loop that drives the gesture engine.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handtree/internal/config"
	"github.com/ayusman/handtree/internal/gesture"
	"github.com/ayusman/handtree/internal/timeutil"
)

// ErrSessionClosed is returned by Start after Stop.
var ErrSessionClosed = errors.New("session closed")

// Availability of a session dependency.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
	StatusPending     = "pending"
)

// Config holds the dependencies of a Session.
type Config struct {
	Gesture gesture.Config
	Timing  config.Timing
	Source  LandmarkSource
	// Emitter receives every tick's output. Register sinks before Start.
	Emitter *gesture.Emitter
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// OnStatus, if set, is called from the caller's goroutine of Start,
	// SetEnabled and Stop whenever availability or the enabled flag changes.
	OnStatus func(Status)
}

// Status is a snapshot of the session for the status API and the tray.
type Status struct {
	SessionID  string            `json:"session_id"`
	StartedAt  time.Time         `json:"started_at"`
	Running    bool              `json:"running"`
	Enabled    bool              `json:"enabled"`
	Source     string            `json:"source"`
	Detector   string            `json:"detector"`
	Error      string            `json:"error,omitempty"`
	Mode       gesture.Mode      `json:"mode"`
	Stable     gesture.Pose      `json:"stable_pose"`
	Tree       gesture.TreeState `json:"tree_state,omitempty"`
	PhotoFocus bool              `json:"photo_focus"`
	Zoom       float64           `json:"zoom"`
	Velocity   float64           `json:"velocity"`
	Faults     int               `json:"faults"`
	LastFault  string            `json:"last_fault,omitempty"`
}

// Session is one run of the gesture engine against one landmark source.
// Engine state is owned by the session goroutine; the exported methods are
// safe for concurrent use.
type Session struct {
	id     string
	config Config
	clock  timeutil.Clock

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	status  Status
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	stopOnce sync.Once

	// afterTick is called at the end of every scheduling tick. Tests use
	// it to step the loop in lockstep with a mock clock.
	afterTick func()
}

// NewSession creates a Session with a fresh session ID.
func NewSession(cfg Config) *Session {
	if cfg.Emitter == nil {
		cfg.Emitter = gesture.NewEmitter()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		config: cfg,
		clock:  clock,
		status: Status{
			SessionID: id,
			Enabled:   true,
			Source:    StatusPending,
			Detector:  StatusPending,
			Zoom:      cfg.Gesture.InitialZoom,
		},
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Start opens the source and starts the scheduling loop. A source or
// detector that cannot be acquired does not fail Start: it is reported once
// through Status and the session runs without gesture input.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	available := s.openSource()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.status.Running = true
	s.status.StartedAt = s.clock.Now()
	s.mu.Unlock()

	ctrl := gesture.NewController(s.config.Gesture, s.config.Emitter)
	go s.run(ctx, ctrl, available, done)

	log.Printf("session %s started (source=%s detector=%s)", s.id, s.Status().Source, s.Status().Detector)
	s.notify()
	return nil
}

// openSource opens the source and records its availability. It reports
// whether detection can run.
func (s *Session) openSource() bool {
	if s.config.Source == nil {
		s.setAvailability(StatusUnavailable, StatusUnavailable, gesture.ErrSourceUnavailable)
		return false
	}

	err := s.config.Source.Open()
	switch {
	case err == nil:
		s.setAvailability(StatusOK, StatusOK, nil)
		return true
	case errors.Is(err, gesture.ErrDetectorUnavailable):
		s.setAvailability(StatusOK, StatusUnavailable, err)
	default:
		// Nothing reaches the detector without a source.
		s.setAvailability(StatusUnavailable, StatusUnavailable, err)
	}
	log.Printf("session %s: gesture input disabled: %v", s.id, err)
	return false
}

func (s *Session) setAvailability(source, det string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Source = source
	s.status.Detector = det
	if err != nil {
		s.status.Error = err.Error()
	}
}

// Stop stops the loop, waits for it to exit and closes the source. It is
// safe to call more than once and before Start.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.lifecycle.Lock()
		defer s.lifecycle.Unlock()

		s.mu.Lock()
		s.stopped = true
		cancel, done := s.cancel, s.done
		s.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}

		if s.config.Source != nil {
			if err := s.config.Source.Close(); err != nil {
				log.Printf("session %s: close source: %v", s.id, err)
			}
		}

		s.mu.Lock()
		s.status.Running = false
		s.mu.Unlock()

		log.Printf("session %s stopped", s.id)
		s.notify()
	})
}

// SetEnabled turns gesture input on or off. While disabled the source is
// not read and every detection tick counts as hand lost.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	changed := s.status.Enabled != enabled
	s.status.Enabled = enabled
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Enabled reports whether gesture input is on.
func (s *Session) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Enabled
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) notify() {
	if s.config.OnStatus != nil {
		s.config.OnStatus(s.Status())
	}
}
