package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ayusman/handtree/internal/detector"
	"github.com/ayusman/handtree/internal/gesture"
)

// loop is the per-goroutine state of the scheduling loop.
type loop struct {
	ctrl       *gesture.Controller
	available  bool
	lastDetect time.Time
	detected   bool
	faulting   bool
}

// run is the scheduling loop. Every frame tick coasts rotation inertia;
// a tick at least DetectionInterval after the previous detection also
// pulls a hand from the source and runs a detection step.
func (s *Session) run(ctx context.Context, ctrl *gesture.Controller, available bool, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.config.Timing.FrameInterval)
	defer ticker.Stop()

	l := &loop{ctrl: ctrl, available: available}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if !s.tick(ctx, l, now) {
				return
			}
			if s.afterTick != nil {
				s.afterTick()
			}
		}
	}
}

// tick runs one scheduling tick. It returns false when the session is
// shutting down.
func (s *Session) tick(ctx context.Context, l *loop, now time.Time) bool {
	detect := !l.detected || now.Sub(l.lastDetect) >= s.config.Timing.DetectionInterval
	if !detect {
		l.ctrl.Advance(false, nil)
		s.observe(l.ctrl.State(), nil)
		return true
	}
	l.detected = true
	l.lastDetect = now

	hand, err := s.pull(ctx, l.available)
	if ctx.Err() != nil {
		return false
	}

	_, stepErr := l.ctrl.Advance(true, hand)
	if err == nil {
		err = stepErr
	}
	s.observe(l.ctrl.State(), err)

	// One log line per run of faulty ticks.
	if err != nil && !l.faulting {
		log.Printf("session %s: frame fault: %v", s.id, err)
	}
	l.faulting = err != nil
	return true
}

// pull fetches the hand for one detection tick. A disabled session or an
// unavailable source yields no hand. Source errors count as a frame fault
// and the tick is treated as hand lost.
func (s *Session) pull(ctx context.Context, available bool) (*detector.HandLandmarks, error) {
	if !available || !s.Enabled() {
		return nil, nil
	}

	hand, err := s.config.Source.Next(ctx)
	if err != nil {
		var fault *gesture.FrameFault
		if !errors.As(err, &fault) {
			err = &gesture.FrameFault{Cause: err}
		}
		return nil, err
	}
	return hand, nil
}

// observe copies the engine state and any fault into the status snapshot.
func (s *Session) observe(state gesture.ControllerState, fault error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Mode = state.Mode
	s.status.Stable = state.Filter.Stable
	s.status.Tree = state.Tree
	s.status.PhotoFocus = state.PhotoFocus
	s.status.Zoom = state.Motion.Zoom
	s.status.Velocity = state.Motion.Velocity
	if fault != nil {
		s.status.Faults++
		s.status.LastFault = fault.Error()
	}
}
