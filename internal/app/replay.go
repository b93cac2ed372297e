package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ayusman/handtree/internal/detector"
	"github.com/ayusman/handtree/internal/gesture"
)

// Recording is a scripted landmark sequence, one step per detection tick.
type Recording struct {
	Description string       `json:"description,omitempty"`
	Steps       []ReplayStep `json:"steps"`
}

// ReplayStep describes one or more identical detection results.
type ReplayStep struct {
	// Pose names a reference hand: open, fist, pointing, pinch, or none
	// for no hand. Ignored when Hand is set.
	Pose string `json:"pose,omitempty"`
	// Hand gives the landmarks explicitly.
	Hand *detector.HandLandmarks `json:"hand,omitempty"`
	// DX and DY shift the hand in image coordinates.
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`
	// Scale sets the hand's scale hint.
	Scale float64 `json:"scale,omitempty"`
	// Repeat defaults to 1.
	Repeat int `json:"repeat,omitempty"`
}

var referenceHands = map[string]func() detector.HandLandmarks{
	"open":     detector.OpenPalmLandmarks,
	"fist":     detector.FistLandmarks,
	"pointing": detector.PointingLandmarks,
	"pinch":    detector.PinchLandmarks,
}

// DecodeRecording reads a JSON recording. Unknown fields are rejected.
func DecodeRecording(r io.Reader) (*Recording, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var rec Recording
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	return &rec, nil
}

// LoadRecording reads a JSON recording from path.
func LoadRecording(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeRecording(f)
}

// Hands expands the recording into one entry per detection tick. A nil
// entry means no hand.
func (r *Recording) Hands() ([]*detector.HandLandmarks, error) {
	var hands []*detector.HandLandmarks
	for i, step := range r.Steps {
		n := step.Repeat
		if n == 0 {
			n = 1
		}
		if n < 0 {
			return nil, fmt.Errorf("step %d: negative repeat %d", i, n)
		}

		var hand *detector.HandLandmarks
		switch {
		case step.Hand != nil:
			h := detector.Translate(*step.Hand, step.DX, step.DY)
			hand = &h
		case step.Pose == "none":
		default:
			ref, ok := referenceHands[step.Pose]
			if !ok {
				return nil, fmt.Errorf("step %d: unknown pose %q", i, step.Pose)
			}
			h := detector.Translate(ref(), step.DX, step.DY)
			hand = &h
		}
		if hand != nil && step.Scale > 0 {
			hand.ScaleHint = step.Scale
		}

		for j := 0; j < n; j++ {
			if hand == nil {
				hands = append(hands, nil)
				continue
			}
			h := *hand
			hands = append(hands, &h)
		}
	}
	return hands, nil
}

// ReplaySource serves a fixed hand sequence, one entry per Next call. Once
// the sequence is exhausted it reports no hand, or starts over if looping.
type ReplaySource struct {
	hands []*detector.HandLandmarks
	loop  bool

	mu       sync.Mutex
	pos      int
	done     chan struct{}
	doneOnce sync.Once
}

// NewReplaySource creates a ReplaySource over hands.
func NewReplaySource(hands []*detector.HandLandmarks, loop bool) *ReplaySource {
	return &ReplaySource{
		hands: hands,
		loop:  loop,
		done:  make(chan struct{}),
	}
}

// Open fails for an empty sequence.
func (s *ReplaySource) Open() error {
	if len(s.hands) == 0 {
		return fmt.Errorf("%w: empty recording", gesture.ErrSourceUnavailable)
	}
	return nil
}

// Next returns the next hand in the sequence.
func (s *ReplaySource) Next(ctx context.Context) (*detector.HandLandmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.hands) {
		if !s.loop || len(s.hands) == 0 {
			return nil, nil
		}
		s.pos = 0
	}

	hand := s.hands[s.pos]
	s.pos++
	if s.pos == len(s.hands) {
		s.doneOnce.Do(func() { close(s.done) })
	}
	if hand == nil {
		return nil, nil
	}
	h := *hand
	return &h, nil
}

// Done is closed once every hand has been served at least once.
func (s *ReplaySource) Done() <-chan struct{} {
	return s.done
}

// Close is a no-op.
func (s *ReplaySource) Close() error {
	return nil
}

// errEmptyRecording is returned by NewReplaySourceFromFile for a recording
// with no steps.
var errEmptyRecording = errors.New("recording has no steps")

// NewReplaySourceFromFile loads a recording and wraps it in a ReplaySource.
func NewReplaySourceFromFile(path string, loop bool) (*ReplaySource, error) {
	rec, err := LoadRecording(path)
	if err != nil {
		return nil, err
	}
	hands, err := rec.Hands()
	if err != nil {
		return nil, err
	}
	if len(hands) == 0 {
		return nil, errEmptyRecording
	}
	return NewReplaySource(hands, loop), nil
}
