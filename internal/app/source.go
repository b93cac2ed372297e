package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/handtree/internal/capture"
	"github.com/ayusman/handtree/internal/detector"
	"github.com/ayusman/handtree/internal/gesture"
)

// LandmarkSource supplies the main hand for each detection tick.
type LandmarkSource interface {
	// Open acquires the source. Failures wrap gesture.ErrSourceUnavailable
	// or gesture.ErrDetectorUnavailable.
	Open() error
	// Next returns the main hand, or nil when no hand is in view.
	Next(ctx context.Context) (*detector.HandLandmarks, error)
	// Close releases the source. It is safe to call more than once.
	Close() error
}

// CameraSource reads camera frames, skips inference on static empty
// scenes, and picks the largest hand the detector reports.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	gate     *capture.MotionGate
	preview  *capture.Preview

	// activeFPS is restored once the gate admits frames again.
	activeFPS int
	idle      bool

	handSeen  bool
	closeOnce sync.Once
	closeErr  error
}

// CameraSourceConfig configures a CameraSource.
type CameraSourceConfig struct {
	Camera capture.Camera
	// Detector may be nil when no inference backend could be started; Open
	// then reports gesture.ErrDetectorUnavailable.
	Detector detector.Detector
	// MotionThreshold is the changed-pixel percentage that counts as
	// motion. Zero disables the motion gate.
	MotionThreshold float64
	// Preview, when set, receives every frame read.
	Preview *capture.Preview
}

// NewCameraSource creates a CameraSource.
func NewCameraSource(cfg CameraSourceConfig) *CameraSource {
	s := &CameraSource{
		camera:   cfg.Camera,
		detector: cfg.Detector,
		preview:  cfg.Preview,
	}
	if cfg.MotionThreshold > 0 {
		s.gate = capture.NewMotionGate(capture.NewMotionDetector(cfg.MotionThreshold), capture.DefaultMaxSkip)
		s.activeFPS = cfg.Camera.FPS()
	}
	return s
}

// Open opens the camera, then checks the detector. The camera stays open
// without a detector so the preview keeps working.
func (s *CameraSource) Open() error {
	if err := s.camera.Open(); err != nil {
		if errors.Is(err, gesture.ErrSourceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", gesture.ErrSourceUnavailable, err)
	}
	if s.detector == nil {
		return fmt.Errorf("%w: no hand detector", gesture.ErrDetectorUnavailable)
	}
	return nil
}

// Next reads one frame and returns the main hand in it.
func (s *CameraSource) Next(ctx context.Context) (*detector.HandLandmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if s.preview != nil {
		if err := s.preview.Publish(frame); err != nil {
			log.Printf("preview encode: %v", err)
		}
	}

	if s.gate != nil {
		admitted := s.gate.Admit(frame, s.handSeen)
		s.setIdle(!admitted)
		if !admitted {
			return nil, nil
		}
	}

	hands, err := s.detector.Detect(frame)
	if err != nil {
		s.handSeen = false
		return nil, fmt.Errorf("detect: %w", err)
	}

	main := gesture.SelectMainHand(hands)
	s.handSeen = main != nil
	if main == nil {
		return nil, nil
	}
	hand := *main
	return &hand, nil
}

// setIdle lowers the capture rate while the gate skips frames and brings
// it back on the first admitted one.
func (s *CameraSource) setIdle(idle bool) {
	if idle == s.idle {
		return
	}
	s.idle = idle
	if idle {
		s.camera.SetFPS(capture.IdleFPS)
	} else {
		s.camera.SetFPS(s.activeFPS)
	}
}

// Close closes the camera, the detector and the motion gate.
func (s *CameraSource) Close() error {
	s.closeOnce.Do(func() {
		if s.gate != nil {
			s.gate.Close()
		}
		if err := s.camera.Close(); err != nil {
			s.closeErr = fmt.Errorf("close camera: %w", err)
		}
		if s.detector != nil {
			if err := s.detector.Close(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("close detector: %w", err)
			}
		}
	})
	return s.closeErr
}
