package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handtree/internal/capture"
	"github.com/ayusman/handtree/internal/detector"
	"github.com/ayusman/handtree/internal/gesture"
)

func newCameraSource(t *testing.T, det detector.Detector, motion float64) (*CameraSource, *capture.MockCamera) {
	t.Helper()
	cam, frame := capture.NewBlankCamera()
	t.Cleanup(func() { frame.Close() })

	src := NewCameraSource(CameraSourceConfig{
		Camera:          cam,
		Detector:        det,
		MotionThreshold: motion,
	})
	t.Cleanup(func() { src.Close() })
	return src, cam
}

func TestCameraSource_SelectsMainHand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	small := detector.Resize(detector.OpenPalmLandmarks(), 0.6)
	big := detector.FistLandmarks()
	det.Enqueue([]detector.HandLandmarks{small, big}, nil)

	src, _ := newCameraSource(t, det, 0)
	require.NoError(t, src.Open())

	got, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big, *got)

	got, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got, "no hands is hand lost")
}

func TestCameraSource_MotionGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	src, cam := newCameraSource(t, det, 1.0)
	require.NoError(t, src.Open())

	// A static black scene with no hand is never sent for inference until
	// the skip budget runs out. The camera slows down meanwhile.
	for i := 0; i < capture.DefaultMaxSkip; i++ {
		got, err := src.Next(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Zero(t, det.Calls())
	assert.Equal(t, capture.IdleFPS, cam.FPS())

	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})
	got, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, det.Calls())
	assert.Equal(t, capture.DefaultFPS, cam.FPS())

	// With a hand in view every frame is checked even though nothing moves.
	for i := 0; i < 3; i++ {
		_, err := src.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 4, det.Calls())
}

func TestCameraSource_DetectError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	boom := errors.New("subprocess died")
	det := detector.NewMockDetector()
	det.SetError(boom)

	src, _ := newCameraSource(t, det, 0)
	require.NoError(t, src.Open())

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCameraSource_Open(t *testing.T) {
	t.Run("camera unavailable", func(t *testing.T) {
		cam := capture.NewMockCamera(nil, false)
		cam.FailOpen(errors.New("permission denied"))
		src := NewCameraSource(CameraSourceConfig{Camera: cam, Detector: detector.NewMockDetector()})

		err := src.Open()
		assert.ErrorIs(t, err, gesture.ErrSourceUnavailable)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("no detector keeps camera open", func(t *testing.T) {
		cam := capture.NewMockCamera(nil, false)
		src := NewCameraSource(CameraSourceConfig{Camera: cam})

		assert.ErrorIs(t, src.Open(), gesture.ErrDetectorUnavailable)
		assert.True(t, cam.IsOpen())

		require.NoError(t, src.Close())
		assert.False(t, cam.IsOpen())
	})
}

func TestCameraSource_Close(t *testing.T) {
	det := detector.NewMockDetector()
	cam := capture.NewMockCamera(nil, false)
	src := NewCameraSource(CameraSourceConfig{Camera: cam, Detector: det, MotionThreshold: 1})

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	assert.Equal(t, 1, cam.Closes())
	assert.Equal(t, 1, det.Closed())
}

func TestCameraSource_Cancelled(t *testing.T) {
	det := detector.NewMockDetector()
	src := NewCameraSource(CameraSourceConfig{Camera: capture.NewMockCamera(nil, false), Detector: det})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, det.Calls())
}
