package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_ProjectedSize(t *testing.T) {
	t.Run("fixtures share a palm size", func(t *testing.T) {
		for name, hand := range map[string]HandLandmarks{
			"open":     OpenPalmLandmarks(),
			"fist":     FistLandmarks(),
			"pointing": PointingLandmarks(),
			"pinch":    PinchLandmarks(),
		} {
			if got := hand.ProjectedSize(); math.Abs(got-0.14) > epsilon {
				t.Errorf("%s: ProjectedSize() = %f, want 0.14", name, got)
			}
		}
	})

	t.Run("ignores depth", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 0.1, Y: 0.1, Z: 0}
		hand.Points[MiddleMCP] = Point3D{X: 0.4, Y: 0.5, Z: 9}

		if got := hand.ProjectedSize(); math.Abs(got-0.5) > epsilon {
			t.Errorf("ProjectedSize() = %f, want 0.5", got)
		}
	})

	t.Run("nil hand is zero", func(t *testing.T) {
		var hand *HandLandmarks
		if got := hand.ProjectedSize(); got != 0 {
			t.Errorf("ProjectedSize() = %f, want 0", got)
		}
	})

	t.Run("resize scales about the wrist", func(t *testing.T) {
		hand := Resize(OpenPalmLandmarks(), 1.5)
		if got := hand.ProjectedSize(); math.Abs(got-0.21) > epsilon {
			t.Errorf("ProjectedSize() = %f, want 0.21", got)
		}
		if hand.Points[Wrist] != OpenPalmLandmarks().Points[Wrist] {
			t.Error("wrist should not move when resizing")
		}
	})
}

func TestPoint3D_IsFinite(t *testing.T) {
	tests := []struct {
		name string
		p    Point3D
		want bool
	}{
		{name: "regular", p: Point3D{X: 0.5, Y: 0.5, Z: -0.1}, want: true},
		{name: "nan", p: Point3D{X: math.NaN()}, want: false},
		{name: "inf", p: Point3D{Y: math.Inf(-1)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsFinite(); got != tt.want {
				t.Errorf("IsFinite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{FistLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("drains queue before fallback", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{OpenPalmLandmarks()})
		mock.Enqueue([]HandLandmarks{FistLandmarks()}, nil)

		if mock.Pending() != 2 {
			t.Fatalf("Pending() = %d, want 2", mock.Pending())
		}

		first, _ := mock.Detect(nil)
		if len(first) != 1 || first[0].Points[IndexTip] != FistLandmarks().Points[IndexTip] {
			t.Error("first call should return the queued fist")
		}

		second, _ := mock.Detect(nil)
		if len(second) != 0 {
			t.Errorf("second call should report no hand, got %d", len(second))
		}

		third, _ := mock.Detect(nil)
		if len(third) != 1 || third[0].Points[IndexTip] != OpenPalmLandmarks().Points[IndexTip] {
			t.Error("third call should fall back to the configured hands")
		}

		if mock.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", mock.Calls())
		}
	})

	t.Run("Close is counted", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		mock.Close()

		if mock.Closed() != 2 {
			t.Errorf("Closed() = %d, want 2", mock.Closed())
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestOpenPalmLandmarks(t *testing.T) {
	landmarks := OpenPalmLandmarks()

	t.Run("has correct handedness and score", func(t *testing.T) {
		if landmarks.Handedness != "Right" {
			t.Errorf("expected handedness Right, got %s", landmarks.Handedness)
		}
		if landmarks.Score < 0.9 {
			t.Errorf("expected score >= 0.9, got %f", landmarks.Score)
		}
	})

	t.Run("all fingers are extended", func(t *testing.T) {
		minExtension := 0.2

		for _, f := range []struct {
			name     string
			mcp, tip int
		}{
			{"index", IndexMCP, IndexTip},
			{"middle", MiddleMCP, MiddleTip},
			{"ring", RingMCP, RingTip},
			{"pinky", PinkyMCP, PinkyTip},
		} {
			extension := landmarks.Points[f.mcp].Y - landmarks.Points[f.tip].Y
			if extension < minExtension {
				t.Errorf("%s finger not extended enough (extension: %f), expected >= %f", f.name, extension, minExtension)
			}
		}
	})

	t.Run("fingers are properly ordered left to right", func(t *testing.T) {
		if landmarks.Points[PinkyMCP].X >= landmarks.Points[RingMCP].X {
			t.Error("pinky should be to the left of ring finger")
		}
		if landmarks.Points[RingMCP].X >= landmarks.Points[MiddleMCP].X {
			t.Error("ring should be to the left of middle finger")
		}
		if landmarks.Points[MiddleMCP].X >= landmarks.Points[IndexMCP].X {
			t.Error("middle should be to the left of index finger")
		}
	})
}

func TestFistLandmarks(t *testing.T) {
	landmarks := FistLandmarks()

	t.Run("fingertips stay below their PIP joints", func(t *testing.T) {
		for _, f := range [][2]int{{IndexPIP, IndexTip}, {MiddlePIP, MiddleTip}, {RingPIP, RingTip}, {PinkyPIP, PinkyTip}} {
			if landmarks.Points[f[1]].Y <= landmarks.Points[f[0]].Y {
				t.Errorf("tip %d should be below PIP %d", f[1], f[0])
			}
		}
	})

	t.Run("thumb is clear of the index tip", func(t *testing.T) {
		dx := landmarks.Points[ThumbTip].X - landmarks.Points[IndexTip].X
		dy := landmarks.Points[ThumbTip].Y - landmarks.Points[IndexTip].Y
		if math.Hypot(dx, dy) < 0.05 {
			t.Error("thumb tip too close to index tip, fist would read as a pinch")
		}
	})
}

func TestJSONHand_ToHandLandmarks(t *testing.T) {
	t.Run("copies points and scale", func(t *testing.T) {
		h := jsonHand{Handedness: "Left", Score: 0.8, Scale: 0.2, Points: make([]jsonPoint, NumLandmarks)}
		h.Points[IndexTip] = jsonPoint{X: 0.3, Y: 0.4, Z: -0.1}

		lm, err := h.toHandLandmarks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lm.Points[IndexTip] != (Point3D{X: 0.3, Y: 0.4, Z: -0.1}) {
			t.Errorf("index tip = %+v", lm.Points[IndexTip])
		}
		if lm.ScaleHint != 0.2 || lm.Handedness != "Left" {
			t.Errorf("metadata not copied: %+v", lm)
		}
	})

	t.Run("rejects short hands", func(t *testing.T) {
		h := jsonHand{Points: make([]jsonPoint, 20)}

		_, err := h.toHandLandmarks()
		if !errors.Is(err, ErrLandmarkCount) {
			t.Errorf("expected ErrLandmarkCount, got %v", err)
		}
	})
}
