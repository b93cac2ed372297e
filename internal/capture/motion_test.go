package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func blackAndWhite(t *testing.T) (*gocv.Mat, *gocv.Mat) {
	t.Helper()
	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return &black, &white
}

func TestNewMotionDetector(t *testing.T) {
	for _, threshold := range []float64{0.5, 1.0, 5.0} {
		md := NewMotionDetector(threshold)
		if md.Threshold() != threshold {
			t.Errorf("Threshold() = %f, want %f", md.Threshold(), threshold)
		}
		if md.primed {
			t.Error("motion detector should not be primed initially")
		}
		md.Close()
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black, _ := blackAndWhite(t)

	detected, changed := md.Detect(black)
	if detected || changed != 0 {
		t.Errorf("first frame = (%v, %f), want (false, 0)", detected, changed)
	}

	if detected, changed = md.Detect(black); detected {
		t.Errorf("identical frames should not detect motion, changed = %f", changed)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black, white := blackAndWhite(t)

	md.Detect(black)
	detected, changed := md.Detect(white)
	if !detected {
		t.Errorf("black to white should detect motion, changed = %f", changed)
	}
	if changed < 50.0 {
		t.Errorf("changed = %f, expected > 50%% for black to white", changed)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black, white := blackAndWhite(t)
	md.Detect(black)
	if !md.primed {
		t.Fatal("detector should be primed after first Detect")
	}

	md.Reset()
	if md.primed || !md.prev.Empty() {
		t.Error("Reset should drop the baseline")
	}

	if detected, _ := md.Detect(white); detected {
		t.Error("first frame after Reset should not detect motion")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.Threshold() != 5.0 {
		t.Errorf("Threshold() = %f, want 5.0", md.Threshold())
	}

	md.SetThreshold(-1.0)
	if md.Threshold() != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.Threshold())
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}

func TestMotionGate_Admit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black, white := blackAndWhite(t)

	t.Run("static empty scene is skipped", func(t *testing.T) {
		gate := NewMotionGate(NewMotionDetector(1.0), 3)
		defer gate.Close()

		if gate.Admit(black, false) {
			t.Error("priming frame of an empty scene should be skipped")
		}
		if gate.Admit(black, false) {
			t.Error("static empty scene should be skipped")
		}
	})

	t.Run("motion is admitted", func(t *testing.T) {
		gate := NewMotionGate(NewMotionDetector(1.0), 3)
		defer gate.Close()

		gate.Admit(black, false)
		if !gate.Admit(white, false) {
			t.Error("a changed scene should be admitted")
		}
	})

	t.Run("held hand is always admitted", func(t *testing.T) {
		gate := NewMotionGate(NewMotionDetector(1.0), 3)
		defer gate.Close()

		for i := 0; i < 5; i++ {
			if !gate.Admit(black, true) {
				t.Fatalf("frame %d with a hand in view was skipped", i)
			}
		}
	})

	t.Run("forced after max skip", func(t *testing.T) {
		gate := NewMotionGate(NewMotionDetector(1.0), 3)
		defer gate.Close()

		var admitted []bool
		for i := 0; i < 8; i++ {
			admitted = append(admitted, gate.Admit(black, false))
		}
		want := []bool{false, false, false, true, false, false, false, true}
		for i := range want {
			if admitted[i] != want[i] {
				t.Fatalf("admitted = %v, want %v", admitted, want)
			}
		}
	})
}
