package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestPreview_NextWaitsForNewFrame(t *testing.T) {
	p := NewPreview()

	got := make(chan []byte, 1)
	go func() {
		data, _, err := p.Next(context.Background(), 0)
		if err != nil {
			t.Errorf("Next() error = %v", err)
		}
		got <- data
	}()

	p.PublishJPEG([]byte("frame-1"))

	select {
	case data := <-got:
		if string(data) != "frame-1" {
			t.Errorf("Next() = %q, want frame-1", data)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after publish")
	}
}

func TestPreview_NextReturnsLatest(t *testing.T) {
	p := NewPreview()
	p.PublishJPEG([]byte("a"))
	p.PublishJPEG([]byte("b"))

	data, seq, err := p.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(data) != "b" || seq != 2 {
		t.Errorf("Next() = (%q, %d), want (b, 2)", data, seq)
	}
}

func TestPreview_NextCancelled(t *testing.T) {
	p := NewPreview()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, _, err := p.Next(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded", err)
	}
}

func TestPreview_PublishOnlyWhileWatched(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	p := NewPreview()
	if err := p.Publish(&frame); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if p.seq != 0 {
		t.Fatal("frame encoded with nobody watching")
	}

	stop := p.Watch()
	if err := p.Publish(&frame); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	data, _, err := p.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("published frame is not a JPEG")
	}

	stop()
	stop()
	if p.Watching() {
		t.Error("Watching() = true after the only viewer left")
	}
}
