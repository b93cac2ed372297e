package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// Preview holds the latest camera frame as JPEG for the MJPEG stream. The
// session publishes the frames it already read, so the preview never
// competes with detection for the camera.
type Preview struct {
	mu       sync.Mutex
	jpeg     []byte
	seq      uint64
	watchers int
	changed  chan struct{}
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Watch registers a viewer. Frames are only encoded while at least one
// viewer is registered. Call the returned func to unregister.
func (p *Preview) Watch() func() {
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.watchers--
			p.mu.Unlock()
		})
	}
}

// Watching reports whether anyone is viewing.
func (p *Preview) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchers > 0
}

// Publish encodes frame as JPEG if anyone is watching.
func (p *Preview) Publish(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() || !p.Watching() {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.PublishJPEG(data)
	return nil
}

// PublishJPEG stores an already encoded frame and wakes waiting viewers.
func (p *Preview) PublishJPEG(data []byte) {
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Next blocks until a frame newer than after is available and returns it
// with its sequence number.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > after {
			data, seq := p.jpeg, p.seq
			p.mu.Unlock()
			return data, seq, nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}
