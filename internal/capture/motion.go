package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Frame differencing constants.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// PixelDelta is the grey-level change that counts a pixel as changed.
	PixelDelta = 25
)

// MotionDetector measures how much of the scene changed since the previous
// frame it saw.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage
// of pixels that must change to count as motion; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether the
// changed share exceeds the threshold, and that share in percent. The first
// frame after construction or Reset only primes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !m.primed || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, PixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline Mat. Detect after Close starts over.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the current motion threshold.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// DefaultMaxSkip is how many consecutive frames a MotionGate may skip
// before it forces a detection anyway.
const DefaultMaxSkip = 10

// MotionGate decides whether a frame needs landmark inference. A static
// scene with no hand in view is skipped; a hand that was seen last time is
// always re-checked so that a motionless held pose keeps its state.
type MotionGate struct {
	motion  *MotionDetector
	maxSkip int
	skipped int
}

// NewMotionGate wraps motion. maxSkip <= 0 uses DefaultMaxSkip.
func NewMotionGate(motion *MotionDetector, maxSkip int) *MotionGate {
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &MotionGate{motion: motion, maxSkip: maxSkip}
}

// Admit reports whether frame should go to the detector. handSeen is
// whether the previous detection found a hand.
func (g *MotionGate) Admit(frame *gocv.Mat, handSeen bool) bool {
	moved, _ := g.motion.Detect(frame)
	if moved || handSeen || g.skipped >= g.maxSkip {
		g.skipped = 0
		return true
	}
	g.skipped++
	return false
}

// Reset forgets the baseline and the skip count.
func (g *MotionGate) Reset() {
	g.motion.Reset()
	g.skipped = 0
}

// Close releases the underlying detector.
func (g *MotionGate) Close() {
	g.motion.Close()
}
