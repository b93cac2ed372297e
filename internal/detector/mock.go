package detector

import (
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r3"
)

// MockDetector is a test implementation of the Detector interface.
// Queued results are returned one per Detect call; once the queue is
// drained the fixed hands (or error) set with SetHands/SetError are used.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	queue  [][]HandLandmarks
	calls  int
	closed int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Enqueue appends per-call results. A nil or empty entry reports no hand.
func (m *MockDetector) Enqueue(results ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// Pending returns the number of queued results not yet consumed.
func (m *MockDetector) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed returns how many times Close has been called.
func (m *MockDetector) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Detect returns the next queued result, or the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close records the call and returns nil.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Every fixture below is a right hand, palm facing the camera, with the
// wrist at (0.50, 0.80) and the middle MCP at (0.50, 0.66), so the palm
// size is 0.14 in image units.

func fixtureBase() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}
	landmarks.Points[Wrist] = Point3D{X: 0.50, Y: 0.80}
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68}
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66}
	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68}
	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70}
	return landmarks
}

func extendIndex(l *HandLandmarks) {
	l.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55}
	l.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45}
	l.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35}
}

func extendOthers(l *HandLandmarks) {
	l.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52}
	l.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40}
	l.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28}

	l.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55}
	l.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45}
	l.Points[RingTip] = Point3D{X: 0.42, Y: 0.35}

	l.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60}
	l.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50}
	l.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42}
}

func curlIndex(l *HandLandmarks) {
	l.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.60, Z: -0.04}
	l.Points[IndexDIP] = Point3D{X: 0.55, Y: 0.64, Z: -0.05}
	l.Points[IndexTip] = Point3D{X: 0.54, Y: 0.70, Z: -0.03}
}

func curlOthers(l *HandLandmarks) {
	l.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.58, Z: -0.04}
	l.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.62, Z: -0.05}
	l.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.68, Z: -0.03}

	l.Points[RingPIP] = Point3D{X: 0.44, Y: 0.60, Z: -0.04}
	l.Points[RingDIP] = Point3D{X: 0.45, Y: 0.64, Z: -0.05}
	l.Points[RingTip] = Point3D{X: 0.46, Y: 0.70, Z: -0.03}

	l.Points[PinkyPIP] = Point3D{X: 0.39, Y: 0.63, Z: -0.04}
	l.Points[PinkyDIP] = Point3D{X: 0.40, Y: 0.66, Z: -0.05}
	l.Points[PinkyTip] = Point3D{X: 0.41, Y: 0.71, Z: -0.03}
}

// tuckThumb folds the thumb over the middle phalanges, clear of the index tip.
func tuckThumb(l *HandLandmarks) {
	l.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76}
	l.Points[ThumbMCP] = Point3D{X: 0.59, Y: 0.72}
	l.Points[ThumbIP] = Point3D{X: 0.61, Y: 0.68}
	l.Points[ThumbTip] = Point3D{X: 0.60, Y: 0.64}
}

// OpenPalmLandmarks returns all five fingers spread.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := fixtureBase()
	extendIndex(&landmarks)
	extendOthers(&landmarks)

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	return landmarks
}

// FistLandmarks returns all four fingers curled into the palm.
func FistLandmarks() HandLandmarks {
	landmarks := fixtureBase()
	curlIndex(&landmarks)
	curlOthers(&landmarks)
	tuckThumb(&landmarks)
	return landmarks
}

// PointingLandmarks returns the index finger extended and the rest curled.
func PointingLandmarks() HandLandmarks {
	landmarks := fixtureBase()
	extendIndex(&landmarks)
	curlOthers(&landmarks)
	tuckThumb(&landmarks)
	return landmarks
}

// PinchLandmarks returns thumb and index tips touching with the other
// three fingers extended. The pinch point is (0.6375, 0.5375).
func PinchLandmarks() HandLandmarks {
	landmarks := fixtureBase()
	extendOthers(&landmarks)

	landmarks.Points[IndexPIP] = Point3D{X: 0.58, Y: 0.58}
	landmarks.Points[IndexDIP] = Point3D{X: 0.61, Y: 0.54}
	landmarks.Points[IndexTip] = Point3D{X: 0.63, Y: 0.53}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.61, Y: 0.71}
	landmarks.Points[ThumbIP] = Point3D{X: 0.64, Y: 0.62}
	landmarks.Points[ThumbTip] = Point3D{X: 0.645, Y: 0.545}

	return landmarks
}

// Translate returns a copy of h shifted by (dx, dy) in image coordinates.
func Translate(h HandLandmarks, dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}

// Resize returns a copy of h scaled about its wrist by factor, which is
// how a hand looks when it moves toward or away from the camera.
func Resize(h HandLandmarks, factor float64) HandLandmarks {
	wrist := h.Points[Wrist].Vec()
	for i := range h.Points {
		h.Points[i] = PointOf(r3.Add(wrist, r3.Scale(factor, r3.Sub(h.Points[i].Vec(), wrist))))
	}
	return h
}
