package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrLandmarkCount is returned when the service reports a hand with the
	// wrong number of points.
	ErrLandmarkCount = errors.New("unexpected landmark count")
	// ErrServiceBroken is returned when the pipe to the service fails. The
	// process is stopped and restarted by the next Detect.
	ErrServiceBroken = errors.New("mediapipe service pipe broken")
)

// idleShutdown is how long the service may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// maxFrameBytes bounds one encoded frame on the wire.
const maxFrameBytes = 16 << 20

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames go out as length-prefixed JPEG on stdin, hands come back as one
// JSON line per frame on stdout.
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the service script and interpreter. The
// Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = findFirst(searchPaths("scripts/mediapipe_service.py"))
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceNotFound, err)
	}

	python := config.Python
	if python == "" {
		python = findFirst(searchPaths("venv/bin/python", "../venv/bin/python"))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks. Hands scored
// below MinConfidence are dropped.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	hands, err := exchange(d.stdin, d.stdout, buf.GetBytes())
	if errors.Is(err, ErrServiceBroken) {
		d.shutdown()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return filterByScore(hands, d.config.MinConfidence), nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// exchange sends one length-prefixed frame and reads the reply line.
func exchange(w io.Writer, r *bufio.Reader, jpeg []byte) ([]HandLandmarks, error) {
	if len(jpeg) > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d", len(jpeg), maxFrameBytes)
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(jpeg)))
	if _, err := w.Write(length[:]); err != nil {
		return nil, fmt.Errorf("%w: write length: %v", ErrServiceBroken, err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return nil, fmt.Errorf("%w: write frame: %v", ErrServiceBroken, err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrServiceBroken, err)
	}
	return parseResponse(line)
}

// parseResponse decodes one reply line.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for i, h := range response.Hands {
		lm, err := h.toHandLandmarks()
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i, err)
		}
		result = append(result, lm)
	}
	return result, nil
}

func filterByScore(hands []HandLandmarks, min float64) []HandLandmarks {
	if min <= 0 {
		return hands
	}
	kept := hands[:0]
	for _, h := range hands {
		if h.Score >= min {
			kept = append(kept, h)
		}
	}
	return kept
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// searchPaths expands rel paths against the working directory, the
// executable's directory and ~/.handtree.
func searchPaths(rels ...string) []string {
	var dirs []string
	dirs = append(dirs, ".", "..")
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".handtree"))
	}

	var paths []string
	for _, dir := range dirs {
		for _, rel := range rels {
			paths = append(paths, filepath.Join(dir, rel))
		}
	}
	return paths
}

// findFirst returns the absolute form of the first existing path.
func findFirst(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
	Scale      float64     `json:"scale"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// toHandLandmarks converts a service hand, rejecting anything that is not
// exactly one point per landmark.
func (h jsonHand) toHandLandmarks() (HandLandmarks, error) {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		ScaleHint:  h.Scale,
	}

	if len(h.Points) != NumLandmarks {
		return lm, fmt.Errorf("%w: got %d points, want %d", ErrLandmarkCount, len(h.Points), NumLandmarks)
	}

	for i, p := range h.Points {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}
	return lm, nil
}
