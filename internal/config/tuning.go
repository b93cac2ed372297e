// Package config loads the tuning values of the gesture engine and the
// session scheduler.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/ayusman/handtree/internal/gesture"
)

// DefaultConfigPath is where cmd/handtree looks for tuning values when no
// -config flag is given. The file is optional.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds every tunable value. Fields left nil fall back to the
// defaults returned by the Get* methods, so partial files are safe. The
// same keys are used by the settings API and the settings table.
type TuningConfig struct {
	// Classifier
	ExtendRatio    *float64 `json:"extend_ratio,omitempty"`
	CurlRatio      *float64 `json:"curl_ratio,omitempty"`
	PinchThreshold *float64 `json:"pinch_threshold,omitempty"`
	StrictPinch    *bool    `json:"strict_pinch,omitempty"`

	// Stability filter
	ConfirmFrames *int `json:"confirm_frames,omitempty"`

	// Motion integrator
	RotationSensitivity *float64 `json:"rotation_sensitivity,omitempty"`
	Decay               *float64 `json:"decay,omitempty"`
	RestEpsilon         *float64 `json:"rest_epsilon,omitempty"`
	ZoomSensitivity     *float64 `json:"zoom_sensitivity,omitempty"`
	InitialZoom         *float64 `json:"initial_zoom,omitempty"`

	// Scheduler
	FrameInterval     *string `json:"frame_interval,omitempty"`     // duration string like "16ms"
	DetectionInterval *string `json:"detection_interval,omitempty"` // duration string like "25ms"

	// Capture and detection
	MotionThreshold *float64 `json:"motion_threshold,omitempty"` // percent of changed pixels
	MaxHands        *int     `json:"max_hands,omitempty"`
	MinConfidence   *float64 `json:"min_confidence,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy of c. Copying the struct alone would share the
// values behind its pointer fields.
func (c *TuningConfig) Clone() *TuningConfig {
	return &TuningConfig{
		ExtendRatio:         clonePtr(c.ExtendRatio),
		CurlRatio:           clonePtr(c.CurlRatio),
		PinchThreshold:      clonePtr(c.PinchThreshold),
		StrictPinch:         clonePtr(c.StrictPinch),
		ConfirmFrames:       clonePtr(c.ConfirmFrames),
		RotationSensitivity: clonePtr(c.RotationSensitivity),
		Decay:               clonePtr(c.Decay),
		RestEpsilon:         clonePtr(c.RestEpsilon),
		ZoomSensitivity:     clonePtr(c.ZoomSensitivity),
		InitialZoom:         clonePtr(c.InitialZoom),
		FrameInterval:       clonePtr(c.FrameInterval),
		DetectionInterval:   clonePtr(c.DetectionInterval),
		MotionThreshold:     clonePtr(c.MotionThreshold),
		MaxHands:            clonePtr(c.MaxHands),
		MinConfidence:       clonePtr(c.MinConfidence),
	}
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default value.
func DefaultTuningConfig() *TuningConfig {
	g := gesture.DefaultConfig()
	return &TuningConfig{
		ExtendRatio:         ptrFloat64(g.Classifier.ExtendRatio),
		CurlRatio:           ptrFloat64(g.Classifier.CurlRatio),
		PinchThreshold:      ptrFloat64(g.Classifier.PinchThreshold),
		StrictPinch:         ptrBool(g.Classifier.StrictPinch),
		ConfirmFrames:       ptrInt(g.ConfirmFrames),
		RotationSensitivity: ptrFloat64(g.RotationSensitivity),
		Decay:               ptrFloat64(g.Decay),
		RestEpsilon:         ptrFloat64(g.RestEpsilon),
		ZoomSensitivity:     ptrFloat64(g.ZoomSensitivity),
		InitialZoom:         ptrFloat64(g.InitialZoom),
		FrameInterval:       ptrString(defaultFrameInterval.String()),
		DetectionInterval:   ptrString(defaultDetectionInterval.String()),
		MotionThreshold:     ptrFloat64(defaultMotionThreshold),
		MaxHands:            ptrInt(defaultMaxHands),
		MinConfidence:       ptrFloat64(defaultMinConfidence),
	}
}

const (
	defaultFrameInterval     = 16 * time.Millisecond
	defaultDetectionInterval = 25 * time.Millisecond
	defaultMotionThreshold   = 1.0
	defaultMaxHands          = 2
	defaultMinConfidence     = 0.5
)

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decodeStrict(data []byte, cfg *TuningConfig) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// ApplySettings overlays stored settings onto c. Keys are the JSON field
// names and values their JSON text, so "decay" -> "0.85" and
// "frame_interval" -> "\"20ms\"". A bare duration string is accepted too.
// Unknown keys and values of the wrong type are errors, and c is left
// unchanged when any setting fails.
func (c *TuningConfig) ApplySettings(settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := make(map[string]json.RawMessage, len(settings))
	for _, k := range keys {
		v := settings[k]
		if !json.Valid([]byte(v)) {
			// Duration settings may be stored unquoted.
			v = strconv.Quote(v)
		}
		obj[k] = json.RawMessage(v)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	next := c.Clone()
	if err := decodeStrict(data, next); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}
	*c = *next
	return nil
}

// Settings flattens the non-nil fields of c into the key/value form used by
// ApplySettings.
func (c *TuningConfig) Settings() (map[string]string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = string(v)
	}
	return out, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}

	if c.DetectionInterval != nil && *c.DetectionInterval != "" {
		d, err := time.ParseDuration(*c.DetectionInterval)
		if err != nil {
			return fmt.Errorf("invalid detection_interval '%s': %w", *c.DetectionInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("detection_interval must be non-negative, got %s", d)
		}
	}

	if c.MotionThreshold != nil && (*c.MotionThreshold < 0 || *c.MotionThreshold > 100) {
		return fmt.Errorf("motion_threshold must be between 0 and 100, got %f", *c.MotionThreshold)
	}

	if c.MaxHands != nil && *c.MaxHands < 1 {
		return fmt.Errorf("max_hands must be at least 1, got %d", *c.MaxHands)
	}

	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}

	if err := c.GestureConfig().Validate(); err != nil {
		return err
	}

	return nil
}

// GetExtendRatio returns the extend_ratio value or the default.
func (c *TuningConfig) GetExtendRatio() float64 {
	if c.ExtendRatio == nil {
		return gesture.DefaultClassifier().ExtendRatio
	}
	return *c.ExtendRatio
}

// GetCurlRatio returns the curl_ratio value or the default.
func (c *TuningConfig) GetCurlRatio() float64 {
	if c.CurlRatio == nil {
		return gesture.DefaultClassifier().CurlRatio
	}
	return *c.CurlRatio
}

// GetPinchThreshold returns the pinch_threshold value or the default.
func (c *TuningConfig) GetPinchThreshold() float64 {
	if c.PinchThreshold == nil {
		return gesture.DefaultClassifier().PinchThreshold
	}
	return *c.PinchThreshold
}

// GetStrictPinch returns the strict_pinch value or the default.
func (c *TuningConfig) GetStrictPinch() bool {
	if c.StrictPinch == nil {
		return false
	}
	return *c.StrictPinch
}

// GetConfirmFrames returns the confirm_frames value or the default.
func (c *TuningConfig) GetConfirmFrames() int {
	if c.ConfirmFrames == nil {
		return gesture.DefaultConfig().ConfirmFrames
	}
	return *c.ConfirmFrames
}

// GetRotationSensitivity returns the rotation_sensitivity value or the default.
func (c *TuningConfig) GetRotationSensitivity() float64 {
	if c.RotationSensitivity == nil {
		return gesture.DefaultConfig().RotationSensitivity
	}
	return *c.RotationSensitivity
}

// GetDecay returns the decay value or the default.
func (c *TuningConfig) GetDecay() float64 {
	if c.Decay == nil {
		return gesture.DefaultConfig().Decay
	}
	return *c.Decay
}

// GetRestEpsilon returns the rest_epsilon value or the default.
func (c *TuningConfig) GetRestEpsilon() float64 {
	if c.RestEpsilon == nil {
		return gesture.DefaultConfig().RestEpsilon
	}
	return *c.RestEpsilon
}

// GetZoomSensitivity returns the zoom_sensitivity value or the default.
func (c *TuningConfig) GetZoomSensitivity() float64 {
	if c.ZoomSensitivity == nil {
		return gesture.DefaultConfig().ZoomSensitivity
	}
	return *c.ZoomSensitivity
}

// GetInitialZoom returns the initial_zoom value or the default.
func (c *TuningConfig) GetInitialZoom() float64 {
	if c.InitialZoom == nil {
		return gesture.DefaultConfig().InitialZoom
	}
	return *c.InitialZoom
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return defaultFrameInterval
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return defaultFrameInterval
	}
	return d
}

// GetDetectionInterval parses and returns the DetectionInterval as a
// time.Duration.
func (c *TuningConfig) GetDetectionInterval() time.Duration {
	if c.DetectionInterval == nil || *c.DetectionInterval == "" {
		return defaultDetectionInterval
	}
	d, err := time.ParseDuration(*c.DetectionInterval)
	if err != nil || d < 0 {
		return defaultDetectionInterval
	}
	return d
}

// GetMotionThreshold returns the motion_threshold value or the default.
func (c *TuningConfig) GetMotionThreshold() float64 {
	if c.MotionThreshold == nil {
		return defaultMotionThreshold
	}
	return *c.MotionThreshold
}

// GetMaxHands returns the max_hands value or the default.
func (c *TuningConfig) GetMaxHands() int {
	if c.MaxHands == nil {
		return defaultMaxHands
	}
	return *c.MaxHands
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return defaultMinConfidence
	}
	return *c.MinConfidence
}

// GestureConfig returns the engine configuration.
func (c *TuningConfig) GestureConfig() gesture.Config {
	return gesture.Config{
		Classifier: gesture.Classifier{
			ExtendRatio:    c.GetExtendRatio(),
			CurlRatio:      c.GetCurlRatio(),
			PinchThreshold: c.GetPinchThreshold(),
			StrictPinch:    c.GetStrictPinch(),
		},
		ConfirmFrames:       c.GetConfirmFrames(),
		RotationSensitivity: c.GetRotationSensitivity(),
		Decay:               c.GetDecay(),
		RestEpsilon:         c.GetRestEpsilon(),
		ZoomSensitivity:     c.GetZoomSensitivity(),
		InitialZoom:         c.GetInitialZoom(),
	}
}

// Timing is the two-cadence schedule of a session.
type Timing struct {
	// FrameInterval is the period of the frame tick that advances rotation
	// inertia.
	FrameInterval time.Duration
	// DetectionInterval is the minimum time between detection ticks.
	DetectionInterval time.Duration
}

// SessionTiming returns the scheduler cadence.
func (c *TuningConfig) SessionTiming() Timing {
	return Timing{
		FrameInterval:     c.GetFrameInterval(),
		DetectionInterval: c.GetDetectionInterval(),
	}
}
