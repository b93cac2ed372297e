// Package testdata holds recorded landmark sequences for end to end tests
// and demos.
package testdata

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ayusman/handtree/internal/app"
	"github.com/ayusman/handtree/internal/detector"
)

//go:embed recordings/*.json
var recordingsFS embed.FS

// LoadRecording loads an embedded recording by name, without extension.
func LoadRecording(name string) (*app.Recording, error) {
	f, err := recordingsFS.Open("recordings/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}
	defer f.Close()
	return app.DecodeRecording(f)
}

// LoadHands loads an embedded recording and expands it into one hand per
// detection tick.
func LoadHands(name string) ([]*detector.HandLandmarks, error) {
	rec, err := LoadRecording(name)
	if err != nil {
		return nil, err
	}
	return rec.Hands()
}

// Recordings lists the embedded recording names.
func Recordings() ([]string, error) {
	entries, err := fs.ReadDir(recordingsFS, "recordings")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}
