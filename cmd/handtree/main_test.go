package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080/api/settings",
		"127.0.0.1:9000": "http://127.0.0.1:9000/api/settings",
	}
	for addr, want := range tests {
		if got := settingsURL(addr); got != want {
			t.Errorf("settingsURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestFindWebDir(t *testing.T) {
	data := t.TempDir()
	if got := findWebDir(data); got != "" && filepath.Base(got) != "web" {
		t.Errorf("unexpected web dir %q", got)
	}

	web := filepath.Join(data, "web")
	if err := os.Mkdir(web, 0755); err != nil {
		t.Fatal(err)
	}
	got := findWebDir(data)
	if got == "" {
		t.Fatal("expected data web dir to be found")
	}
}
