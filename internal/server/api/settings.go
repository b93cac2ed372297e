// Package api provides the HTTP handlers for handtree's tuning settings.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/handtree/internal/config"
	"github.com/ayusman/handtree/internal/store"
)

// maxBody bounds a settings request body.
const maxBody = 64 << 10

// SettingsHandler serves /api/settings. Stored values override the base
// tuning config and take effect at the next session start.
type SettingsHandler struct {
	store *store.Store
	base  *config.TuningConfig
}

// NewSettingsHandler creates a SettingsHandler. base is the tuning loaded
// at startup; nil means built-in defaults.
func NewSettingsHandler(s *store.Store, base *config.TuningConfig) *SettingsHandler {
	if base == nil {
		base = config.DefaultTuningConfig()
	}
	return &SettingsHandler{store: s, base: base}
}

// SettingsResponse is the body of GET /api/settings.
type SettingsResponse struct {
	// Effective is the base config with the stored overrides applied.
	Effective *config.TuningConfig `json:"effective"`
	// Overrides are the stored values, as JSON.
	Overrides map[string]json.RawMessage `json:"overrides"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP routes /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/settings")
	key = strings.TrimPrefix(key, "/")

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r)
		case http.MethodPut, http.MethodPatch:
			h.update(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodDelete:
		h.delete(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Effective returns the base config with every stored override applied.
func (h *SettingsHandler) Effective() (*config.TuningConfig, map[string]string, error) {
	stored, err := h.store.Settings().All()
	if err != nil {
		return nil, nil, err
	}
	cfg := h.base.Clone()
	if err := cfg.ApplySettings(stored); err != nil {
		return nil, nil, err
	}
	return cfg, stored, nil
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	cfg, stored, err := h.Effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	overrides := make(map[string]json.RawMessage, len(stored))
	for k, v := range stored {
		overrides[k] = json.RawMessage(v)
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Effective: cfg, Overrides: overrides})
}

// update merges a JSON object of tuning values into the stored overrides.
// The whole request is rejected if any value is unknown or invalid.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var patch map[string]json.RawMessage
	if err := json.Unmarshal(body, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "no settings given")
		return
	}

	values := make(map[string]string, len(patch))
	for k, v := range patch {
		values[k] = string(v)
	}

	cfg, _, err := h.Effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := cfg.ApplySettings(values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().SetAll(values); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.get(w, r)
}

func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request, key string) {
	err := h.store.Settings().Delete(key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
