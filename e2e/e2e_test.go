package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handtree/internal/app"
	"github.com/ayusman/handtree/internal/config"
	"github.com/ayusman/handtree/internal/gesture"
	"github.com/ayusman/handtree/internal/server"
	"github.com/ayusman/handtree/internal/server/api"
	"github.com/ayusman/handtree/internal/store"
	"github.com/ayusman/handtree/testdata"
)

// fastTiming detects on every frame tick so a replay advances one step
// per tick regardless of scheduler jitter.
var fastTiming = config.Timing{
	FrameInterval:     2 * time.Millisecond,
	DetectionInterval: time.Millisecond,
}

type recorder struct {
	mu     sync.Mutex
	events []gesture.Event
}

func (r *recorder) add(ev gesture.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []gesture.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gesture.Event(nil), r.events...)
}

type harness struct {
	store   *store.Store
	session *app.Session
	source  *app.ReplaySource
	hub     *server.EventHub
	rec     *recorder
	ts      *httptest.Server
}

func newHarness(t *testing.T, recording string, tuning *config.TuningConfig) *harness {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hands, err := testdata.LoadHands(recording)
	require.NoError(t, err)

	h := &harness{
		store:  st,
		source: app.NewReplaySource(hands, false),
		rec:    &recorder{},
	}

	emitter := gesture.NewEmitter(gesture.EventCallbacks(h.rec.add))
	h.session = app.NewSession(app.Config{
		Gesture: tuning.GestureConfig(),
		Timing:  fastTiming,
		Source:  h.source,
		Emitter: emitter,
	})
	t.Cleanup(h.session.Stop)

	h.hub = server.NewEventHub(h.session.ID())
	emitter.Add(h.hub.Callbacks())

	h.ts = httptest.NewServer(server.New(server.Config{
		Store:   st,
		Tuning:  tuning,
		Session: h.session,
		Hub:     h.hub,
	}))
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return h.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func (h *harness) play(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Start(context.Background()))
	select {
	case <-h.source.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
}

func (h *harness) status(t *testing.T) map[string]any {
	t.Helper()
	resp, err := h.ts.Client().Get(h.ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func readEnvelopes(t *testing.T, conn *websocket.Conn, n int) []gesture.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	envs := make([]gesture.Envelope, 0, n)
	for len(envs) < n {
		var env gesture.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		envs = append(envs, env)
	}
	return envs
}

func TestE2E_RecordedSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t, "session", config.DefaultTuningConfig())
	conn := h.dial(t)
	h.play(t)

	want := []gesture.Event{
		{Kind: gesture.EventStateChange, State: gesture.TreeChaos},
		{Kind: gesture.EventStateChange, State: gesture.TreeFormed},
		{Kind: gesture.EventPhotoFocus, PhotoFocus: true},
		{Kind: gesture.EventRotate, Value: -0.24},
		{Kind: gesture.EventRotate, Value: 0},
		{Kind: gesture.EventPhotoFocus, PhotoFocus: false},
	}
	approx := cmpopts.EquateApprox(0, 1e-9)

	envs := readEnvelopes(t, conn, len(want))
	got := make([]gesture.Event, len(envs))
	for i, env := range envs {
		assert.Equal(t, h.session.ID(), env.Session)
		got[i] = env.Event
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("websocket events mismatch (-want +got):\n%s", diff)
	}

	require.Eventually(t, func() bool { return len(h.rec.snapshot()) == len(want) }, time.Second, 5*time.Millisecond)
	if diff := cmp.Diff(want, h.rec.snapshot(), approx); diff != "" {
		t.Errorf("callback events mismatch (-want +got):\n%s", diff)
	}

	status := h.status(t)
	assert.Equal(t, true, status["running"])
	assert.Equal(t, "IDLE", status["mode"])
	assert.Equal(t, "FORMED", status["tree_state"])
	assert.Equal(t, false, status["photo_focus"])
	assert.Equal(t, 0.0, status["velocity"])
	assert.Equal(t, 0.0, status["faults"])
}

func TestE2E_ReleaseAfterZoomDisperses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t, "zoom", config.DefaultTuningConfig())
	h.play(t)

	require.Eventually(t, func() bool { return len(h.rec.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	// The last open frame must not add anything once it is processed.
	time.Sleep(20 * time.Millisecond)

	events := h.rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, gesture.EventZoom, events[0].Kind)
	assert.InDelta(t, 0.62, events[0].Value, 1e-9)
	assert.Equal(t, gesture.Event{Kind: gesture.EventStateChange, State: gesture.TreeChaos}, events[1])

	status := h.status(t)
	assert.Equal(t, "IDLE", status["mode"])
	assert.Equal(t, "CHAOS", status["tree_state"])
}

func TestE2E_DisabledSessionIgnoresHands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t, "session", config.DefaultTuningConfig())

	resp, err := h.ts.Client().Do(mustRequest(t, http.MethodPut, h.ts.URL+"/api/control", `{"enabled": false}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.session.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, h.rec.snapshot())
	status := h.status(t)
	assert.Equal(t, false, status["enabled"])
	assert.Equal(t, "UNKNOWN", status["stable_pose"])
}

func TestE2E_StoredSettingsApplyToNextSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	base := config.DefaultTuningConfig()
	h := newHarness(t, "session", base)

	resp, err := h.ts.Client().Do(mustRequest(t, http.MethodPut, h.ts.URL+"/api/settings", `{"confirm_frames": 1, "initial_zoom": 0.25}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	effective, _, err := api.NewSettingsHandler(h.store, base).Effective()
	require.NoError(t, err)

	cfg := effective.GestureConfig()
	assert.Equal(t, 1, cfg.ConfirmFrames)
	assert.Equal(t, 0.25, cfg.InitialZoom)
	assert.Equal(t, 3, base.GetConfirmFrames(), "base config is not modified")

	next := app.NewSession(app.Config{Gesture: cfg, Timing: fastTiming})
	assert.Equal(t, 0.25, next.Status().Zoom)
}

func mustRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}
