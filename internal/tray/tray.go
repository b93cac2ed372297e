// Package tray provides a system tray interface for the handtree gesture engine.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handtree/internal/app"
	"github.com/ayusman/handtree/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Last values, applied to the menu once it exists.
	status    app.Status
	lastEvent string

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuSession   *systray.MenuItem
	menuScene     *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handtree")
	systray.SetTooltip("handtree gesture control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle gesture control")
	systray.AddSeparator()

	t.menuSession = systray.AddMenuItem(sessionLabel(t.status), "Session status")
	t.menuSession.Disable()
	t.menuScene = systray.AddMenuItem(sceneLabel(t.status), "Scene state")
	t.menuScene.Disable()
	t.menuLastEvent = systray.AddMenuItem(lastEventLabel(t.lastEvent), "Last emitted event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handtree")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the session lines and the toggle from a session
// snapshot. It is safe to call before Run.
func (t *Tray) SetStatus(s app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = s
	t.enabled = s.Enabled
	if t.menuSession != nil {
		t.menuToggle.SetTitle(toggleLabel(s.Enabled))
		t.menuSession.SetTitle(sessionLabel(s))
		t.menuScene.SetTitle(sceneLabel(s))
	}
}

// Callbacks returns engine callbacks that keep the last-event line current.
func (t *Tray) Callbacks() gesture.Callbacks {
	return gesture.EventCallbacks(t.SetLastEvent)
}

// SetLastEvent updates the last event display in the menu. Rotation
// updates are skipped while coasting so the line stays readable.
func (t *Tray) SetLastEvent(ev gesture.Event) {
	label := eventLabel(ev)
	if label == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastEvent = label
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(lastEventLabel(label))
	}
}

// LastEvent returns the label of the last displayed event.
func (t *Tray) LastEvent() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastEvent
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func sessionLabel(s app.Status) string {
	switch {
	case s.Source == app.StatusUnavailable:
		return "Camera unavailable"
	case s.Detector == app.StatusUnavailable:
		return "Detector unavailable"
	case !s.Running:
		return "Not running"
	}
	return "Mode: " + s.Mode.String()
}

func sceneLabel(s app.Status) string {
	tree := s.Tree.String()
	if tree == "" {
		tree = "unset"
	}
	label := fmt.Sprintf("Tree: %s  Zoom: %.0f%%", tree, s.Zoom*100)
	if s.PhotoFocus {
		label += "  Photo"
	}
	return label
}

func eventLabel(ev gesture.Event) string {
	switch ev.Kind {
	case gesture.EventStateChange:
		return "Tree " + ev.State.String()
	case gesture.EventPhotoFocus:
		if ev.PhotoFocus {
			return "Photo focus on"
		}
		return "Photo focus off"
	case gesture.EventZoom:
		return fmt.Sprintf("Zoom %.0f%%", ev.Value*100)
	case gesture.EventRotate:
		if ev.Value == 0 {
			return "Rotation stopped"
		}
	}
	return ""
}

func lastEventLabel(label string) string {
	if label == "" {
		return "Last: none"
	}
	return "Last: " + label
}
