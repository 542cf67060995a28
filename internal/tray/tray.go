// Package tray provides a system tray menu for toggling face tracking.
package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/kathakali/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray showing the given tracking state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnToggle sets the callback function to be called when tracking is toggled.
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
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Kathakali")
	systray.SetTooltip("Kathakali face tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle face tracking")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Status: idle", "Tracker status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Kathakali")

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

func (t *Tray) onExit() {}

// handleToggle flips the tracking state and reports it.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock; it may block while the camera
	// is released.
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetReport updates the menu from a tracker report. Changes made elsewhere,
// such as through the HTTP API, show up here as well.
func (t *Tray) SetReport(r app.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = r.Enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(r.Enabled))
	}
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(r))
		if r.Error != "" {
			t.menuStatus.SetTooltip(r.Error)
		} else {
			t.menuStatus.SetTooltip("Tracker status")
		}
	}
}

// Watch refreshes the menu from report every interval until ctx ends.
func (t *Tray) Watch(ctx context.Context, report func() app.Report, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last app.Report
	for {
		r := report()
		if r.Status != last.Status || r.Enabled != last.Enabled || r.FaceVisible != last.FaceVisible || r.Error != last.Error {
			t.SetReport(r)
			last = r
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func statusTitle(r app.Report) string {
	switch {
	case r.Status == app.StatusTracking && r.FaceVisible:
		return "Status: tracking"
	case r.Status == app.StatusTracking:
		return "Status: no face"
	case r.Status == app.StatusLoading:
		return "Status: starting..."
	case r.Status == app.StatusCameraFailed:
		return "Status: camera unavailable"
	case r.Status == app.StatusModelFailed:
		return "Status: face model unavailable"
	case r.Status == "":
		return "Status: idle"
	default:
		return fmt.Sprintf("Status: %s", r.Status)
	}
}
