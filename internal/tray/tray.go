// Package tray provides a desktop system tray to pause driving and follow its decisions.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(driving bool)
	onDashboard func()
	onQuit      func()
	driving     bool
	last        string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray with driving enabled.
func New() *Tray {
	return &Tray{
		driving: true,
	}
}

// OnToggle sets the callback invoked when driving is paused or resumed.
func (t *Tray) OnToggle(fn func(driving bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback invoked by the dashboard menu item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
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

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("RoadPilot")
	systray.SetTooltip("RoadPilot traffic-sign driver")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.driving), "Pause or resume driving")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last control decision")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop the car and quit")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.driving = !t.driving
	driving := t.driving

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(driving))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(driving)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
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
}

// SetLast shows a summary of the latest control decision.
func (t *Tray) SetLast(summary string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = summary
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(summary))
	}
}

// Last returns the summary shown in the menu.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsDriving reports whether driving is enabled.
func (t *Tray) IsDriving() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.driving
}

func toggleTitle(driving bool) string {
	if driving {
		return "● Driving"
	}
	return "○ Paused"
}

func lastTitle(summary string) string {
	if summary == "" {
		return "Last: none"
	}
	return "Last: " + summary
}
