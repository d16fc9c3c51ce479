package tray

import (
	"fmt"

	"breathe/internal/core/breathing"
	"breathe/internal/core/model"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

const menuTitle = "Breathe"

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnSelectMode    func(model.BreathingMode)
	OnRecord        func()
	OnResetPreset   func()
	OnToggleOverlay func()
	OnTogglePause   func()
	OnQuit          func()
}

// Manager handles system tray state.
type Manager struct {
	app        desktop.App
	callbacks  Callbacks
	statusItem *fyne.MenuItem
	modeItems  map[model.BreathingMode]*fyne.MenuItem
	resetItem  *fyne.MenuItem
	pauseItem  *fyne.MenuItem
	phase      breathing.Phase
	mode       model.BreathingMode
	custom     bool
	paused     bool
}

// New creates a tray manager with the provided callbacks.
func New(app desktop.App, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:       app,
		callbacks: callbacks,
		modeItems: make(map[model.BreathingMode]*fyne.MenuItem),
		phase:     breathing.PhaseInhale,
		mode:      model.DefaultMode,
	}

	manager.statusItem = fyne.NewMenuItem("Status: starting...", nil)
	manager.statusItem.Disabled = true

	for _, mode := range model.Modes() {
		manager.modeItems[mode] = fyne.NewMenuItem(mode.Label(), func() {
			if manager.callbacks.OnSelectMode != nil {
				manager.callbacks.OnSelectMode(mode)
			}
		})
	}

	manager.resetItem = fyne.NewMenuItem("Use preset pattern", func() {
		if manager.callbacks.OnResetPreset != nil {
			manager.callbacks.OnResetPreset()
		}
	})

	manager.pauseItem = fyne.NewMenuItem("Pause", func() {
		if manager.callbacks.OnTogglePause != nil {
			manager.callbacks.OnTogglePause()
		}
	})

	manager.refreshItems()
	manager.refreshMenu()
	return manager
}

// SetPhase updates the status line with the current breath phase.
func (manager *Manager) SetPhase(phase breathing.Phase) {
	if manager.phase == phase {
		return
	}
	manager.phase = phase
	manager.refreshStatus()
}

// SetMode marks the active mode and whether a recorded pattern overrides it.
func (manager *Manager) SetMode(mode model.BreathingMode, custom bool) {
	manager.mode = mode
	manager.custom = custom
	manager.refreshItems()
	manager.refreshStatus()
}

// SetPaused updates pause state.
func (manager *Manager) SetPaused(paused bool) {
	manager.paused = paused
	manager.refreshItems()
	manager.refreshStatus()
}

func (manager *Manager) refreshItems() {
	for mode, item := range manager.modeItems {
		item.Checked = mode == manager.mode && !manager.custom
	}
	manager.resetItem.Disabled = !manager.custom
	if manager.paused {
		manager.pauseItem.Label = "Resume"
	} else {
		manager.pauseItem.Label = "Pause"
	}
}

func (manager *Manager) refreshStatus() {
	manager.statusItem.Label = "Status: " + StatusText(manager.phase, manager.mode, manager.custom, manager.paused)
	manager.refreshMenu()
}

func (manager *Manager) refreshMenu() {
	if manager.app == nil {
		return
	}

	items := []*fyne.MenuItem{manager.statusItem, fyne.NewMenuItemSeparator()}
	for _, mode := range model.Modes() {
		items = append(items, manager.modeItems[mode])
	}
	items = append(items,
		fyne.NewMenuItem("Record breathing...", func() {
			if manager.callbacks.OnRecord != nil {
				manager.callbacks.OnRecord()
			}
		}),
		manager.resetItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Show/Hide indicator", func() {
			if manager.callbacks.OnToggleOverlay != nil {
				manager.callbacks.OnToggleOverlay()
			}
		}),
		manager.pauseItem,
		fyne.NewMenuItem("Quit", func() {
			if manager.callbacks.OnQuit != nil {
				manager.callbacks.OnQuit()
			}
		}),
	)
	manager.app.SetSystemTrayMenu(fyne.NewMenu(menuTitle, items...))
}

// StatusText formats the tray status line.
func StatusText(phase breathing.Phase, mode model.BreathingMode, custom, paused bool) string {
	source := mode.Label()
	if custom {
		source = "Recorded"
	}
	status := fmt.Sprintf("%s · %s", phase.Label(), source)
	if paused {
		status = fmt.Sprintf("%s (paused)", status)
	}
	return status
}
