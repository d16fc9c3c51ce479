package overlay

import (
	"image/color"

	"breathe/internal/core/breathing"
	"breathe/internal/core/model"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
)

// Config defines overlay visuals.
type Config struct {
	Opacity uint8
	Width   float32
	Height  float32
}

// DefaultConfig returns the shipped indicator size.
func DefaultConfig() Config {
	return Config{Opacity: 200, Width: 72, Height: 220}
}

var (
	waterColor = color.NRGBA{R: 86, G: 170, B: 230, A: 255}
	textColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type splashWindowDriver interface {
	CreateSplashWindow() fyne.Window
}

// Window is the floating breathing indicator.
type Window struct {
	window       fyne.Window
	config       Config
	background   *canvas.Rectangle
	water        *canvas.Rectangle
	column       *fyne.Container
	columnLayout *levelLayout
	phaseLabel   *canvas.Text
	patternLabel *canvas.Text
	visible      bool
	onClose      func()
}

// New creates the indicator window. It stays hidden until Show.
func New(app fyne.App, config Config) *Window {
	window := app.NewWindow("Breathe")
	if driver, ok := app.Driver().(splashWindowDriver); ok {
		window = driver.CreateSplashWindow()
	}
	window.SetPadded(false)

	background := canvas.NewRectangle(color.NRGBA{R: 0, G: 0, B: 0, A: config.Opacity})
	background.CornerRadius = 8

	water := canvas.NewRectangle(waterColor)
	water.CornerRadius = 6

	phaseLabel := canvas.NewText(breathing.PhaseInhale.Label(), textColor)
	phaseLabel.Alignment = fyne.TextAlignCenter
	phaseLabel.TextStyle = fyne.TextStyle{Bold: true}
	phaseLabel.TextSize = 14

	patternLabel := canvas.NewText("", textColor)
	patternLabel.Alignment = fyne.TextAlignCenter
	patternLabel.TextSize = 10

	columnLayout := &levelLayout{level: breathing.MinLevel}
	column := container.New(columnLayout, water)
	content := container.NewBorder(phaseLabel, patternLabel, nil, nil, column)
	window.SetContent(container.NewStack(background, container.NewPadded(content)))
	window.Resize(fyne.NewSize(config.Width, config.Height))

	overlay := &Window{
		window:       window,
		config:       config,
		background:   background,
		water:        water,
		column:       column,
		columnLayout: columnLayout,
		phaseLabel:   phaseLabel,
		patternLabel: patternLabel,
	}
	window.SetCloseIntercept(overlay.Hide)
	return overlay
}

// SetOnClose sets a handler fired when the indicator is hidden.
func (overlay *Window) SetOnClose(handler func()) {
	overlay.onClose = handler
}

// Show displays the indicator.
func (overlay *Window) Show() {
	overlay.visible = true
	overlay.window.Show()
}

// Hide removes the indicator from screen.
func (overlay *Window) Hide() {
	overlay.visible = false
	overlay.window.Hide()
	if overlay.onClose != nil {
		overlay.onClose()
	}
}

// Visible reports whether the indicator is shown.
func (overlay *Window) Visible() bool {
	return overlay.visible
}

// Apply renders an engine event. Safe to call from any goroutine.
func (overlay *Window) Apply(event breathing.Event) {
	fyne.Do(func() {
		overlay.setLevelUnsafe(event.Level)
		if overlay.phaseLabel.Text != event.Phase.Label() {
			overlay.phaseLabel.Text = event.Phase.Label()
			overlay.phaseLabel.Refresh()
		}
	})
}

// SetPattern updates the caption under the column.
func (overlay *Window) SetPattern(mode model.BreathingMode, pattern model.BreathingPattern, custom bool) {
	fyne.Do(func() {
		overlay.patternLabel.Text = PatternCaption(mode, pattern, custom)
		overlay.patternLabel.Refresh()
	})
}

func (overlay *Window) setLevelUnsafe(level float64) {
	overlay.columnLayout.level = float32(level)
	overlay.column.Refresh()
}

// PatternCaption formats the label under the indicator.
func PatternCaption(mode model.BreathingMode, pattern model.BreathingPattern, custom bool) string {
	if custom {
		return "Recorded " + pattern.String()
	}
	return mode.Label() + " " + pattern.String()
}

// levelLayout fills its first object from the bottom up to level.
type levelLayout struct {
	level float32
}

func (layout *levelLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) == 0 {
		return
	}
	level := layout.level
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	height := size.Height * level
	objects[0].Move(fyne.NewPos(0, size.Height-height))
	objects[0].Resize(fyne.NewSize(size.Width, height))
}

func (layout *levelLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(24, 80)
}
