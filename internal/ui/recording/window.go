package recording

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"breathe/internal/core/calibration"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

const refreshInterval = 50 * time.Millisecond

var (
	inhaleColor = color.NRGBA{R: 86, G: 170, B: 230, A: 255}
	exhaleColor = color.NRGBA{R: 120, G: 200, B: 150, A: 255}
)

// Window handles the breath recording UI.
type Window struct {
	window       fyne.Window
	recorder     *calibration.Recorder
	progress     *widget.Label
	averages     *widget.Label
	circle       *canvas.Circle
	circleLayout *circleLayout
	circleBox    *fyne.Container
	cancel       context.CancelFunc
}

// New creates the recording window bound to recorder.
func New(app fyne.App, recorder *calibration.Recorder) *Window {
	window := app.NewWindow("Record your breathing")

	instructions := widget.NewLabel("Hold Space while you inhale, release, then hold Space while you exhale.")
	instructions.Wrapping = fyne.TextWrapWord
	progress := widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	averages := widget.NewLabel("")
	averages.Alignment = fyne.TextAlignCenter

	circle := canvas.NewCircle(inhaleColor)
	circleLayout := &circleLayout{}
	circleBox := container.New(circleLayout, circle)

	restartButton := widget.NewButton("Start over", nil)
	closeButton := widget.NewButton("Close", nil)
	buttons := container.NewHBox(restartButton, layout.NewSpacer(), closeButton)

	content := container.NewBorder(
		container.NewVBox(instructions, progress),
		container.NewVBox(averages, buttons),
		nil, nil,
		circleBox,
	)
	window.SetContent(content)
	window.Resize(fyne.NewSize(360, 420))

	recording := &Window{
		window:       window,
		recorder:     recorder,
		progress:     progress,
		averages:     averages,
		circle:       circle,
		circleLayout: circleLayout,
		circleBox:    circleBox,
	}

	if deskCanvas, ok := window.Canvas().(desktop.Canvas); ok {
		deskCanvas.SetOnKeyDown(func(event *fyne.KeyEvent) {
			if event.Name == fyne.KeySpace {
				recorder.KeyDown()
			}
		})
		deskCanvas.SetOnKeyUp(func(event *fyne.KeyEvent) {
			if event.Name == fyne.KeySpace {
				recorder.KeyUp()
			}
		})
	}

	restartButton.OnTapped = func() {
		recorder.Reset()
		recording.render(recorder.State())
	}
	closeButton.OnTapped = recording.Hide
	window.SetCloseIntercept(recording.Hide)

	return recording
}

// Show starts a fresh session and displays the window.
func (recording *Window) Show() {
	recording.stop()
	recording.recorder.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	recording.cancel = cancel
	recording.recorder.Start(ctx)
	go recording.refreshLoop(ctx)

	recording.render(recording.recorder.State())
	recording.window.Show()
	recording.window.RequestFocus()
}

// Hide stops the session timers and hides the window.
func (recording *Window) Hide() {
	recording.stop()
	recording.window.Hide()
}

func (recording *Window) stop() {
	recording.recorder.Stop()
	if recording.cancel != nil {
		recording.cancel()
		recording.cancel = nil
	}
}

func (recording *Window) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := recording.recorder.State()
			fyne.Do(func() {
				recording.render(state)
			})
		}
	}
}

func (recording *Window) render(state calibration.State) {
	recording.progress.SetText(ProgressText(state))
	recording.averages.SetText(AveragesText(state))

	fill := inhaleColor
	if state.Exhaling {
		fill = exhaleColor
	}
	recording.circle.FillColor = fill
	recording.circle.Refresh()

	recording.circleLayout.scale = float32(0.2 + 0.8*state.Value)
	recording.circleBox.Refresh()
}

// ProgressText describes where the user is in the session.
func ProgressText(state calibration.State) string {
	if state.Complete {
		return "Done! Your pattern is now active."
	}
	breath := state.RecordingIndex + 1
	if breath > state.Trials {
		breath = state.Trials
	}
	step := "press Space to inhale"
	switch {
	case state.Inhaling:
		step = "inhaling..."
	case state.Exhaling:
		step = "exhaling..."
	case len(state.Inhales) > len(state.Exhales):
		step = "press Space to exhale"
	}
	return fmt.Sprintf("Breath %d of %d · %s", breath, state.Trials, step)
}

// AveragesText shows the final averages once the session is done.
func AveragesText(state calibration.State) string {
	if !state.Complete {
		return ""
	}
	return fmt.Sprintf("Inhale %.1fs · Exhale %.1fs", state.FinalInhale.Seconds(), state.FinalExhale.Seconds())
}

// circleLayout centers a square object scaled to the available space.
type circleLayout struct {
	scale float32
}

func (circles *circleLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) == 0 {
		return
	}
	side := size.Width
	if size.Height < side {
		side = size.Height
	}
	side *= circles.scale
	objects[0].Resize(fyne.NewSize(side, side))
	objects[0].Move(fyne.NewPos((size.Width-side)/2, (size.Height-side)/2))
}

func (circles *circleLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(160, 160)
}
