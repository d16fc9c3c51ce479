package overlay

import (
	"testing"

	"breathe/internal/core/model"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
)

func TestLevelLayoutFillsFromBottom(t *testing.T) {
	test.NewTempApp(t)
	water := canvas.NewRectangle(waterColor)
	layout := &levelLayout{level: 0.25}

	layout.Layout([]fyne.CanvasObject{water}, fyne.NewSize(40, 200))
	assert.Equal(t, fyne.NewPos(0, 150), water.Position())
	assert.Equal(t, fyne.NewSize(40, 50), water.Size())

	layout.level = 1.5
	layout.Layout([]fyne.CanvasObject{water}, fyne.NewSize(40, 200))
	assert.Equal(t, fyne.NewPos(0, 0), water.Position())
	assert.Equal(t, fyne.NewSize(40, 200), water.Size())

	layout.Layout(nil, fyne.NewSize(40, 200))
}

func TestPatternCaption(t *testing.T) {
	assert.Equal(t, "Deep Focus 4-4-4-4", PatternCaption(model.ModeDeepFocus, model.PatternFromSeconds(4, 4, 4, 4), false))
	assert.Equal(t, "Recorded 3-0-1-0", PatternCaption(model.ModeDeepFocus, model.PatternFromSeconds(3, 0, 1, 0), true))
}
