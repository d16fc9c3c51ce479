package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPatterns(t *testing.T) {
	casual, ok := Builtin(ModeCasualWork)
	require.True(t, ok)
	assert.Equal(t, BreathingPattern{Inhale: 5 * time.Second, Exhale: 5 * time.Second}, casual)
	assert.Equal(t, 10*time.Second, casual.Total())

	focus, ok := Builtin(ModeDeepFocus)
	require.True(t, ok)
	assert.Equal(t, [4]float64{4, 4, 4, 4}, focus.Seconds())
	assert.Equal(t, 16*time.Second, focus.Total())

	_, ok = Builtin(BreathingMode("box"))
	assert.False(t, ok)
}

func TestEveryModeHasBuiltin(t *testing.T) {
	for _, mode := range Modes() {
		assert.True(t, mode.Valid(), mode)
		assert.NotEmpty(t, mode.Label())
	}
}

func TestParseMode(t *testing.T) {
	mode, ok := ParseMode("deep_focus")
	require.True(t, ok)
	assert.Equal(t, ModeDeepFocus, mode)

	_, ok = ParseMode("")
	assert.False(t, ok)
	_, ok = ParseMode("Deep Focus")
	assert.False(t, ok)
}

func TestValidateRejectsNegativePhases(t *testing.T) {
	assert.NoError(t, PatternFromSeconds(0, 0, 0, 0).Validate())
	assert.NoError(t, PatternFromSeconds(3, 0, 1, 0).Validate())

	err := PatternFromSeconds(3, -1, 1, 0).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegativeDuration))
	assert.Contains(t, err.Error(), "inhale hold")

	err = BreathingPattern{ExhaleHold: -time.Millisecond}.Validate()
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestPatternString(t *testing.T) {
	assert.Equal(t, "4-4-4-4", PatternFromSeconds(4, 4, 4, 4).String())
	assert.Equal(t, "3-0-1.5-0", PatternFromSeconds(3, 0, 1.5, 0).String())
}
