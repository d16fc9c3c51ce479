package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNegativeDuration is returned when a pattern contains a negative phase.
var ErrNegativeDuration = errors.New("negative phase duration")

// BreathingPattern is the timing template for one breath cycle.
// Zero hold phases are skipped by the cycle engine.
type BreathingPattern struct {
	Inhale     time.Duration
	InhaleHold time.Duration
	Exhale     time.Duration
	ExhaleHold time.Duration
}

var builtins = map[BreathingMode]BreathingPattern{
	ModeCasualWork: PatternFromSeconds(5, 0, 5, 0),
	ModeDeepFocus:  PatternFromSeconds(4, 4, 4, 4),
}

// Builtin returns the fixed pattern for a mode.
func Builtin(mode BreathingMode) (BreathingPattern, bool) {
	pattern, ok := builtins[mode]
	return pattern, ok
}

// PatternFromSeconds builds a pattern from fractional seconds.
func PatternFromSeconds(inhale, inhaleHold, exhale, exhaleHold float64) BreathingPattern {
	return BreathingPattern{
		Inhale:     secondsToDuration(inhale),
		InhaleHold: secondsToDuration(inhaleHold),
		Exhale:     secondsToDuration(exhale),
		ExhaleHold: secondsToDuration(exhaleHold),
	}
}

// Total returns the length of one full cycle.
func (pattern BreathingPattern) Total() time.Duration {
	return pattern.Inhale + pattern.InhaleHold + pattern.Exhale + pattern.ExhaleHold
}

// Seconds returns the four phases as seconds in cycle order.
func (pattern BreathingPattern) Seconds() [4]float64 {
	return [4]float64{
		pattern.Inhale.Seconds(),
		pattern.InhaleHold.Seconds(),
		pattern.Exhale.Seconds(),
		pattern.ExhaleHold.Seconds(),
	}
}

// Validate checks that no phase is negative.
func (pattern BreathingPattern) Validate() error {
	fields := []struct {
		name  string
		value time.Duration
	}{
		{"inhale", pattern.Inhale},
		{"inhale hold", pattern.InhaleHold},
		{"exhale", pattern.Exhale},
		{"exhale hold", pattern.ExhaleHold},
	}
	for _, field := range fields {
		if field.value < 0 {
			return fmt.Errorf("%s %v: %w", field.name, field.value, ErrNegativeDuration)
		}
	}
	return nil
}

// String formats the pattern as "in-hold-out-hold" seconds.
func (pattern BreathingPattern) String() string {
	seconds := pattern.Seconds()
	return fmt.Sprintf("%s-%s-%s-%s",
		formatSeconds(seconds[0]),
		formatSeconds(seconds[1]),
		formatSeconds(seconds[2]),
		formatSeconds(seconds[3]),
	)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func formatSeconds(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.1f", value)
}
