package breathing

import (
	"time"

	"breathe/internal/core/model"
)

// Level bounds of the indicator.
const (
	MinLevel = 0.2
	MaxLevel = 0.8
)

// Duration returns how long phase lasts under pattern.
func Duration(pattern model.BreathingPattern, phase Phase) time.Duration {
	switch phase {
	case PhaseInhale:
		return pattern.Inhale
	case PhaseInhaleHold:
		return pattern.InhaleHold
	case PhaseExhale:
		return pattern.Exhale
	case PhaseExhaleHold:
		return pattern.ExhaleHold
	default:
		return 0
	}
}

// Next returns the phase that follows phase, skipping holds with no duration.
func Next(pattern model.BreathingPattern, phase Phase) Phase {
	switch phase {
	case PhaseInhale:
		if pattern.InhaleHold > 0 {
			return PhaseInhaleHold
		}
		return PhaseExhale
	case PhaseInhaleHold:
		return PhaseExhale
	case PhaseExhale:
		if pattern.ExhaleHold > 0 {
			return PhaseExhaleHold
		}
		return PhaseInhale
	default:
		return PhaseInhale
	}
}

// Evaluate computes level and progress for a phase that started elapsed ago.
// done reports that the phase has run its course and should advance.
func Evaluate(pattern model.BreathingPattern, phase Phase, elapsed time.Duration) (level, progress float64, done bool) {
	progress = phaseProgress(Duration(pattern, phase), elapsed)
	done = progress >= 1

	switch phase {
	case PhaseInhale:
		level = MinLevel + (MaxLevel-MinLevel)*progress
	case PhaseInhaleHold:
		level = MaxLevel
	case PhaseExhale:
		level = MaxLevel - (MaxLevel-MinLevel)*progress
	default:
		level = MinLevel
	}
	return clampLevel(level), progress, done
}

func phaseProgress(total, elapsed time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	progress := float64(elapsed) / float64(total)
	if progress > 1 {
		return 1
	}
	return progress
}

func clampLevel(level float64) float64 {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
