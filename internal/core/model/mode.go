package model

// BreathingMode identifies a named breathing template.
type BreathingMode string

const (
	ModeCasualWork BreathingMode = "casual_work"
	ModeDeepFocus  BreathingMode = "deep_focus"
)

// DefaultMode is selected on first launch.
const DefaultMode = ModeCasualWork

// Modes returns every known mode in menu order.
func Modes() []BreathingMode {
	return []BreathingMode{ModeCasualWork, ModeDeepFocus}
}

// Label returns a human readable mode name.
func (mode BreathingMode) Label() string {
	switch mode {
	case ModeCasualWork:
		return "Casual Work"
	case ModeDeepFocus:
		return "Deep Focus"
	default:
		return string(mode)
	}
}

// Valid reports whether the mode has a built-in pattern.
func (mode BreathingMode) Valid() bool {
	_, ok := builtins[mode]
	return ok
}

// ParseMode converts a stored mode name back into a BreathingMode.
func ParseMode(value string) (BreathingMode, bool) {
	mode := BreathingMode(value)
	if !mode.Valid() {
		return "", false
	}
	return mode, true
}
