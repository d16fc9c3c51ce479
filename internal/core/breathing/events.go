package breathing

import (
	"time"

	"breathe/internal/core/model"
)

// Phase is one segment of a breath cycle.
type Phase string

const (
	PhaseInhale     Phase = "inhale"
	PhaseInhaleHold Phase = "inhale_hold"
	PhaseExhale     Phase = "exhale"
	PhaseExhaleHold Phase = "exhale_hold"
)

// Label returns the text shown next to the indicator.
func (phase Phase) Label() string {
	switch phase {
	case PhaseInhale:
		return "Inhale"
	case PhaseInhaleHold, PhaseExhaleHold:
		return "Hold"
	case PhaseExhale:
		return "Exhale"
	default:
		return string(phase)
	}
}

// EventType defines the type of Engine event.
type EventType string

const (
	EventPhaseChange EventType = "phase_change"
	EventProgress    EventType = "progress"
	EventRestart     EventType = "restart"
)

// Event represents an Engine update for observers.
type Event struct {
	Type     EventType
	Phase    Phase
	Level    float64
	Progress float64
	Cycle    int
	Pattern  model.BreathingPattern
	At       time.Time
}

// Snapshot is the engine state between ticks.
type Snapshot struct {
	Phase      Phase
	Level      float64
	Progress   float64
	Cycle      int
	PhaseStart time.Time
	Running    bool
	Paused     bool
}
