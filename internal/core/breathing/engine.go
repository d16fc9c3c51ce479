package breathing

import (
	"context"
	"sync"
	"time"

	"breathe/internal/core/model"
	"breathe/internal/core/patterns"
)

// DefaultTickInterval is the cadence of the ticking loop.
const DefaultTickInterval = 50 * time.Millisecond

// PatternSource provides the pattern to animate. It is read on every tick so
// edits take effect without waiting for the next cycle.
type PatternSource interface {
	CurrentPattern() model.BreathingPattern
}

// Config contains runtime options for Engine.
type Config struct {
	TickInterval time.Duration
	Now          func() time.Time
}

// Engine is a state machine that turns elapsed time into a breath phase and level.
type Engine struct {
	mu         sync.Mutex
	source     PatternSource
	options    Config
	phase      Phase
	phaseStart time.Time
	level      float64
	progress   float64
	cycle      int
	paused     bool
	pausedAt   time.Time
	events     []chan Event
	cancel     context.CancelFunc
}

// New creates an Engine reading patterns from source.
func New(source PatternSource, options Config) *Engine {
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	engine := &Engine{
		source:  source,
		options: options,
	}
	engine.resetLocked(options.Now())
	return engine
}

// Follow restarts the cycle whenever store reports a pattern change.
// The returned func stops following.
func (engine *Engine) Follow(store *patterns.Store) func() {
	return store.OnChange(func(patterns.Change) {
		engine.Restart()
	})
}

// Subscribe registers a new observer channel.
func (engine *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	engine.mu.Lock()
	engine.events = append(engine.events, ch)
	engine.mu.Unlock()
	return ch
}

// Start restarts the cycle and launches the ticking loop. A loop that is
// already running is cancelled before the new one is armed.
func (engine *Engine) Start(parent context.Context) {
	engine.mu.Lock()
	if engine.cancel != nil {
		engine.cancel()
	}
	runCtx, cancel := context.WithCancel(parent)
	engine.cancel = cancel
	engine.paused = false
	engine.mu.Unlock()

	engine.Restart()
	go engine.run(runCtx)
}

// Stop cancels the ticking loop. Calling it more than once is safe.
func (engine *Engine) Stop() {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.cancel != nil {
		engine.cancel()
		engine.cancel = nil
	}
}

// Close stops the engine and closes observers.
func (engine *Engine) Close() {
	engine.Stop()

	engine.mu.Lock()
	events := engine.events
	engine.events = nil
	engine.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}

// Restart begins a fresh cycle at the start of inhale.
func (engine *Engine) Restart() {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	now := engine.options.Now()
	engine.resetLocked(now)
	if engine.paused {
		engine.pausedAt = now
	}
	engine.emitLocked(engine.eventLocked(EventRestart, engine.source.CurrentPattern(), now))
}

// Pause freezes the indicator at its current level.
func (engine *Engine) Pause() {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.paused {
		return
	}
	engine.paused = true
	engine.pausedAt = engine.options.Now()
}

// Resume continues from where Pause froze the phase.
func (engine *Engine) Resume() {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if !engine.paused {
		return
	}
	engine.paused = false
	engine.phaseStart = engine.phaseStart.Add(engine.options.Now().Sub(engine.pausedAt))
	engine.pausedAt = time.Time{}
}

// Snapshot returns the state produced by the last tick.
func (engine *Engine) Snapshot() Snapshot {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return Snapshot{
		Phase:      engine.phase,
		Level:      engine.level,
		Progress:   engine.progress,
		Cycle:      engine.cycle,
		PhaseStart: engine.phaseStart,
		Running:    engine.cancel != nil,
		Paused:     engine.paused,
	}
}

// Tick advances the state machine to the current time.
func (engine *Engine) Tick() Snapshot {
	engine.mu.Lock()
	if !engine.paused {
		engine.tickLocked(engine.options.Now())
	}
	engine.mu.Unlock()
	return engine.Snapshot()
}

func (engine *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(engine.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.mu.Lock()
			if ctx.Err() == nil && !engine.paused {
				engine.tickLocked(engine.options.Now())
			}
			engine.mu.Unlock()
		}
	}
}

func (engine *Engine) tickLocked(now time.Time) {
	pattern := engine.source.CurrentPattern()
	level, progress, done := Evaluate(pattern, engine.phase, now.Sub(engine.phaseStart))
	engine.level = level
	engine.progress = progress

	if !done {
		engine.emitLocked(engine.eventLocked(EventProgress, pattern, now))
		return
	}

	next := Next(pattern, engine.phase)
	if next == PhaseInhale {
		engine.cycle++
	}
	engine.phase = next
	engine.phaseStart = now
	engine.level, engine.progress, _ = Evaluate(pattern, next, 0)
	if Duration(pattern, next) <= 0 {
		engine.progress = 0
	}
	engine.emitLocked(engine.eventLocked(EventPhaseChange, pattern, now))
}

func (engine *Engine) resetLocked(now time.Time) {
	engine.phase = PhaseInhale
	engine.phaseStart = now
	engine.level = MinLevel
	engine.progress = 0
	engine.cycle = 0
}

func (engine *Engine) eventLocked(eventType EventType, pattern model.BreathingPattern, now time.Time) Event {
	return Event{
		Type:     eventType,
		Phase:    engine.phase,
		Level:    engine.level,
		Progress: engine.progress,
		Cycle:    engine.cycle,
		Pattern:  pattern,
		At:       now,
	}
}

func (engine *Engine) emitLocked(event Event) {
	for _, ch := range engine.events {
		select {
		case ch <- event:
		default:
		}
	}
}
