package calibration

import (
	"context"
	"sync"
	"time"

	"breathe/internal/core/model"

	"github.com/google/uuid"
)

// Defaults for Config fields left at zero.
const (
	DefaultTrials       = 4
	DefaultWindow       = 3
	DefaultFullBreath   = 8 * time.Second
	DefaultTickInterval = 50 * time.Millisecond
)

// PatternSink receives the pattern derived from a finished session.
type PatternSink interface {
	SetCustomPattern(pattern model.BreathingPattern) error
}

// Config contains runtime options for Recorder.
type Config struct {
	// Trials is the number of inhale+exhale pairs per session.
	Trials int
	// Window is how many trailing samples feed the average.
	Window int
	// FullBreath is how long the live value takes to travel between 0 and 1.
	FullBreath   time.Duration
	TickInterval time.Duration
	Now          func() time.Time
}

// State is a copy of the session fields the UI renders.
type State struct {
	SessionID      string
	RecordingIndex int
	Trials         int
	Inhaling       bool
	Exhaling       bool
	Complete       bool
	FinalInhale    time.Duration
	FinalExhale    time.Duration
	Value          float64
	Inhales        []time.Duration
	Exhales        []time.Duration
}

// Recorder captures press-and-hold breath timings and derives a custom pattern.
type Recorder struct {
	mu          sync.Mutex
	sink        PatternSink
	options     Config
	sessionID   string
	inhales     []time.Duration
	exhales     []time.Duration
	index       int
	inhaling    bool
	exhaling    bool
	inhaleStart time.Time
	exhaleStart time.Time
	keyHeld     bool
	complete    bool
	finalInhale time.Duration
	finalExhale time.Duration
	value       float64
	onComplete  func(State)
	lastErr     error
	cancel      context.CancelFunc
}

// New creates a Recorder committing finished sessions to sink.
func New(sink PatternSink, options Config) *Recorder {
	if options.Trials <= 0 {
		options.Trials = DefaultTrials
	}
	if options.Window <= 0 {
		options.Window = DefaultWindow
	}
	if options.FullBreath <= 0 {
		options.FullBreath = DefaultFullBreath
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	recorder := &Recorder{sink: sink, options: options}
	recorder.Reset()
	return recorder
}

// OnComplete sets a callback fired once when a session finishes.
func (recorder *Recorder) OnComplete(handler func(State)) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.onComplete = handler
}

// Reset discards the current session and begins a new one.
func (recorder *Recorder) Reset() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	recorder.sessionID = uuid.NewString()
	recorder.inhales = nil
	recorder.exhales = nil
	recorder.index = 0
	recorder.inhaling = false
	recorder.exhaling = false
	recorder.inhaleStart = time.Time{}
	recorder.exhaleStart = time.Time{}
	recorder.keyHeld = false
	recorder.complete = false
	recorder.finalInhale = 0
	recorder.finalExhale = 0
	recorder.value = 0
	recorder.lastErr = nil
}

// StartInhaling begins timing an inhale.
func (recorder *Recorder) StartInhaling() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.complete || recorder.inhaling {
		return
	}
	recorder.inhaling = true
	recorder.inhaleStart = recorder.options.Now()
	recorder.value = 0
}

// StopInhaling records the inhale started by StartInhaling.
// Without a matching start it does nothing.
func (recorder *Recorder) StopInhaling() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !recorder.inhaling {
		return
	}
	recorder.inhales = append(recorder.inhales, elapsedSince(recorder.inhaleStart, recorder.options.Now()))
	recorder.inhaling = false
	recorder.inhaleStart = time.Time{}
}

// StartExhaling begins timing an exhale.
func (recorder *Recorder) StartExhaling() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.complete || recorder.exhaling {
		return
	}
	recorder.exhaling = true
	recorder.exhaleStart = recorder.options.Now()
	recorder.value = 1
}

// StopExhaling records the exhale started by StartExhaling.
// Without a matching start it does nothing.
func (recorder *Recorder) StopExhaling() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !recorder.exhaling {
		return
	}
	recorder.exhales = append(recorder.exhales, elapsedSince(recorder.exhaleStart, recorder.options.Now()))
	recorder.exhaling = false
	recorder.exhaleStart = time.Time{}
}

// AdvanceIndex moves to the next trial once the current inhale+exhale pair
// has been recorded. Reaching the trial count completes the session.
func (recorder *Recorder) AdvanceIndex() {
	recorder.mu.Lock()
	completed := recorder.advanceLocked()
	recorder.mu.Unlock()

	if completed != nil {
		recorder.commit(*completed)
	}
}

// KeyDown handles the press half of the press-and-hold binding.
// Auto-repeated presses are ignored.
func (recorder *Recorder) KeyDown() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.keyHeld || recorder.complete {
		return
	}
	recorder.keyHeld = true

	now := recorder.options.Now()
	if recorder.expectingInhaleLocked() {
		recorder.inhaling = true
		recorder.inhaleStart = now
		recorder.value = 0
		return
	}
	recorder.exhaling = true
	recorder.exhaleStart = now
	recorder.value = 1
}

// KeyUp handles the release half of the press-and-hold binding.
func (recorder *Recorder) KeyUp() {
	recorder.mu.Lock()
	if !recorder.keyHeld {
		recorder.mu.Unlock()
		return
	}
	recorder.keyHeld = false

	var completed *State
	now := recorder.options.Now()
	switch {
	case recorder.inhaling:
		recorder.updateValueLocked(now)
		recorder.inhales = append(recorder.inhales, elapsedSince(recorder.inhaleStart, now))
		recorder.inhaling = false
		recorder.inhaleStart = time.Time{}
	case recorder.exhaling:
		recorder.updateValueLocked(now)
		recorder.exhales = append(recorder.exhales, elapsedSince(recorder.exhaleStart, now))
		recorder.exhaling = false
		recorder.exhaleStart = time.Time{}
		completed = recorder.advanceLocked()
	}
	recorder.mu.Unlock()

	if completed != nil {
		recorder.commit(*completed)
	}
}

// Tick refreshes the live animation value.
func (recorder *Recorder) Tick() float64 {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.updateValueLocked(recorder.options.Now())
	return recorder.value
}

// Start launches the live value loop. A running loop is replaced.
func (recorder *Recorder) Start(parent context.Context) {
	recorder.mu.Lock()
	if recorder.cancel != nil {
		recorder.cancel()
	}
	runCtx, cancel := context.WithCancel(parent)
	recorder.cancel = cancel
	recorder.mu.Unlock()

	go recorder.run(runCtx)
}

// Stop cancels the live value loop. Calling it more than once is safe.
func (recorder *Recorder) Stop() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.cancel != nil {
		recorder.cancel()
		recorder.cancel = nil
	}
}

// State returns a copy of the session.
func (recorder *Recorder) State() State {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return recorder.stateLocked()
}

// LastError returns the error from committing the last finished session.
func (recorder *Recorder) LastError() error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return recorder.lastErr
}

func (recorder *Recorder) run(ctx context.Context) {
	ticker := time.NewTicker(recorder.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recorder.Tick()
		}
	}
}

func (recorder *Recorder) expectingInhaleLocked() bool {
	return len(recorder.inhales) <= len(recorder.exhales)
}

func (recorder *Recorder) advanceLocked() *State {
	if recorder.complete {
		return nil
	}
	pairs := len(recorder.inhales)
	if len(recorder.exhales) < pairs {
		pairs = len(recorder.exhales)
	}
	if pairs <= recorder.index {
		return nil
	}

	recorder.index++
	if recorder.index < recorder.options.Trials {
		return nil
	}

	recorder.complete = true
	recorder.finalInhale, _ = TrailingAverage(recorder.inhales, recorder.options.Window)
	recorder.finalExhale, _ = TrailingAverage(recorder.exhales, recorder.options.Window)
	state := recorder.stateLocked()
	return &state
}

func (recorder *Recorder) commit(state State) {
	pattern := model.BreathingPattern{
		Inhale: state.FinalInhale,
		Exhale: state.FinalExhale,
	}

	var err error
	if recorder.sink != nil {
		err = recorder.sink.SetCustomPattern(pattern)
	}

	recorder.mu.Lock()
	if recorder.sessionID == state.SessionID {
		recorder.lastErr = err
	}
	handler := recorder.onComplete
	recorder.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

func (recorder *Recorder) updateValueLocked(now time.Time) {
	switch {
	case recorder.inhaling:
		recorder.value = clampUnit(fraction(elapsedSince(recorder.inhaleStart, now), recorder.options.FullBreath))
	case recorder.exhaling:
		recorder.value = clampUnit(1 - fraction(elapsedSince(recorder.exhaleStart, now), recorder.options.FullBreath))
	}
}

func (recorder *Recorder) stateLocked() State {
	return State{
		SessionID:      recorder.sessionID,
		RecordingIndex: recorder.index,
		Trials:         recorder.options.Trials,
		Inhaling:       recorder.inhaling,
		Exhaling:       recorder.exhaling,
		Complete:       recorder.complete,
		FinalInhale:    recorder.finalInhale,
		FinalExhale:    recorder.finalExhale,
		Value:          recorder.value,
		Inhales:        append([]time.Duration(nil), recorder.inhales...),
		Exhales:        append([]time.Duration(nil), recorder.exhales...),
	}
}

func elapsedSince(start, now time.Time) time.Duration {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func fraction(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return float64(elapsed) / float64(total)
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
