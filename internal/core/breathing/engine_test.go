package breathing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"breathe/internal/core/model"
	"breathe/internal/core/patterns"
	"breathe/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 50 * time.Millisecond

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time { return clock.now }

func (clock *fakeClock) Advance(delta time.Duration) { clock.now = clock.now.Add(delta) }

type mutableSource struct {
	mu      sync.Mutex
	pattern model.BreathingPattern
}

func (source *mutableSource) CurrentPattern() model.BreathingPattern {
	source.mu.Lock()
	defer source.mu.Unlock()
	return source.pattern
}

func (source *mutableSource) Set(pattern model.BreathingPattern) {
	source.mu.Lock()
	source.pattern = pattern
	source.mu.Unlock()
}

func newTestEngine(pattern model.BreathingPattern) (*Engine, *fakeClock, *mutableSource) {
	clock := newFakeClock()
	source := &mutableSource{pattern: pattern}
	engine := New(source, Config{TickInterval: tick, Now: clock.Now})
	return engine, clock, source
}

// simulate advances the clock tick by tick and returns every snapshot.
func simulate(engine *Engine, clock *fakeClock, total time.Duration) []Snapshot {
	steps := int(total / tick)
	snapshots := make([]Snapshot, 0, steps)
	for i := 0; i < steps; i++ {
		clock.Advance(tick)
		snapshots = append(snapshots, engine.Tick())
	}
	return snapshots
}

func phaseSequence(snapshots []Snapshot) []Phase {
	sequence := []Phase{PhaseInhale}
	for _, snapshot := range snapshots {
		if sequence[len(sequence)-1] != snapshot.Phase {
			sequence = append(sequence, snapshot.Phase)
		}
	}
	return sequence
}

func TestEngineVisitsPhasesInOrder(t *testing.T) {
	for _, pattern := range []model.BreathingPattern{
		model.PatternFromSeconds(4, 4, 4, 4),
		model.PatternFromSeconds(2, 1, 3, 0.5),
	} {
		t.Run(pattern.String(), func(t *testing.T) {
			engine, clock, _ := newTestEngine(pattern)
			snapshots := simulate(engine, clock, 2*pattern.Total())

			want := []Phase{
				PhaseInhale, PhaseInhaleHold, PhaseExhale, PhaseExhaleHold,
				PhaseInhale, PhaseInhaleHold, PhaseExhale, PhaseExhaleHold,
				PhaseInhale,
			}
			assert.Equal(t, want, phaseSequence(snapshots))
			assert.Equal(t, 2, snapshots[len(snapshots)-1].Cycle)

			previous := Snapshot{Phase: PhaseInhale, Level: MinLevel}
			for _, snapshot := range snapshots {
				if snapshot.Phase == previous.Phase {
					switch snapshot.Phase {
					case PhaseInhale:
						assert.GreaterOrEqual(t, snapshot.Level, previous.Level)
					case PhaseExhale:
						assert.LessOrEqual(t, snapshot.Level, previous.Level)
					}
				}
				switch snapshot.Phase {
				case PhaseInhaleHold:
					assert.Equal(t, MaxLevel, snapshot.Level)
				case PhaseExhaleHold:
					assert.Equal(t, MinLevel, snapshot.Level)
				}
				previous = snapshot
			}
		})
	}
}

func TestEngineSkipsZeroHolds(t *testing.T) {
	engine, clock, _ := newTestEngine(model.PatternFromSeconds(5, 0, 5, 0))
	snapshots := simulate(engine, clock, time.Minute)

	for _, snapshot := range snapshots {
		assert.NotEqual(t, PhaseInhaleHold, snapshot.Phase)
		assert.NotEqual(t, PhaseExhaleHold, snapshot.Phase)
	}
	assert.Equal(t, []Phase{PhaseInhale, PhaseExhale, PhaseInhale, PhaseExhale}, phaseSequence(snapshots)[:4])
}

func TestEngineLevelStaysInBounds(t *testing.T) {
	for _, pattern := range []model.BreathingPattern{
		model.PatternFromSeconds(5, 0, 5, 0),
		model.PatternFromSeconds(4, 4, 4, 4),
		model.PatternFromSeconds(0.03, 0, 0.07, 0.01),
		model.PatternFromSeconds(0, 0, 0, 0),
		model.PatternFromSeconds(0, 2, 0, 2),
	} {
		engine, clock, _ := newTestEngine(pattern)
		for _, snapshot := range simulate(engine, clock, 20*time.Second) {
			assert.GreaterOrEqual(t, snapshot.Level, MinLevel, pattern.String())
			assert.LessOrEqual(t, snapshot.Level, MaxLevel, pattern.String())
			assert.GreaterOrEqual(t, snapshot.Progress, 0.0)
			assert.LessOrEqual(t, snapshot.Progress, 1.0)
		}
	}
}

func TestEngineBoxBreathingAfterFourSeconds(t *testing.T) {
	engine, clock, _ := newTestEngine(model.PatternFromSeconds(4, 4, 4, 4))
	snapshots := simulate(engine, clock, 4*time.Second)

	last := snapshots[len(snapshots)-1]
	assert.Equal(t, PhaseInhaleHold, last.Phase)
	assert.InDelta(t, MaxLevel, last.Level, 1e-9)

	beforeLast := snapshots[len(snapshots)-2]
	assert.Equal(t, PhaseInhale, beforeLast.Phase)
	assert.InDelta(t, MaxLevel, beforeLast.Level, 0.6*float64(tick)/float64(4*time.Second)+1e-9)
}

func TestEngineZeroInhaleTransitionsOnFirstTick(t *testing.T) {
	engine, clock, _ := newTestEngine(model.PatternFromSeconds(0, 0, 2, 0))
	clock.Advance(tick)
	snapshot := engine.Tick()
	assert.Equal(t, PhaseExhale, snapshot.Phase)

	engine, clock, _ = newTestEngine(model.PatternFromSeconds(0, 0, 0, 0))
	phases := phaseSequence(simulate(engine, clock, 4*tick))
	assert.Equal(t, []Phase{PhaseInhale, PhaseExhale, PhaseInhale, PhaseExhale, PhaseInhale}, phases)
}

func TestEngineUsesLivePattern(t *testing.T) {
	engine, clock, source := newTestEngine(model.PatternFromSeconds(4, 0, 4, 0))
	simulate(engine, clock, time.Second)
	assert.Equal(t, PhaseInhale, engine.Snapshot().Phase)

	source.Set(model.PatternFromSeconds(1, 0, 4, 0))
	clock.Advance(tick)
	snapshot := engine.Tick()
	assert.Equal(t, PhaseExhale, snapshot.Phase)
}

func TestEngineRestartsOnStoreChange(t *testing.T) {
	kv := storage.NewYAMLStore(filepath.Join(t.TempDir(), "state.yaml"))
	store := patterns.New(kv, patterns.DefaultOptions())
	clock := newFakeClock()
	engine := New(store, Config{TickInterval: tick, Now: clock.Now})
	unfollow := engine.Follow(store)
	events := engine.Subscribe(256)

	simulate(engine, clock, 6*time.Second)
	require.Equal(t, PhaseExhale, engine.Snapshot().Phase)

	require.NoError(t, store.SwitchMode(model.ModeDeepFocus))
	snapshot := engine.Snapshot()
	assert.Equal(t, PhaseInhale, snapshot.Phase)
	assert.Equal(t, MinLevel, snapshot.Level)
	assert.Equal(t, clock.Now(), snapshot.PhaseStart)
	assert.Equal(t, 0, snapshot.Cycle)

	var restarts int
	for len(events) > 0 {
		if event := <-events; event.Type == EventRestart {
			restarts++
			assert.Equal(t, model.PatternFromSeconds(4, 4, 4, 4), event.Pattern)
		}
	}
	assert.Equal(t, 1, restarts)

	unfollow()
	simulate(engine, clock, 5*time.Second)
	require.NoError(t, store.SwitchMode(model.ModeCasualWork))
	assert.NotEqual(t, PhaseInhale, engine.Snapshot().Phase)
}

func TestEnginePauseFreezesPhase(t *testing.T) {
	engine, clock, _ := newTestEngine(model.PatternFromSeconds(4, 0, 4, 0))
	simulate(engine, clock, 2*time.Second)
	before := engine.Snapshot()

	engine.Pause()
	engine.Pause()
	simulate(engine, clock, 10*time.Second)
	paused := engine.Snapshot()
	assert.True(t, paused.Paused)
	assert.Equal(t, before.Phase, paused.Phase)
	assert.Equal(t, before.Level, paused.Level)

	engine.Resume()
	clock.Advance(tick)
	resumed := engine.Tick()
	assert.Equal(t, PhaseInhale, resumed.Phase)
	assert.InDelta(t, before.Level+0.6*float64(tick)/float64(4*time.Second), resumed.Level, 1e-9)
}

func TestEngineStartStop(t *testing.T) {
	engine := New(&mutableSource{pattern: model.PatternFromSeconds(1, 0, 1, 0)}, Config{TickInterval: 5 * time.Millisecond})
	events := engine.Subscribe(64)

	engine.Start(context.Background())
	engine.Start(context.Background())
	assert.True(t, engine.Snapshot().Running)

	deadline := time.After(2 * time.Second)
	for progressSeen := false; !progressSeen; {
		select {
		case event := <-events:
			progressSeen = event.Type == EventProgress
		case <-deadline:
			t.Fatal("no progress event from ticking loop")
		}
	}

	engine.Stop()
	engine.Stop()
	assert.False(t, engine.Snapshot().Running)

	engine.Close()
	for range events {
	}
}

func TestEngineStopsWithParentContext(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock.Now()
	}
	engine := New(&mutableSource{pattern: model.PatternFromSeconds(1, 0, 1, 0)}, Config{TickInterval: time.Millisecond, Now: now})

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	cancel()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	clock.Advance(10 * time.Second)
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, PhaseInhale, engine.Snapshot().Phase)
}
