package patterns

import (
	"fmt"
	"math"
	"sync"
	"time"

	"breathe/internal/core/model"
	"breathe/internal/storage"

	"github.com/spf13/cast"
)

// Storage keys and record fields.
const (
	CustomPatternKey = "customBreathingPattern"
	ModeKey          = "breathingMode"

	fieldInhale     = "inhaleSeconds"
	fieldInhaleHold = "inhaleHoldSeconds"
	fieldExhale     = "exhaleSeconds"
	fieldExhaleHold = "exhaleHoldSeconds"
	fieldMode       = "mode"
)

// maxPersistedSeconds is the longest phase a time.Duration can hold.
const maxPersistedSeconds = float64(math.MaxInt64) / float64(time.Second)

// Reason describes which mutation produced a Change.
type Reason string

const (
	ReasonModeSwitched Reason = "mode_switched"
	ReasonCustomSet    Reason = "custom_set"
	ReasonCustomClear  Reason = "custom_cleared"
	ReasonLoaded       Reason = "loaded"
)

// Change is published after the current pattern changes.
// Consumers recompute from Pattern rather than applying a delta.
type Change struct {
	Reason  Reason
	Mode    model.BreathingMode
	Pattern model.BreathingPattern
	Custom  bool
}

// Options tunes store policy.
type Options struct {
	// ClearCustomOnSwitch drops the custom pattern whenever a mode is selected.
	ClearCustomOnSwitch bool
}

// DefaultOptions returns the shipped policy.
func DefaultOptions() Options {
	return Options{ClearCustomOnSwitch: true}
}

// Store holds the active mode and an optional custom pattern override.
type Store struct {
	mu        sync.Mutex
	kv        storage.KeyValue
	options   Options
	mode      model.BreathingMode
	custom    *model.BreathingPattern
	listeners map[int]func(Change)
	nextID    int
	channels  []chan Change
}

// New creates a store using kv for persistence. kv may be nil for an
// in-memory store.
func New(kv storage.KeyValue, options Options) *Store {
	return &Store{
		kv:        kv,
		options:   options,
		mode:      model.DefaultMode,
		listeners: make(map[int]func(Change)),
	}
}

// Load restores the persisted mode and custom pattern.
// Malformed records are treated as absent. A Change is emitted if the
// current pattern differs afterwards.
func (store *Store) Load() error {
	if store.kv == nil {
		return nil
	}

	mode, modeErr := store.loadMode()
	custom, customErr := store.LoadPersisted()

	store.mu.Lock()
	before := store.currentLocked()
	hadCustom := store.custom != nil
	if modeErr == nil && mode != "" {
		store.mode = mode
	}
	if customErr == nil && custom != nil {
		store.custom = custom
	}
	changed := store.currentLocked() != before || hadCustom != (store.custom != nil)
	change := store.changeLocked(ReasonLoaded)
	store.mu.Unlock()

	if changed {
		store.publish(change)
	}
	if modeErr != nil {
		return modeErr
	}
	return customErr
}

// CurrentPattern returns the custom pattern if set, otherwise the built-in
// for the current mode.
func (store *Store) CurrentPattern() model.BreathingPattern {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.currentLocked()
}

// CurrentMode returns the selected mode.
func (store *Store) CurrentMode() model.BreathingMode {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.mode
}

// CustomPattern returns the custom override, if any.
func (store *Store) CustomPattern() (model.BreathingPattern, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.custom == nil {
		return model.BreathingPattern{}, false
	}
	return *store.custom, true
}

// SwitchMode selects a mode and, depending on policy, clears the custom pattern.
// A Change is emitted when the mode, the current pattern or the custom flag moved.
// Unknown modes are ignored.
func (store *Store) SwitchMode(mode model.BreathingMode) error {
	if !mode.Valid() {
		return nil
	}

	store.mu.Lock()
	before := store.currentLocked()
	previousMode := store.mode
	hadCustom := store.custom != nil
	store.mode = mode
	if store.options.ClearCustomOnSwitch {
		store.custom = nil
	}
	cleared := hadCustom && store.custom == nil
	changed := store.currentLocked() != before || previousMode != mode || cleared
	change := store.changeLocked(ReasonModeSwitched)
	store.mu.Unlock()

	if changed {
		store.publish(change)
	}

	if err := store.saveMode(mode); err != nil {
		return err
	}
	if cleared {
		return store.deleteCustom()
	}
	return nil
}

// SetCustomPattern stores and persists an override. Patterns with a negative
// phase are rejected and leave the store untouched.
func (store *Store) SetCustomPattern(pattern model.BreathingPattern) error {
	if err := pattern.Validate(); err != nil {
		return fmt.Errorf("set custom pattern: %w", err)
	}

	store.mu.Lock()
	before := store.currentLocked()
	hadCustom := store.custom != nil
	stored := pattern
	store.custom = &stored
	changed := store.currentLocked() != before || !hadCustom
	change := store.changeLocked(ReasonCustomSet)
	store.mu.Unlock()

	if changed {
		store.publish(change)
	}
	return store.saveCustom(pattern)
}

// ClearCustomPattern drops the override and reverts to the mode's preset.
func (store *Store) ClearCustomPattern() error {
	store.mu.Lock()
	if store.custom == nil {
		store.mu.Unlock()
		return nil
	}
	store.custom = nil
	change := store.changeLocked(ReasonCustomClear)
	store.mu.Unlock()

	store.publish(change)
	return store.deleteCustom()
}

// LoadPersisted reads the custom pattern record. It returns nil when the
// record is absent or any field is missing, non-numeric or negative.
func (store *Store) LoadPersisted() (*model.BreathingPattern, error) {
	if store.kv == nil {
		return nil, nil
	}
	record, ok, err := store.kv.Load(CustomPatternKey)
	if err != nil {
		return nil, fmt.Errorf("load custom pattern: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodePattern(record), nil
}

// OnChange registers a listener that runs synchronously, once per change,
// before the mutating call returns. The returned func unregisters it.
func (store *Store) OnChange(listener func(Change)) func() {
	store.mu.Lock()
	id := store.nextID
	store.nextID++
	store.listeners[id] = listener
	store.mu.Unlock()

	return func() {
		store.mu.Lock()
		delete(store.listeners, id)
		store.mu.Unlock()
	}
}

// Subscribe registers a buffered observer channel. Sends never block;
// a full channel misses the change.
func (store *Store) Subscribe(buffer int) <-chan Change {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	store.mu.Lock()
	store.channels = append(store.channels, ch)
	store.mu.Unlock()
	return ch
}

// Close closes every subscribed channel.
func (store *Store) Close() {
	store.mu.Lock()
	channels := store.channels
	store.channels = nil
	store.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

func (store *Store) currentLocked() model.BreathingPattern {
	if store.custom != nil {
		return *store.custom
	}
	if pattern, ok := model.Builtin(store.mode); ok {
		return pattern
	}
	pattern, _ := model.Builtin(model.ModeCasualWork)
	return pattern
}

func (store *Store) changeLocked(reason Reason) Change {
	return Change{
		Reason:  reason,
		Mode:    store.mode,
		Pattern: store.currentLocked(),
		Custom:  store.custom != nil,
	}
}

func (store *Store) publish(change Change) {
	store.mu.Lock()
	listeners := make([]func(Change), 0, len(store.listeners))
	for id := 0; id < store.nextID; id++ {
		if listener, ok := store.listeners[id]; ok {
			listeners = append(listeners, listener)
		}
	}
	store.emitLocked(change)
	store.mu.Unlock()

	for _, listener := range listeners {
		listener(change)
	}
}

func (store *Store) emitLocked(change Change) {
	for _, ch := range store.channels {
		select {
		case ch <- change:
		default:
		}
	}
}

func (store *Store) loadMode() (model.BreathingMode, error) {
	record, ok, err := store.kv.Load(ModeKey)
	if err != nil {
		return "", fmt.Errorf("load mode: %w", err)
	}
	if !ok {
		return "", nil
	}
	mode, ok := model.ParseMode(cast.ToString(record[fieldMode]))
	if !ok {
		return "", nil
	}
	return mode, nil
}

func (store *Store) saveMode(mode model.BreathingMode) error {
	if store.kv == nil {
		return nil
	}
	if err := store.kv.Save(ModeKey, storage.Record{fieldMode: string(mode)}); err != nil {
		return fmt.Errorf("save mode: %w", err)
	}
	return nil
}

func (store *Store) saveCustom(pattern model.BreathingPattern) error {
	if store.kv == nil {
		return nil
	}
	if err := store.kv.Save(CustomPatternKey, encodePattern(pattern)); err != nil {
		return fmt.Errorf("save custom pattern: %w", err)
	}
	return nil
}

func (store *Store) deleteCustom() error {
	if store.kv == nil {
		return nil
	}
	if err := store.kv.Delete(CustomPatternKey); err != nil {
		return fmt.Errorf("delete custom pattern: %w", err)
	}
	return nil
}

func encodePattern(pattern model.BreathingPattern) storage.Record {
	seconds := pattern.Seconds()
	return storage.Record{
		fieldInhale:     seconds[0],
		fieldInhaleHold: seconds[1],
		fieldExhale:     seconds[2],
		fieldExhaleHold: seconds[3],
	}
}

func decodePattern(record storage.Record) *model.BreathingPattern {
	var values [4]float64
	for index, field := range []string{fieldInhale, fieldInhaleHold, fieldExhale, fieldExhaleHold} {
		value, ok := persistedSeconds(record[field])
		if !ok {
			return nil
		}
		values[index] = value
	}
	pattern := model.PatternFromSeconds(values[0], values[1], values[2], values[3])
	if pattern.Validate() != nil {
		return nil
	}
	return &pattern
}

// persistedSeconds accepts numbers and numeric strings that fit a Duration.
func persistedSeconds(raw any) (float64, bool) {
	switch raw.(type) {
	case nil, bool:
		return 0, false
	}
	value, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value > maxPersistedSeconds {
		return 0, false
	}
	return value, true
}
