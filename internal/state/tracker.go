// Package state tracks what the assistant is doing right now: a six-state
// machine with entry callbacks and a free-form side table of state data.
package state

import (
	log "log/slog"
	"strings"
	"sync"
)

type State string

const (
	Idle            State = "idle"
	Listening       State = "listening"
	Processing      State = "processing"
	Responding      State = "responding"
	ExecutingAction State = "executing_action"
	Error           State = "error"
)

// Callback runs on entry to its registered state and receives the full
// state-data table, not just the keys the transition merged in. Callbacks
// run under the tracker's lock and must not call back into the tracker.
type Callback func(data map[string]any)

// Snapshot is an independent copy; mutating it never touches the tracker.
type Snapshot struct {
	State         State          `json:"state"`
	PreviousState State          `json:"previous_state,omitempty"`
	Data          map[string]any `json:"data"`
}

// Tracker is safe for concurrent use: the voice loop and the control
// socket both drive it.
type Tracker struct {
	mu        sync.Mutex
	current   State
	previous  State
	data      map[string]any
	callbacks map[State][]Callback
}

func NewTracker() *Tracker {
	t := &Tracker{
		current:   Idle,
		data:      make(map[string]any),
		callbacks: make(map[State][]Callback),
	}
	log.Info("State tracker initialized")
	return t
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := make(map[string]any, len(t.data))
	for k, v := range t.data {
		data[k] = v
	}
	return Snapshot{
		State:         t.current,
		PreviousState: t.previous,
		Data:          data,
	}
}

// TransitionTo moves to a new state. Transitioning to the current state is
// a complete no-op: previous is untouched and no callback fires. Data is
// merged into the side table, never replacing it.
func (t *Tracker) TransitionTo(next State, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitionLocked(next, data)
}

func (t *Tracker) transitionLocked(next State, data map[string]any) {
	if next == t.current {
		return
	}

	log.Info("State transition", "from", t.current, "to", next)

	t.previous = t.current
	t.current = next

	for k, v := range data {
		t.data[k] = v
	}

	t.fireCallbacks(next)
}

// RegisterCallback adds an entry callback for a state. Callbacks fire in
// registration order.
func (t *Tracker) RegisterCallback(s State, cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks[s] = append(t.callbacks[s], cb)
	log.Debug("Registered state callback", "state", s)
}

// fireCallbacks never lets one callback stop the rest.
func (t *Tracker) fireCallbacks(s State) {
	for _, cb := range t.callbacks[s] {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("State callback panic", "state", s, "err", r)
				}
			}()
			cb(t.data)
		}()
	}
}

// ProcessInput applies the built-in voice commands. The stop/cancel and
// help checks are independent of each other; last_input is always stored.
func (t *Tracker) ProcessInput(input string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lower := strings.ToLower(input)

	if strings.Contains(lower, "stop") || strings.Contains(lower, "cancel") {
		t.transitionLocked(Idle, nil)
	}
	if strings.Contains(lower, "help") {
		t.data["help_requested"] = true
	}

	t.data["last_input"] = input
}

func (t *Tracker) SetData(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[key] = value
}

func (t *Tracker) Data(key string, def any) any {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.data[key]; ok {
		return v
	}
	return def
}

func (t *Tracker) ClearData() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string]any)
}

func (t *Tracker) SetError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitionLocked(Error, map[string]any{"error_message": message})
}

// ClearError recovers from the error state. Transition first, then drop the
// error_message key, so the idle-entry callbacks still see the message.
func (t *Tracker) ClearError() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != Error {
		return
	}
	t.transitionLocked(Idle, nil)
	delete(t.data, "error_message")
}

func (t *Tracker) IsIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == Idle
}

func (t *Tracker) IsBusy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == Processing || t.current == ExecutingAction
}

func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
