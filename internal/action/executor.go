// Package action turns directives extracted from model replies into
// handler invocations with a uniform success/error envelope.
package action

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
)

// Action is a single directive emitted by the model.
type Action struct {
	Type       string         `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
}

// Result is the envelope every execution path resolves to. Execution never
// returns an error to the caller; failures are folded into the envelope.
type Result struct {
	Success    bool   `json:"success"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	ActionType string `json:"action_type,omitempty"`
}

// Handler executes one action type. Returned values are surfaced verbatim
// in Result.Result.
type Handler func(ctx context.Context, params map[string]any) (any, error)

type Executor struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewExecutor returns an executor with the six default handlers registered.
func NewExecutor() *Executor {
	e := &Executor{handlers: make(map[string]Handler)}

	e.RegisterHandler("smart_home", handleSmartHome)
	e.RegisterHandler("information", handleInformation)
	e.RegisterHandler("reminder", handleReminder)
	e.RegisterHandler("media", handleMedia)
	e.RegisterHandler("communication", handleCommunication)
	e.RegisterHandler("search", handleSearch)

	log.Info("Action executor initialized")
	return e
}

// RegisterHandler installs a handler for an action type. Last write wins;
// registering over an existing type silently replaces it.
func (e *Executor) RegisterHandler(actionType string, h Handler) {
	e.mu.Lock()
	e.handlers[actionType] = h
	e.mu.Unlock()
	log.Info("Registered action handler", "type", actionType)
}

// Execute runs a single action. A missing type, an unknown type, a handler
// error and a handler panic all produce a failed Result.
func (e *Executor) Execute(ctx context.Context, a Action) Result {
	if a.Type == "" {
		return Result{Success: false, Error: "No action_type specified"}
	}

	e.mu.RLock()
	h, ok := e.handlers[a.Type]
	e.mu.RUnlock()
	if !ok {
		log.Warn("No handler for action type", "type", a.Type)
		return Result{Success: false, Error: fmt.Sprintf("Unknown action type: %s", a.Type)}
	}

	params := a.Parameters
	if params == nil {
		params = map[string]any{}
	}

	log.Info("Executing action", "type", a.Type, "params", params)

	out, err := invoke(ctx, h, params)
	if err != nil {
		log.Error("Action execution error", "type", a.Type, "err", err)
		return Result{Success: false, Error: err.Error(), ActionType: a.Type}
	}

	return Result{Success: true, Result: out, ActionType: a.Type}
}

// invoke shields the executor from handler panics.
func invoke(ctx context.Context, h Handler, params map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, params)
}

// ExecuteBatch runs actions one by one in input order. A failure never
// aborts the batch; the result slice always matches the input length.
func (e *Executor) ExecuteBatch(ctx context.Context, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.Execute(ctx, a))
	}
	return results
}

// ExecuteConcurrent runs all actions at once. Results are positioned by
// input index, not completion order.
func (e *Executor) ExecuteConcurrent(ctx context.Context, actions []Action) []Result {
	results := make([]Result, len(actions))

	var wg sync.WaitGroup
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a Action) {
			defer wg.Done()
			results[i] = e.Execute(ctx, a)
		}(i, a)
	}
	wg.Wait()

	return results
}
