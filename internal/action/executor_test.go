package action

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteMissingType(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{Parameters: map[string]any{"anything": "here"}})

	assert.False(t, res.Success)
	assert.Equal(t, "No action_type specified", res.Error)
	assert.Empty(t, res.ActionType)
}

func TestExecuteUnknownType(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{Type: "teleport"})

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown action type: teleport", res.Error)
}

func TestExecuteHandlerError(t *testing.T) {
	e := NewExecutor()
	e.RegisterHandler("flaky", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("device offline")
	})

	res := e.Execute(context.Background(), Action{Type: "flaky"})

	assert.False(t, res.Success)
	assert.Equal(t, "device offline", res.Error)
	assert.Equal(t, "flaky", res.ActionType)
}

func TestExecuteHandlerPanic(t *testing.T) {
	e := NewExecutor()
	e.RegisterHandler("boom", func(context.Context, map[string]any) (any, error) {
		panic("unexpected")
	})

	res := e.Execute(context.Background(), Action{Type: "boom"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unexpected")
	assert.Equal(t, "boom", res.ActionType)
}

func TestRegisterHandlerOverwrites(t *testing.T) {
	e := NewExecutor()
	e.RegisterHandler("custom", func(context.Context, map[string]any) (any, error) {
		return "first", nil
	})
	e.RegisterHandler("custom", func(context.Context, map[string]any) (any, error) {
		return "second", nil
	})

	res := e.Execute(context.Background(), Action{Type: "custom"})

	require.True(t, res.Success)
	assert.Equal(t, "second", res.Result)
}

func TestExecuteBatch(t *testing.T) {
	e := NewExecutor()

	assert.Empty(t, e.ExecuteBatch(context.Background(), nil))

	actions := []Action{
		{Type: "search", Parameters: map[string]any{"query": "go"}},
		{Type: "nope"},
		{Type: "media", Parameters: map[string]any{"action": "pause"}},
	}

	results := e.ExecuteBatch(context.Background(), actions)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, "Media paused", results[2].Result)
}

func TestExecuteConcurrentPreservesOrder(t *testing.T) {
	e := NewExecutor()

	// Slow first action so completion order differs from input order.
	e.RegisterHandler("slow", func(context.Context, map[string]any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "slow done", nil
	})
	e.RegisterHandler("fast", func(context.Context, map[string]any) (any, error) {
		return "fast done", nil
	})

	results := e.ExecuteConcurrent(context.Background(), []Action{
		{Type: "slow"},
		{Type: "fast"},
		{Type: "missing"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "slow done", results[0].Result)
	assert.Equal(t, "fast done", results[1].Result)
	assert.False(t, results[2].Success)
}

func TestExecuteConcurrentRunsAll(t *testing.T) {
	e := NewExecutor()

	var calls atomic.Int32
	e.RegisterHandler("count", func(context.Context, map[string]any) (any, error) {
		calls.Add(1)
		return nil, nil
	})

	actions := make([]Action, 8)
	for i := range actions {
		actions[i] = Action{Type: "count"}
	}

	results := e.ExecuteConcurrent(context.Background(), actions)

	assert.Len(t, results, 8)
	assert.Equal(t, int32(8), calls.Load())
}

func TestSmartHomeOn(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{
		Type: "smart_home",
		Parameters: map[string]any{
			"device":   "lights",
			"location": "kitchen",
			"action":   "on",
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, "Turned on lights in kitchen", res.Result)
	assert.Equal(t, "smart_home", res.ActionType)
}

func TestSmartHomeSetValue(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{
		Type: "smart_home",
		Parameters: map[string]any{
			"device":   "thermostat",
			"location": "living room",
			"action":   "set",
			"value":    "72",
		},
	})

	require.True(t, res.Success)
	assert.Contains(t, res.Result, "Set")
	assert.Contains(t, res.Result, "72")
}

func TestSmartHomeSetNumericValue(t *testing.T) {
	e := NewExecutor()

	// JSON numbers decode as float64; the set branch must still render them.
	res := e.Execute(context.Background(), Action{
		Type: "smart_home",
		Parameters: map[string]any{
			"device":   "thermostat",
			"location": "living room",
			"action":   "set",
			"value":    float64(72),
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, "Set thermostat in living room to 72", res.Result)
}

func TestSmartHomeFallback(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{
		Type:       "smart_home",
		Parameters: map[string]any{"device": "blinds", "action": "tilt"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "Executed tilt on blinds", res.Result)
}

func TestDefaultHandlerBranches(t *testing.T) {
	e := NewExecutor()
	ctx := context.Background()

	cases := []struct {
		name   string
		action Action
		want   string
	}{
		{"weather", Action{Type: "information", Parameters: map[string]any{"type": "weather"}},
			"The current weather is 72°F and sunny"},
		{"news", Action{Type: "information", Parameters: map[string]any{"type": "news"}},
			"Here are the top news headlines..."},
		{"info fallback", Action{Type: "information", Parameters: map[string]any{"type": "stocks"}},
			"Retrieved information about stocks"},
		{"reminder set", Action{Type: "reminder", Parameters: map[string]any{"action": "set", "time": "9am", "message": "to stretch"}},
			"I'll remind you to stretch at 9am"},
		{"reminder list", Action{Type: "reminder", Parameters: map[string]any{"action": "list"}},
			"You have 3 upcoming reminders"},
		{"reminder cancel", Action{Type: "reminder", Parameters: map[string]any{"action": "cancel"}},
			"Reminder cancelled"},
		{"media play title", Action{Type: "media", Parameters: map[string]any{"action": "play", "title": "Kind of Blue"}},
			"Playing Kind of Blue"},
		{"media play default", Action{Type: "media", Parameters: map[string]any{"action": "play"}},
			"Playing music"},
		{"media next", Action{Type: "media", Parameters: map[string]any{"action": "next"}},
			"Playing next track"},
		{"send message", Action{Type: "communication", Parameters: map[string]any{"action": "send_message", "recipient": "Ana"}},
			"Message sent to Ana"},
		{"call", Action{Type: "communication", Parameters: map[string]any{"action": "call", "recipient": "Ana"}},
			"Calling Ana"},
		{"search", Action{Type: "search", Parameters: map[string]any{"query": "jazz"}},
			"Here's what I found about jazz..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Execute(ctx, tc.action)
			require.True(t, res.Success)
			assert.Equal(t, tc.want, res.Result)
		})
	}
}

func TestInformationTime(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(context.Background(), Action{
		Type:       "information",
		Parameters: map[string]any{"type": "time"},
	})

	require.True(t, res.Success)
	assert.Contains(t, res.Result, "The current time is")
}
