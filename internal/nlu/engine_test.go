package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrashBytes/ambient-ai-interface/internal/memory"
)

type fakeCompletions struct {
	reply  string
	err    error
	params openai.ChatCompletionNewParams
}

func (f *fakeCompletions) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = body
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func newTestEngine(fake *fakeCompletions) *Engine {
	return newEngine(fake, Options{
		Model:       "gpt-4-turbo-preview",
		Temperature: 0.7,
		MaxTokens:   500,
		MaxContext:  10,
	})
}

func TestExtractActionsSingle(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	actions := e.ExtractActions(`Sure. ACTION: {"action_type":"media","parameters":{"action":"play"}}`)

	require.Len(t, actions, 1)
	assert.Equal(t, "media", actions[0].Type)
	assert.Equal(t, "play", actions[0].Parameters["action"])
}

func TestExtractActionsNestedParameters(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	reply := `I'll turn on the lights. ACTION: {"action_type": "smart_home", "parameters": {"device": "lights", "action": "on"}}`
	actions := e.ExtractActions(reply)

	require.Len(t, actions, 1)
	assert.Equal(t, "smart_home", actions[0].Type)
	assert.Equal(t, "lights", actions[0].Parameters["device"])
}

func TestExtractActionsMultipleInOrder(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	reply := `I'll do that.
ACTION: {"action_type": "smart_home", "parameters": {"device": "lights", "action": "on"}}
And also ACTION: {"action_type": "information", "parameters": {"type": "weather"}}`

	actions := e.ExtractActions(reply)

	require.Len(t, actions, 2)
	assert.Equal(t, "smart_home", actions[0].Type)
	assert.Equal(t, "information", actions[1].Type)
}

func TestExtractActionsNewlineAfterMarker(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	reply := "Done.\nACTION:\n{\"action_type\": \"media\", \"parameters\": {\"action\": \"pause\"}}"
	actions := e.ExtractActions(reply)

	require.Len(t, actions, 1)
	assert.Equal(t, "media", actions[0].Type)
}

func TestExtractActionsNoMarker(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	assert.Empty(t, e.ExtractActions("Hello! How can I help you today?"))
}

func TestExtractActionsInvalidJSONSkipped(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	assert.Empty(t, e.ExtractActions("ACTION: {invalid json}"))
}

func TestExtractActionsBadPayloadDoesNotStopOthers(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	reply := `ACTION: {broken} then ACTION: {"action_type": "search", "parameters": {"query": "go"}}`
	actions := e.ExtractActions(reply)

	require.Len(t, actions, 1)
	assert.Equal(t, "search", actions[0].Type)
}

func TestExtractActionsBracesInsideStrings(t *testing.T) {
	e := newTestEngine(&fakeCompletions{})

	reply := `ACTION: {"action_type": "communication", "parameters": {"message": "use {curly} braces"}}`
	actions := e.ExtractActions(reply)

	require.Len(t, actions, 1)
	assert.Equal(t, "use {curly} braces", actions[0].Parameters["message"])
}

func TestProcessReturnsReply(t *testing.T) {
	fake := &fakeCompletions{reply: "  Of course!  "}
	e := newTestEngine(fake)

	got := e.Process(context.Background(), "hello", nil, nil)

	assert.Equal(t, "Of course!", got)
}

func TestProcessApologyOnTransportFailure(t *testing.T) {
	fake := &fakeCompletions{err: errors.New("quota exceeded")}
	e := newTestEngine(fake)

	got := e.Process(context.Background(), "hello", nil, nil)

	assert.Equal(t, fallbackReply, got)
}

func TestProcessApologyOnEmptyChoices(t *testing.T) {
	e := newEngine(emptyCompletions{}, Options{Model: "m", MaxContext: 10})

	assert.Equal(t, fallbackReply, e.Process(context.Background(), "hello", nil, nil))
}

type emptyCompletions struct{}

func (emptyCompletions) New(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}

// wireMessage decodes the union param through its JSON form, which is the
// shape the API actually receives.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func sentMessages(t *testing.T, fake *fakeCompletions) []wireMessage {
	t.Helper()
	out := make([]wireMessage, 0, len(fake.params.Messages))
	for _, m := range fake.params.Messages {
		raw, err := json.Marshal(m)
		require.NoError(t, err)
		var w wireMessage
		require.NoError(t, json.Unmarshal(raw, &w))
		out = append(out, w)
	}
	return out
}

func TestBuildMessagesOrdering(t *testing.T) {
	fake := &fakeCompletions{reply: "ok"}
	e := newTestEngine(fake)

	history := []memory.ContextMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}
	state := map[string]any{"b": 2, "a": 1}

	e.Process(context.Background(), "third", history, state)

	msgs := sentMessages(t, fake)
	require.Len(t, msgs, 5)

	// system prompt, state summary, two context turns, new input last
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Equal(t, "Current system state: a: 1, b: 2", msgs[1].Content)
	assert.Equal(t, wireMessage{Role: "user", Content: "first"}, msgs[2])
	assert.Equal(t, wireMessage{Role: "assistant", Content: "second"}, msgs[3])
	assert.Equal(t, wireMessage{Role: "user", Content: "third"}, msgs[4])
}

func TestBuildMessagesSkipsEmptyState(t *testing.T) {
	fake := &fakeCompletions{reply: "ok"}
	e := newTestEngine(fake)

	e.Process(context.Background(), "hi", nil, nil)

	msgs := sentMessages(t, fake)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestBuildMessagesLimitsContext(t *testing.T) {
	fake := &fakeCompletions{reply: "ok"}
	e := newEngine(fake, Options{Model: "m", MaxContext: 2})

	history := []memory.ContextMessage{
		{Role: "user", Content: "one"},
		{Role: "user", Content: "two"},
		{Role: "user", Content: "three"},
	}

	e.Process(context.Background(), "now", history, nil)

	// system + 2 most recent context turns + input
	msgs := sentMessages(t, fake)
	require.Len(t, msgs, 4)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestClassifyIntentPriority(t *testing.T) {
	cases := map[string]string{
		"turn on the lights":          "control",
		"what time is it":             "query",
		"remind me to call mom":       "reminder",
		"play some jazz":              "media",
		"send a message to Ana":       "communication",
		"good morning":                "general",
		"set a reminder for tomorrow": "control", // "set" outranks reminder keywords
	}

	for text, want := range cases {
		assert.Equal(t, want, ClassifyIntent(text), "text: %s", text)
	}
}

func TestExtractEntities(t *testing.T) {
	e := ExtractEntities("Set the bedroom thermostat to 72 tonight")

	assert.Contains(t, e.Devices, "thermostat")
	assert.Contains(t, e.Locations, "bedroom")
	assert.Contains(t, e.Times, "tonight")
	assert.Equal(t, []string{"72"}, e.Numbers)
}

func TestConfidenceScore(t *testing.T) {
	assert.InDelta(t, 0.8, ConfidenceScore("Done, the lights are on."), 1e-9)
	assert.InDelta(t, 0.5, ConfidenceScore("I'm not sure I can do that."), 1e-9)
	assert.InDelta(t, 0.5, ConfidenceScore("Maybe try again later"), 1e-9)
}
