// Package nlu talks to the language model: it assembles the prompt from
// system instructions, recent context and live state, and pulls typed
// action directives back out of the freeform reply.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sort"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/CrashBytes/ambient-ai-interface/internal/action"
	"github.com/CrashBytes/ambient-ai-interface/internal/memory"
)

// fallbackReply is what the user hears whenever the model call fails.
// Process never returns an error.
const fallbackReply = "I'm sorry, I had trouble understanding that. Could you please rephrase?"

// actionMarker introduces an inline directive in the reply text. The marker
// plus a single JSON object is the wire contract with the model; the system
// prompt instructs exactly this shape.
const actionMarker = "ACTION:"

// completions is the slice of the OpenAI client the engine needs. Tests
// substitute a fake.
type completions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	MaxContext   int
	SystemPrompt string // empty selects the built-in prompt
}

type Engine struct {
	chat         completions
	model        string
	temperature  float64
	maxTokens    int
	maxContext   int
	systemPrompt string
}

func NewEngine(client openai.Client, opts Options) *Engine {
	e := newEngine(&client.Chat.Completions, opts)
	log.Info("NLU engine initialized", "model", e.model)
	return e
}

func newEngine(chat completions, opts Options) *Engine {
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	maxContext := opts.MaxContext
	if maxContext <= 0 {
		maxContext = 10
	}

	return &Engine{
		chat:         chat,
		model:        opts.Model,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
		maxContext:   maxContext,
		systemPrompt: prompt,
	}
}

// Process generates a reply for the user input. Model failures are logged
// and surface as the fixed apology, never as an error.
func (e *Engine) Process(ctx context.Context, input string, history []memory.ContextMessage, state map[string]any) string {
	messages := e.buildMessages(input, history, state)

	log.Info("Processing input", "input", truncate(input, 50))

	resp, err := e.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(e.model),
		Messages:            messages,
		Temperature:         openai.Float(e.temperature),
		MaxCompletionTokens: openai.Int(int64(e.maxTokens)),
	})
	if err != nil {
		log.Error("NLU processing error", "err", err)
		return fallbackReply
	}
	if len(resp.Choices) == 0 {
		log.Error("NLU processing error", "err", "no choices in response")
		return fallbackReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)

	log.Info("Generated response", "reply", truncate(reply, 50))
	return reply
}

// buildMessages assembles the wire-order prompt: system instructions, an
// optional state summary, the recent context verbatim, and the new input
// last.
func (e *Engine) buildMessages(input string, history []memory.ContextMessage, state map[string]any) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(e.systemPrompt),
	}

	if info := formatState(state); info != "" {
		messages = append(messages, openai.SystemMessage(
			fmt.Sprintf("Current system state: %s", info)))
	}

	if len(history) > e.maxContext {
		history = history[len(history)-e.maxContext:]
	}
	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return append(messages, openai.UserMessage(input))
}

// formatState renders the state-data table as "key: value" pairs. Keys are
// sorted so the prompt is stable across runs.
func formatState(state map[string]any) string {
	if len(state) == 0 {
		return ""
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, state[k]))
	}
	return strings.Join(parts, ", ")
}

// ExtractActions scans the reply for every ACTION: marker and decodes the
// JSON object that follows. Decoding walks balanced braces, so nested
// parameter objects and braces inside strings parse correctly. A payload
// that fails to parse is logged and skipped without disturbing the rest;
// returned actions follow order of appearance.
func (e *Engine) ExtractActions(reply string) []action.Action {
	var actions []action.Action

	rest := reply
	for {
		idx := strings.Index(rest, actionMarker)
		if idx < 0 {
			break
		}

		payload := strings.TrimLeft(rest[idx+len(actionMarker):], " \t\r\n")
		if !strings.HasPrefix(payload, "{") {
			rest = rest[idx+len(actionMarker):]
			continue
		}

		dec := json.NewDecoder(strings.NewReader(payload))
		var a action.Action
		if err := dec.Decode(&a); err != nil {
			log.Warn("Failed to parse action", "payload", truncate(payload, 80), "err", err)
			rest = rest[idx+len(actionMarker):]
			continue
		}

		log.Info("Extracted action", "type", a.Type)
		actions = append(actions, a)

		consumed := len(rest) - len(payload) + int(dec.InputOffset())
		rest = rest[consumed:]
	}

	return actions
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
