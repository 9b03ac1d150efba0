// Package assistant is the orchestration loop: capture, transcribe,
// understand, dispatch actions, remember, speak. Collaborators are narrow
// interfaces so the loop itself stays testable without audio hardware.
package assistant

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/CrashBytes/ambient-ai-interface/internal/action"
	"github.com/CrashBytes/ambient-ai-interface/internal/config"
	"github.com/CrashBytes/ambient-ai-interface/internal/memory"
	"github.com/CrashBytes/ambient-ai-interface/internal/state"
)

const (
	greeting    = "Hello! Ambient AI is now active. How can I help you today?"
	loopApology = "I'm sorry, I encountered an error. Please try again."
)

// Recorder captures one utterance of mono 16 kHz PCM.
type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
	Ready() bool
}

// Transcriber turns captured PCM into text. Empty text means nothing was
// recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Speaker voices a reply and plays the wake acknowledgement chime.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Chime()
	Ready() bool
	Close() error
}

// Engine is the understanding slice the loop depends on.
type Engine interface {
	Process(ctx context.Context, input string, history []memory.ContextMessage, st map[string]any) string
	ExtractActions(reply string) []action.Action
}

type Collaborators struct {
	Recorder    Recorder
	Transcriber Transcriber
	Speaker     Speaker
}

type Assistant struct {
	cfg       *config.Config
	engine    Engine
	store     *memory.Store
	tracker   *state.Tracker
	executor  *action.Executor
	rec       Recorder
	stt       Transcriber
	tts       Speaker
	sessionID string
	running   atomic.Bool

	// turnMu serializes turns: the voice loop and control-socket turns
	// target the same store and tracker and must not interleave.
	turnMu sync.Mutex
}

type Status struct {
	Running          bool           `json:"running"`
	State            state.Snapshot `json:"state"`
	ContextSize      int            `json:"context_size"`
	VoiceInputReady  bool           `json:"voice_input_ready"`
	VoiceOutputReady bool           `json:"voice_output_ready"`
}

func New(cfg *config.Config, engine Engine, store *memory.Store, c Collaborators) *Assistant {
	a := &Assistant{
		cfg:       cfg,
		engine:    engine,
		store:     store,
		tracker:   state.NewTracker(),
		executor:  action.NewExecutor(),
		rec:       c.Recorder,
		stt:       c.Transcriber,
		tts:       c.Speaker,
		sessionID: uuid.NewString(),
	}

	log.Info("Assistant initialized", "session", a.sessionID)
	return a
}

// RegisterActionHandler installs a custom handler; an existing handler for
// the same type is replaced.
func (a *Assistant) RegisterActionHandler(actionType string, h action.Handler) {
	a.executor.RegisterHandler(actionType, h)
}

// Run is the continuous voice loop. Cancellation is observed between
// iterations only; an in-flight turn runs to completion. Any turn failure
// is spoken as an apology and the loop continues.
func (a *Assistant) Run(ctx context.Context) error {
	a.running.Store(true)
	defer a.running.Store(false)

	a.speak(ctx, greeting)

	for {
		select {
		case <-ctx.Done():
			log.Info("Assistant loop stopped")
			return ctx.Err()
		default:
		}

		if err := a.runTurn(ctx); err != nil {
			log.Error("Error in main loop", "err", err)
			a.speak(ctx, loopApology)
		}
	}
}

func (a *Assistant) runTurn(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panic: %v", r)
		}
	}()

	if a.cfg.EnableWakeWord {
		ok, err := a.waitForWakeWord(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		a.tts.Chime()
	}

	log.Info("Listening for command")
	a.tracker.TransitionTo(state.Listening, nil)

	pcm, err := a.rec.Record(ctx)
	if err != nil {
		a.tracker.SetError(err.Error())
		return fmt.Errorf("capture audio: %w", err)
	}
	if len(pcm) == 0 {
		a.tracker.TransitionTo(state.Idle, nil)
		return nil
	}

	text, err := a.stt.Transcribe(ctx, pcm)
	if err != nil {
		// Transcription failure is a boundary error: log and move on.
		log.Error("Transcription failed", "err", err)
		a.tracker.TransitionTo(state.Idle, nil)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		a.tracker.TransitionTo(state.Idle, nil)
		return nil
	}

	log.Info("User said", "text", text)

	reply := a.ProcessText(ctx, text)
	a.speak(ctx, reply)

	return nil
}

// waitForWakeWord listens for a short utterance containing the configured
// phrase. This is a keyword stub, not real wake-word detection.
func (a *Assistant) waitForWakeWord(ctx context.Context) (bool, error) {
	pcm, err := a.rec.Record(ctx)
	if err != nil {
		return false, fmt.Errorf("wake word capture: %w", err)
	}
	if len(pcm) == 0 {
		return false, nil
	}

	text, err := a.stt.Transcribe(ctx, pcm)
	if err != nil {
		log.Error("Wake word transcription failed", "err", err)
		return false, nil
	}

	heard := strings.Contains(strings.ToLower(text), strings.ToLower(a.cfg.WakeWord))
	if heard {
		log.Info("Wake word detected", "text", text)
	}
	return heard, nil
}

// ProcessText runs one full text turn: remember the input, update state,
// generate a reply, dispatch extracted actions and fold failures back into
// the reply. This is the audio-free core of the loop, shared with the bus
// and control-socket paths; concurrent callers run one turn at a time.
func (a *Assistant) ProcessText(ctx context.Context, text string) string {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.store.AddMessage("user", text, a.metadata())

	a.tracker.ProcessInput(text)
	a.tracker.TransitionTo(state.Processing, nil)

	history := a.store.RecentContext(0)
	reply := a.engine.Process(ctx, text, history, a.stateInfo())

	a.tracker.TransitionTo(state.Responding, nil)

	if actions := a.engine.ExtractActions(reply); len(actions) > 0 {
		a.tracker.TransitionTo(state.ExecutingAction, nil)
		results := a.executor.ExecuteConcurrent(ctx, actions)
		reply = enhanceReply(reply, results)
		a.tracker.TransitionTo(state.Responding, nil)
	}

	a.store.AddMessage("assistant", reply, a.metadata())
	a.tracker.TransitionTo(state.Idle, nil)

	return reply
}

// stateInfo flattens the tracker snapshot into the key-value map the
// engine summarizes for the model.
func (a *Assistant) stateInfo() map[string]any {
	snap := a.tracker.Snapshot()

	info := make(map[string]any, len(snap.Data)+2)
	for k, v := range snap.Data {
		info[k] = v
	}
	info["state"] = string(snap.State)
	if snap.PreviousState != "" {
		info["previous_state"] = string(snap.PreviousState)
	}
	return info
}

func (a *Assistant) metadata() map[string]any {
	return map[string]any{"session_id": a.sessionID}
}

// enhanceReply keeps the reply as generated when every action succeeded,
// and appends the collected error strings when any failed.
func enhanceReply(reply string, results []action.Result) string {
	var errs []string
	for _, r := range results {
		if r.Success {
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = "unknown error"
		}
		errs = append(errs, msg)
	}

	if len(errs) == 0 {
		return reply
	}
	return reply + " However, I encountered some issues: " + strings.Join(errs, ", ")
}

func (a *Assistant) speak(ctx context.Context, text string) {
	if err := a.tts.Speak(ctx, text); err != nil {
		log.Error("Speech synthesis failed", "err", err)
	}
}

func (a *Assistant) Status() Status {
	return Status{
		Running:          a.running.Load(),
		State:            a.tracker.Snapshot(),
		ContextSize:      len(a.store.RecentContext(0)),
		VoiceInputReady:  a.rec != nil && a.rec.Ready(),
		VoiceOutputReady: a.tts != nil && a.tts.Ready(),
	}
}

// Shutdown is best-effort resource release; it never blocks on a flush.
func (a *Assistant) Shutdown() {
	log.Info("Stopping assistant")

	if a.tts != nil {
		if err := a.tts.Close(); err != nil {
			log.Error("Speaker close failed", "err", err)
		}
	}

	a.store.Save()
	if err := a.store.Close(); err != nil {
		log.Error("Store close failed", "err", err)
	}
}
