package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/CrashBytes/ambient-ai-interface/internal/audio"
)

type speechSynth interface {
	New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// Options configure speech synthesis and playback.
type Options struct {
	Model string
	Voice string
	Speed float64

	// EnableCaching keeps synthesized audio in memory keyed by the spoken
	// text, so repeated phrases skip the API round trip.
	EnableCaching bool

	// Ducker, when non-nil, lowers other audio streams while speaking.
	Ducker *audio.Ducker
}

// Speaker synthesizes speech through the OpenAI audio API and plays the
// resulting mp3 on the default output device.
type Speaker struct {
	speech speechSynth
	opts   Options

	mu    sync.Mutex
	cache map[string][]byte

	initOnce sync.Once
	initErr  error
}

func NewSpeaker(client openai.Client, opts Options) *Speaker {
	return newSpeaker(&client.Audio.Speech, opts)
}

func newSpeaker(synth speechSynth, opts Options) *Speaker {
	if opts.Model == "" {
		opts.Model = "tts-1-hd"
	}
	if opts.Voice == "" {
		opts.Voice = "alloy"
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}
	s := &Speaker{
		speech: synth,
		opts:   opts,
	}
	if opts.EnableCaching {
		s.cache = make(map[string][]byte)
	}
	return s
}

// Speak synthesizes text and blocks until playback finishes.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	data, err := s.synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if s.opts.Ducker != nil {
		if err := s.opts.Ducker.Duck(ctx, 0.3); err != nil {
			log.Warn("duck failed", "error", err)
		}
		defer func() {
			if err := s.opts.Ducker.Restore(ctx); err != nil {
				log.Warn("restore volume failed", "error", err)
			}
		}()
	}

	if err := s.play(data); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

func (s *Speaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		s.mu.Lock()
		data, ok := s.cache[text]
		s.mu.Unlock()
		if ok {
			return data, nil
		}
	}

	resp, err := s.speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.opts.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.opts.Voice),
		Input:          text,
		Speed:          openai.Float(s.opts.Speed),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if s.cache != nil {
		s.mu.Lock()
		s.cache[text] = data
		s.mu.Unlock()
	}
	return data, nil
}

func (s *Speaker) play(mp3Data []byte) error {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(mp3Data)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := s.initSpeaker(); err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Resample(3, format.SampleRate, playbackRate, beep.Seq(streamer, beep.Callback(func() {
		close(done)
	}))))
	<-done
	return nil
}

const playbackRate beep.SampleRate = 44100

func (s *Speaker) initSpeaker() error {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(playbackRate, playbackRate.N(time.Second/10))
	})
	return s.initErr
}

// Chime plays a short acknowledgement tone after the wake word is heard.
// Failures are logged, not returned; a missing chime never blocks a turn.
func (s *Speaker) Chime() {
	if err := s.initSpeaker(); err != nil {
		log.Warn("chime skipped", "error", err)
		return
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(chimeTone(), beep.Callback(func() {
		close(done)
	})))
	<-done
}

// Ready reports whether the output device could be opened.
func (s *Speaker) Ready() bool {
	return s.initSpeaker() == nil
}

func (s *Speaker) Close() error {
	speaker.Close()
	return nil
}
