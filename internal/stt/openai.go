// Package stt provides the transcription collaborators: the OpenAI Whisper
// API and a local whisper.cpp model. Both consume mono 16 kHz PCM.
package stt

import (
	"bytes"
	"context"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"

	"github.com/CrashBytes/ambient-ai-interface/pkg/audioconv"
)

// OpenAI uploads captured audio as WAV to the hosted Whisper endpoint.
type OpenAI struct {
	transcriptions *openai.AudioTranscriptionService
	model          string
}

func NewOpenAI(client openai.Client, model string) *OpenAI {
	return &OpenAI{
		transcriptions: &client.Audio.Transcriptions,
		model:          model,
	}
}

func (t *OpenAI) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wavData, err := audioconv.EncodeWAV16k(pcm)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	resp, err := t.transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	log.Debug("Transcribed", "text", resp.Text)
	return resp.Text, nil
}
