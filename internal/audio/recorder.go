// Package audio owns microphone capture and playback-side volume ducking.
package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const frameSize = 320 // 20ms at 16 kHz

// Recorder captures mono PCM from the default input device with RMS-based
// silence endpointing: recording starts on the first loud frame and stops
// after the configured run of silence or the max utterance length.
type Recorder struct {
	sampleRate  int
	channels    int
	silenceRMS  float64
	silenceHold time.Duration
	maxUtter    time.Duration

	ready bool
}

type RecorderOptions struct {
	SampleRate      int
	Channels        int
	SilenceRMS      float64
	SilenceDuration time.Duration
	MaxUtterance    time.Duration
}

func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.SilenceRMS <= 0 {
		opts.SilenceRMS = 0.015
	}
	if opts.SilenceDuration <= 0 {
		opts.SilenceDuration = 600 * time.Millisecond
	}
	if opts.MaxUtterance <= 0 {
		opts.MaxUtterance = 10 * time.Second
	}

	return &Recorder{
		sampleRate:  opts.SampleRate,
		channels:    opts.Channels,
		silenceRMS:  opts.SilenceRMS,
		silenceHold: opts.SilenceDuration,
		maxUtter:    opts.MaxUtterance,
	}
}

func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	r.ready = true
	return nil
}

func (r *Recorder) Close() {
	r.ready = false
	portaudio.Terminate()
}

func (r *Recorder) Ready() bool {
	return r.ready
}

// Record captures one utterance. Cancellation is checked between frames;
// an empty slice means nothing above the silence threshold was heard.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, r.sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(r.channels, 0, float64(r.sampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	frameDur := time.Duration(frameSize) * time.Second / time.Duration(r.sampleRate)
	maxFrames := int(r.maxUtter / frameDur)
	silenceFrames := int(r.silenceHold / frameDur)

	var (
		speaking bool
		quiet    int
	)

	for i := 0; i < maxFrames; i++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > r.silenceRMS {
			speaking = true
			quiet = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			quiet++
			if quiet >= silenceFrames {
				break
			}
			out = append(out, buf...)
		}
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
