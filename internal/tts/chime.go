package tts

import (
	"math"

	"github.com/faiface/beep"
)

// chimeTone is a short synthesized tone used as the wake acknowledgement,
// so no audio asset needs to ship with the binary.
func chimeTone() beep.Streamer {
	const (
		freq     = 880.0
		duration = 0.15 // seconds
	)
	total := int(float64(playbackRate) * duration)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			env := 1.0 - float64(pos)/float64(total)
			v := 0.3 * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(playbackRate))
			samples[i][0] = v
			samples[i][1] = v
			pos++
			n++
		}
		return n, true
	})
}
