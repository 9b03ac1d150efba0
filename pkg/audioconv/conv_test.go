package audioconv

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV16kHeader(t *testing.T) {
	pcm := make([]float32, 1600) // 100ms of silence
	data, err := EncodeWAV16k(pcm)
	require.NoError(t, err)

	require.Greater(t, len(data), 44, "RIFF header plus samples")
	assert.Equal(t, []byte("RIFF"), data[0:4])
	assert.Equal(t, []byte("WAVE"), data[8:12])
	// 16-bit mono: two bytes per sample
	assert.Equal(t, []byte{0x10, 0x00}, data[34:36], "bits per sample")
}

func TestEncodeWAV16kEmpty(t *testing.T) {
	_, err := EncodeWAV16k(nil)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// A quiet 440 Hz tone survives the int16 round trip within tolerance.
	pcm := make([]float32, 1600)
	for i := range pcm {
		pcm[i] = 0.25 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	data, err := EncodeWAV16k(pcm)
	require.NoError(t, err)

	decoded, err := decodeWAV(bytes.NewReader(data))
	require.NoError(t, err)

	require.Len(t, decoded, len(pcm))
	for i := 0; i < len(pcm); i += 100 {
		assert.InDelta(t, pcm[i], decoded[i], 0.001)
	}
}

func TestDownmix(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := downmix(stereo, 2)

	require.Len(t, mono, 3)
	assert.InDelta(t, 0.5, mono[0], 1e-6)
	assert.InDelta(t, 0.5, mono[1], 1e-6)
	assert.InDelta(t, 0.0, mono[2], 1e-6)
}

func TestResampleLinearHalvesRate(t *testing.T) {
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}

	out := resampleLinear(in, 32000, 16000)
	assert.InDelta(t, 50, len(out), 1)
	assert.InDelta(t, float32(0), out[0], 1e-6)
}

func TestConvertFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC"), 0o644))

	_, err := ConvertFileToPCM16k(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestConvertFileMissing(t *testing.T) {
	_, err := ConvertFileToPCM16k(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
