package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is loaded once at boot from the environment and validated before
// any component is constructed. Out-of-range values are fatal.
type Config struct {
	// OpenAI
	OpenAIAPIKey string
	OpenAIModel  string
	WhisperModel string

	// Microphone
	MicSampleRate   int
	MicChannels     int
	SilenceRMS      float64
	SilenceDuration time.Duration

	// Voice output
	TTSModel      string
	TTSVoice      string
	TTSSpeed      float64
	EnableCaching bool
	EnableDucking bool

	// Context and memory
	MaxContextLength   int
	ContextWindowHours int
	PersistentMemory   bool
	MemoryDBPath       string

	// Wake word
	EnableWakeWord bool
	WakeWord       string

	// NLU
	NLUTemperature  float64
	NLUMaxTokens    int
	NLUSystemPrompt string

	// Local transcription
	UseLocalWhisper       bool
	LocalWhisperModelPath string
}

func Load() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getString("OPENAI_MODEL", "gpt-4-turbo-preview"),
		WhisperModel: getString("OPENAI_WHISPER_MODEL", "whisper-1"),

		MicSampleRate:   getInt("MIC_SAMPLE_RATE", 16000),
		MicChannels:     getInt("MIC_CHANNELS", 1),
		SilenceRMS:      getFloat("SILENCE_THRESHOLD_RMS", 0.015),
		SilenceDuration: getDuration("SILENCE_DURATION", 600*time.Millisecond),

		TTSModel:      getString("TTS_MODEL", "tts-1-hd"),
		TTSVoice:      getString("TTS_VOICE", "alloy"),
		TTSSpeed:      getFloat("TTS_SPEED", 1.0),
		EnableCaching: getBool("ENABLE_CACHING", true),
		EnableDucking: getBool("ENABLE_DUCKING", false),

		MaxContextLength:   getInt("MAX_CONTEXT_LENGTH", 10),
		ContextWindowHours: getInt("CONTEXT_WINDOW_HOURS", 24),
		PersistentMemory:   getBool("ENABLE_PERSISTENT_MEMORY", true),
		MemoryDBPath:       getString("MEMORY_DB_PATH", "./data/context.db"),

		EnableWakeWord: getBool("ENABLE_WAKE_WORD", true),
		WakeWord:       getString("WAKE_WORD", "hey assistant"),

		NLUTemperature:  getFloat("NLU_TEMPERATURE", 0.7),
		NLUMaxTokens:    getInt("NLU_MAX_TOKENS", 500),
		NLUSystemPrompt: os.Getenv("NLU_SYSTEM_PROMPT"),

		UseLocalWhisper:       getBool("USE_LOCAL_WHISPER", false),
		LocalWhisperModelPath: getString("LOCAL_WHISPER_MODEL_PATH", "models/ggml-base.en.bin"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.MicSampleRate < 8000 || c.MicSampleRate > 48000 {
		return fmt.Errorf("MIC_SAMPLE_RATE must be between 8000 and 48000, got %d", c.MicSampleRate)
	}
	if c.TTSSpeed < 0.25 || c.TTSSpeed > 4.0 {
		return fmt.Errorf("TTS_SPEED must be between 0.25 and 4.0, got %g", c.TTSSpeed)
	}
	if c.NLUTemperature < 0 || c.NLUTemperature > 2.0 {
		return fmt.Errorf("NLU_TEMPERATURE must be between 0 and 2.0, got %g", c.NLUTemperature)
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("MAX_CONTEXT_LENGTH must be positive, got %d", c.MaxContextLength)
	}
	if c.ContextWindowHours < 0 {
		return fmt.Errorf("CONTEXT_WINDOW_HOURS must not be negative, got %d", c.ContextWindowHours)
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
