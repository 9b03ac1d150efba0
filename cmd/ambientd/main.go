package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/CrashBytes/ambient-ai-interface/internal/assistant"
	"github.com/CrashBytes/ambient-ai-interface/internal/audio"
	"github.com/CrashBytes/ambient-ai-interface/internal/config"
	"github.com/CrashBytes/ambient-ai-interface/internal/ipc"
	"github.com/CrashBytes/ambient-ai-interface/internal/memory"
	"github.com/CrashBytes/ambient-ai-interface/internal/nlu"
	"github.com/CrashBytes/ambient-ai-interface/internal/proxy"
	"github.com/CrashBytes/ambient-ai-interface/internal/stt"
	"github.com/CrashBytes/ambient-ai-interface/internal/tts"
	"github.com/CrashBytes/ambient-ai-interface/pkg/audioconv"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address (empty for direct)")
	busURL := cli.StringP("bus", "b", "", "Websocket bus URL (empty for microphone loop)")
	sockPath := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	client := openai.NewClient(opts...)

	rec := audio.NewRecorder(audio.RecorderOptions{
		SampleRate:      cfg.MicSampleRate,
		Channels:        cfg.MicChannels,
		SilenceRMS:      cfg.SilenceRMS,
		SilenceDuration: cfg.SilenceDuration,
	})
	if err := rec.Init(); err != nil {
		log.Warn("Voice input unavailable", "err", err)
	}
	defer rec.Close()

	var transcriber assistant.Transcriber
	if cfg.UseLocalWhisper {
		local, err := stt.NewLocal(cfg.LocalWhisperModelPath)
		if err != nil {
			log.Error("Failed to load whisper model", "path", cfg.LocalWhisperModelPath, "err", err)
			os.Exit(1)
		}
		defer local.Close()
		transcriber = local
		log.Debug("Loaded local whisper")
	} else {
		transcriber = stt.NewOpenAI(client, cfg.WhisperModel)
	}

	var ducker *audio.Ducker
	if cfg.EnableDucking {
		ducker = audio.NewDucker([]string{"ambientd"}, 20)
	}
	spk := tts.NewSpeaker(client, tts.Options{
		Model:         cfg.TTSModel,
		Voice:         cfg.TTSVoice,
		Speed:         cfg.TTSSpeed,
		EnableCaching: cfg.EnableCaching,
		Ducker:        ducker,
	})
	defer spk.Close()

	dbPath := ""
	if cfg.PersistentMemory {
		dbPath = cfg.MemoryDBPath
	}
	store, err := memory.NewStore(memory.Options{
		MaxContextLength:   cfg.MaxContextLength,
		ContextWindowHours: cfg.ContextWindowHours,
		DBPath:             dbPath,
	})
	if err != nil {
		log.Error("Failed to open memory store", "path", dbPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := nlu.NewEngine(client, nlu.Options{
		Model:        cfg.OpenAIModel,
		Temperature:  cfg.NLUTemperature,
		MaxTokens:    cfg.NLUMaxTokens,
		MaxContext:   cfg.MaxContextLength,
		SystemPrompt: cfg.NLUSystemPrompt,
	})

	asst := assistant.New(cfg, engine, store, assistant.Collaborators{
		Recorder:    rec,
		Transcriber: transcriber,
		Speaker:     spk,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ipc.StartServer(ctx, *sockPath, func(msg ipc.ControlMessage) ipc.Reply {
		return handleControl(ctx, asst, spk, transcriber, stop, msg)
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	if *busURL != "" {
		err = asst.RunBus(ctx, *busURL)
	} else {
		err = asst.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.Error("Assistant stopped", "err", err)
		os.Exit(1)
	}

	asst.Shutdown()
	log.Info("Goodbye")
}

func handleControl(ctx context.Context, asst *assistant.Assistant, spk *tts.Speaker, transcriber assistant.Transcriber, stop func(), msg ipc.ControlMessage) ipc.Reply {
	log.Debug("Control command", "cmd", msg.Cmd, "arg", msg.Arg)

	switch msg.Cmd {
	case "trigger":
		if msg.Arg == "" {
			return ipc.Reply{OK: false, Detail: "trigger needs text"}
		}
		reply := asst.ProcessText(ctx, msg.Arg)
		go spk.Speak(ctx, reply)
		return ipc.Reply{OK: true, Detail: reply}
	case "transcribe":
		pcm, err := audioconv.ConvertFileToPCM16k(msg.Arg)
		if err != nil {
			return ipc.Reply{OK: false, Detail: err.Error()}
		}
		text, err := transcriber.Transcribe(ctx, pcm)
		if err != nil {
			return ipc.Reply{OK: false, Detail: err.Error()}
		}
		if text == "" {
			return ipc.Reply{OK: false, Detail: "nothing recognized"}
		}
		reply := asst.ProcessText(ctx, text)
		go spk.Speak(ctx, reply)
		return ipc.Reply{OK: true, Detail: reply}
	case "say":
		go spk.Speak(ctx, msg.Arg)
		return ipc.Reply{OK: true}
	case "status":
		data, err := json.Marshal(asst.Status())
		if err != nil {
			return ipc.Reply{OK: false, Detail: err.Error()}
		}
		return ipc.Reply{OK: true, Detail: string(data)}
	case "stop":
		stop()
		return ipc.Reply{OK: true, Detail: "stopping"}
	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{OK: false, Detail: "unknown command: " + msg.Cmd}
	}
}
