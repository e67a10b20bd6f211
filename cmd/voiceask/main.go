// voiceask records a spoken question, sends it to an AI inference
// service and reads the answer aloud.
//
// Usage:
//
//	voiceask [-endpoint URL] [-format wav|flac] [-device NAME] [-no-speech] [-verbose] [-quiet]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/voiceask/internal/capture"
	"github.com/hammamikhairi/voiceask/internal/config"
	"github.com/hammamikhairi/voiceask/internal/conversation"
	"github.com/hammamikhairi/voiceask/internal/display"
	"github.com/hammamikhairi/voiceask/internal/encoder"
	"github.com/hammamikhairi/voiceask/internal/engine"
	"github.com/hammamikhairi/voiceask/internal/inference"
	"github.com/hammamikhairi/voiceask/internal/logger"
	"github.com/hammamikhairi/voiceask/internal/metrics"
	"github.com/hammamikhairi/voiceask/internal/speech"
	"github.com/hammamikhairi/voiceask/internal/storage"
	"github.com/hammamikhairi/voiceask/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	endpoint := flag.String("endpoint", cfg.InferenceURL, "inference endpoint that accepts the recorded question")
	format := flag.String("format", cfg.UploadFormat, "upload container: wav or flac")
	device := flag.String("device", cfg.CaptureDevice, "capture device name (substring match, empty for the system default)")
	noSpeech := flag.Bool("no-speech", false, "print answers without speaking them even if Azure keys are set")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", cfg.LogFile, "file to write logs to (use \"stderr\" to log to console)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (empty to disable)")
	listDevices := flag.Bool("list-devices", false, "print capture devices and exit")
	flag.Parse()

	cfg.InferenceURL = *endpoint
	cfg.UploadFormat = *format
	cfg.CaptureDevice = *device
	cfg.LogFile = *logFile
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Logs go to a file by default so the prompt stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		dir := filepath.Dir(cfg.LogFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Audio backends print through the standard log package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	if *listDevices {
		names, err := capture.ListDevices(log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	// Cancelled when the UI quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire dependencies.
	store := storage.NewMemoryStore(log)
	ui := display.NewUI(store)
	notifier := conversation.NewCLINotifier(log, ui.PrintHint, ui.PrintUrgent)
	parser := conversation.NewKeywordParser(log)

	// One output device serves both the question playback and the answer.
	player, err := speech.NewPlayer(log.With("player"))
	if err != nil {
		log.Error("audio player init failed, playback and speech disabled: %v", err)
	}

	var synth speech.Synthesizer = speech.NewSilent(log.With("speech"))
	speechMode := "off"
	switch {
	case *noSpeech:
		log.Info("TTS disabled by flag")
	case !cfg.AzureEnabled():
		log.Info("TTS disabled: set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable")
	case player == nil:
		log.Info("TTS disabled: no audio output")
	default:
		ttsClient := speech.NewAzureClient(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, log.With("tts"))
		cache := speech.NewAudioCache(cfg.TTSCacheDir, cfg.TTSDiskCache, log.With("tts-cache"))
		synth = speech.NewAzureSynthesizer(ttsClient, cache, player, log.With("tts"))
		speechMode = fmt.Sprintf("Azure (%s)", cfg.AzureSpeechRegion)
		log.Info("TTS enabled (region=%s, locale=%s)", cfg.AzureSpeechRegion, cfg.VoiceLocale)
	}

	mouth := speech.NewMouth(synth, log.With("mouth"),
		speech.WithPitch(cfg.SpeechPitch),
		speech.WithRate(cfg.SpeechRate),
		speech.WithVoiceRules(speech.DefaultRules(cfg.VoiceLocale, cfg.VoiceLabels)...),
	)
	mouth.LoadVoices(ctx)

	container, err := encoder.ForFormat(cfg.UploadFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	client := inference.NewClient(cfg.InferenceURL, log.With("inference"),
		inference.WithContainer(container),
	)

	mic := capture.NewController(capture.NewMalgoDevice(cfg.CaptureDevice, log.With("capture")), log.With("capture"))
	stash := capture.NewTempStash("", log.With("capture"))

	engineOpts := []engine.Option{engine.WithUploadTimeout(cfg.InferenceTimeout)}
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		engineOpts = append(engineOpts, engine.WithObserver(m))
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, log.With("metrics")); err != nil {
				log.Error("metrics server: %v", err)
			}
		}()
	}

	eng := engine.New(mic, stash, client, mouth, store, log.With("engine"), engineOpts...)
	go eng.Run(ctx)

	watchdog := timer.New(store, eng, notifier, log.With("watchdog"),
		timer.WithMaxRecording(cfg.MaxRecording),
	)
	watchdog.Start(ctx)
	defer watchdog.Stop()

	app := &cliApp{
		engine:   eng,
		parser:   parser,
		notifier: notifier,
		mouth:    mouth,
		player:   player,
		endpoint: client.Endpoint(),
		log:      log,
		ui:       ui,
	}

	fmt.Println(display.RenderBanner(display.BannerInfo{
		Endpoint: client.Endpoint(),
		Format:   cfg.UploadFormat,
		Speech:   speechMode,
	}))

	// App logic runs beside the UI.
	go func() {
		ui.WaitReady()
		go app.follow(ctx)
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal and blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
}
