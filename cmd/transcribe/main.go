// Command transcribe converts speech to text from a microphone, an audio
// file, or an HTTP API, and delivers transcripts over OSC, MQTT, SSE, or
// the log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/api"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/archive"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/audio"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/config"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/metrics"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/output"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/store"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/watch"
)

var version = "dev"

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `transcribe %s — speech to text

Usage:
  transcribe --input stream [--buffer-size N] [--device NAME] [--osc-address HOST]
  transcribe --input file --input-file PATH [--offset N] [--buffer N] [--loop]
  transcribe --input serve [--http-addr ADDR] [--watch-dir DIR]

Flags:
`, version)
	flag.PrintDefaults()
}

func main() {
	var (
		input      = flag.String("input", "", "input mode: stream, file, or serve")
		inputFile  = flag.String("input-file", "", "audio file to transcribe (file mode)")
		offset     = flag.Int("offset", 0, "seconds to skip at the start of the file (file mode)")
		buffer     = flag.Int("buffer", 0, "seconds of audio per transcription window, 0 = whole file (file mode)")
		loop       = flag.Bool("loop", false, "keep transcribing consecutive windows until the file ends (file mode)")
		bufferSize = flag.Int("buffer-size", 0, "seconds of audio per chunk (stream mode)")
		device     = flag.String("device", "", "capture device name substring (stream mode)")
		oscAddress = flag.String("osc-address", "", "OSC receiver host; transcripts go to the log when unset")
		language   = flag.String("language", "", "transcription language code")
		whisperURL = flag.String("whisper-url", "", "whisper server transcription endpoint")
		httpAddr   = flag.String("http-addr", "", "HTTP listen address (serve mode)")
		watchDir   = flag.String("watch-dir", "", "directory to watch for audio files (serve mode)")
		audioDir   = flag.String("audio-dir", "", "directory for archived audio (serve mode)")
		logLevel   = flag.String("log-level", "", "log level: trace, debug, info, warn, error")
		envFile    = flag.String("env-file", "", "path to .env file")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(config.Overrides{
		EnvFile:     *envFile,
		HTTPAddr:    *httpAddr,
		LogLevel:    *logLevel,
		WhisperURL:  *whisperURL,
		Language:    *language,
		OSCAddress:  *oscAddress,
		AudioDir:    *audioDir,
		WatchDir:    *watchDir,
		InputDevice: *device,
		BufferSize:  *bufferSize,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := transcribe.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create transcription provider")
	}
	log.Info().
		Str("version", version).
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Str("language", cfg.Language).
		Msg("transcribe starting")

	var exitErr error
	switch *input {
	case "stream":
		if cfg.BufferSize <= 0 {
			fmt.Fprintln(os.Stderr, "error: --input stream requires --buffer-size")
			flag.Usage()
			os.Exit(2)
		}
		exitErr = runStream(ctx, cfg, provider, log)
	case "file":
		if *inputFile == "" {
			fmt.Fprintln(os.Stderr, "error: --input file requires --input-file")
			flag.Usage()
			os.Exit(2)
		}
		exitErr = runFile(ctx, cfg, provider, *inputFile, *offset, *buffer, *loop, log)
	case "serve":
		exitErr = runServe(ctx, cfg, provider, log)
	case "":
		fmt.Fprintln(os.Stderr, "error: --input is required")
		flag.Usage()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown input mode %q\n", *input)
		flag.Usage()
		os.Exit(2)
	}

	if exitErr != nil {
		log.Fatal().Err(exitErr).Msg("transcribe failed")
	}
	log.Info().Msg("transcribe stopped")
}

// buildOutputs assembles the transcript fan-out from config. OSC when an
// address is configured, MQTT when a broker is configured, otherwise the log.
// extra publishers (the SSE bus in serve mode) are always included.
func buildOutputs(cfg *config.Config, log zerolog.Logger, extra ...output.Publisher) (*output.Multi, error) {
	var pubs []output.Publisher

	if cfg.OSCAddress != "" {
		pubs = append(pubs, output.NewOSCPublisher(cfg.OSCAddress, cfg.OSCPort, cfg.OSCRoute))
		log.Info().
			Str("addr", cfg.OSCAddress).
			Int("port", cfg.OSCPort).
			Str("route", cfg.OSCRoute).
			Msg("OSC output enabled")
	}

	if cfg.MQTTBrokerURL != "" {
		mq, err := output.NewMQTTPublisher(output.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
		pubs = append(pubs, mq)
	}

	if len(pubs) == 0 {
		pubs = append(pubs, output.NewLogPublisher(log))
	}
	pubs = append(pubs, extra...)

	return output.NewMulti(log.With().Str("component", "output").Logger(), pubs...), nil
}

// runStream captures microphone audio in fixed-size chunks and transcribes
// them through the worker pool until interrupted.
func runStream(ctx context.Context, cfg *config.Config, provider transcribe.Provider, log zerolog.Logger) error {
	outputs, err := buildOutputs(cfg, log)
	if err != nil {
		return err
	}
	defer outputs.Close()

	pool := transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
		Provider: provider,
		Opts: transcribe.Options{
			Language:    cfg.Language,
			Temperature: cfg.Temperature,
		},
		Workers:   1, // keep transcripts in spoken order
		QueueSize: cfg.QueueSize,
		Timeout:   cfg.WhisperTimeout,
		Publish:   outputs.Publish,
		Log:       log.With().Str("component", "pool").Logger(),
	})
	pool.Start()
	defer pool.Stop()

	capture, err := audio.NewCapture(cfg.InputDevice, cfg.BufferSize, log)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	defer capture.Close()

	if err := capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	log.Info().Int("chunk_seconds", cfg.BufferSize).Msg("listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-capture.Chunks():
			if !ok {
				return nil
			}
			if !pool.Enqueue(transcribe.Job{Samples: chunk, Source: "stream"}) {
				log.Warn().Msg("transcription queue full, chunk dropped")
			}
		}
	}
}

// runFile transcribes a window of an audio file, or consecutive windows
// until the end of the file when loop is set. Transcription is synchronous
// so windows come out in order.
func runFile(ctx context.Context, cfg *config.Config, provider transcribe.Provider, path string, offset, buffer int, loop bool, log zerolog.Logger) error {
	outputs, err := buildOutputs(cfg, log)
	if err != nil {
		return err
	}
	defer outputs.Close()

	opts := transcribe.Options{
		Language:    cfg.Language,
		Temperature: cfg.Temperature,
	}

	for {
		samples, err := audio.LoadFile(path, offset, buffer)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if len(samples) == 0 {
			log.Info().Int("offset", offset).Msg("end of file reached")
			return nil
		}

		wavPath, cleanup, err := audio.WriteTempWAV(samples)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := provider.Transcribe(ctx, wavPath, opts)
		cleanup()
		if err != nil {
			return fmt.Errorf("transcribe window at %ds: %w", offset, err)
		}

		t := transcribe.Transcript{
			ID:           transcribe.NewID(),
			Text:         result.Text,
			Language:     result.Language,
			Source:       "file",
			Provider:     provider.Name(),
			Model:        provider.Model(),
			AudioSeconds: float64(len(samples)) / audio.TargetSampleRate,
			WordCount:    len(result.Words),
			ElapsedMs:    int(time.Since(start).Milliseconds()),
			Words:        result.Words,
			CreatedAt:    time.Now().UTC(),
		}
		outputs.Publish(ctx, t)

		if !loop || buffer <= 0 {
			return nil
		}
		offset += buffer

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// runServe runs the long-lived service: HTTP API, drop-directory watcher,
// transcript storage, audio archive, and the SSE event stream.
func runServe(ctx context.Context, cfg *config.Config, provider transcribe.Provider, log zerolog.Logger) error {
	startTime := time.Now()

	// Database is optional; without it transcripts are not persisted.
	var db *store.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
		if err != nil {
			return fmt.Errorf("database connect: %w", err)
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	ar, services, err := archive.New(cfg.S3, cfg.AudioDir, log.With().Str("component", "archive").Logger())
	if err != nil {
		return fmt.Errorf("archive init: %w", err)
	}
	for _, svc := range services {
		svc.Start()
		defer svc.Stop()
	}

	bus := output.NewEventBus(256)
	outputs, err := buildOutputs(cfg, log, bus)
	if err != nil {
		return err
	}
	defer outputs.Close()

	poolOpts := transcribe.WorkerPoolOptions{
		Provider: provider,
		Opts: transcribe.Options{
			Language:    cfg.Language,
			Temperature: cfg.Temperature,
		},
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Timeout:   cfg.WhisperTimeout,
		Publish:   outputs.Publish,
		Log:       log.With().Str("component", "pool").Logger(),
	}
	if db != nil {
		poolOpts.Store = db
	}
	pool := transcribe.NewWorkerPool(poolOpts)
	pool.Start()
	defer pool.Stop()

	if db != nil {
		metrics.MustRegisterCollector(metrics.NewCollector(db.Pool, pool, bus))
	} else {
		metrics.MustRegisterCollector(metrics.NewCollector(nil, pool, bus))
	}

	var watcher *watch.Watcher
	if cfg.WatchDir != "" {
		watcher = watch.New(pool, cfg.WatchDir, true, log)
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Stop()
	}

	deps := api.Deps{
		DB:      db,
		Pool:    pool,
		Archive: ar,
		Bus:     bus,
	}
	if watcher != nil {
		deps.Watcher = watcher
	}
	srv := api.NewServer(cfg, deps, version, startTime, log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
