// main package for the mimic3-tts service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/mimic3-tts/internal/config"
	"github.com/book-expert/mimic3-tts/internal/objectstore"
	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/book-expert/mimic3-tts/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFile = "mimic3-tts-bootstrap.log"
	serviceLogFile   = "mimic3-tts.log"
	natsClientName   = "mimic3-tts"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires NATS, the object stores and the adapter, then blocks in the
// worker loop until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(natsClientName))
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	textStore, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open text object store: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open audio object store: %w", err)
	}

	adapter, err := tts.New(cfg.PluginOptions(nil), log)
	if err != nil {
		log.Error("Failed to initialize the Mimic3 adapter: %v", err)

		return fmt.Errorf("failed to initialize the Mimic3 adapter: %w", err)
	}

	defer func() {
		closeErr := adapter.Close()
		if closeErr != nil {
			log.Warn("Failed to close the Mimic3 adapter: %v", closeErr)
		}
	}()

	natsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		cfg.NATS.AudioChunkCreatedSubject,
		textStore,
		audioStore,
		adapter,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System("Mimic3 TTS service initialized. Listening for jobs on subject: %s", cfg.NATS.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	log.System("Mimic3 TTS service stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
