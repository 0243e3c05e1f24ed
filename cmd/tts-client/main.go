package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/mimic3-tts/internal/batch"
	"github.com/book-expert/mimic3-tts/internal/config"
	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/book-expert/mimic3-tts/internal/tts/ttsutils"
	"github.com/pelletier/go-toml/v2"
)

// Flag descriptions.
const (
	flagTextDesc        = "Text to convert to speech"
	flagChunksDesc      = "JSON file containing text chunks to process"
	flagOutputDesc      = "Output file (.wav) for --text (default named after the voice), output directory for --chunks"
	flagConfigDesc      = "Path to a TOML file with a [tts_plugin] section"
	flagVoiceDesc       = "Voice id, e.g. en_US/cmu-arctic_low"
	flagSpeakerDesc     = "Speaker of a multi-speaker voice"
	flagLengthDesc      = "Speaking rate; larger is slower"
	flagNoiseScaleDesc  = "Voice variability"
	flagNoiseWDesc      = "Phoneme width variability"
	flagRemoteURLDesc   = "Base URL of a mimic3-server"
	flagWorkersDesc     = "Concurrent synthesis calls for --chunks"
	flagVoicesDesc      = "List the engine voices and exit"
	flagHealthDesc      = "Check the engine health and exit"
	flagTimeoutDesc     = "Overall timeout for the command"
	flagCombineDesc     = "With --chunks, also join all chunk files into this WAV"
	defaultOutputFile   = "output.wav"
	defaultOutputDir    = "output"
	defaultCallTimeout  = 10 * time.Minute
	healthCheckTimeout  = 10 * time.Second
	logFileName         = "tts-client.log"
	voiceListLineFormat = "%-40s %-8s %s\n"
)

// Flag names.
const (
	flagText        = "text"
	flagChunks      = "chunks"
	flagOutput      = "output"
	flagConfig      = "config"
	flagVoice       = "voice"
	flagSpeaker     = "speaker"
	flagLengthScale = "length-scale"
	flagNoiseScale  = "noise-scale"
	flagNoiseW      = "noise-w"
	flagRemoteURL   = "remote-url"
	flagWorkers     = "workers"
	flagVoices      = "voices"
	flagHealth      = "health"
	flagTimeout     = "timeout"
	flagCombine     = "combine"
)

// Error and status messages.
const (
	errEitherTextOrChunks = "either --text or --chunks must be provided"
	errCannotSpecifyBoth  = "cannot specify both --text and --chunks"
	msgServiceHealthy     = "Mimic3 engine is healthy"
	msgGenerated          = "Generated: %s (%s)\n"
	msgGeneratedChunks    = "Generated audio files in: %s\n"
	msgCombined           = "Combined audio: %s\n"
)

var (
	errMissingInput = errors.New(errEitherTextOrChunks)
	errBothInputs   = errors.New(errCannotSpecifyBoth)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text        string
	chunks      string
	output      string
	config      string
	voice       string
	speaker     string
	remoteURL   string
	lengthScale float64
	noiseScale  float64
	noiseW      float64
	workers     int
	voices      bool
	health      bool
	timeout     time.Duration
	combine     string

	// set records which flags appeared on the command line.
	set map[string]bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateArguments(flags)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}

	logDir := cfg.Paths.BaseLogsDir
	if logDir == "" {
		logDir = os.TempDir()
	}

	appLog, err := logger.New(logDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		_ = appLog.Close()
	}()

	adapter, err := tts.New(pluginOptions(cfg, flags), appLog)
	if err != nil {
		return fmt.Errorf("failed to initialize the Mimic3 adapter: %w", err)
	}

	defer func() {
		_ = adapter.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	switch {
	case flags.health:
		return handleHealthCheck(ctx, adapter, stdout)
	case flags.voices:
		return handleListVoices(ctx, adapter, stdout)
	case flags.text != "":
		return processSingleText(ctx, adapter, appLog, flags, stdout)
	default:
		return processChunks(ctx, adapter, appLog, flags, stdout)
	}
}

// parseFlags defines and parses command-line flags on a private flag set.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	fs := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	fs.StringVar(&flags.text, flagText, "", flagTextDesc)
	fs.StringVar(&flags.chunks, flagChunks, "", flagChunksDesc)
	fs.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	fs.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	fs.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	fs.StringVar(&flags.speaker, flagSpeaker, "", flagSpeakerDesc)
	fs.StringVar(&flags.remoteURL, flagRemoteURL, "", flagRemoteURLDesc)
	fs.Float64Var(&flags.lengthScale, flagLengthScale, 0, flagLengthDesc)
	fs.Float64Var(&flags.noiseScale, flagNoiseScale, 0, flagNoiseScaleDesc)
	fs.Float64Var(&flags.noiseW, flagNoiseW, 0, flagNoiseWDesc)
	fs.IntVar(&flags.workers, flagWorkers, batch.DefaultWorkers, flagWorkersDesc)
	fs.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	fs.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	fs.DurationVar(&flags.timeout, flagTimeout, defaultCallTimeout, flagTimeoutDesc)
	fs.StringVar(&flags.combine, flagCombine, "", flagCombineDesc)

	err := fs.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	flags.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })

	return flags, nil
}

// validateArguments checks for required and conflicting arguments.
func validateArguments(flags appFlags) error {
	if flags.health || flags.voices {
		return nil
	}

	if flags.text == "" && flags.chunks == "" {
		return errMissingInput
	}

	if flags.text != "" && flags.chunks != "" {
		return errBothInputs
	}

	return nil
}

// loadConfig reads the optional TOML file. A missing path yields an empty
// configuration, leaving every plugin option at its default.
func loadConfig(path string) (*config.Config, error) {
	var cfg config.Config

	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}

	return &cfg, nil
}

// pluginOptions layers adapter-level flags over the configuration file.
func pluginOptions(cfg *config.Config, flags appFlags) map[string]any {
	overrides := map[string]any{}
	if flags.remoteURL != "" {
		overrides[tts.OptRemoteURL] = flags.remoteURL
	}

	return cfg.PluginOptions(overrides)
}

// callOptions turns the per-call flags into adapter options. Prosody flags
// are passed only when given, so the configured or engine defaults apply
// otherwise.
func callOptions(flags appFlags) map[string]any {
	options := map[string]any{}

	if flags.voice != "" {
		options[tts.OptVoice] = flags.voice
	}

	if flags.speaker != "" {
		options[tts.OptSpeaker] = flags.speaker
	}

	floats := map[string]struct {
		option string
		value  float64
	}{
		flagLengthScale: {tts.OptLengthScale, flags.lengthScale},
		flagNoiseScale:  {tts.OptNoiseScale, flags.noiseScale},
		flagNoiseW:      {tts.OptNoiseW, flags.noiseW},
	}
	for name, f := range floats {
		if flags.set[name] {
			options[f.option] = f.value
		}
	}

	return options
}

func handleHealthCheck(ctx context.Context, adapter *tts.Adapter, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := adapter.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	_, _ = fmt.Fprintln(stdout, msgServiceHealthy)

	return nil
}

func handleListVoices(ctx context.Context, adapter *tts.Adapter, stdout io.Writer) error {
	for info, err := range adapter.ListVoices(ctx) {
		if err != nil {
			return fmt.Errorf("failed to list voices: %w", err)
		}

		_, _ = fmt.Fprintf(stdout, voiceListLineFormat, info.Voice, info.Language, strings.Join(info.Speakers, ","))
	}

	return nil
}

// voiceOutputFile names the --text output after the voice the call resolves
// to, falling back to defaultOutputFile when the options do not resolve.
func voiceOutputFile(adapter *tts.Adapter, flags appFlags) string {
	overrides, err := tts.ParseOverrides(callOptions(flags))
	if err != nil {
		return defaultOutputFile
	}

	cfg := adapter.Config()

	req, err := tts.BuildRequest(&cfg, flags.text, overrides)
	if err != nil {
		return defaultOutputFile
	}

	return ttsutils.VoiceFileName(req.VoiceKey())
}

func processSingleText(ctx context.Context, adapter *tts.Adapter, appLog *logger.Logger, flags appFlags, stdout io.Writer) error {
	outputPath := flags.output
	if outputPath == "" {
		outputPath = voiceOutputFile(adapter, flags)
	}

	appLog.Info("Processing single text to: %s", outputPath)

	err := batch.New(adapter, 1, appLog).ProcessSingleChunk(ctx, flags.text, outputPath, callOptions(flags))
	if err != nil {
		return fmt.Errorf("failed to process text: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("failed to stat output: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, msgGenerated, filepath.Clean(outputPath), ttsutils.FormatFileSize(info.Size()))

	return nil
}

func processChunks(ctx context.Context, adapter *tts.Adapter, appLog *logger.Logger, flags appFlags, stdout io.Writer) error {
	outputDir := flags.output
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	appLog.Info("Processing chunks from %s into %s", flags.chunks, outputDir)

	processor := batch.New(adapter, flags.workers, appLog)

	err := processor.ProcessChunks(ctx, flags.chunks, outputDir, callOptions(flags))
	if err != nil {
		return fmt.Errorf("failed to process chunks: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, msgGeneratedChunks, outputDir)

	if flags.combine == "" {
		return nil
	}

	err = processor.CombineChunks(outputDir, flags.combine)
	if err != nil {
		return fmt.Errorf("failed to combine chunks: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, msgCombined, flags.combine)

	return nil
}
