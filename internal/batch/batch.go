// Package batch synthesizes a JSON file of text chunks into numbered WAV
// files, with a bounded number of concurrent synthesis calls.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/mimic3-tts/internal/core"
	"github.com/book-expert/mimic3-tts/internal/tts/audio"
	"github.com/book-expert/mimic3-tts/internal/tts/ttsutils"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is used when a non-positive worker count is given.
const DefaultWorkers = 2

const filePermissions = 0o600

// Static errors.
var (
	ErrChunksPathEmpty = errors.New("chunks path cannot be empty")
	ErrOutputDirEmpty  = errors.New("output directory cannot be empty")
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	ErrNoChunksFound   = errors.New("no chunks found")
)

const (
	logFmtGeneratedAudio        = "Generated audio: %s (%s, %s)"
	logFmtChunkProcessingFailed = "Failed to process chunk %d: %v"
	logFmtChunkProcessed        = "Processed chunk %d/%d"
	errFmtChunkFailed           = "chunk %d failed: %w"
)

// Processor writes synthesized chunks to disk.
type Processor struct {
	synthesizer core.Synthesizer
	workers     int
	log         *logger.Logger
}

// New creates a Processor running at most workers synthesis calls at once.
func New(synthesizer core.Synthesizer, workers int, log *logger.Logger) *Processor {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Processor{synthesizer: synthesizer, workers: workers, log: log}
}

// ProcessChunks synthesizes every chunk of the JSON string array at
// chunksPath into outputDir/chunk_NNNN.wav. A failed chunk does not stop the
// others; all failures are returned joined.
func (p *Processor) ProcessChunks(ctx context.Context, chunksPath, outputDir string, options map[string]any) error {
	if chunksPath == "" {
		return ErrChunksPathEmpty
	}

	if outputDir == "" {
		return ErrOutputDirEmpty
	}

	chunks, err := ReadChunksFile(chunksPath)
	if err != nil {
		return err
	}

	err = ttsutils.EnsureDir(outputDir)
	if err != nil {
		return err
	}

	var (
		group  errgroup.Group
		mutex  sync.Mutex
		errs   []error
		failed int
	)

	group.SetLimit(p.workers)

	for chunkIndex, chunk := range chunks {
		group.Go(func() error {
			outputPath := filepath.Join(outputDir, ttsutils.ChunkFileName(chunkIndex+1))

			chunkErr := p.ProcessSingleChunk(ctx, chunk, outputPath, options)
			if chunkErr != nil {
				mutex.Lock()
				errs = append(errs, fmt.Errorf(errFmtChunkFailed, chunkIndex+1, chunkErr))
				failed++
				mutex.Unlock()

				p.log.Error(logFmtChunkProcessingFailed, chunkIndex+1, chunkErr)

				return nil
			}

			p.log.Info(logFmtChunkProcessed, chunkIndex+1, len(chunks))

			return nil
		})
	}

	_ = group.Wait()

	if failed > 0 {
		p.log.Warn("%d of %d chunks failed", failed, len(chunks))
	}

	return errors.Join(errs...)
}

// ProcessSingleChunk synthesizes text and writes the WAV to outputPath.
func (p *Processor) ProcessSingleChunk(ctx context.Context, text, outputPath string, options map[string]any) error {
	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	result, err := p.synthesizer.SynthesizeText(ctx, text, options)
	if err != nil {
		return fmt.Errorf("failed to generate speech: %w", err)
	}

	err = ttsutils.EnsureParentDir(outputPath)
	if err != nil {
		return err
	}

	err = os.WriteFile(outputPath, result.Audio, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	p.log.Info(logFmtGeneratedAudio, outputPath,
		ttsutils.FormatFileSize(int64(len(result.Audio))), ttsutils.FormatDuration(result.Duration()))

	return nil
}

// CombineChunks joins the chunk files in outputDir, in chunk order, into one
// WAV at combinedPath.
func (p *Processor) CombineChunks(outputDir, combinedPath string) error {
	if outputDir == "" {
		return ErrOutputDirEmpty
	}

	if combinedPath == "" {
		return ErrOutputPathEmpty
	}

	paths, err := filepath.Glob(filepath.Join(outputDir, ttsutils.ChunkFilePattern))
	if err != nil {
		return fmt.Errorf("failed to list chunk files: %w", err)
	}

	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", ErrNoChunksFound, outputDir)
	}

	payloads := make([][]byte, 0, len(paths))

	for _, path := range paths {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read chunk file: %w", readErr)
		}

		payloads = append(payloads, data)
	}

	combined, err := audio.JoinWAV(payloads...)
	if err != nil {
		return fmt.Errorf("failed to combine chunks: %w", err)
	}

	err = ttsutils.EnsureParentDir(combinedPath)
	if err != nil {
		return err
	}

	err = os.WriteFile(combinedPath, combined, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write combined audio: %w", err)
	}

	p.log.Info("Combined %d chunks into %s (%s)", len(paths), combinedPath,
		ttsutils.FormatFileSize(int64(len(combined))))

	return nil
}

// ReadChunksFile reads a JSON file holding an array of text chunks.
func ReadChunksFile(chunksPath string) ([]string, error) {
	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks file: %w", err)
	}

	var chunks []string

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunks JSON: %w", err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunksFound, chunksPath)
	}

	return chunks, nil
}
