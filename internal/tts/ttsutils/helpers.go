// Package ttsutils holds file and formatting helpers shared by the
// command-line client and the batch synthesizer.
package ttsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
	extWAV                 = ".wav"
	chunkFileFormat        = "chunk_%04d" + extWAV

	// ChunkFilePattern globs the files named by ChunkFileName; lexical order
	// is chunk order.
	ChunkFilePattern = "chunk_*" + extWAV
)

// Data size constants.
const (
	kilobyte = 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	formatSeconds = "%.1fs"
	formatMinutes = "%dm %.1fs"
	formatHours   = "%dh %dm"
	formatGB      = "%.1f GB"
	formatMB      = "%.1f MB"
	formatKB      = "%.1f KB"
	formatBytes   = "%d B"
)

const errFmtFailedToCreateDir = "failed to create directory %s: %w"

var filenameReplacer = strings.NewReplacer(
	"<", invalidCharReplacement,
	">", invalidCharReplacement,
	":", invalidCharReplacement,
	"\"", invalidCharReplacement,
	"/", invalidCharReplacement,
	"\\", invalidCharReplacement,
	"|", invalidCharReplacement,
	"?", invalidCharReplacement,
	"*", invalidCharReplacement,
	"#", invalidCharReplacement,
)

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	err := os.MkdirAll(path, defaultDirPermissions)
	if err != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, err)
	}

	return nil
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// ChunkFileName names the audio file of the 1-based chunk index.
func ChunkFileName(index int) string {
	return fmt.Sprintf(chunkFileFormat, index)
}

// VoiceFileName derives a WAV file name from a voice key such as
// "en_US/cmu-arctic_low#slt".
func VoiceFileName(voiceKey string) string {
	return SanitizeFilename(voiceKey) + extWAV
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf(formatSeconds, d.Seconds())
	case d < time.Hour:
		minutes := int(d / time.Minute)

		return fmt.Sprintf(formatMinutes, minutes, (d - time.Duration(minutes)*time.Minute).Seconds())
	default:
		hours := int(d / time.Hour)
		minutes := int((d - time.Duration(hours)*time.Hour) / time.Minute)

		return fmt.Sprintf(formatHours, hours, minutes)
	}
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// SanitizeFilename replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	return filenameReplacer.Replace(filename)
}
