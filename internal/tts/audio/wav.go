// Package audio describes synthesized audio: WAV header parsing, PCM
// wrapping and format validation.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Mimic3 output defaults.
const (
	DEFAULT_SAMPLE_RATE  = 22050
	DEFAULT_SAMPLE_WIDTH = 2 // bytes per sample
	DEFAULT_CHANNELS     = 1
)

// Constants for quality validation limits.
const (
	MAX_SAMPLE_RATE = 192000
	MAX_CHANNELS    = 8
)

const (
	ENCODING_PCM_S16LE = "pcm_s16le"
	ENCODING_PCM_U8    = "pcm_u8"
	ENCODING_PCM_S24LE = "pcm_s24le"
	ENCODING_PCM_S32LE = "pcm_s32le"

	CONTENT_TYPE_WAV = "audio/wav"
)

const (
	riffHeaderSize = 12
	chunkHeaderLen = 8
	fmtChunkMinLen = 16
	wavHeaderSize  = 44
	formatTagPCM   = 1
)

// Constants for error messages and formats.
const (
	ERR_FMT_SAMPLE_RATE_RANGE  = "%w: sample rate must be between 1 and %d Hz, got %d"
	ERR_FMT_SAMPLE_WIDTH_VALUE = "%w: sample width must be 1, 2, 3 or 4 bytes, got %d"
	ERR_FMT_CHANNELS_RANGE     = "%w: channels must be between 1 and %d, got %d"
)

// Common errors for the audio package.
var (
	ErrInvalidFormat  = errors.New("invalid audio format")
	ErrNotWAV         = errors.New("not a RIFF/WAVE payload")
	ErrTruncatedWAV   = errors.New("truncated WAV payload")
	ErrNoPCMData      = errors.New("WAV payload has no data chunk")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
	ErrFormatMismatch = errors.New("WAV payloads have different formats")
)

// Format is the metadata of an audio payload.
type Format struct {
	Encoding    string `json:"encoding"`
	SampleRate  int    `json:"sampleRate"`
	Channels    int    `json:"channels"`
	SampleWidth int    `json:"sampleWidth"`
}

// DefaultFormat is the format Mimic3 voices produce.
func DefaultFormat() Format {
	return Format{
		Encoding:    ENCODING_PCM_S16LE,
		SampleRate:  DEFAULT_SAMPLE_RATE,
		Channels:    DEFAULT_CHANNELS,
		SampleWidth: DEFAULT_SAMPLE_WIDTH,
	}
}

// Validate checks that the format is within reasonable bounds.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidFormat, MAX_SAMPLE_RATE, f.SampleRate)
	}

	if encodingForWidth(f.SampleWidth) == "" {
		return fmt.Errorf(ERR_FMT_SAMPLE_WIDTH_VALUE, ErrInvalidFormat, f.SampleWidth)
	}

	if f.Channels <= 0 || f.Channels > MAX_CHANNELS {
		return fmt.Errorf(ERR_FMT_CHANNELS_RANGE, ErrInvalidFormat, MAX_CHANNELS, f.Channels)
	}

	return nil
}

// BytesPerSecond is the PCM data rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.SampleWidth
}

// Duration returns the play time of pcmBytes bytes of PCM data.
func (f Format) Duration(pcmBytes int) time.Duration {
	rate := f.BytesPerSecond()
	if rate <= 0 {
		return 0
	}

	return time.Duration(int64(pcmBytes) * int64(time.Second) / int64(rate))
}

// Info is the parsed header of a WAV payload.
type Info struct {
	Format Format
	// DataOffset and DataLength locate the PCM samples in the payload.
	DataOffset int
	DataLength int
}

// ParseWAV reads the RIFF header of data, walking chunks until it finds both
// "fmt " and "data". Only integer PCM is accepted.
func ParseWAV(data []byte) (Info, error) {
	if len(data) < riffHeaderSize {
		return Info{}, ErrTruncatedWAV
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var (
		info    Info
		haveFmt bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderLen <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderLen

		switch id {
		case "fmt ":
			if size < fmtChunkMinLen || body+size > len(data) {
				return Info{}, ErrTruncatedWAV
			}

			format, err := parseFmtChunk(data[body : body+size])
			if err != nil {
				return Info{}, err
			}

			info.Format = format
			haveFmt = true
		case "data":
			if !haveFmt {
				return Info{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}

			// Streamed WAVs may carry a placeholder size; clamp to what arrived.
			info.DataOffset = body
			info.DataLength = min(size, len(data)-body)

			return info, nil
		}

		// Chunks are word aligned.
		offset = body + size + size%2
	}

	if !haveFmt {
		return Info{}, ErrTruncatedWAV
	}

	return Info{}, ErrNoPCMData
}

func parseFmtChunk(chunk []byte) (Format, error) {
	tag := binary.LittleEndian.Uint16(chunk[0:2])
	if tag != formatTagPCM {
		return Format{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, tag)
	}

	bits := int(binary.LittleEndian.Uint16(chunk[14:16]))

	format := Format{
		Channels:    int(binary.LittleEndian.Uint16(chunk[2:4])),
		SampleRate:  int(binary.LittleEndian.Uint32(chunk[4:8])),
		SampleWidth: bits / 8,
	}
	format.Encoding = encodingForWidth(format.SampleWidth)

	err := format.Validate()
	if err != nil {
		return Format{}, err
	}

	return format, nil
}

func encodingForWidth(width int) string {
	switch width {
	case 1:
		return ENCODING_PCM_U8
	case 2:
		return ENCODING_PCM_S16LE
	case 3:
		return ENCODING_PCM_S24LE
	case 4:
		return ENCODING_PCM_S32LE
	default:
		return ""
	}
}

// EncodeWAV wraps raw PCM samples in a 44-byte canonical WAV header.
func EncodeWAV(pcm []byte, format Format) []byte {
	dataLen := len(pcm)

	buf := &bytes.Buffer{}
	buf.Grow(wavHeaderSize + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(wavHeaderSize-8+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fmtChunkMinLen))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatTagPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(format.BytesPerSecond()))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.Channels*format.SampleWidth))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.SampleWidth*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// JoinWAV concatenates the PCM data of WAV payloads sharing one format into a
// single WAV. With no payloads it returns an empty WAV in DefaultFormat.
func JoinWAV(payloads ...[]byte) ([]byte, error) {
	format := DefaultFormat()

	var pcm bytes.Buffer

	for i, payload := range payloads {
		info, err := ParseWAV(payload)
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}

		if i == 0 {
			format = info.Format
		} else if info.Format != format {
			return nil, fmt.Errorf("%w: payload %d is %+v, expected %+v", ErrFormatMismatch, i, info.Format, format)
		}

		pcm.Write(payload[info.DataOffset : info.DataOffset+info.DataLength])
	}

	return EncodeWAV(pcm.Bytes(), format), nil
}
