package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/book-expert/mimic3-tts/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_ParseWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80}
	wav := audio.EncodeWAV(pcm, audio.DefaultFormat())

	require.Len(t, wav, 44+len(pcm))

	info, err := audio.ParseWAV(wav)
	require.NoError(t, err)

	assert.Equal(t, audio.DefaultFormat(), info.Format)
	assert.Equal(t, 44, info.DataOffset)
	assert.Equal(t, pcm, wav[info.DataOffset:info.DataOffset+info.DataLength])
}

func TestParseWAV_SkipsExtraChunks(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 2, 3, 4}
	wav := audio.EncodeWAV(pcm, audio.Format{SampleRate: 16000, Channels: 1, SampleWidth: 2})

	// Insert an odd-sized LIST chunk between "fmt " and "data".
	extra := []byte("LIST")
	extra = binary.LittleEndian.AppendUint32(extra, 3)
	extra = append(extra, 'a', 'b', 'c', 0)

	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, extra...)
	spliced = append(spliced, wav[36:]...)

	info, err := audio.ParseWAV(spliced)
	require.NoError(t, err)

	assert.Equal(t, 16000, info.Format.SampleRate)
	assert.Equal(t, audio.ENCODING_PCM_S16LE, info.Format.Encoding)
	assert.Equal(t, pcm, spliced[info.DataOffset:info.DataOffset+info.DataLength])
}

func TestParseWAV_ClampsPlaceholderSize(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV([]byte{1, 2, 3, 4}, audio.DefaultFormat())
	binary.LittleEndian.PutUint32(wav[40:44], 0xffffffff)

	info, err := audio.ParseWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 4, info.DataLength)
}

func TestParseWAV_Errors(t *testing.T) {
	t.Parallel()

	valid := audio.EncodeWAV([]byte{1, 2}, audio.DefaultFormat())

	floatTag := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(floatTag[20:22], 3)

	noData := append([]byte{}, valid[:36]...)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: audio.ErrTruncatedWAV},
		{name: "not riff", data: []byte("ID3\x04this is an mp3 file"), wantErr: audio.ErrNotWAV},
		{name: "float samples", data: floatTag, wantErr: audio.ErrUnsupportedWAV},
		{name: "no data chunk", data: noData, wantErr: audio.ErrNoPCMData},
		{name: "truncated fmt", data: valid[:30], wantErr: audio.ErrTruncatedWAV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := audio.ParseWAV(tt.data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFormat_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, audio.DefaultFormat().Validate())

	bad := []audio.Format{
		{SampleRate: 0, Channels: 1, SampleWidth: 2},
		{SampleRate: audio.MAX_SAMPLE_RATE + 1, Channels: 1, SampleWidth: 2},
		{SampleRate: 22050, Channels: 0, SampleWidth: 2},
		{SampleRate: 22050, Channels: 1, SampleWidth: 5},
	}
	for _, format := range bad {
		require.ErrorIs(t, format.Validate(), audio.ErrInvalidFormat)
	}
}

func TestFormat_Duration(t *testing.T) {
	t.Parallel()

	format := audio.DefaultFormat()

	assert.Equal(t, 44100, format.BytesPerSecond())
	assert.Equal(t, time.Second, format.Duration(44100))
	assert.Equal(t, 500*time.Millisecond, format.Duration(22050))
	assert.Equal(t, time.Duration(0), audio.Format{}.Duration(100))
}

func TestJoinWAV(t *testing.T) {
	t.Parallel()

	first := audio.EncodeWAV([]byte{1, 0, 2, 0}, audio.DefaultFormat())
	second := audio.EncodeWAV([]byte{3, 0}, audio.DefaultFormat())

	joined, err := audio.JoinWAV(first, second)
	require.NoError(t, err)

	info, err := audio.ParseWAV(joined)
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultFormat(), info.Format)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, joined[info.DataOffset:])

	empty, err := audio.JoinWAV()
	require.NoError(t, err)

	info, err = audio.ParseWAV(empty)
	require.NoError(t, err)
	assert.Zero(t, info.DataLength)
}

func TestJoinWAV_Errors(t *testing.T) {
	t.Parallel()

	mono := audio.EncodeWAV([]byte{1, 0}, audio.DefaultFormat())
	stereo := audio.EncodeWAV([]byte{1, 0, 2, 0}, audio.Format{SampleRate: 22050, Channels: 2, SampleWidth: 2, Encoding: audio.ENCODING_PCM_S16LE})

	_, err := audio.JoinWAV(mono, stereo)
	require.ErrorIs(t, err, audio.ErrFormatMismatch)

	_, err = audio.JoinWAV(mono, []byte("junk"))
	require.ErrorIs(t, err, audio.ErrTruncatedWAV)
}
