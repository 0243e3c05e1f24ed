package tts

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Mimic3 HTTP query parameters.
const (
	paramVoice       = "voice"
	paramLengthScale = "lengthScale"
	paramNoiseScale  = "noiseScale"
	paramNoiseW      = "noiseW"
	paramSSML        = "ssml"
)

// Mimic3 CLI flags.
const (
	flagVoice         = "--voice"
	flagLengthScale   = "--length-scale"
	flagNoiseScale    = "--noise-scale"
	flagNoiseW        = "--noise-w"
	flagSSML          = "--ssml"
	flagDeterministic = "--deterministic"
	flagStdout        = "--stdout"
	flagVoices        = "--voices"
)

// QueryValues serializes r for the mimic3-server /api/tts endpoint. Unset
// prosody fields are left out.
func (r *SynthesisRequest) QueryValues() url.Values {
	values := url.Values{}
	values.Set(paramVoice, r.VoiceKey())

	setFloat := func(key string, v *float64) {
		if v != nil {
			values.Set(key, formatFloat(*v))
		}
	}

	setFloat(paramLengthScale, r.prosody.LengthScale)
	setFloat(paramNoiseScale, r.prosody.NoiseScale)
	setFloat(paramNoiseW, r.prosody.NoiseW)

	if r.ssml {
		values.Set(paramSSML, "true")
	}

	return values
}

// CommandArgs serializes r as mimic3 command line arguments. The text itself
// travels on stdin. Unset prosody fields are left out.
func (r *SynthesisRequest) CommandArgs() []string {
	args := []string{flagVoice, r.VoiceKey()}

	appendFloat := func(flag string, v *float64) {
		if v != nil {
			args = append(args, flag, formatFloat(*v))
		}
	}

	appendFloat(flagLengthScale, r.prosody.LengthScale)
	appendFloat(flagNoiseScale, r.prosody.NoiseScale)
	appendFloat(flagNoiseW, r.prosody.NoiseW)

	if r.ssml {
		args = append(args, flagSSML)
	}

	if r.deterministic {
		args = append(args, flagDeterministic)
	}

	return append(args, flagStdout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// catalogEntry is one element of the mimic3-server /api/voices response.
type catalogEntry struct {
	Key         string   `json:"key"`
	Language    string   `json:"language"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Speakers    []string `json:"speakers"`
}

// decodeCatalog parses the JSON voice catalog. Entries whose key is not a
// voice id are skipped.
func decodeCatalog(data []byte) ([]VoiceInfo, error) {
	var entries []catalogEntry

	err := json.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voice catalog: %w", err)
	}

	infos := make([]VoiceInfo, 0, len(entries))

	for _, entry := range entries {
		spec, err := ParseVoice(entry.Key)
		if err != nil {
			continue
		}

		infos = append(infos, VoiceInfo{
			Voice:       spec,
			Language:    entry.Language,
			Speakers:    entry.Speakers,
			Description: entry.Description,
		})
	}

	return infos, nil
}

// decodeCatalogLines parses `mimic3 --voices` output: a header line followed
// by tab-separated key, language, name and description columns.
func decodeCatalogLines(data []byte) []VoiceInfo {
	var infos []VoiceInfo

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")

		spec, err := ParseVoice(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}

		info := VoiceInfo{Voice: spec}
		if len(fields) > 1 {
			info.Language = strings.TrimSpace(fields[1])
		}

		if len(fields) > 3 {
			info.Description = strings.TrimSpace(fields[3])
		}

		infos = append(infos, info)
	}

	return infos
}
