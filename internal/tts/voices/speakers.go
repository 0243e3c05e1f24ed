package voices

// Speaker is a named speaker of a multi-speaker voice.
type Speaker struct {
	Voice  string
	Name   string
	Gender string
}

// knownSpeakers records speaker genders for the voices hosts pick most often.
// The engine catalog stays authoritative for which speakers exist.
var knownSpeakers = map[string][]Speaker{
	"en_US/cmu-arctic_low": {
		{Voice: "en_US/cmu-arctic_low", Name: "slt", Gender: "female"},
		{Voice: "en_US/cmu-arctic_low", Name: "awb", Gender: "male"},
		{Voice: "en_US/cmu-arctic_low", Name: "rms", Gender: "male"},
		{Voice: "en_US/cmu-arctic_low", Name: "ksp", Gender: "male"},
		{Voice: "en_US/cmu-arctic_low", Name: "clb", Gender: "female"},
		{Voice: "en_US/cmu-arctic_low", Name: "aew", Gender: "male"},
		{Voice: "en_US/cmu-arctic_low", Name: "bdl", Gender: "male"},
		{Voice: "en_US/cmu-arctic_low", Name: "lnh", Gender: "female"},
	},
	"en_US/hifi-tts_low": {
		{Voice: "en_US/hifi-tts_low", Name: "9017", Gender: "male"},
		{Voice: "en_US/hifi-tts_low", Name: "6097", Gender: "male"},
		{Voice: "en_US/hifi-tts_low", Name: "92", Gender: "female"},
	},
	"en_US/ljspeech_low": {
		{Voice: "en_US/ljspeech_low", Name: "default", Gender: "female"},
	},
	"en_US/m-ailabs_low": {
		{Voice: "en_US/m-ailabs_low", Name: "elliot_miller", Gender: "male"},
		{Voice: "en_US/m-ailabs_low", Name: "judy_bieber", Gender: "female"},
		{Voice: "en_US/m-ailabs_low", Name: "mary_ann", Gender: "female"},
	},
	"en_UK/apope_low": {
		{Voice: "en_UK/apope_low", Name: "default", Gender: "male"},
	},
	"de_DE/thorsten-emotion_low": {
		{Voice: "de_DE/thorsten-emotion_low", Name: "amused"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "angry"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "disgusted"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "drunk"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "neutral"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "sleepy"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "surprised"},
		{Voice: "de_DE/thorsten-emotion_low", Name: "whisper"},
	},
	"es_ES/m-ailabs_low": {
		{Voice: "es_ES/m-ailabs_low", Name: "tux"},
		{Voice: "es_ES/m-ailabs_low", Name: "victor_villarraza"},
		{Voice: "es_ES/m-ailabs_low", Name: "karen_savage"},
	},
	"fr_FR/m-ailabs_low": {
		{Voice: "fr_FR/m-ailabs_low", Name: "ezwa"},
		{Voice: "fr_FR/m-ailabs_low", Name: "nadine_eckert_boulet"},
		{Voice: "fr_FR/m-ailabs_low", Name: "bernard"},
		{Voice: "fr_FR/m-ailabs_low", Name: "zeckou"},
		{Voice: "fr_FR/m-ailabs_low", Name: "gilles_g_le_blanc"},
	},
}

// SpeakersByGender returns the speakers of voice with the given gender, in
// table order.
func SpeakersByGender(voice, gender string) []Speaker {
	var out []Speaker

	for _, s := range knownSpeakers[voice] {
		if s.Gender == gender {
			out = append(out, s)
		}
	}

	return out
}
