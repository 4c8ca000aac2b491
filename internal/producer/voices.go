package producer

// Voice describes a prebuilt TTS voice.
type Voice struct {
	Name        string
	Gender      string
	Style       string
	Description string
}

// DefaultVoice is used when no voice is configured.
const DefaultVoice = "Kore"

// Voices lists the prebuilt Gemini TTS voices the tool exposes.
var Voices = []Voice{
	{"Kore", "female", "balanced", "soothing, warm; fits emotional narration and audiobooks"},
	{"Zephyr", "female", "gentle", "friendly, soft; fits stories and daily vlogs"},
	{"Puck", "male", "standard", "clear, confident; fits tutorials and commentary"},
	{"Charon", "male", "deep", "low, resonant; fits suspense and film recaps"},
	{"Fenrir", "male", "energetic", "powerful, professional; fits business and news"},
}

// FindVoice reports whether name is a known voice.
func FindVoice(name string) (Voice, bool) {
	for _, v := range Voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}
