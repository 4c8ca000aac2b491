package script

import (
	"regexp"
	"strings"
)

// Style is the global prompt-construction input: a shared prefix/suffix pair
// plus an optional recurring character description. It is passed explicitly
// wherever prompts are derived; there is no ambient style state.
type Style struct {
	Prefix    string `yaml:"prefix" json:"prefix"`
	Suffix    string `yaml:"suffix" json:"suffix"`
	Character string `yaml:"character" json:"character"`
}

// PresetStyle is a named prefix/suffix pair the user can pick from.
type PresetStyle struct {
	ID     string
	Label  string
	Prefix string
	Suffix string
}

// PresetStyles mirrors the style table of the editing surface.
var PresetStyles = []PresetStyle{
	{"cinematic", "Cinematic", "Cinematic shot, realistic, high resolution, 4k, ", "dramatic lighting, detailed texture, depth of field, 8k, masterpiece, ray tracing"},
	{"anime", "Anime", "Anime style, Makoto Shinkai style, vibrant colors, high quality, ", "2d, cel shading, clean lines, anime screencap, emotional atmosphere, detailed background"},
	{"3d", "3D (Pixar/Disney)", "3D render, Pixar style, cute, disney animation, ", "unreal engine 5, octane render, soft lighting, volumetric fog, clay material, 8k"},
	{"cyberpunk", "Cyberpunk", "Cyberpunk style, neon lights, futuristic, night city, ", "holographic, mechanical details, glowing, rain, wet street, high contrast, sci-fi"},
	{"watercolor", "Watercolor", "Watercolor painting, artistic, soft edges, pastel colors, ", "paper texture, paint splatter, artistic style, dreamy, illustration"},
	{"photography", "Photography", "Professional photography, shot on Sony A7RIV, 85mm lens, ", "bokeh, sharp focus, natural lighting, studio quality, raw photo"},
	{"sketch", "Sketch", "Black and white sketch, pencil drawing, rough lines, ", "graphite, monochrome, artistic, cross hatching, paper texture"},
	{"oil", "Oil Painting", "Oil painting, classical art style, textured brushstrokes, ", "detailed canvas texture, impasto, rich colors, masterpiece, traditional art"},
}

// FindPresetStyle looks a preset up by id; ok is false for unknown ids.
func FindPresetStyle(id string) (PresetStyle, bool) {
	for _, p := range PresetStyles {
		if p.ID == id {
			return p, true
		}
	}
	return PresetStyle{}, false
}

var spaceRun = regexp.MustCompile(`\s+`)

// BuildPrompt derives an image prompt from a narration segment and the
// global style. Format: [Prefix] [Character], Action: [text]. [Suffix].
// It is a pure function; recomputing it for every scene is how bulk
// re-derivation works when the style changes.
func BuildPrompt(text string, style Style) string {
	characterPart := ""
	if c := strings.TrimSpace(style.Character); c != "" {
		characterPart = c + ","
	}
	raw := style.Prefix + " " + characterPart + " Action: " + text + ". " + style.Suffix
	return strings.TrimSpace(spaceRun.ReplaceAllString(raw, " "))
}
