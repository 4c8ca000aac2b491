package scene

import (
	"github.com/google/uuid"

	"github.com/wendyhou2026-sudo/onecut/internal/script"
	"github.com/wendyhou2026-sudo/onecut/internal/wav"
)

// Status tracks a scene through the generation pipeline.
type Status string

const (
	StatusPending         Status = "pending"
	StatusGeneratingImage Status = "generating_image"
	StatusGeneratingAudio Status = "generating_audio"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Scene is the unit of work and the unit of the final video: one narration
// segment plus its generated image and voice track.
//
// Field ownership is split: the pipeline controller is the sole writer of
// Status and the artifact fields (via ApplyImage/ApplyAudio/SetStatus), the
// editing surface is the sole writer of Text and ImagePrompt (via EditText/
// EditPrompt and bulk RederivePrompts). Keeping the mutators separate keeps
// that discipline checkable.
type Scene struct {
	ID    string
	Index int // 1-based display and processing order
	Text  string

	ImagePrompt  string
	PromptEdited bool // hand-edited prompts survive bulk re-derivation

	ImagePNG      []byte // encoded image artifact
	AudioPCM      []byte // raw 16-bit mono PCM payload
	AudioWAV      []byte // decodable container built from AudioPCM
	AudioDuration float64

	Status Status
}

// New creates a pending scene from a narration segment.
func New(index int, text string, style script.Style) *Scene {
	return &Scene{
		ID:          uuid.NewString(),
		Index:       index,
		Text:        text,
		ImagePrompt: script.BuildPrompt(text, style),
		Status:      StatusPending,
	}
}

// HasImage reports whether the image stage already produced an artifact.
func (s *Scene) HasImage() bool { return len(s.ImagePNG) > 0 }

// HasAudio reports whether the speech stage already produced an artifact.
func (s *Scene) HasAudio() bool { return len(s.AudioPCM) > 0 }

// Exportable reports whether the scene can take part in an export.
func (s *Scene) Exportable() bool { return s.HasImage() && s.HasAudio() }

// SetStatus is a pipeline-only mutator.
func (s *Scene) SetStatus(st Status) { s.Status = st }

// ApplyImage stores a successful image artifact. Pipeline-only.
func (s *Scene) ApplyImage(png []byte) { s.ImagePNG = png }

// ApplyAudio stores a successful speech artifact: the raw payload is kept
// for persistence, wrapped in a WAV container for playback, and the
// duration is estimated from the payload size. Pipeline-only.
func (s *Scene) ApplyAudio(pcm []byte, sampleRate int) {
	s.AudioPCM = pcm
	s.AudioWAV = wav.Encode(pcm, sampleRate)
	s.AudioDuration = wav.EstimateDuration(len(pcm), sampleRate)
}

// EditText updates the narration. Existing artifacts are kept; the caller
// decides whether to clear audio and regenerate.
func (s *Scene) EditText(text string) { s.Text = text }

// EditPrompt records a hand-edited prompt, pinning it against bulk
// re-derivation.
func (s *Scene) EditPrompt(prompt string) {
	s.ImagePrompt = prompt
	s.PromptEdited = true
}

// List is an ordered scene sequence. Indexes are 1-based and stable.
type List []*Scene

// FromSegments builds a fresh pending list from segmented narration text.
// This replaces any previous list wholesale, discarding old artifacts.
func FromSegments(segments []string, style script.Style) List {
	scenes := make(List, len(segments))
	for i, text := range segments {
		scenes[i] = New(i+1, text, style)
	}
	return scenes
}

// ResumeIndex returns the position of the first scene a run should process:
// the first pending or failed one. ok is false when every scene is done.
func (l List) ResumeIndex() (int, bool) {
	for i, s := range l {
		if s.Status != StatusCompleted {
			return i, true
		}
	}
	return 0, false
}

// Durations returns the measured audio duration of every scene (zero where
// audio has not been generated).
func (l List) Durations() []float64 {
	ds := make([]float64, len(l))
	for i, s := range l {
		ds[i] = s.AudioDuration
	}
	return ds
}

// Exportable returns the scenes with both artifacts present, in order.
func (l List) Exportable() List {
	var out List
	for _, s := range l {
		if s.Exportable() {
			out = append(out, s)
		}
	}
	return out
}

// RederivePrompts recomputes every prompt from the scene text and the given
// style, skipping prompts the user hand-edited.
func (l List) RederivePrompts(style script.Style) {
	for _, s := range l {
		if s.PromptEdited {
			continue
		}
		s.ImagePrompt = script.BuildPrompt(s.Text, style)
	}
}
