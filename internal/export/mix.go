package export

import (
	"fmt"
	"math"
	"os"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/wav"
)

// mixBus assembles the final audio track: narration clips scheduled
// back-to-back, with optional background music looped underneath. Everything
// is 16-bit mono at the session sample rate.
type mixBus struct {
	sampleRate int
	samples    []int16
}

func newMixBus(sampleRate int) *mixBus {
	return &mixBus{sampleRate: sampleRate}
}

// AppendVoice schedules a narration clip immediately after the previous one.
func (m *mixBus) AppendVoice(pcm []byte) {
	m.samples = append(m.samples, wav.Samples(pcm)...)
}

// AppendSilence extends the track, used for the end card tail.
func (m *mixBus) AppendSilence(seconds float64) {
	if seconds <= 0 {
		return
	}
	m.samples = append(m.samples, make([]int16, int(seconds*float64(m.sampleRate)))...)
}

// VoiceEnd returns the current end of the scheduled narration in samples.
func (m *mixBus) VoiceEnd() int { return len(m.samples) }

// MixBackground loops the music under the narration at the given gain. The
// loop stops exactly at the current track end; it never extends the video.
func (m *mixBus) MixBackground(music []int16, musicRate int, gain float64) {
	if len(music) == 0 || len(m.samples) == 0 || gain <= 0 {
		return
	}
	if musicRate != m.sampleRate {
		music = resample(music, musicRate, m.sampleRate)
	}
	for i := range m.samples {
		bg := float64(music[i%len(music)]) * gain
		mixed := float64(m.samples[i]) + bg
		m.samples[i] = clampSample(mixed)
	}
}

// Len returns the total track length in samples.
func (m *mixBus) Len() int { return len(m.samples) }

// Duration returns the track length in seconds.
func (m *mixBus) Duration() float64 {
	return float64(len(m.samples)) / float64(m.sampleRate)
}

// WriteWAV writes the mixed track to path.
func (m *mixBus) WriteWAV(path string) error {
	return os.WriteFile(path, wav.Encode(wav.Bytes(m.samples), m.sampleRate), 0o644)
}

// MixBackgroundFile loads a WAV music file and mixes it under the first
// voiceEnd samples of the track.
func (m *mixBus) MixBackgroundFile(path string, gain float64, voiceEnd int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pcm, rate, err := wav.Decode(data)
	if err != nil {
		return fmt.Errorf("decode background music %s: %w", path, err)
	}
	if voiceEnd > len(m.samples) {
		voiceEnd = len(m.samples)
	}
	narration := &mixBus{sampleRate: m.sampleRate, samples: m.samples[:voiceEnd]}
	narration.MixBackground(wav.Samples(pcm), rate, gain)
	return nil
}

// resample converts between sample rates by linear interpolation. Good
// enough for background music at a fifth of full volume.
func resample(in []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	out := make([]int16, int(float64(len(in))/ratio))
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = clampSample(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}

func clampSample(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// buildAudioTrack schedules the narration: every scene's voice clip
// back-to-back, then the end card tail. The returned voiceEnd marks where
// the narration stops, so background music can be bounded to it.
func buildAudioTrack(scenes scene.List, sampleRate int, tailSeconds float64) (bus *mixBus, voiceEnd int) {
	bus = newMixBus(sampleRate)
	for _, sc := range scenes {
		bus.AppendVoice(sc.AudioPCM)
	}
	voiceEnd = bus.VoiceEnd()
	bus.AppendSilence(tailSeconds)
	return bus, voiceEnd
}
