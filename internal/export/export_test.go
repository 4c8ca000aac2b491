package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/script"
	"github.com/wendyhou2026-sudo/onecut/internal/wav"
)

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// completedScene builds an exportable scene with the given audio length.
func completedScene(t *testing.T, index int, c color.RGBA, seconds float64, sampleRate int) *scene.Scene {
	t.Helper()
	s := scene.New(index, "text", script.Style{})
	s.ApplyImage(solidPNG(t, 64, 36, c))
	s.ApplyAudio(make([]byte, int(seconds*float64(sampleRate))*2), sampleRate)
	s.SetStatus(scene.StatusCompleted)
	return s
}

// memorySink records every frame's first pixel so tests can check which
// scene was shown when.
type memorySink struct {
	firstBytes []byte
	closed     bool
}

func (m *memorySink) WriteFrame(pix []byte) error {
	m.firstBytes = append(m.firstBytes, pix[0])
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

type memoryEncoder struct {
	sink *memorySink
	spec EncodeSpec
}

func (m *memoryEncoder) Start(_ context.Context, spec EncodeSpec) (FrameSink, error) {
	m.spec = spec
	return m.sink, nil
}

func TestExportFrameSelectionFollowsAudioClock(t *testing.T) {
	const rate = 24000
	scenes := scene.List{
		completedScene(t, 1, color.RGBA{R: 255}, 1.0, rate),
		completedScene(t, 2, color.RGBA{B: 255}, 0.5, rate),
	}

	enc := &memoryEncoder{sink: &memorySink{}}
	e := &Engine{Encoder: enc}

	var progress []float64
	opts := Options{
		Width: 64, Height: 36, FPS: 30, SampleRate: rate,
		OutPath: filepath.Join(t.TempDir(), "out.mp4"),
		Codec:   "libx264",
	}
	err := e.Export(context.Background(), scenes, opts, func(f float64) {
		progress = append(progress, f)
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// 1.5s at 30fps is 45 frames: 30 of scene 1, then 15 of scene 2.
	frames := enc.sink.firstBytes
	if len(frames) != 45 {
		t.Fatalf("wrote %d frames, want 45", len(frames))
	}
	for i, b := range frames {
		want := byte(255) // scene 1 is solid red
		if i >= 30 {
			want = 0 // scene 2 is solid blue, red channel zero
		}
		if b != want {
			t.Fatalf("frame %d shows wrong scene (red=%d)", i, b)
		}
	}

	if !enc.sink.closed {
		t.Error("encoder sink not closed")
	}
	if enc.spec.BitrateKbps != 2500 {
		t.Errorf("bitrate = %d, want 2500 below 1080p", enc.spec.BitrateKbps)
	}

	// Progress is monotone and finishes at exactly 1.0.
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %f after %f", progress[i], progress[i-1])
		}
	}
	if progress[len(progress)-1] != 1.0 {
		t.Errorf("final progress = %f, want 1.0", progress[len(progress)-1])
	}
}

func TestExportRejectsEmptySceneList(t *testing.T) {
	e := &Engine{Encoder: &memoryEncoder{sink: &memorySink{}}}
	scenes := scene.List{scene.New(1, "no artifacts", script.Style{})}
	opts := Options{Width: 64, Height: 36, FPS: 30, SampleRate: 24000,
		OutPath: filepath.Join(t.TempDir(), "out.mp4")}
	if err := e.Export(context.Background(), scenes, opts, nil); err == nil {
		t.Error("export with no eligible scenes should fail")
	}
}

func TestExportSkipsIncompleteScenes(t *testing.T) {
	const rate = 24000
	scenes := scene.List{
		completedScene(t, 1, color.RGBA{R: 255}, 0.5, rate),
		scene.New(2, "image failed", script.Style{}),
	}

	enc := &memoryEncoder{sink: &memorySink{}}
	e := &Engine{Encoder: enc}
	opts := Options{Width: 64, Height: 36, FPS: 30, SampleRate: rate,
		OutPath: filepath.Join(t.TempDir(), "out.mp4"), Codec: "libx264"}
	if err := e.Export(context.Background(), scenes, opts, nil); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := len(enc.sink.firstBytes); got != 15 {
		t.Errorf("wrote %d frames, want 15 (incomplete scene excluded)", got)
	}
}

func TestExportEndCardExtendsVideo(t *testing.T) {
	const rate = 24000
	scenes := scene.List{completedScene(t, 1, color.RGBA{R: 255}, 1.0, rate)}

	enc := &memoryEncoder{sink: &memorySink{}}
	e := &Engine{Encoder: enc}
	opts := Options{
		Width: 64, Height: 36, FPS: 30, SampleRate: rate,
		OutPath:        filepath.Join(t.TempDir(), "out.mp4"),
		Codec:          "libx264",
		EndCardURL:     "https://example.com/subscribe",
		EndCardSeconds: 1.0,
	}
	if err := e.Export(context.Background(), scenes, opts, nil); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := len(enc.sink.firstBytes); got != 60 {
		t.Errorf("wrote %d frames, want 60 with 1s end card", got)
	}
}

// stereoWAV builds a WAV the mixer cannot decode: same layout as the
// project codec but with the channel count patched to 2.
func stereoWAV(t *testing.T, path string) {
	t.Helper()
	data := wav.Encode(make([]byte, 4800), 24000)
	data[22] = 2
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExportContinuesWhenBGMIsUnusable(t *testing.T) {
	const rate = 24000
	scenes := scene.List{completedScene(t, 1, color.RGBA{R: 255}, 1.0, rate)}

	dir := t.TempDir()
	bgm := filepath.Join(dir, "music.wav")
	stereoWAV(t, bgm)

	enc := &memoryEncoder{sink: &memorySink{}}
	e := &Engine{Encoder: enc, Log: log.New(io.Discard, "", 0)}
	opts := Options{
		Width: 64, Height: 36, FPS: 30, SampleRate: rate,
		OutPath:   filepath.Join(dir, "out.mp4"),
		Codec:     "libx264",
		BGMPath:   bgm,
		BGMVolume: 0.2,
	}
	if err := e.Export(context.Background(), scenes, opts, nil); err != nil {
		t.Fatalf("export must not fail on unusable background music: %v", err)
	}
	if got := len(enc.sink.firstBytes); got != 30 {
		t.Errorf("wrote %d frames, want 30", got)
	}
}

func TestExportContinuesWhenBGMIsMissing(t *testing.T) {
	const rate = 24000
	scenes := scene.List{completedScene(t, 1, color.RGBA{R: 255}, 0.5, rate)}

	enc := &memoryEncoder{sink: &memorySink{}}
	e := &Engine{Encoder: enc, Log: log.New(io.Discard, "", 0)}
	opts := Options{
		Width: 64, Height: 36, FPS: 30, SampleRate: rate,
		OutPath:   filepath.Join(t.TempDir(), "out.mp4"),
		Codec:     "libx264",
		BGMPath:   filepath.Join(t.TempDir(), "absent.wav"),
		BGMVolume: 0.2,
	}
	if err := e.Export(context.Background(), scenes, opts, nil); err != nil {
		t.Fatalf("export must not fail on a missing music file: %v", err)
	}
	if got := len(enc.sink.firstBytes); got != 15 {
		t.Errorf("wrote %d frames, want 15", got)
	}
}

func TestMixBackgroundFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "music.wav")
	if err := os.WriteFile(path, wav.Encode(wav.Bytes([]int16{1000, -1000}), 24000), 0o644); err != nil {
		t.Fatal(err)
	}

	bus := newMixBus(24000)
	bus.AppendVoice(wav.Bytes(make([]int16, 4)))
	if err := bus.MixBackgroundFile(path, 0.5, bus.VoiceEnd()); err != nil {
		t.Fatalf("MixBackgroundFile: %v", err)
	}
	want := []int16{500, -500, 500, -500}
	for i, s := range bus.samples {
		if s != want[i] {
			t.Errorf("sample %d = %d, want %d", i, s, want[i])
		}
	}

	stereo := filepath.Join(dir, "stereo.wav")
	stereoWAV(t, stereo)
	if err := bus.MixBackgroundFile(stereo, 0.5, bus.VoiceEnd()); err == nil {
		t.Error("stereo music should surface a decode error")
	}
}

func TestExportRejectsIndivisibleFrameRate(t *testing.T) {
	const rate = 24000
	scenes := scene.List{completedScene(t, 1, color.RGBA{R: 255}, 1.0, rate)}
	e := &Engine{Encoder: &memoryEncoder{sink: &memorySink{}}}
	opts := Options{Width: 64, Height: 36, FPS: 7, SampleRate: rate,
		OutPath: filepath.Join(t.TempDir(), "out.mp4")}
	if err := e.Export(context.Background(), scenes, opts, nil); err == nil {
		t.Error("fps that does not divide the sample rate should be rejected")
	}
}

func TestLetterboxPreservesAspectRatio(t *testing.T) {
	// 100x100 source into 200x100: pillarboxed with 50px bars.
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 255, 255
	}
	dst := letterbox(src, 200, 100)

	if r, _, _, _ := dst.At(10, 50).RGBA(); r != 0 {
		t.Error("left bar should be black")
	}
	if r, _, _, _ := dst.At(100, 50).RGBA(); r == 0 {
		t.Error("center should show the source image")
	}
	if r, _, _, _ := dst.At(190, 50).RGBA(); r != 0 {
		t.Error("right bar should be black")
	}
}

func TestMixBusSchedulesVoicesBackToBack(t *testing.T) {
	bus := newMixBus(24000)
	bus.AppendVoice(wav.Bytes([]int16{100, 100}))
	bus.AppendVoice(wav.Bytes([]int16{-200, -200}))

	if bus.Len() != 4 {
		t.Fatalf("len = %d, want 4", bus.Len())
	}
	want := []int16{100, 100, -200, -200}
	for i, s := range bus.samples {
		if s != want[i] {
			t.Errorf("sample %d = %d, want %d", i, s, want[i])
		}
	}
}

func TestMixBackgroundLoopsAndStopsAtVoiceEnd(t *testing.T) {
	bus := newMixBus(24000)
	bus.AppendVoice(wav.Bytes(make([]int16, 6)))
	voiceEnd := bus.VoiceEnd()
	bus.AppendSilence(6.0 / 24000.0)

	// Two-sample music loops three times across the six-sample narration.
	narration := &mixBus{sampleRate: 24000, samples: bus.samples[:voiceEnd]}
	narration.MixBackground([]int16{1000, -1000}, 24000, 0.5)

	for i := 0; i < 6; i++ {
		want := int16(500)
		if i%2 == 1 {
			want = -500
		}
		if bus.samples[i] != want {
			t.Errorf("sample %d = %d, want %d", i, bus.samples[i], want)
		}
	}
	for i := 6; i < bus.Len(); i++ {
		if bus.samples[i] != 0 {
			t.Errorf("music bled past the narration at sample %d", i)
		}
	}
}

func TestMixBackgroundClampsOverflow(t *testing.T) {
	bus := newMixBus(24000)
	bus.AppendVoice(wav.Bytes([]int16{32000, -32000}))
	bus.MixBackground([]int16{32000, -32000}, 24000, 1.0)

	if bus.samples[0] != 32767 || bus.samples[1] != -32768 {
		t.Errorf("overflow not clamped: %v", bus.samples)
	}
}

func TestResampleHalvesRate(t *testing.T) {
	in := []int16{0, 100, 200, 300}
	out := resample(in, 48000, 24000)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0] != 0 || out[1] != 200 {
		t.Errorf("resampled = %v, want [0 200]", out)
	}
}
