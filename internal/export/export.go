package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/system"
	"github.com/wendyhou2026-sudo/onecut/internal/timeline"
)

// Options configures one export run.
type Options struct {
	Width, Height int
	FPS           int
	SampleRate    int
	OutPath       string
	// Codec overrides the probed H.264 encoder when non-empty.
	Codec string

	BurnSubtitles bool
	FontPath      string

	BGMPath   string
	BGMVolume float64

	// EndCardURL appends a QR-code end card with EndCardSeconds of silence.
	EndCardURL     string
	EndCardSeconds float64
}

// ProgressFunc receives export progress in [0,1]. The engine guarantees the
// reported fraction never decreases and only reaches 1.0 on success.
type ProgressFunc func(fraction float64)

// Progress milestones: preload fills the first fifth, compositing the rest,
// and 0.99 is held until the encoder confirms the mux.
const (
	progressPreloadStart = 0.05
	progressPreloadEnd   = 0.20
	progressEncodeCap    = 0.99
)

// estFrameBytes approximates the working set of one preload task at 1080p,
// used to size the worker pool against available memory.
const estFrameBytes = 64 << 20

// Engine turns a completed scene list into a narrated video file. Frame
// selection is driven by the audio track: a sample cursor advances per frame
// and the scene shown is whichever one the narration is inside at that
// instant, so picture and voice cannot drift.
type Engine struct {
	Encoder Encoder
	Log     *log.Logger
}

func NewEngine() *Engine {
	return &Engine{Encoder: &FFmpegEncoder{}, Log: log.Default()}
}

// Export renders scenes to opts.OutPath. Scenes missing either artifact are
// excluded; exporting with no eligible scene is an error.
func (e *Engine) Export(ctx context.Context, scenes scene.List, opts Options, progress ProgressFunc) error {
	eligible := scenes.Exportable()
	if len(eligible) == 0 {
		return errors.New("no scenes with both image and audio to export")
	}
	if opts.FPS <= 0 || opts.SampleRate <= 0 || opts.SampleRate%opts.FPS != 0 {
		return fmt.Errorf("sample rate %d is not divisible by fps %d", opts.SampleRate, opts.FPS)
	}

	report := monotone(progress)
	report(progressPreloadStart)

	frames, err := e.preload(ctx, eligible, opts, report)
	if err != nil {
		return err
	}

	durations := eligible.Durations()
	if opts.EndCardURL != "" && opts.EndCardSeconds > 0 {
		card, err := renderEndCard(opts.EndCardURL, opts.Width, opts.Height)
		if err != nil {
			return err
		}
		frames = append(frames, card)
		durations = append(durations, opts.EndCardSeconds)
	}
	report(progressPreloadEnd)

	tail := 0.0
	if opts.EndCardURL != "" {
		tail = opts.EndCardSeconds
	}
	bus, voiceEnd := buildAudioTrack(eligible, opts.SampleRate, tail)

	// Background music is best effort: a file that fails to load or decode
	// must not abort the export.
	if opts.BGMPath != "" && opts.BGMVolume > 0 {
		if err := bus.MixBackgroundFile(opts.BGMPath, opts.BGMVolume, voiceEnd); err != nil {
			e.logf("[export] background music skipped: %v", err)
		}
	}

	audioPath, cleanup, err := writeTempAudio(bus, opts.OutPath)
	if err != nil {
		return err
	}
	defer cleanup()

	codec := opts.Codec
	if codec == "" {
		codec = system.BestH264Encoder()
	}
	sink, err := e.Encoder.Start(ctx, EncodeSpec{
		Width:       opts.Width,
		Height:      opts.Height,
		FPS:         opts.FPS,
		BitrateKbps: bitrateFor(opts.Height),
		Codec:       codec,
		AudioPath:   audioPath,
		OutPath:     opts.OutPath,
	})
	if err != nil {
		return err
	}

	if err := e.composite(ctx, sink, frames, durations, bus.Len(), opts, report); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	report(1.0)
	return nil
}

// preload renders every scene's letterboxed frame up front, with subtitles
// burned in, so the compositing loop only copies pixels. The pool is sized
// against available memory.
func (e *Engine) preload(ctx context.Context, scenes scene.List, opts Options, report ProgressFunc) ([]*image.RGBA, error) {
	var sub *subtitler
	if opts.BurnSubtitles {
		var err error
		sub, err = newSubtitler(opts.FontPath, opts.Width, opts.Height)
		if err != nil {
			e.logf("[export] subtitles disabled: %v", err)
		}
	}

	frames := make([]*image.RGBA, len(scenes))
	var finished atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(system.PreloadWorkers(estFrameBytes))
	for i, sc := range scenes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame, err := renderSceneFrame(sc.ImagePNG, opts.Width, opts.Height)
			if err != nil {
				return fmt.Errorf("scene %d: %w", sc.Index, err)
			}
			if sub != nil {
				sub.Draw(frame, sc.Text)
			}
			frames[i] = frame

			frac := float64(finished.Add(1)) / float64(len(scenes))
			report(progressPreloadStart + (progressPreloadEnd-progressPreloadStart)*frac)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// composite streams frames to the encoder. The sample cursor is the clock:
// each frame consumes sampleRate/fps samples, and the frame shown is the one
// the timeline places at the cursor's elapsed time.
func (e *Engine) composite(ctx context.Context, sink FrameSink, frames []*image.RGBA, durations []float64, totalSamples int, opts Options, report ProgressFunc) error {
	tl := timeline.New(durations, timeline.DefaultSceneDuration)
	samplesPerFrame := opts.SampleRate / opts.FPS
	totalFrames := (totalSamples + samplesPerFrame - 1) / samplesPerFrame

	cursor := 0
	for n := 0; n < totalFrames; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		elapsed := float64(cursor) / float64(opts.SampleRate)
		idx := tl.IndexAt(elapsed)
		if err := sink.WriteFrame(frames[idx].Pix); err != nil {
			return fmt.Errorf("write frame %d: %w", n, err)
		}
		cursor += samplesPerFrame

		frac := float64(n+1) / float64(totalFrames)
		p := progressPreloadEnd + (progressEncodeCap-progressPreloadEnd)*frac
		if p > progressEncodeCap {
			p = progressEncodeCap
		}
		report(p)
	}
	return nil
}

// renderEndCard builds the QR-code closing frame on the usual black canvas.
func renderEndCard(url string, width, height int) (*image.RGBA, error) {
	size := height / 2
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("end card QR: %w", err)
	}
	return renderSceneFrame(png, width, height)
}

// bitrateFor picks the video bitrate by output height.
func bitrateFor(height int) int {
	if height >= 1080 {
		return 5000
	}
	return 2500
}

func writeTempAudio(bus *mixBus, outPath string) (string, func(), error) {
	f, err := os.CreateTemp(filepath.Dir(outPath), ".audio-*.wav")
	if err != nil {
		return "", nil, err
	}
	f.Close()
	if err := bus.WriteWAV(f.Name()); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// monotone wraps a progress callback so reported fractions never go back.
// Safe to call from preload workers.
func monotone(fn ProgressFunc) ProgressFunc {
	var mu sync.Mutex
	last := 0.0
	return func(frac float64) {
		if fn == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if frac < last {
			return
		}
		last = frac
		fn(frac)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}
