package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wendyhou2026-sudo/onecut/internal/producer"
	"github.com/wendyhou2026-sudo/onecut/internal/scene"
)

// Stage identifies which generation step a scene is in.
type Stage string

const (
	StageImage Stage = "image"
	StageAudio Stage = "audio"
)

// Status is the overall state of a run.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
)

// Decision is the three-way answer to a generation failure.
type Decision int

const (
	Retry Decision = iota
	Skip
	Stop
)

// Failure is what the decision-maker sees when a scene fails: enough
// context to retry with an edited prompt, skip, or stop the run.
type Failure struct {
	SceneIndex int // 1-based, matches Scene.Index
	Stage      Stage
	Prompt     string
	Err        error
}

// DecisionFunc suspends the run until a decision arrives. It may block
// indefinitely; only an explicit Stop (or run cancellation through ctx)
// ends the wait. A non-empty editedPrompt with Retry replaces the scene's
// image prompt before the re-attempt.
type DecisionFunc func(ctx context.Context, f Failure) (d Decision, editedPrompt string)

// Event is one ordered log entry emitted by the run. Events are strictly
// ordered by scene index and stage because only one scene is generated at
// a time.
type Event struct {
	Time       time.Time
	SceneIndex int // 0 for run-level events
	Stage      Stage
	Level      string // info | success | warning | error
	Message    string
}

// Runner drives the scene list through image and speech generation,
// strictly in index order, one scene at a time. Runs are resumable:
// completed scenes are never redone, and a new run picks up at the first
// pending or failed scene.
type Runner struct {
	Images producer.ImageProducer
	Speech producer.SpeechProducer

	Decide DecisionFunc
	Events func(Event)

	Voice      string
	Seed       int
	SampleRate int // PCM rate of the speech producer

	// Delay throttles producer request rate between scenes.
	Delay time.Duration

	mu      sync.Mutex
	running bool
	status  Status
	cancel  atomic.Bool
}

// NewRunner wires a runner with the standard throttle delay.
func NewRunner(images producer.ImageProducer, speech producer.SpeechProducer, decide DecisionFunc) *Runner {
	return &Runner{
		Images:     images,
		Speech:     speech,
		Decide:     decide,
		Voice:      producer.DefaultVoice,
		SampleRate: producer.PCMSampleRate,
		Delay:      500 * time.Millisecond,
		status:     StatusIdle,
	}
}

// Status returns the state of the last (or current) run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Cancel requests a cooperative stop. The loop checks the flag at the top
// of each scene iteration and after the inter-scene delay; it never aborts
// mid-request.
func (r *Runner) Cancel() { r.cancel.Store(true) }

// Run processes the list from its resume point. Starting a run while one
// is active is a no-op. The error is non-nil only for ctx cancellation;
// producer failures are routed through the decision protocol instead.
func (r *Runner) Run(ctx context.Context, scenes scene.List) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		log.Printf("[pipeline] run already active, ignoring start")
		return nil
	}
	r.running = true
	r.status = StatusRunning
	r.mu.Unlock()
	r.cancel.Store(false)

	final := StatusCompleted
	defer func() {
		r.mu.Lock()
		r.running = false
		r.status = final
		r.mu.Unlock()
	}()

	start, ok := scenes.ResumeIndex()
	if !ok {
		r.emit(0, "", "info", "nothing to do: all scenes completed")
		return nil
	}
	r.emit(0, "", "info", "run started")

	for i := start; i < len(scenes); i++ {
		if r.cancel.Load() {
			final = StatusPaused
			r.emit(0, "", "warning", "run cancelled")
			return nil
		}

		sc := scenes[i]
		if sc.Status == scene.StatusCompleted {
			continue
		}

		for {
			stage, err := r.process(ctx, sc)
			if err == nil {
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				sc.SetStatus(scene.StatusFailed)
				final = StatusPaused
				return err
			}

			sc.SetStatus(scene.StatusFailed)
			r.emit(sc.Index, stage, "error", err.Error())

			d, editedPrompt := r.Decide(ctx, Failure{
				SceneIndex: sc.Index,
				Stage:      stage,
				Prompt:     sc.ImagePrompt,
				Err:        err,
			})
			switch d {
			case Retry:
				if editedPrompt != "" {
					sc.EditPrompt(editedPrompt)
				}
				r.emit(sc.Index, stage, "info", "retrying")
				continue
			case Skip:
				r.emit(sc.Index, stage, "warning", "scene skipped")
			case Stop:
				r.emit(sc.Index, stage, "warning", "run stopped")
				final = StatusPaused
				return nil
			}
			break
		}

		if sc.Status != scene.StatusFailed {
			sc.SetStatus(scene.StatusCompleted)
			r.emit(sc.Index, "", "success", "scene completed")
		}

		if err := r.sleep(ctx); err != nil {
			final = StatusPaused
			return err
		}
		if r.cancel.Load() {
			final = StatusPaused
			r.emit(0, "", "warning", "run cancelled")
			return nil
		}
	}

	r.emit(0, "", "success", "all scenes generated")
	return nil
}

// process runs the remaining stages of one scene. A stage whose artifact
// already exists is never redone, so a retry after a speech failure keeps
// the finished image.
func (r *Runner) process(ctx context.Context, sc *scene.Scene) (Stage, error) {
	if !sc.HasImage() {
		sc.SetStatus(scene.StatusGeneratingImage)
		r.emit(sc.Index, StageImage, "info", "generating image")
		png, err := r.Images.GenerateImage(ctx, sc.ImagePrompt, r.Seed)
		if err != nil {
			return StageImage, err
		}
		sc.ApplyImage(png)
	}

	if !sc.HasAudio() {
		sc.SetStatus(scene.StatusGeneratingAudio)
		r.emit(sc.Index, StageAudio, "info", "generating speech")
		pcm, err := r.Speech.GenerateSpeech(ctx, sc.Text, r.Voice)
		if err != nil {
			return StageAudio, err
		}
		sc.ApplyAudio(pcm, r.SampleRate)
	}
	return "", nil
}

func (r *Runner) sleep(ctx context.Context) error {
	if r.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(r.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) emit(index int, stage Stage, level, msg string) {
	if r.Events != nil {
		r.Events(Event{Time: time.Now(), SceneIndex: index, Stage: stage, Level: level, Message: msg})
	}
}
