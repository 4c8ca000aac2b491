package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wendyhou2026-sudo/onecut/internal/config"
	"github.com/wendyhou2026-sudo/onecut/internal/export"
	"github.com/wendyhou2026-sudo/onecut/internal/pipeline"
	"github.com/wendyhou2026-sudo/onecut/internal/producer"
	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/script"
	"github.com/wendyhou2026-sudo/onecut/internal/source"
	"github.com/wendyhou2026-sudo/onecut/internal/store"
	"github.com/wendyhou2026-sudo/onecut/internal/subtitle"
	"github.com/wendyhou2026-sudo/onecut/internal/system"
)

func main() {
	godotenv.Load()

	configPtr := flag.String("config", "", "path to YAML config (optional)")
	inputPtr := flag.String("input", "", "script file, .txt or .pdf (default: latest in the script dir)")
	outPtr := flag.String("out", "", "output video path (default: generated under the output dir)")
	resolutionPtr := flag.String("resolution", "", "720p or 1080p")
	fpsPtr := flag.Int("fps", 0, "frame rate: 24, 30 or 60")
	stylePtr := flag.String("style", "", "visual style preset: "+presetNames())
	voicePtr := flag.String("voice", "", "narration voice: "+voiceNames())
	seedPtr := flag.Int("seed", -1, "image generation seed")
	limitPtr := flag.Int("limit", 0, "max characters per scene")
	bgmPtr := flag.String("bgm", "", "background music WAV (default: latest .wav in the music dir)")
	subtitlesPtr := flag.Bool("subtitles", true, "burn subtitles into the video")
	srtPtr := flag.Bool("srt", true, "write a sibling .srt file")
	rewritePtr := flag.Bool("rewrite", false, "rewrite the script for narration before segmenting")
	smartPromptsPtr := flag.Bool("smart-prompts", false, "rewrite image prompts with the text model")
	resumePtr := flag.String("resume", "", "resume from a saved project file")
	onErrorPtr := flag.String("on-error", "", "headless failure policy: retry:N, skip or stop (default: ask)")
	flag.Parse()

	cfg, err := loadConfig(*configPtr)
	if err != nil {
		log.Fatalf("[-] config: %v", err)
	}
	applyFlags(cfg, *resolutionPtr, *fpsPtr, *stylePtr, *voicePtr, *seedPtr, *limitPtr, *subtitlesPtr, *srtPtr)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] config: %v", err)
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("[-] GEMINI_API_KEY is not set (put it in the environment or a .env file)")
	}
	gem := producer.NewGemini(apiKey)

	for _, d := range []string{cfg.Paths.ScriptDir, cfg.Paths.MusicDir, cfg.Paths.OutputDir} {
		os.MkdirAll(d, 0o755)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scriptText, scenes, scriptPath, err := prepareScenes(ctx, cfg, gem, *inputPtr, *resumePtr, *rewritePtr, *smartPromptsPtr)
	if err != nil {
		log.Fatalf("[-] %v", err)
	}
	log.Printf("[generate] %d scenes, style prefix %q, voice %s", len(scenes), cfg.Generation.Style.Prefix, cfg.Generation.Voice)

	runner := pipeline.NewRunner(gem, gem, decisionFunc(*onErrorPtr))
	runner.Voice = cfg.Generation.Voice
	runner.Seed = cfg.Generation.Seed
	runner.SampleRate = cfg.Generation.SampleRate
	runner.Delay = time.Duration(cfg.Generation.SceneDelayMS) * time.Millisecond
	runner.Events = func(ev pipeline.Event) {
		if ev.SceneIndex > 0 {
			log.Printf("[generate] scene %d %s: %s", ev.SceneIndex, ev.Stage, ev.Message)
		} else {
			log.Printf("[generate] %s", ev.Message)
		}
	}

	runErr := runner.Run(ctx, scenes)

	if path := cfg.Paths.Autosave; path != "" {
		snap := store.Snapshot(scriptText, scenes, cfg.Generation.ChunkLimit,
			cfg.Generation.Style, cfg.Generation.Voice, cfg.Generation.Seed, cfg.Generation.SampleRate)
		if err := store.Save(path, snap); err != nil {
			log.Printf("[!] autosave failed: %v", err)
		} else {
			log.Printf("[generate] progress saved to %s", path)
		}
	}
	if runErr != nil {
		log.Fatalf("[-] generation: %v", runErr)
	}
	if runner.Status() != pipeline.StatusCompleted {
		log.Printf("[generate] run stopped at %s; re-run with -resume %s to continue", runner.Status(), cfg.Paths.Autosave)
		return
	}

	outPath := *outPtr
	if outPath == "" {
		outPath = defaultOutputName(cfg.Paths.OutputDir, scriptPath)
	}
	if err := runExport(ctx, cfg, scenes, outPath, *bgmPtr); err != nil {
		log.Fatalf("[-] export: %v", err)
	}

	if cfg.Export.WriteSRT {
		srtPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".srt"
		if err := os.WriteFile(srtPath, []byte(subtitle.GenerateSRT(scenes)), 0o644); err != nil {
			log.Printf("[!] SRT write failed: %v", err)
		} else {
			log.Printf("[export] subtitles written to %s", srtPath)
		}
	}
	log.Printf("[+] done: %s", outPath)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyFlags(cfg *config.Config, resolution string, fps int, style, voice string, seed, limit int, subtitles, srt bool) {
	if resolution != "" {
		cfg.Export.Resolution = resolution
	}
	if fps > 0 {
		cfg.Export.FPS = fps
	}
	if style != "" {
		preset, ok := script.FindPresetStyle(style)
		if !ok {
			log.Fatalf("[-] unknown style %q (have: %s)", style, presetNames())
		}
		// The recurring character survives a style switch.
		cfg.Generation.Style.Prefix = preset.Prefix
		cfg.Generation.Style.Suffix = preset.Suffix
	}
	if voice != "" {
		if _, ok := producer.FindVoice(voice); !ok {
			log.Fatalf("[-] unknown voice %q (have: %s)", voice, voiceNames())
		}
		cfg.Generation.Voice = voice
	}
	if seed >= 0 {
		cfg.Generation.Seed = seed
	}
	if limit > 0 {
		cfg.Generation.ChunkLimit = limit
	}
	cfg.Export.BurnSubtitles = subtitles
	cfg.Export.WriteSRT = srt
}

// prepareScenes either restores a saved project or builds a fresh scene list
// from the script source.
func prepareScenes(ctx context.Context, cfg *config.Config, gem *producer.Gemini, inputPath, resumePath string, rewrite, smartPrompts bool) (string, scene.List, string, error) {
	if resumePath != "" {
		project, err := store.Load(resumePath)
		if err != nil {
			return "", nil, "", fmt.Errorf("resume: %w", err)
		}
		cfg.Generation.ChunkLimit = project.ChunkLimit
		cfg.Generation.Style = project.Style
		cfg.Generation.Voice = project.Voice
		cfg.Generation.Seed = project.Seed
		cfg.Generation.SampleRate = project.SampleRate
		scenes := project.Restore()
		log.Printf("[generate] resumed %d scenes from %s", len(scenes), resumePath)
		return project.Script, scenes, resumePath, nil
	}

	if inputPath == "" {
		latest, err := system.FindLatestScript(cfg.Paths.ScriptDir)
		if err != nil {
			return "", nil, "", fmt.Errorf("no -input given and %w", err)
		}
		inputPath = latest
		log.Printf("[generate] using script %s", inputPath)
	}

	src, err := source.FromPath(inputPath)
	if err != nil {
		return "", nil, "", err
	}
	defer src.Close()
	text, err := src.Text()
	if err != nil {
		return "", nil, "", err
	}

	if rewrite {
		log.Print("[generate] rewriting script for narration")
		text, err = gem.RewriteText(ctx, text, cfg.Generation.RewriteInstruction)
		if err != nil {
			log.Printf("[!] rewrite failed, keeping original: %v", err)
		}
	}

	segments := script.Segment(text, cfg.Generation.ChunkLimit)
	if len(segments) == 0 {
		return "", nil, "", fmt.Errorf("script %s contains no narratable text", inputPath)
	}
	scenes := scene.FromSegments(segments, cfg.Generation.Style)

	if smartPrompts {
		log.Print("[generate] rewriting image prompts")
		prompts, err := gem.BatchRewritePrompts(ctx, segments, cfg.Generation.Style)
		if err != nil {
			log.Printf("[!] prompt rewrite failed, keeping templates: %v", err)
		} else {
			for i, p := range prompts {
				scenes[i].ImagePrompt = p
			}
		}
	}
	return text, scenes, inputPath, nil
}

// decisionFunc builds the failure handler: a fixed policy for headless runs,
// otherwise an interactive prompt on stdin.
func decisionFunc(policy string) pipeline.DecisionFunc {
	if policy != "" {
		return policyDecision(policy)
	}

	reader := bufio.NewReader(os.Stdin)
	return func(_ context.Context, f pipeline.Failure) (pipeline.Decision, string) {
		fmt.Printf("\n[!] scene %d failed during %s: %v\n", f.SceneIndex, f.Stage, f.Err)
		for {
			fmt.Print("    [r]etry, [e]dit prompt and retry, [s]kip, [q]uit? ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return pipeline.Stop, ""
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "r", "retry":
				return pipeline.Retry, ""
			case "e", "edit":
				fmt.Printf("    current prompt: %s\n    new prompt: ", f.Prompt)
				edited, err := reader.ReadString('\n')
				if err != nil {
					return pipeline.Stop, ""
				}
				return pipeline.Retry, strings.TrimSpace(edited)
			case "s", "skip":
				return pipeline.Skip, ""
			case "q", "quit", "stop":
				return pipeline.Stop, ""
			}
		}
	}
}

func policyDecision(policy string) pipeline.DecisionFunc {
	switch {
	case policy == "skip":
		return func(context.Context, pipeline.Failure) (pipeline.Decision, string) {
			return pipeline.Skip, ""
		}
	case policy == "stop":
		return func(context.Context, pipeline.Failure) (pipeline.Decision, string) {
			return pipeline.Stop, ""
		}
	case strings.HasPrefix(policy, "retry"):
		maxAttempts := 3
		if _, n, ok := strings.Cut(policy, ":"); ok {
			v, err := strconv.Atoi(n)
			if err != nil || v < 1 {
				log.Fatalf("[-] bad -on-error value %q", policy)
			}
			maxAttempts = v
		}
		attempts := map[int]int{}
		return func(_ context.Context, f pipeline.Failure) (pipeline.Decision, string) {
			attempts[f.SceneIndex]++
			if attempts[f.SceneIndex] >= maxAttempts {
				return pipeline.Skip, ""
			}
			return pipeline.Retry, ""
		}
	default:
		log.Fatalf("[-] bad -on-error value %q (want retry:N, skip or stop)", policy)
		return nil
	}
}

func runExport(ctx context.Context, cfg *config.Config, scenes scene.List, outPath, bgmFlag string) error {
	width, height, err := cfg.Dimensions()
	if err != nil {
		return err
	}

	bgmPath := bgmFlag
	if bgmPath == "" && cfg.Export.BGMPath != "" {
		bgmPath = cfg.Export.BGMPath
	}
	if bgmPath == "" {
		if latest, err := system.FindLatestAudio(cfg.Paths.MusicDir); err == nil {
			if strings.EqualFold(filepath.Ext(latest), ".wav") {
				bgmPath = latest
				log.Printf("[export] background music: %s", bgmPath)
			} else {
				log.Printf("[!] skipping %s: background music must be WAV", latest)
			}
		}
	}

	engine := export.NewEngine()
	lastShown := -1
	progress := func(frac float64) {
		pct := int(frac * 100)
		if pct != lastShown {
			lastShown = pct
			fmt.Printf("\r[export] %3d%%", pct)
		}
	}

	err = engine.Export(ctx, scenes, export.Options{
		Width:          width,
		Height:         height,
		FPS:            cfg.Export.FPS,
		SampleRate:     cfg.Generation.SampleRate,
		OutPath:        outPath,
		BurnSubtitles:  cfg.Export.BurnSubtitles,
		FontPath:       cfg.Export.FontPath,
		BGMPath:        bgmPath,
		BGMVolume:      cfg.Export.BGMVolume,
		EndCardURL:     cfg.Export.EndCardURL,
		EndCardSeconds: cfg.Export.EndCardSeconds,
	}, progress)
	fmt.Println()
	return err
}

func defaultOutputName(outputDir, scriptPath string) string {
	base := "slideshow"
	if scriptPath != "" {
		name := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
		if name != "" {
			base = strings.ReplaceAll(name, " ", "_")
		}
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.mp4", base, timestamp))
}

func presetNames() string {
	names := make([]string, len(script.PresetStyles))
	for i, s := range script.PresetStyles {
		names[i] = s.ID
	}
	return strings.Join(names, ", ")
}

func voiceNames() string {
	names := make([]string, len(producer.Voices))
	for i, v := range producer.Voices {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}
