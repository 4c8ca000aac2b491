package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

// Config is the project-wide configuration. Everything the generation and
// export stages need is carried explicitly; nothing reads ambient state.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Export     ExportConfig     `yaml:"export"`
	Paths      PathsConfig      `yaml:"paths"`
}

type GenerationConfig struct {
	ChunkLimit int          `yaml:"chunk_limit"`
	Style      script.Style `yaml:"style"`
	Voice      string       `yaml:"voice"`
	Seed       int          `yaml:"seed"`
	SampleRate int          `yaml:"sample_rate"`
	// SceneDelayMS throttles producer requests between scenes.
	SceneDelayMS int `yaml:"scene_delay_ms"`
	// RewriteInstruction drives the optional full-script rewrite pass.
	RewriteInstruction string `yaml:"rewrite_instruction"`
}

type ExportConfig struct {
	Resolution     string  `yaml:"resolution"` // 720p | 1080p
	FPS            int     `yaml:"fps"`        // 24 | 30 | 60
	BurnSubtitles  bool    `yaml:"burn_subtitles"`
	FontPath       string  `yaml:"font"`
	BGMPath        string  `yaml:"bgm"`
	BGMVolume      float64 `yaml:"bgm_volume"`
	EndCardURL     string  `yaml:"end_card_url"`
	EndCardSeconds float64 `yaml:"end_card_seconds"`
	WriteSRT       bool    `yaml:"srt"`
}

type PathsConfig struct {
	ScriptDir string `yaml:"script_dir"`
	MusicDir  string `yaml:"music_dir"`
	OutputDir string `yaml:"output_dir"`
	Autosave  string `yaml:"autosave"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	preset := script.PresetStyles[0] // cinematic
	return &Config{
		Generation: GenerationConfig{
			ChunkLimit:   60,
			Style:        script.Style{Prefix: preset.Prefix, Suffix: preset.Suffix},
			Voice:        "Kore",
			Seed:         42,
			SampleRate:   24000,
			SceneDelayMS: 500,
			RewriteInstruction: "Rewrite the following script for spoken narration: " +
				"conversational tone, strong rhythm, keep the original meaning, " +
				"output only the rewritten text.",
		},
		Export: ExportConfig{
			Resolution:     "720p",
			FPS:            30,
			BurnSubtitles:  true,
			BGMVolume:      0.2,
			EndCardSeconds: 4,
			WriteSRT:       true,
		},
		Paths: PathsConfig{
			ScriptDir: "input/script",
			MusicDir:  "input/music",
			OutputDir: "output",
			Autosave:  "project.json",
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the export engine cannot honor.
func (c *Config) Validate() error {
	if _, _, err := c.Dimensions(); err != nil {
		return err
	}
	switch c.Export.FPS {
	case 24, 30, 60:
	default:
		return fmt.Errorf("unsupported fps %d (want 24, 30 or 60)", c.Export.FPS)
	}
	if c.Generation.ChunkLimit <= 0 {
		return fmt.Errorf("chunk_limit must be positive, got %d", c.Generation.ChunkLimit)
	}
	if c.Generation.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Generation.SampleRate)
	}
	return nil
}

// Dimensions maps the resolution preset to pixel dimensions.
func (c *Config) Dimensions() (width, height int, err error) {
	switch c.Export.Resolution {
	case "720p":
		return 1280, 720, nil
	case "1080p":
		return 1920, 1080, nil
	default:
		return 0, 0, fmt.Errorf("unsupported resolution %q (want 720p or 1080p)", c.Export.Resolution)
	}
}
