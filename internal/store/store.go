package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

// Project is the on-disk snapshot of a generation session: the full scene
// list with artifacts plus the settings needed to resume it faithfully.
type Project struct {
	Version    int             `json:"version"`
	SavedAt    time.Time       `json:"saved_at"`
	Script     string          `json:"script"`
	ChunkLimit int             `json:"chunk_limit"`
	Style      script.Style    `json:"style"`
	Voice      string          `json:"voice"`
	Seed       int             `json:"seed"`
	SampleRate int             `json:"sample_rate"`
	Scenes     []SceneSnapshot `json:"scenes"`
}

// SceneSnapshot carries one scene's state. Binary artifacts ride as base64
// through encoding/json; the WAV container is not persisted because it is
// derivable from the PCM payload and the sample rate.
type SceneSnapshot struct {
	ID            string       `json:"id"`
	Index         int          `json:"index"`
	Text          string       `json:"text"`
	ImagePrompt   string       `json:"image_prompt"`
	PromptEdited  bool         `json:"prompt_edited,omitempty"`
	ImagePNG      []byte       `json:"image_png,omitempty"`
	AudioPCM      []byte       `json:"audio_pcm,omitempty"`
	AudioDuration float64      `json:"audio_duration,omitempty"`
	Status        scene.Status `json:"status"`
}

const currentVersion = 1

// Snapshot captures the current session state for Save.
func Snapshot(scriptText string, scenes scene.List, chunkLimit int, style script.Style, voice string, seed, sampleRate int) *Project {
	p := &Project{
		Version:    currentVersion,
		SavedAt:    time.Now().UTC(),
		Script:     scriptText,
		ChunkLimit: chunkLimit,
		Style:      style,
		Voice:      voice,
		Seed:       seed,
		SampleRate: sampleRate,
		Scenes:     make([]SceneSnapshot, len(scenes)),
	}
	for i, s := range scenes {
		p.Scenes[i] = SceneSnapshot{
			ID:            s.ID,
			Index:         s.Index,
			Text:          s.Text,
			ImagePrompt:   s.ImagePrompt,
			PromptEdited:  s.PromptEdited,
			ImagePNG:      s.ImagePNG,
			AudioPCM:      s.AudioPCM,
			AudioDuration: s.AudioDuration,
			Status:        s.Status,
		}
	}
	return p
}

// Restore rebuilds the scene list from a snapshot. The WAV container and
// duration are re-derived from the stored PCM so a resumed session behaves
// exactly like the one that was saved.
func (p *Project) Restore() scene.List {
	scenes := make(scene.List, len(p.Scenes))
	for i, snap := range p.Scenes {
		s := &scene.Scene{
			ID:           snap.ID,
			Index:        snap.Index,
			Text:         snap.Text,
			ImagePrompt:  snap.ImagePrompt,
			PromptEdited: snap.PromptEdited,
			Status:       snap.Status,
		}
		if len(snap.ImagePNG) > 0 {
			s.ApplyImage(snap.ImagePNG)
		}
		if len(snap.AudioPCM) > 0 {
			s.ApplyAudio(snap.AudioPCM, p.SampleRate)
		} else {
			s.AudioDuration = snap.AudioDuration
		}
		// A scene interrupted mid-generation restarts from pending.
		switch snap.Status {
		case scene.StatusGeneratingImage, scene.StatusGeneratingAudio:
			s.SetStatus(scene.StatusPending)
		}
		scenes[i] = s
	}
	return scenes
}

// Save writes the snapshot atomically: a temp file in the target directory
// is renamed over the destination, so a crash never leaves a torn snapshot.
func Save(path string, p *Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".project-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads and validates a snapshot from disk.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	if p.Version != currentVersion {
		return nil, fmt.Errorf("unsupported project version %d", p.Version)
	}
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("project %s has invalid sample rate %d", path, p.SampleRate)
	}
	return &p, nil
}
