package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

func testStyle() script.Style {
	return script.Style{Prefix: "Cinematic shot,", Suffix: "high detail"}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	scenes := scene.FromSegments([]string{"first", "second"}, testStyle())
	scenes[0].ApplyImage([]byte{0x89, 'P', 'N', 'G'})
	scenes[0].ApplyAudio(make([]byte, 48000), 24000)
	scenes[0].SetStatus(scene.StatusCompleted)
	scenes[1].EditPrompt("hand-written prompt")

	path := filepath.Join(t.TempDir(), "project.json")
	p := Snapshot("first second", scenes, 60, testStyle(), "Kore", 42, 24000)
	if err := Save(path, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Voice != "Kore" || loaded.Seed != 42 || loaded.ChunkLimit != 60 {
		t.Errorf("settings lost: %+v", loaded)
	}

	restored := loaded.Restore()
	if len(restored) != 2 {
		t.Fatalf("restored %d scenes, want 2", len(restored))
	}
	if restored[0].ID != scenes[0].ID {
		t.Error("scene IDs must survive the round trip")
	}
	if !bytes.Equal(restored[0].ImagePNG, scenes[0].ImagePNG) {
		t.Error("image artifact lost")
	}
	if !bytes.Equal(restored[0].AudioPCM, scenes[0].AudioPCM) {
		t.Error("audio payload lost")
	}
	if restored[0].AudioDuration != 1.0 {
		t.Errorf("duration = %f, want 1.0", restored[0].AudioDuration)
	}
	if len(restored[0].AudioWAV) != len(restored[0].AudioPCM)+44 {
		t.Error("WAV container not re-derived from PCM")
	}
	if !restored[1].PromptEdited || restored[1].ImagePrompt != "hand-written prompt" {
		t.Error("edited prompt not preserved")
	}
}

func TestRestoreResetsInterruptedScenes(t *testing.T) {
	scenes := scene.FromSegments([]string{"a"}, testStyle())
	scenes[0].SetStatus(scene.StatusGeneratingAudio)

	p := Snapshot("a", scenes, 60, testStyle(), "Kore", 0, 24000)
	restored := p.Restore()
	if restored[0].Status != scene.StatusPending {
		t.Errorf("interrupted scene status = %s, want pending", restored[0].Status)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")

	scenes := scene.FromSegments([]string{"a"}, testStyle())
	if err := Save(path, Snapshot("a", scenes, 60, testStyle(), "Kore", 0, 24000)); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	scenes[0].EditText("edited")
	if err := Save(path, Snapshot("edited", scenes, 60, testStyle(), "Kore", 0, 24000)); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Scenes[0].Text != "edited" {
		t.Errorf("overwrite lost: %q", loaded.Scenes[0].Text)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("stray files in save dir: %v", entries)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed JSON")
	}
}
