package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// FindLatestScript returns the most recently modified script file in dir.
// Both plain text and PDF scripts are accepted.
func FindLatestScript(dir string) (string, error) {
	return findLatest(dir, []string{".txt", ".md", ".pdf"}, "script")
}

// FindLatestAudio returns the most recently modified audio file in dir,
// used to pick up background music dropped into the music folder.
func FindLatestAudio(dir string) (string, error) {
	return findLatest(dir, []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}, "audio")
}

func findLatest(dir string, extensions []string, kind string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := strings.ToLower(f.Name())
		match := false
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", kind, dir)
	}
	return latestFile, nil
}

// BestH264Encoder probes ffmpeg for a hardware H.264 encoder and falls back
// to libx264.
func BestH264Encoder() string {
	candidates := []string{"h264_videotoolbox", "h264_nvenc"}

	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range candidates {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// PreloadWorkers sizes the asset preload pool from available memory.
// bytesPerTask is the expected working-set cost of decoding and scaling one
// scene image; the pool never exceeds CPU count and never drops below 1.
func PreloadWorkers(bytesPerTask uint64) int {
	workers := runtime.NumCPU()

	if vm, err := mem.VirtualMemory(); err == nil && bytesPerTask > 0 {
		byMem := int(vm.Available / bytesPerTask)
		if byMem < workers {
			workers = byMem
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
