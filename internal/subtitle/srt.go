package subtitle

import (
	"fmt"
	"math"
	"strings"

	"github.com/wendyhou2026-sudo/onecut/internal/scene"
)

// minDuration filters out scenes too short to subtitle.
const minDuration = 0.1

// GenerateSRT renders the scene list as a SubRip file. Timestamps are
// accumulated from each scene's measured audio duration, so they line up
// with the exported video, which schedules the same clips back-to-back.
func GenerateSRT(scenes scene.List) string {
	var b strings.Builder
	current := 0.0
	block := 1

	for _, sc := range scenes {
		d := sc.AudioDuration
		if d <= minDuration {
			continue
		}
		fmt.Fprintf(&b, "%d\n", block)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTime(current), FormatTime(current+d))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(sc.Text))
		current += d
		block++
	}
	return b.String()
}

// FormatTime renders seconds as an SRT timestamp: HH:MM:SS,mmm.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int(math.Floor(math.Mod(seconds, 1) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
