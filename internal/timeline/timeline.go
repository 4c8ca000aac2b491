package timeline

// Timeline maps between scene indices and global elapsed time. It is a pure
// view over an ordered duration list: rebuild it whenever the scene list
// changes. Both the live preview and the export engine derive their offsets
// from the same model, so they always agree on the total duration.
type Timeline struct {
	durations []float64
	total     float64
}

// DefaultSceneDuration is assumed for scenes whose audio has not been
// generated yet, so the preview timeline stays proportional.
const DefaultSceneDuration = 3.0

// New builds a timeline from per-scene durations. Entries <= 0 are replaced
// with fallback (pass DefaultSceneDuration for preview use, or 0 to keep
// unmeasured scenes at zero width).
func New(durations []float64, fallback float64) *Timeline {
	ds := make([]float64, len(durations))
	total := 0.0
	for i, d := range durations {
		if d <= 0 {
			d = fallback
		}
		ds[i] = d
		total += d
	}
	return &Timeline{durations: ds, total: total}
}

func (t *Timeline) Len() int { return len(t.durations) }

// Total returns the sum of all scene durations in seconds.
func (t *Timeline) Total() float64 { return t.total }

// Duration returns the duration of scene i.
func (t *Timeline) Duration(i int) float64 { return t.durations[i] }

// WidthFractions returns each scene's share of the full timeline. When the
// total is zero every scene gets a uniform share.
func (t *Timeline) WidthFractions() []float64 {
	n := len(t.durations)
	fractions := make([]float64, n)
	if n == 0 {
		return fractions
	}
	for i, d := range t.durations {
		if t.total > 0 {
			fractions[i] = d / t.total
		} else {
			fractions[i] = 1.0 / float64(n)
		}
	}
	return fractions
}

// GlobalTime maps (active scene, intra-scene progress in [0,1]) to elapsed
// seconds from the start of the timeline.
func (t *Timeline) GlobalTime(activeIndex int, intraProgress float64) float64 {
	if activeIndex < 0 || activeIndex >= len(t.durations) {
		return 0
	}
	if intraProgress < 0 {
		intraProgress = 0
	} else if intraProgress > 1 {
		intraProgress = 1
	}
	elapsed := 0.0
	for i := 0; i < activeIndex; i++ {
		elapsed += t.durations[i]
	}
	return elapsed + intraProgress*t.durations[activeIndex]
}

// IndexAt returns the scene whose window contains the elapsed time: the
// first i with elapsed < cumulative(i)+durations[i]. Times at or past the
// end clamp to the last scene.
func (t *Timeline) IndexAt(elapsed float64) int {
	accum := 0.0
	for i, d := range t.durations {
		if elapsed < accum+d {
			return i
		}
		accum += d
	}
	return len(t.durations) - 1
}
