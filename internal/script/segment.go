package script

import "strings"

// Sentence-ending marks the segmenter is allowed to break after. A closing
// quote directly after the mark is kept with the chunk.
var (
	sentenceEnders = map[rune]bool{'。': true, '！': true, '？': true, '!': true, '?': true, '.': true}
	closingQuotes  = map[rune]bool{'”': true, '"': true, '\'': true}
)

// lookahead is how many runes past the limit we scan for a sentence
// boundary before falling back to a hard cut.
const lookahead = 5

// Segment splits narration text into chunks of at most limit runes each,
// preferring to break after sentence punctuation. It is deterministic and
// pure. A boundary is only accepted when it falls past 40% of the limit,
// which avoids pathologically short leading chunks. Paragraphs (newline
// separated) never merge.
func Segment(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if clean == "" {
		return nil
	}

	var chunks []string
	for _, para := range strings.Split(clean, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		remaining := []rune(para)
		for len(remaining) > 0 {
			if len(remaining) <= limit {
				chunks = append(chunks, string(remaining))
				break
			}

			cut := boundaryCut(remaining, limit)
			if cut <= 0 {
				cut = limit
			}
			chunks = append(chunks, strings.TrimSpace(string(remaining[:cut])))
			remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
		}
	}
	return chunks
}

// boundaryCut finds the rune index (exclusive) of the last acceptable
// sentence boundary within limit+lookahead runes, or -1 if none qualifies.
func boundaryCut(runes []rune, limit int) int {
	window := limit + lookahead
	if window > len(runes) {
		window = len(runes)
	}

	best := -1
	markIdx := -1
	for i := 0; i < window; i++ {
		if !sentenceEnders[runes[i]] {
			continue
		}
		end := i + 1
		if end < window && closingQuotes[runes[end]] {
			end++
		}
		best = end
		markIdx = i
	}

	// Reject boundaries in the first 40% of the limit.
	if best == -1 || markIdx <= int(float64(limit)*0.4) {
		return -1
	}
	return best
}
