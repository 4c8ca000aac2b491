package producer

import (
	"context"
	"fmt"

	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

// Code classifies producer failures so the recovery layer can present them
// meaningfully.
type Code string

const (
	CodeSafetyFilter  Code = "SAFETY_FILTER"
	CodeQuota         Code = "QUOTA"
	CodeEmptyResponse Code = "EMPTY_RESPONSE"
	CodeTransport     Code = "TRANSPORT"
)

// Error is the failure type every producer returns. It wraps the underlying
// cause and carries the operation name for log context.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// ImageProducer turns an image prompt into an encoded image.
type ImageProducer interface {
	GenerateImage(ctx context.Context, prompt string, seed int) ([]byte, error)
}

// SpeechProducer turns narration text into raw 16-bit mono PCM.
type SpeechProducer interface {
	GenerateSpeech(ctx context.Context, text, voice string) ([]byte, error)
}

// TextRewriter rewrites scripts and derives image prompts in bulk.
type TextRewriter interface {
	// RewriteText applies a rewrite instruction to the whole script. On
	// failure implementations degrade gracefully and return the original
	// text with a nil error; a non-nil error means the caller must not
	// proceed.
	RewriteText(ctx context.Context, text, instruction string) (string, error)

	// BatchRewritePrompts returns exactly one prompt per input scene text.
	// A short response tail is filled by local prompt construction from the
	// style; excess entries are truncated.
	BatchRewritePrompts(ctx context.Context, sceneTexts []string, style script.Style) ([]string, error)
}
