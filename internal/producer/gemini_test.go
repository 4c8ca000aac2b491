package producer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGemini("test-key")
	g.BaseURL = srv.URL
	return g
}

func inlineResponse(data []byte) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{
					"inlineData": map[string]string{"data": base64.StdEncoding.EncodeToString(data)},
				}},
			},
		}},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func textResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestGenerateImageReturnsInlineData(t *testing.T) {
	var gotBody genRequest
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash-image") {
			t.Errorf("wrong model path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(inlineResponse([]byte("png-bytes"))))
	})

	img, err := g.GenerateImage(context.Background(), "a quiet harbor at dawn", 7)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !bytes.Equal(img, []byte("png-bytes")) {
		t.Errorf("image payload = %q", img)
	}

	sent := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(sent, "a quiet harbor at dawn") {
		t.Errorf("prompt not forwarded: %q", sent)
	}
	if gotBody.GenerationConfig == nil || *gotBody.GenerationConfig.Seed != 7 {
		t.Error("seed not forwarded")
	}
	if gotBody.GenerationConfig.ImageConfig.AspectRatio != "16:9" {
		t.Error("aspect ratio not pinned to 16:9")
	}
}

func TestGenerateImageTextAnswerIsSafetyFilter(t *testing.T) {
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse("I can't create that image.")))
	})

	_, err := g.GenerateImage(context.Background(), "something", 0)
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != CodeSafetyFilter {
		t.Errorf("err = %v, want SAFETY_FILTER", err)
	}
}

func TestCallClassifiesQuotaExhaustion(t *testing.T) {
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`))
	})

	_, err := g.GenerateImage(context.Background(), "anything", 0)
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != CodeQuota {
		t.Errorf("err = %v, want QUOTA", err)
	}
}

func TestGenerateSpeechUsesVoiceAndAudioModality(t *testing.T) {
	var gotBody genRequest
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(inlineResponse(make([]byte, 100))))
	})

	pcm, err := g.GenerateSpeech(context.Background(), "hello", "Charon")
	if err != nil {
		t.Fatalf("GenerateSpeech: %v", err)
	}
	if len(pcm) != 100 {
		t.Errorf("pcm length = %d", len(pcm))
	}
	gc := gotBody.GenerationConfig
	if gc == nil || len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
		t.Error("AUDIO modality not requested")
	}
	if gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Charon" {
		t.Error("voice not forwarded")
	}
}

func TestRewriteTextDegradesToOriginalOnFailure(t *testing.T) {
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"status":"INTERNAL","message":"boom"}}`))
	})

	out, err := g.RewriteText(context.Background(), "original script", "make it punchy")
	if err != nil {
		t.Fatalf("RewriteText should not surface errors: %v", err)
	}
	if out != "original script" {
		t.Errorf("out = %q, want the original text back", out)
	}
}

func TestRewriteTextStripsCodeFence(t *testing.T) {
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse("```\nrewritten\n```")))
	})

	out, err := g.RewriteText(context.Background(), "x", "y")
	if err != nil || out != "rewritten" {
		t.Errorf("out = %q, err = %v", out, err)
	}
}

func TestBatchRewritePromptsParsesJSONArray(t *testing.T) {
	g := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse(`["prompt one","prompt two"]`)))
	})

	prompts, err := g.BatchRewritePrompts(context.Background(), []string{"a", "b"}, script.Style{})
	if err != nil {
		t.Fatalf("BatchRewritePrompts: %v", err)
	}
	if len(prompts) != 2 || prompts[0] != "prompt one" || prompts[1] != "prompt two" {
		t.Errorf("prompts = %v", prompts)
	}
}

func TestNormalizePrompts(t *testing.T) {
	style := script.Style{Prefix: "Pre,", Suffix: "suf"}
	texts := []string{"one", "two", "three"}

	// Short tail is filled from the local template, excess is truncated.
	got := NormalizePrompts([]string{"model prompt", ""}, texts, style)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != "model prompt" {
		t.Errorf("got[0] = %q", got[0])
	}
	for i := 1; i < 3; i++ {
		if got[i] != script.BuildPrompt(texts[i], style) {
			t.Errorf("got[%d] = %q, want local template", i, got[i])
		}
	}

	got = NormalizePrompts([]string{"a", "b", "c", "d"}, texts[:2], style)
	if len(got) != 2 {
		t.Errorf("excess prompts not truncated: %v", got)
	}
}
