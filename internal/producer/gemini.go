package producer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wendyhou2026-sudo/onecut/internal/script"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	imageModel = "gemini-2.5-flash-image"
	ttsModel   = "gemini-2.5-flash-preview-tts"
	textModel  = "gemini-2.5-flash"
)

// Gemini implements all three producers against the Generative Language
// REST API. The speech endpoint returns raw PCM (16-bit, 24kHz, mono)
// base64-encoded inline.
type Gemini struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// PCMSampleRate is the fixed output rate of the Gemini TTS models.
const PCMSampleRate = 24000

func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Request/response wire types, trimmed to the fields we use.

type genRequest struct {
	Contents          []content  `json:"contents"`
	GenerationConfig  *genConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content   `json:"systemInstruction,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type genConfig struct {
	Seed               *int          `json:"seed,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
	ImageConfig        *imageConfig  `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type genResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type apiError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GenerateImage requests a 16:9 image for the prompt. The model is told
// explicitly to emit an image so it does not answer with chat text.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string, seed int) ([]byte, error) {
	const op = "gemini: generate image"
	if strings.TrimSpace(prompt) == "" {
		return nil, &Error{Code: CodeEmptyResponse, Op: op, Message: "image prompt is empty"}
	}

	req := genRequest{
		Contents: []content{{Parts: []part{{
			Text: "Generate a high-quality image matching this description: " + prompt,
		}}}},
		GenerationConfig: &genConfig{
			Seed:        &seed,
			ImageConfig: &imageConfig{AspectRatio: "16:9"},
		},
	}

	resp, err := g.call(ctx, op, imageModel, req)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return decodeInline(op, p.InlineData.Data)
			}
		}
	}

	// No image part. A text part usually means a refusal or safety block.
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return nil, &Error{Code: CodeSafetyFilter, Op: op,
					Message: fmt.Sprintf("model returned text instead of image: %q", clip(p.Text, 80))}
			}
		}
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			code := CodeEmptyResponse
			if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
				code = CodeSafetyFilter
			}
			return nil, &Error{Code: code, Op: op, Message: "finish reason " + cand.FinishReason}
		}
	}
	return nil, &Error{Code: CodeEmptyResponse, Op: op, Message: "no image data in response"}
}

// GenerateSpeech synthesizes narration with a prebuilt voice and returns the
// raw PCM payload.
func (g *Gemini) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	const op = "gemini: generate speech"
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Code: CodeEmptyResponse, Op: op, Message: "tts input text is empty"}
	}
	if voice == "" {
		voice = DefaultVoice
	}

	req := genRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &genConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voice}},
			},
		},
	}

	resp, err := g.call(ctx, op, ttsModel, req)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return decodeInline(op, p.InlineData.Data)
			}
			if p.Text != "" {
				return nil, &Error{Code: CodeSafetyFilter, Op: op,
					Message: fmt.Sprintf("tts model refused with text: %q", clip(p.Text, 80))}
			}
		}
	}
	return nil, &Error{Code: CodeEmptyResponse, Op: op, Message: "no audio data in response"}
}

// RewriteText applies a rewrite instruction to the whole script. Failures
// degrade to the original text so a flaky model never blocks the user.
func (g *Gemini) RewriteText(ctx context.Context, text, instruction string) (string, error) {
	const op = "gemini: rewrite text"

	req := genRequest{
		Contents: []content{{Parts: []part{{
			Text: "User Instruction: " + instruction + "\n\nSource Text:\n" + text,
		}}}},
		SystemInstruction: &content{Parts: []part{{
			Text: "You are a professional script editor. Output ONLY the rewritten text based on the user's instruction. Do not include any conversational filler, markdown formatting, or headers. Just the raw text content.",
		}}},
	}

	resp, err := g.call(ctx, op, textModel, req)
	if err != nil {
		return text, nil
	}
	out := firstText(resp)
	if out == "" {
		return text, nil
	}
	return stripCodeFence(out), nil
}

// BatchRewritePrompts derives one image prompt per scene in a single call,
// so the model can keep lighting, environment and character consistent
// across the sequence.
func (g *Gemini) BatchRewritePrompts(ctx context.Context, sceneTexts []string, style script.Style) ([]string, error) {
	const op = "gemini: batch rewrite prompts"
	if len(sceneTexts) == 0 {
		return nil, nil
	}

	type inputScene struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	}
	inputs := make([]inputScene, len(sceneTexts))
	for i, t := range sceneTexts {
		inputs[i] = inputScene{Index: i + 1, Text: t}
	}
	inputJSON, _ := json.Marshal(inputs)

	prompt := fmt.Sprintf(`You are an expert AI Visual Director. Convert a list of video script segments into high-quality image generation prompts.

Global Style Settings:
- Style Prefix: %q
- Style Suffix: %q
- Main Character: %q

Requirements:
1. Contextual Consistency: analyze the full sequence to keep lighting, environment and character outfit consistent.
2. Keyword Extraction: extract key visual terms from each text (objects, actions, settings).
3. Format: combine the Global Prefix + Character + Extracted Keywords/Action + Global Suffix.
4. Output: return ONLY a JSON array of strings, one full prompt per input index, in input order.

Input Scenes:
%s`, style.Prefix, style.Suffix, style.Character, inputJSON)

	req := genRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &genConfig{ResponseMimeType: "application/json"},
	}

	resp, err := g.call(ctx, op, textModel, req)
	if err != nil {
		return nil, err
	}

	var prompts []string
	if err := json.Unmarshal([]byte(stripCodeFence(firstText(resp))), &prompts); err != nil {
		return nil, &Error{Code: CodeEmptyResponse, Op: op, Message: "response is not a JSON string array", Err: err}
	}

	return NormalizePrompts(prompts, sceneTexts, style), nil
}

// NormalizePrompts forces the batch result to line up one-to-one with the
// scenes: a short tail is filled by deterministic local construction,
// excess entries are truncated.
func NormalizePrompts(prompts, sceneTexts []string, style script.Style) []string {
	out := make([]string, len(sceneTexts))
	for i := range sceneTexts {
		if i < len(prompts) && strings.TrimSpace(prompts[i]) != "" {
			out[i] = prompts[i]
		} else {
			out[i] = script.BuildPrompt(sceneTexts[i], style)
		}
	}
	return out
}

// call posts a generateContent request and classifies HTTP failures.
func (g *Gemini) call(ctx context.Context, op, model string, body genRequest) (*genResponse, error) {
	if g.APIKey == "" {
		return nil, &Error{Code: CodeTransport, Op: op, Message: "api key is missing"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: op, Err: err}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.BaseURL, model, g.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.HTTP.Do(httpReq)
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: op, Err: err}
	}

	var resp genResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Code: CodeTransport, Op: op,
			Message: fmt.Sprintf("bad response (http %d)", httpResp.StatusCode), Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		code := CodeTransport
		msg := fmt.Sprintf("http %d", httpResp.StatusCode)
		if httpResp.StatusCode == http.StatusTooManyRequests {
			code = CodeQuota
		}
		if resp.Error != nil {
			msg = resp.Error.Message
			if resp.Error.Status == "RESOURCE_EXHAUSTED" {
				code = CodeQuota
			}
		}
		return nil, &Error{Code: code, Op: op, Message: msg}
	}
	return &resp, nil
}

func decodeInline(op, data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: op, Message: "inline data is not valid base64", Err: err}
	}
	return raw, nil
}

func firstText(resp *genResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
