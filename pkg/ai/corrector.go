package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chronicae/chronicler/pkg/config"
)

// Line is one transcript sentence with its clip-relative timing. Correction
// rewrites Text only; Start and End pass through untouched.
type Line struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Corrector cleans up raw transcript lines through an LLM chat-completion
// endpoint. The model fixes mis-heard fantasy names and punctuation but must
// never merge, split or reorder lines.
type Corrector struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewCorrector creates a corrector, or nil when correction is disabled
func NewCorrector(cfg *config.CorrectionConfig) *Corrector {
	if cfg == nil || !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.groq.com"
	}
	return &Corrector{
		apiKey:  cfg.APIKey,
		baseURL: base,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string      `json:"model,omitempty"`
	Messages    interface{} `json:"messages,omitempty"`
	Temperature float64     `json:"temperature"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const correctionSystemPrompt = `You correct transcription errors in tabletop roleplaying session transcripts. ` +
	`You receive a JSON array of lines, each with "start", "end" and "text". ` +
	`Fix spelling, punctuation and mis-heard character or place names using the scene context. ` +
	`Return ONLY a JSON array with exactly the same number of lines, same order, same "start" and "end" values, changing only "text". ` +
	`Never invent content that is not in the input.`

// Correct sends the lines for cleanup and returns the corrected set. The
// response must keep line count and timings intact or an error is returned so
// the caller can fall back to the raw text.
func (c *Corrector) Correct(ctx context.Context, lines []Line, sceneContext string) ([]Line, error) {
	if len(lines) == 0 {
		return lines, nil
	}

	input, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf("Scene context: %s\n\nLines:\n%s", sceneContext, input)
	reqBody := ChatRequest{
		Model: c.model,
		Messages: []map[string]string{
			{"role": "system", "content": correctionSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		Temperature: 0.2,
		MaxTokens:   8000,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/openai/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("correction API returned status %d", resp.StatusCode)
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, err
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("empty response from correction API")
	}

	corrected, err := parseCorrectedLines(cr.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(corrected) != len(lines) {
		return nil, fmt.Errorf("correction changed line count: sent %d, got %d", len(lines), len(corrected))
	}

	// Timings are authoritative from transcription, never from the model
	for i := range corrected {
		corrected[i].Start = lines[i].Start
		corrected[i].End = lines[i].End
	}
	return corrected, nil
}

// parseCorrectedLines extracts the JSON array from the model output, which
// some models wrap in markdown fences or prose
func parseCorrectedLines(content string) ([]Line, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in correction response")
	}

	var lines []Line
	if err := json.Unmarshal([]byte(content[start:end+1]), &lines); err != nil {
		return nil, fmt.Errorf("failed to parse correction response: %w", err)
	}
	return lines, nil
}
