// Package llm generates multiple-choice questions for article batches via
// the Gemini API, with retry and rate-limit aware backoff.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	maxAttempts       = 5
	initialRetryDelay = 2 * time.Second
	questionsPerItem  = 5
)

// ErrExhausted reports that every generation attempt for a batch failed.
// Callers treat it as a terminal, batch-level outcome.
var ErrExhausted = errors.New("question generation attempts exhausted")

// BatchArticle is one article submitted for question generation.
type BatchArticle struct {
	ID     int64
	Title  string
	Source string
}

// GeneratedQuestion is a single multiple-choice question as returned by the
// model.
type GeneratedQuestion struct {
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// generator is the slice of genai.GenerativeModel the client needs, kept
// narrow so tests can substitute a scripted model.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client produces questions from article batches.
type Client struct {
	client *genai.Client
	model  generator

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient dials the Gemini API and configures the named model for strict
// JSON output.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := gc.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.7)
	model.SetTopP(0.95)
	model.SetTopK(60)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	return &Client{
		client: gc,
		model:  model,
		sleep:  sleepCtx,
	}, nil
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GenerateQuestions asks the model for questions covering every article in
// the batch and returns them keyed by article ID. Articles the model
// omitted are simply absent from the map. An empty batch returns an empty
// map without any API call. ErrExhausted wraps the last failure once all
// attempts are spent.
func (c *Client) GenerateQuestions(ctx context.Context, batch []BatchArticle) (map[int64][]GeneratedQuestion, error) {
	if len(batch) == 0 {
		return map[int64][]GeneratedQuestion{}, nil
	}

	prompt := buildPrompt(batch)

	var lastErr error
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			retryAfter := delay
			if d, ok := rateLimitDelay(err); ok {
				retryAfter = d
				log.Warn().Dur("retry_after", d).Int("attempt", attempt).Msg("Gemini rate limited")
			} else {
				log.Warn().Err(err).Int("attempt", attempt).Msg("Gemini call failed")
			}

			if attempt == maxAttempts {
				break
			}
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
			delay *= 2
			continue
		}

		result, err := parseResponse(resp)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("Gemini returned an unusable response")
			if attempt == maxAttempts {
				break
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			continue
		}

		return result, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// buildPrompt renders the batch as a numbered article list with a strict
// JSON response contract keyed by article ID.
func buildPrompt(batch []BatchArticle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert quiz master for competitive exams covering current affairs.\n")
	fmt.Fprintf(&sb, "For EACH of the following news articles, generate exactly %d multiple-choice questions.\n\n", questionsPerItem)
	sb.WriteString("Articles:\n")
	for i, a := range batch {
		fmt.Fprintf(&sb, "%d. id: %d, source: %s, title: %q\n", i+1, a.ID, a.Source, a.Title)
	}
	sb.WriteString(`
Respond with a single JSON object and nothing else. Each key is an article id
as a string. Each value is an array of question objects with exactly these
fields:
  "questionText": the question,
  "options": an array of exactly 4 answer strings,
  "correctAnswer": one of the strings from "options".
Do not include markdown, code fences, or commentary.`)

	return sb.String()
}

// parseResponse extracts the JSON payload from the first candidate and
// decodes the id-keyed question map. An empty object or a payload that is
// not an object counts as a failed attempt.
func parseResponse(resp *genai.GenerateContentResponse) (map[int64][]GeneratedQuestion, error) {
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	text = stripCodeFences(text)

	var keyed map[string][]GeneratedQuestion
	if err := json.Unmarshal([]byte(text), &keyed); err != nil {
		return nil, fmt.Errorf("response is not a question map: %w", err)
	}
	if len(keyed) == 0 {
		return nil, errors.New("response contained no questions")
	}

	result := make(map[int64][]GeneratedQuestion, len(keyed))
	for key, questions := range keyed {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			log.Warn().Str("key", key).Msg("Ignoring non-numeric article key in response")
			continue
		}
		result[id] = questions
	}
	if len(result) == 0 {
		return nil, errors.New("response contained no usable article keys")
	}
	return result, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("response has no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("response candidate has no text parts")
	}
	return sb.String(), nil
}

// stripCodeFences tolerates models that wrap JSON in ```json fences despite
// the MIME type hint.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// rateLimitDelay extracts the server-suggested retry delay from a 429
// error, when present.
func rateLimitDelay(err error) (time.Duration, bool) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 429 {
		return 0, false
	}

	for _, detail := range apiErr.Details {
		m, ok := detail.(map[string]interface{})
		if !ok {
			continue
		}
		t, _ := m["@type"].(string)
		if !strings.HasSuffix(t, "RetryInfo") {
			continue
		}
		raw, _ := m["retryDelay"].(string)
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d, true
		}
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
