// Package openaianalyzer implements the analysis collaborator using
// the OpenAI Chat Completions API.
package openaianalyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

const (
	// DefaultModel is used when neither the job config nor the service
	// config names one.
	DefaultModel = "gpt-4o-mini"

	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseBackoff    = 2 * time.Second
	maxBackoff     = 32 * time.Second
)

// ErrAPIKeyNotSet is returned when no API key is configured.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// Config controls Analyzer behavior.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Analyzer calls the LLM once per page with the job's full target
// catalog and parses the returned JSON array into suggestion rows.
type Analyzer struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// New constructs an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Analyzer{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		timeout: timeout,
	}, nil
}

// AnalyzePage generates up to maxSuggestions internal-link suggestions
// for one source page. Rows the model returns without the required
// fields are dropped rather than failing the call; transport or API
// errors are returned and terminate the job.
func (a *Analyzer) AnalyzePage(
	ctx context.Context,
	page prospect.Page,
	catalog []prospect.Page,
	maxSuggestions int,
) ([]prospect.Suggestion, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = 5
	}
	prompt := buildPrompt(page, catalog, maxSuggestions)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	content, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(content, page.URL, maxSuggestions), nil
}

// complete performs the chat completion with bounded retries on rate
// limit responses.
func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(a.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// suggestionItem mirrors the JSON shape the prompt asks the model for.
type suggestionItem struct {
	AnchorText  string `json:"anchor_text"`
	TargetURL   string `json:"target_url"`
	EntityMatch string `json:"entity_match"`
}

// ParseSuggestions decodes the model output into suggestion rows. It
// accepts a bare JSON array or extracts the first bracketed block from
// surrounding prose, drops items missing anchor text or target URL,
// and caps the result at maxSuggestions. Unparseable output yields an
// empty slice, matching the collaborator contract that a bad response
// for one page is not fatal.
func ParseSuggestions(content, sourceURL string, maxSuggestions int) []prospect.Suggestion {
	text := strings.TrimSpace(content)
	var items []suggestionItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		match := jsonArrayPattern.FindString(text)
		if match == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(match), &items); err != nil {
			return nil
		}
	}

	rows := make([]prospect.Suggestion, 0, len(items))
	for _, item := range items {
		if item.AnchorText == "" || item.TargetURL == "" {
			continue
		}
		rows = append(rows, prospect.Suggestion{
			SourceURL:      sourceURL,
			AnchorText:     item.AnchorText,
			TargetURL:      item.TargetURL,
			MatchRationale: item.EntityMatch,
		})
		if len(rows) == maxSuggestions {
			break
		}
	}
	return rows
}
