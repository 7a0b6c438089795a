package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"
	"github.com/uphera/adachat/internal/models"
)

// Anthropic answers through the Anthropic messages API.
type Anthropic struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string

	client *http.Client

	logger *slog.Logger
}

type anthropicRequest struct {
	Model     string          `json:"model"`
	System    string          `json:"system,omitempty"`
	Messages  []anthropicTurn `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
	Stream    bool            `json:"stream"`
}

type anthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent holds the fields read from content_block_delta, message_delta and error events, and
// from error response bodies.
type anthropicEvent struct {
	Delta struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	// AnthropicAPIEndpoint is the default API base URL.
	AnthropicAPIEndpoint = "https://api.anthropic.com/v1"

	anthropicVersion = "2023-06-01"
	// The API rejects requests without max_tokens.
	defaultAnthropicMaxTokens = 1024
)

// NewAnthropic creates an Anthropic backend. An empty endpoint selects AnthropicAPIEndpoint and a
// non-positive maxTokens selects 1024.
func NewAnthropic(apiKey, model string, maxTokens int, endpoint string, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = AnthropicAPIEndpoint
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return Anthropic{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  strings.TrimRight(endpoint, "/"),
		client:    &http.Client{},
		logger:    logger.With(slog.String("module", "anthropic")),
	}
}

// anthropicTurns splits the conversation into the system prompt and the alternating turns the API
// accepts. Assistant turns before the first user turn, such as a welcome message, are dropped and
// consecutive turns of one role are merged.
func anthropicTurns(messages []models.Message) (string, []anthropicTurn) {
	var (
		system []string
		turns  []anthropicTurn
	)
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case models.RoleSystem:
			system = append(system, msg.Content)
			continue
		case models.RoleAssistant:
			if len(turns) == 0 {
				continue
			}
		}

		role := string(msg.Role)
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + msg.Content
			continue
		}
		turns = append(turns, anthropicTurn{Role: role, Content: msg.Content})
	}
	return strings.Join(system, "\n\n"), turns
}

// Chat streams the answer to messages. The stream ends at message_stop; an error event ends it with
// an error.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := a.send(ctx, messages)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", err)
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}

			switch ev.Type {
			case "message_stop":
				return
			case "content_block_delta", "message_delta", "error":
			default:
				continue
			}

			var e anthropicEvent
			if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
				yield("", fmt.Errorf("error unmarshaling %s event: %w", ev.Type, err))
				return
			}

			switch ev.Type {
			case "error":
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_delta":
				if e.Delta.StopReason == "max_tokens" {
					a.logger.Warn("Answer cut at the token limit", slog.Int("maxTokens", a.maxTokens))
				}
			default:
				if e.Delta.Text != "" && !yield(e.Delta.Text, nil) {
					return
				}
			}
		}
	}
}

func (a Anthropic) send(ctx context.Context, messages []models.Message) (*http.Response, error) {
	system, turns := anthropicTurns(messages)
	if len(turns) == 0 {
		return nil, errors.New("no user message to answer")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		System:    system,
		Messages:  turns,
		MaxTokens: a.maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var e anthropicEvent
	if json.Unmarshal(msg, &e) == nil && e.Error.Message != "" {
		return nil, fmt.Errorf("unexpected status code: %d, anthropic error %s: %s", resp.StatusCode, e.Error.Type, e.Error.Message)
	}
	return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, msg)
}
