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

	"github.com/tmaxmax/go-sse"
	"github.com/uphera/adachat/internal/models"
)

// OpenRouter answers through the OpenRouter chat completion API.
type OpenRouter struct {
	apiKey   string
	model    string
	endpoint string

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openRouterStreamingResponse struct {
	Choices []openRouterStreamingChoice `json:"choices"`
}

type openRouterStreamingChoice struct {
	Delta openRouterMessage `json:"delta"`
}

// OpenRouterAPIEndpoint is the default API base URL.
const OpenRouterAPIEndpoint = "https://openrouter.ai/api/v1"

// NewOpenRouter creates an OpenRouter backend. An empty endpoint selects OpenRouterAPIEndpoint.
func NewOpenRouter(apiKey, model, endpoint string, logger *slog.Logger) OpenRouter {
	if endpoint == "" {
		endpoint = OpenRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "openrouter")),
	}
}

// Chat streams the answer to messages.
func (o OpenRouter) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := o.doRequest(ctx, messages)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
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

			if ev.Data == "[DONE]" {
				return
			}

			var res openRouterStreamingResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				// OpenRouter interleaves processing notices with the completion chunks.
				o.logger.Debug("Skipping event", slog.String("event", ev.Data))
				continue
			}

			if len(res.Choices) == 0 || res.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(res.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (o OpenRouter) doRequest(ctx context.Context, messages []models.Message) (*http.Response, error) {
	msgs := make([]openRouterMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		msgs = append(msgs, openRouterMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	jsonBody, err := json.Marshal(openRouterChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/uphera/adachat/")
	req.Header.Set("X-Title", "Ada AI")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
