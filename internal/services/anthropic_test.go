package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/services"
)

func collect(seq func(func(string, error) bool)) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

var conversation = []models.Message{
	{Role: models.RoleSystem, Content: "Sistem"},
	{Role: models.RoleUser, Content: "Selam"},
}

func TestAnthropicChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var body struct {
			Model    string `json:"model"`
			System   string `json:"system"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude", body.Model)
		assert.Equal(t, "Sistem", body.System)
		assert.True(t, body.Stream)
		assert.Len(t, body.Messages, 1)

		w.Header().Set("Content-Type", "text/event-stream")
		events := []struct{ typ, data string }{
			{"message_start", `{"type":"message_start"}`},
			{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"Mer"}}`},
			{"ping", `{"type":"ping"}`},
			{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"haba"}}`},
			{"message_stop", `{"type":"message_stop"}`},
			{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"late"}}`},
		}
		for _, ev := range events {
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.typ, ev.data)
		}
	}))
	defer srv.Close()

	a := services.NewAnthropic("key", "claude", 1024, srv.URL, discardLogger())
	got, err := collect(a.Chat(context.Background(), conversation))
	require.NoError(t, err)
	assert.Equal(t, "Merhaba", got)
}

func TestAnthropicChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "Status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, "bad key")
			},
			wantErr: "unexpected status code: 401",
		},
		{
			name: "Status with error body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Slow down"}}`)
			},
			wantErr: "unexpected status code: 429, anthropic error rate_limit_error: Slow down",
		},
		{
			name: "Error event",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "event: content_block_delta\ndata: {\"delta\":{\"text\":\"a\"}}\n\n")
				_, _ = io.WriteString(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
			},
			wantErr: "anthropic error overloaded_error: Overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := collect(services.NewAnthropic("key", "claude", 1024, srv.URL, discardLogger()).Chat(context.Background(), conversation))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnthropicChatTurns(t *testing.T) {
	type requestBody struct {
		System    string `json:"system"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	received := make(chan requestBody, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body requestBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: message_delta\ndata: {\"delta\":{\"stop_reason\":\"max_tokens\"}}\n\n")
		_, _ = io.WriteString(w, "event: message_stop\ndata: {}\n\n")
	}))
	defer srv.Close()

	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "Sistem"},
		{Role: models.RoleAssistant, Content: "Hoş geldin!"},
		{Role: models.RoleUser, Content: "Selam"},
		{Role: models.RoleUser, Content: "Orada mısın?"},
		{Role: models.RoleAssistant, Content: "  "},
		{Role: models.RoleAssistant, Content: "Buradayım"},
		{Role: models.RoleUser, Content: "CV"},
	}
	got, err := collect(services.NewAnthropic("key", "claude", 0, srv.URL+"/", discardLogger()).Chat(context.Background(), msgs))
	require.NoError(t, err)
	assert.Empty(t, got)

	body := <-received
	assert.Equal(t, "Sistem", body.System)
	assert.Equal(t, 1024, body.MaxTokens)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "Selam\n\nOrada mısın?", body.Messages[0].Content)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, "Buradayım", body.Messages[1].Content)
	assert.Equal(t, "CV", body.Messages[2].Content)
}

func TestAnthropicChatWithoutUserMessage(t *testing.T) {
	a := services.NewAnthropic("key", "claude", 0, "http://127.0.0.1:1", discardLogger())

	_, err := collect(a.Chat(context.Background(), []models.Message{{Role: models.RoleSystem, Content: "Sistem"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user message")
}
