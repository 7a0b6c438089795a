package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/services"
)

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.True(t, body.Stream)
		assert.Equal(t, "system", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"Mer"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"haba"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	defer srv.Close()

	o, err := services.NewOllama(srv.URL, "llama3")
	require.NoError(t, err)

	got, err := collect(o.Chat(context.Background(), conversation))
	require.NoError(t, err)
	assert.Equal(t, "Merhaba", got)
}

func TestOllamaChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"llama3\" not found"}`)
	}))
	defer srv.Close()

	o, err := services.NewOllama(srv.URL, "llama3")
	require.NoError(t, err)

	_, err = collect(o.Chat(context.Background(), conversation))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
