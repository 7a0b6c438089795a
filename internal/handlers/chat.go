package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/transport"
)

const (
	defaultContext = "general"
	anonymousUser  = "anonymous"

	requestBodyLimit = 1 << 20
)

type chatRequest struct {
	Message             string                `json:"message"`
	Context             string                `json:"context"`
	UserData            *transport.UserData   `json:"user_data"`
	ConversationHistory []models.HistoryEntry `json:"conversation_history"`
	UseEnhanced         *bool                 `json:"use_enhanced"`
	ResponseMode        string                `json:"response_mode"`
}

type chatResponse struct {
	Success     bool     `json:"success"`
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
	Enhanced    bool     `json:"enhanced"`
}

// exchange is one request prepared for the backend.
type exchange struct {
	conversationID string
	message        string
	messages       []models.Message
	enhanced       bool
}

var (
	errClientGone = errors.New("client went away")
	errShutdown   = errors.New("server is shutting down")
)

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, requestBodyLimit)).Decode(&req); err != nil {
		return chatRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return chatRequest{}, errors.New("'message' field is required")
	}
	return req, nil
}

// prepare records the conversation and builds the backend messages. Stored history is used when the
// request carries none.
func (m Main) prepare(ctx context.Context, req chatRequest) (exchange, error) {
	chatContext := strings.ToLower(strings.TrimSpace(req.Context))
	if chatContext == "" {
		chatContext = defaultContext
	}
	userID := anonymousUser
	if req.UserData != nil && req.UserData.ID != "" {
		userID = req.UserData.ID
	}
	enhanced := true
	if req.UseEnhanced != nil {
		enhanced = *req.UseEnhanced
	}

	ex := exchange{
		conversationID: conversationID(userID, chatContext),
		message:        req.Message,
		enhanced:       enhanced,
	}

	err := m.store.AddConversation(ctx, models.Conversation{
		ID:        ex.conversationID,
		UserID:    userID,
		Context:   chatContext,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return exchange{}, fmt.Errorf("failed to add conversation: %w", err)
	}

	history := req.ConversationHistory
	if len(history) == 0 {
		stored, err := m.store.Messages(ctx, ex.conversationID)
		if err != nil {
			return exchange{}, fmt.Errorf("failed to get messages: %w", err)
		}
		history = models.HistoryFromMessages(stored, m.historyLimit)
	}

	system := systemPrompt(m.systemPrompt, chatContext, req.UserData, req.ResponseMode, enhanced)
	ex.messages = buildMessages(system, history, req.Message)
	return ex, nil
}

// record stores the user message and, when not empty, the answer.
func (m Main) record(ex exchange, answer string) {
	// The request context may already be cancelled.
	ctx := context.Background()
	now := time.Now()

	msgs := []models.Message{{ID: uuid.NewString(), Role: models.RoleUser, Content: ex.message, Timestamp: now}}
	if answer != "" {
		msgs = append(msgs, models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: answer, Timestamp: now})
	}
	for _, msg := range msgs {
		if _, err := m.store.AddMessage(ctx, ex.conversationID, msg); err != nil {
			m.logger.Error("Failed to add message",
				slog.String("conversation", ex.conversationID),
				slog.String("role", string(msg.Role)),
				slog.String(errLoggerKey, err.Error()))
			return
		}
	}
}

// HandleChat answers a message with a single JSON body once the backend finished. A backend failure
// before any output yields 502; a failure after some output returns what was produced.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeChatRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	ex, err := m.prepare(r.Context(), req)
	if err != nil {
		m.logger.Error("Failed to prepare chat", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	var sb strings.Builder
	for chunk, err := range m.llm.Chat(r.Context(), ex.messages) {
		if err != nil {
			if sb.Len() == 0 {
				m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
				writeJSON(w, http.StatusBadGateway, errorResponse{Detail: fmt.Sprintf("AI servis hatası: %s", err)})
				return
			}
			m.logger.Warn("LLM failed mid answer, returning partial answer",
				slog.Int("chars", sb.Len()),
				slog.String(errLoggerKey, err.Error()))
			break
		}
		sb.WriteString(chunk)
	}

	answer := sb.String()
	if strings.TrimSpace(answer) == "" {
		m.logger.Error("LLM returned an empty answer")
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: "AI servisi yanıt üretmedi"})
		return
	}

	m.record(ex, answer)

	writeJSON(w, http.StatusOK, chatResponse{
		Success:     true,
		Response:    answer,
		Suggestions: m.suggestions.Chat,
		Enhanced:    ex.enhanced,
	})
}

// HandleChatStream answers a posted message as a frame stream: content frames as the backend produces
// text, then a suggestions frame and the done frame. The stream only starts once the backend produced its
// first chunk, so a backend that fails right away yields 502 instead of an empty stream.
func (m Main) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeChatRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	ex, err := m.prepare(r.Context(), req)
	if err != nil {
		m.logger.Error("Failed to prepare chat", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	chunks := produce(ctx, m.llm.Chat(ctx, ex.messages))
	first, ok := <-chunks
	switch {
	case !ok:
		m.logger.Error("LLM returned an empty answer")
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: "AI servisi yanıt üretmedi"})
		return
	case first.err != nil:
		m.logger.Error("Error from llm provider", slog.String(errLoggerKey, first.err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: fmt.Sprintf("AI stream hatası: %s", first.err)})
		return
	}

	sess, err := upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade stream", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	answer, err := m.relay(ctx, sess, &first, chunks)
	m.finish(sess, ex, answer, err, false)
}

// HandleChatStreamGet answers a message passed as query parameters as a frame stream for clients that
// can only consume server-push streams. The stream opens with an info frame; backend failures are
// reported in a content frame followed by a done frame with enhanced unset.
func (m Main) HandleChatStreamGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := chatRequest{
		Message:      strings.TrimSpace(q.Get("message")),
		Context:      q.Get("context"),
		ResponseMode: q.Get("response_mode"),
	}
	if req.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "'message' query parameter is required"})
		return
	}
	if id := q.Get("user_id"); id != "" {
		req.UserData = &transport.UserData{ID: id}
	}

	ex, err := m.prepare(r.Context(), req)
	if err != nil {
		m.logger.Error("Failed to prepare chat", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	sess, err := upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade stream", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := sendFrame(sess, transport.Frame{Type: transport.FrameInfo, Content: "connected"}); err != nil {
		m.logger.Debug("Client went away before the first frame", slog.String(errLoggerKey, err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	answer, err := m.relay(ctx, sess, nil, produce(ctx, m.llm.Chat(ctx, ex.messages)))
	m.finish(sess, ex, answer, err, true)
}

// finish sends the terminal frames of a stream and records the exchange.
func (m Main) finish(sess *sse.Session, ex exchange, answer string, err error, inlineSuggestions bool) {
	defer m.record(ex, answer)

	switch {
	case errors.Is(err, errClientGone) || errors.Is(err, context.Canceled):
		m.logger.Debug("Stream abandoned by client", slog.Int("chars", len(answer)))
		return
	case err != nil:
		if !errors.Is(err, errShutdown) {
			m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		}
		if sendErr := sendFrame(sess, transport.ContentFrame("❌ Hata: "+err.Error())); sendErr != nil {
			return
		}
		_ = sendFrame(sess, transport.DoneFrame(nil, false))
		return
	}

	if inlineSuggestions {
		_ = sendFrame(sess, transport.DoneFrame(m.suggestions.Stream, ex.enhanced))
		return
	}
	if err := sendFrame(sess, transport.SuggestionsFrame(m.suggestions.Stream)); err != nil {
		return
	}
	_ = sendFrame(sess, transport.DoneFrame(nil, ex.enhanced))
}

type piece struct {
	text string
	err  error
}

// produce drains chunks on its own goroutine so the stream can send keep-alives while the backend is
// quiet. The channel is closed after the last chunk, after an error, or once ctx is done.
func produce(ctx context.Context, chunks iter.Seq2[string, error]) <-chan piece {
	ch := make(chan piece)
	go func() {
		defer close(ch)
		for text, err := range chunks {
			if err == nil && text == "" {
				continue
			}
			select {
			case ch <- piece{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// relay forwards chunks as content frames until the backend is done, and returns the text sent. Backend
// errors are returned as is; failures to write wrap errClientGone.
func (m Main) relay(ctx context.Context, sess *sse.Session, first *piece, chunks <-chan piece) (string, error) {
	var sb strings.Builder
	forward := func(p piece) error {
		if p.err != nil {
			return p.err
		}
		if err := sendFrame(sess, transport.ContentFrame(p.text)); err != nil {
			return err
		}
		sb.WriteString(p.text)
		return nil
	}

	if first != nil {
		if err := forward(*first); err != nil {
			return sb.String(), err
		}
	}

	ticker := time.NewTicker(m.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case p, ok := <-chunks:
			if !ok {
				return sb.String(), ctx.Err()
			}
			if err := forward(p); err != nil {
				return sb.String(), err
			}
			ticker.Reset(m.keepAlive)
		case <-ticker.C:
			if err := sendKeepAlive(sess); err != nil {
				return sb.String(), err
			}
		case <-m.closed:
			return sb.String(), errShutdown
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
}

func upgrade(w http.ResponseWriter, r *http.Request) (*sse.Session, error) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		return nil, err
	}
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	return sess, nil
}

func sendFrame(sess *sse.Session, f transport.Frame) error {
	data, err := transport.EncodeFrame(f)
	if err != nil {
		return err
	}

	msg := &sse.Message{}
	msg.AppendData(string(data))
	if err := sess.Send(msg); err != nil {
		return fmt.Errorf("%w: %w", errClientGone, err)
	}
	if err := sess.Flush(); err != nil {
		return fmt.Errorf("%w: %w", errClientGone, err)
	}
	return nil
}

func sendKeepAlive(sess *sse.Session) error {
	msg := &sse.Message{}
	msg.AppendComment("keep-alive")
	if err := sess.Send(msg); err != nil {
		return fmt.Errorf("%w: %w", errClientGone, err)
	}
	if err := sess.Flush(); err != nil {
		return fmt.Errorf("%w: %w", errClientGone, err)
	}
	return nil
}
