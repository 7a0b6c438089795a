package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/offline"
	"github.com/uphera/adachat/internal/transport"
)

// HistoryLimit is the number of prior turns sent along with a message.
const HistoryLimit = 6

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrClosed       = errors.New("conversation is closed")
	ErrNoSuggestion = errors.New("no such suggestion")
)

// Sender runs the cascade for one outgoing message.
type Sender interface {
	Send(ctx context.Context, req transport.Request, buf *Buffer) Result
}

// ConversationConfig configures a Conversation.
type ConversationConfig struct {
	// Context is the declared conversation context, e.g. "general" or "interview".
	Context string
	// Enhanced asks the assistant for the insight-oriented mode.
	Enhanced bool
	// ResponseMode is "auto", "short" or "long".
	ResponseMode string
	UserData     *transport.UserData

	// Welcome opens the conversation with the context-specific greeting.
	Welcome bool

	// OnUpdate receives every turn change in order, including each appended fragment.
	OnUpdate func(models.Turn)

	Logger *slog.Logger
}

// Conversation owns the turns of one chat. Only one message is in flight at a time: sending a new message
// cancels the previous one and waits for its turn to become final.
type Conversation struct {
	id     string
	cfg    ConversationConfig
	sender Sender

	// sendMu is held for the whole cascade of a message.
	sendMu sync.Mutex

	mu     sync.Mutex
	turns  []models.Turn
	cancel context.CancelFunc
	closed bool

	logger *slog.Logger
}

// NewConversation creates a conversation that sends through s.
func NewConversation(s Sender, cfg ConversationConfig) *Conversation {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Conversation{
		id:     uuid.NewString(),
		cfg:    cfg,
		sender: s,
	}
	c.logger = cfg.Logger.With(slog.String("module", "conversation"), slog.String("conversation", c.id))

	if cfg.Welcome {
		w := offline.Welcome(cfg.Context, cfg.Enhanced)
		c.turns = append(c.turns, models.Turn{
			ID:          uuid.NewString(),
			Role:        models.RoleAssistant,
			Text:        w.Text,
			CreatedAt:   time.Now(),
			Suggestions: w.Suggestions,
			Enhanced:    cfg.Enhanced,
		})
	}
	return c
}

// Send appends a user turn with text and an assistant turn, then fills the assistant turn through the
// cascade. It returns once the assistant turn is final. The only errors are an empty message and a
// closed conversation; transport failures end in a partial or offline answer instead.
func (c *Conversation) Send(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	history := models.History(c.turns, HistoryLimit)

	now := time.Now()
	c.turns = append(c.turns, models.Turn{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Text:      text,
		CreatedAt: now,
	})
	answer := models.Turn{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		CreatedAt: now,
		Streaming: true,
	}
	idx := len(c.turns)
	c.turns = append(c.turns, answer)

	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	buf := NewBuffer(answer, func(t models.Turn) {
		c.mu.Lock()
		c.turns[idx] = t
		c.mu.Unlock()
		if c.cfg.OnUpdate != nil {
			c.cfg.OnUpdate(t.Clone())
		}
	})

	req := transport.Request{
		Message:      text,
		Context:      c.cfg.Context,
		UserData:     c.cfg.UserData,
		History:      history,
		Enhanced:     c.cfg.Enhanced,
		ResponseMode: c.cfg.ResponseMode,
	}

	res := c.sender.Send(sctx, req, buf)
	if buf.Finalize(nil, req.Enhanced) {
		c.logger.Warn("Sender returned without finalizing the turn")
		res.Turn = buf.Turn()
	}
	c.logger.Debug("Message answered",
		slog.String("kind", res.Kind.String()),
		slog.Int("attempts", len(res.Attempts)),
	)
	return res, nil
}

// SendSuggestion sends the i-th suggestion of the latest assistant turn.
func (c *Conversation) SendSuggestion(ctx context.Context, i int) (Result, error) {
	c.mu.Lock()
	var suggestion string
	for j := len(c.turns) - 1; j >= 0; j-- {
		t := c.turns[j]
		if t.Role != models.RoleAssistant {
			continue
		}
		if !t.Streaming && i >= 0 && i < len(t.Suggestions) {
			suggestion = t.Suggestions[i]
		}
		break
	}
	c.mu.Unlock()

	if suggestion == "" {
		return Result{}, ErrNoSuggestion
	}
	return c.Send(ctx, suggestion)
}

// Cancel aborts the message in flight, if any. Its turn keeps whatever content arrived. Calling Cancel
// when nothing is in flight does nothing.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Close cancels the message in flight and waits until its turn is final. Later sends fail with ErrClosed.
func (c *Conversation) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return nil
}

// Turns returns a snapshot of every turn in order.
func (c *Conversation) Turns() []models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := make([]models.Turn, len(c.turns))
	for i, t := range c.turns {
		turns[i] = t.Clone()
	}
	return turns
}
