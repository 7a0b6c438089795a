package handlers

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/uphera/adachat/internal/models"
	"golang.org/x/time/rate"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a context
// and a sequence of messages, returning an iterator that yields response chunks and potential errors.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Store defines the interface for persisting assistant conversations. Conversations are keyed by user and
// context, and hold the messages exchanged in them in order.
type Store interface {
	AddConversation(ctx context.Context, conv models.Conversation) error
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)
}

// Suggestions are the follow-up prompts attached to answers.
type Suggestions struct {
	// Chat is offered after a single-shot answer.
	Chat []string `yaml:"chat"`
	// Stream is offered in the done frame of a stream.
	Stream []string `yaml:"stream"`
}

// DefaultSuggestions are used when none are configured.
var DefaultSuggestions = Suggestions{
	Chat: []string{
		"Teknik geçmişin ve deneyimlerinden biraz daha bahsetmek ister misin?",
		"Uzun vadeli kariyer hedeflerin neler?",
		"Teknik mülakatlara hazırlanmanda nasıl yardımcı olabilirim?",
		"Hangi becerilerini daha fazla geliştirmek istersin?",
		"Network geliştirme stratejileri hakkında konuşmak ister misin?",
	},
	Stream: []string{
		"Mülakat hazırlığı yapalım",
		"CV optimizasyonu",
		"Kariyer planlama",
		"Teknik beceri geliştirme",
	},
}

// Config tunes the assistant handlers. Zero values select the defaults.
type Config struct {
	SystemPrompt string
	Suggestions  Suggestions

	// HistoryLimit caps the stored messages replayed for requests that carry no history. Default 6.
	HistoryLimit int
	// KeepAlive is the idle interval after which a stream receives a comment. Default 10s.
	KeepAlive time.Duration

	// RateLimit is the sustained number of chat requests per second. Zero disables limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Main serves the assistant endpoints, relaying the answers of the LLM as JSON or as frame streams and
// recording every exchange in the Store.
type Main struct {
	llm   LLM
	store Store

	systemPrompt string
	suggestions  Suggestions
	historyLimit int
	keepAlive    time.Duration

	limiter *rate.Limiter

	closed    chan struct{}
	closeOnce *sync.Once

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	defaultHistoryLimit = 6
	defaultKeepAlive    = 10 * time.Second
)

// NewMain creates the handlers. A nil logger discards logs.
func NewMain(llm LLM, store Store, cfg Config, logger *slog.Logger) Main {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Suggestions.Chat == nil {
		cfg.Suggestions.Chat = DefaultSuggestions.Chat
	}
	if cfg.Suggestions.Stream == nil {
		cfg.Suggestions.Stream = DefaultSuggestions.Stream
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return Main{
		llm:          llm,
		store:        store,
		systemPrompt: cfg.SystemPrompt,
		suggestions:  cfg.Suggestions,
		historyLimit: cfg.HistoryLimit,
		keepAlive:    cfg.KeepAlive,
		limiter:      limiter,
		closed:       make(chan struct{}),
		closeOnce:    &sync.Once{},
		logger:       logger.With(slog.String("module", "main")),
	}
}

// RateLimit rejects requests with 429 once the configured rate is exceeded.
func (m Main) RateLimit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow() {
			m.logger.Warn("Rate limit exceeded", slog.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown ends every stream in flight with a done frame. Streams started afterwards end right after
// their connection notice.
func (m Main) Shutdown(context.Context) error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealth reports that the server is up.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now()})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
