package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"

	"github.com/uphera/adachat/internal/models"
)

// Errors reported by transports. Every one of them is recoverable by trying another attempt.
var (
	ErrNoBody         = errors.New("response has no body")
	ErrEmptyResponse  = errors.New("response carries no answer")
	ErrStreamEnded    = errors.New("stream ended before done frame")
	ErrNotEventStream = errors.New("response is not an event stream")
)

// StatusError is returned when the server answers with a non-success status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

const errorBodyLimit = 512

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func success(code int) bool {
	return code >= 200 && code < 300
}

// UserData is the profile excerpt attached to a request when the user is known.
type UserData struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	UpschoolBatch string   `json:"upschool_batch,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	CareerGoal    string   `json:"career_goal,omitempty"`
}

// Request is what the user asked, in transport-neutral form.
type Request struct {
	Message string
	Context string

	UserData *UserData
	History  []models.HistoryEntry

	Enhanced bool
	// ResponseMode is "auto", "short" or "long". Only the push stream sends it.
	ResponseMode string
}

type streamBody struct {
	Message             string                `json:"message"`
	Context             string                `json:"context"`
	UserData            *UserData             `json:"user_data"`
	ConversationHistory []models.HistoryEntry `json:"conversation_history"`
	Stream              bool                  `json:"stream"`
	UseEnhanced         bool                  `json:"use_enhanced"`
}

type singleShotBody struct {
	Message             string                `json:"message"`
	Context             string                `json:"context"`
	UserData            *UserData             `json:"user_data"`
	ConversationHistory []models.HistoryEntry `json:"conversation_history"`
	UseStreaming        bool                  `json:"use_streaming"`
	UseEnhanced         bool                  `json:"use_enhanced"`
}

func history(req Request) []models.HistoryEntry {
	if req.History == nil {
		return []models.HistoryEntry{}
	}
	return req.History
}

// Paths are the endpoint paths appended to a candidate address.
type Paths struct {
	// Chat is the single-shot path on loopback candidates.
	Chat string
	// Edge is the single-shot path on every other candidate. Empty means Chat.
	Edge string
	// Stream is the chunked POST stream path.
	Stream string
	// StreamGet is the server-push stream path.
	StreamGet string
}

// DefaultPaths are the paths served by the assistant API.
var DefaultPaths = Paths{
	Chat:      "/ai-coach/chat",
	Edge:      "/api/ai-coach/chat",
	Stream:    "/ai-coach/chat/stream",
	StreamGet: "/ai-coach/chat/stream-get",
}

func (p Paths) orDefault() Paths {
	if p == (Paths{}) {
		return DefaultPaths
	}
	return p
}

// Options configure a transport.
type Options struct {
	// Client performs the requests. Nil means a client without a global timeout; attempts are bounded
	// by their context instead.
	Client *http.Client
	// Paths override DefaultPaths when non-zero.
	Paths Paths
	// Header is added to every request, e.g. an Authorization header.
	Header http.Header
}

func (o Options) client() *http.Client {
	if o.Client == nil {
		return &http.Client{}
	}
	return o.Client
}

func (o Options) apply(req *http.Request) {
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// Conn is an opened attempt. Frames yields decoded frames in arrival order. An error wrapping
// ErrMalformedFrame concerns one frame only and the sequence continues after it; any other error ends
// the sequence. Close releases the connection and is safe to call more than once.
type Conn interface {
	Frames() iter.Seq2[Frame, error]
	Close() error
}

// Transport opens attempts of one mode against a candidate. Open returns once the server answered with
// a success status and a readable body.
type Transport interface {
	Mode() Mode
	Open(ctx context.Context, c Candidate, req Request) (Conn, error)
}

type bodyConn struct {
	body   io.ReadCloser
	frames func(io.Reader) iter.Seq2[Frame, error]

	once     sync.Once
	closeErr error
}

func (c *bodyConn) Frames() iter.Seq2[Frame, error] {
	return c.frames(c.body)
}

func (c *bodyConn) Close() error {
	c.once.Do(func() {
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
