package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/uphera/adachat/internal/transport"
)

// State is the lifecycle position of an attempt.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is how an attempt ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeTimedOut
	OutcomeTransportError
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Attempt records one try of a (mode, candidate) pairing.
type Attempt struct {
	Mode      transport.Mode
	Candidate transport.Candidate

	Started  time.Time
	Deadline time.Time
	Finished time.Time

	State   State
	Outcome Outcome
	Err     error

	// Text is the content this attempt appended to the buffer.
	Text        string
	Suggestions []string
	Enhanced    bool

	// Frames counts decoded frames; Skipped counts malformed ones.
	Frames  int
	Skipped int
}

// Partial reports whether the attempt failed after delivering content. Whitespace alone does not count.
func (a Attempt) Partial() bool {
	return a.State == StateFailed && strings.TrimSpace(a.Text) != ""
}

// Session runs attempts of one transport. Each attempt gets its own timeout budget.
type Session struct {
	transport transport.Transport
	timeout   time.Duration

	logger *slog.Logger
}

// NewSession creates a session controller for t. A non-positive timeout disables the attempt deadline,
// leaving the caller's context as the only bound.
func NewSession(t transport.Transport, timeout time.Duration, logger *slog.Logger) Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Session{
		transport: t,
		timeout:   timeout,
		logger:    logger.With(slog.String("module", "session"), slog.String("mode", t.Mode().String())),
	}
}

// Run performs one attempt against c, appending content through w. The connection is released before
// Run returns, whatever the outcome. Cancelling ctx aborts the attempt.
func (s Session) Run(ctx context.Context, c transport.Candidate, req transport.Request, w *Writer) Attempt {
	att := Attempt{
		Mode:      s.transport.Mode(),
		Candidate: c,
		Started:   time.Now(),
		State:     StateIdle,
	}

	var (
		actx   context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		att.Deadline = att.Started.Add(s.timeout)
		actx, cancel = context.WithDeadline(ctx, att.Deadline)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	logger := s.logger.With(slog.String("candidate", c.Address))

	if err := ctx.Err(); err != nil {
		return s.finish(ctx, actx, att, err, logger)
	}

	att.State = StateOpening
	conn, err := s.transport.Open(actx, c, req)
	if err != nil {
		return s.finish(ctx, actx, att, err, logger)
	}
	defer conn.Close()

	att.State = StateStreaming
	logger.Debug("Attempt streaming")

	var stashed []string
	for f, err := range conn.Frames() {
		if err != nil {
			if errors.Is(err, transport.ErrMalformedFrame) {
				att.Skipped++
				logger.Debug("Skipping malformed frame", slog.String(errLoggerKey, err.Error()))
				continue
			}
			return s.finish(ctx, actx, att, err, logger)
		}
		att.Frames++

		switch f.Type {
		case transport.FrameContent:
			if !w.Append(f.Content) {
				return s.finish(ctx, actx, att, errRevoked, logger)
			}
			att.Text += f.Content
		case transport.FrameSuggestions:
			stashed = f.Suggestions
		case transport.FrameDone:
			att.Suggestions = stashed
			if len(f.Suggestions) > 0 {
				att.Suggestions = f.Suggestions
			}
			if f.Enhanced != nil {
				att.Enhanced = *f.Enhanced
			}
			_ = conn.Close()
			return s.finish(ctx, actx, att, nil, logger)
		default:
			logger.Debug("Ignoring frame", slog.String("type", string(f.Type)))
		}
	}

	return s.finish(ctx, actx, att, transport.ErrStreamEnded, logger)
}

var errRevoked = errors.New("buffer writer revoked")

func (s Session) finish(ctx, actx context.Context, att Attempt, err error, logger *slog.Logger) Attempt {
	att.Finished = time.Now()
	att.Err = err

	switch {
	case err == nil:
		att.State = StateSucceeded
		att.Outcome = OutcomeSucceeded
	case ctx.Err() != nil || errors.Is(err, errRevoked):
		att.State = StateFailed
		att.Outcome = OutcomeAborted
	case errors.Is(actx.Err(), context.DeadlineExceeded):
		att.State = StateFailed
		att.Outcome = OutcomeTimedOut
	default:
		att.State = StateFailed
		att.Outcome = OutcomeTransportError
	}

	attrs := []any{
		slog.String("outcome", att.Outcome.String()),
		slog.Int("frames", att.Frames),
		slog.Int("chars", len(att.Text)),
		slog.Duration("duration", att.Finished.Sub(att.Started)),
	}
	if err != nil {
		attrs = append(attrs, slog.String(errLoggerKey, err.Error()))
	}
	logger.Debug("Attempt finished", attrs...)

	return att
}
