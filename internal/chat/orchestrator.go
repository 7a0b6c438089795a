package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/offline"
	"github.com/uphera/adachat/internal/transport"
)

const errLoggerKey = "err"

// Default attempt budgets.
const (
	DefaultStreamTimeout     = 55 * time.Second
	DefaultSingleShotTimeout = 45 * time.Second
)

// Step is one planned (mode, candidate) pairing of a cascade.
type Step struct {
	Mode      transport.Mode
	Candidate transport.Candidate
	// Fallback marks single-shot steps appended after a streaming plan.
	Fallback bool
}

// Plan lays out the cascade for a capability profile. Without streaming every candidate gets a single-shot
// request in rank order. The server-push stream is only tried against the highest-ranked candidate; the
// chunked POST stream is tried against every candidate. Streaming plans end with the single-shot cascade
// as a last resort.
func Plan(profile transport.CapabilityProfile, candidates transport.CandidateList) []Step {
	steps := make([]Step, 0, 2*candidates.Len())
	each := func(mode transport.Mode, fallback bool) {
		for c, ok := candidates.Next(-1); ok; c, ok = candidates.Next(c.Rank) {
			steps = append(steps, Step{Mode: mode, Candidate: c, Fallback: fallback})
		}
	}

	switch {
	case !profile.PreferStreaming:
		each(transport.ModeSingleShot, false)
		return steps
	case profile.PreferServerPush:
		if c, ok := candidates.First(); ok {
			steps = append(steps, Step{Mode: transport.ModeServerPush, Candidate: c})
		}
	default:
		each(transport.ModeChunkedPost, false)
	}

	each(transport.ModeSingleShot, true)
	return steps
}

// Transports holds one transport per mode.
type Transports struct {
	ServerPush  transport.Transport
	ChunkedPost transport.Transport
	SingleShot  transport.Transport
}

// NewTransports creates the three HTTP transports sharing opts.
func NewTransports(opts transport.Options) Transports {
	return Transports{
		ServerPush:  transport.NewServerPush(opts),
		ChunkedPost: transport.NewChunkedPost(opts),
		SingleShot:  transport.NewSingleShot(opts),
	}
}

func (t Transports) get(m transport.Mode) transport.Transport {
	switch m {
	case transport.ModeServerPush:
		return t.ServerPush
	case transport.ModeChunkedPost:
		return t.ChunkedPost
	case transport.ModeSingleShot:
		return t.SingleShot
	default:
		return nil
	}
}

// Config configures an Orchestrator.
type Config struct {
	Candidates transport.CandidateList
	Profile    transport.CapabilityProfile
	Transports Transports

	// Zero values select DefaultStreamTimeout and DefaultSingleShotTimeout.
	StreamTimeout     time.Duration
	SingleShotTimeout time.Duration

	// Offline synthesizes the degraded answer. Nil means offline.Respond.
	Offline func(message, context string) offline.Response

	Logger *slog.Logger
}

// ResultKind is the terminal outcome of a send.
type ResultKind int

const (
	ResultFull ResultKind = iota
	ResultPartial
	ResultOffline
	ResultAborted
)

func (k ResultKind) String() string {
	switch k {
	case ResultFull:
		return "full"
	case ResultPartial:
		return "partial"
	case ResultOffline:
		return "offline"
	case ResultAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result describes how a send ended.
type Result struct {
	Kind     ResultKind
	Turn     models.Turn
	Attempts []Attempt
}

// ErrorKind classifies why an attempt failed.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorConnect
	ErrorStatus
	ErrorTimeout
	ErrorAborted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorConnect:
		return "connect"
	case ErrorStatus:
		return "status"
	case ErrorTimeout:
		return "timeout"
	case ErrorAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Classify maps an attempt to its error kind. Responses that could not be used (no body, empty answer,
// wrong content type, stream ended early) count as connect errors.
func Classify(a Attempt) ErrorKind {
	switch a.Outcome {
	case OutcomeSucceeded:
		return ErrorNone
	case OutcomeAborted:
		return ErrorAborted
	case OutcomeTimedOut:
		return ErrorTimeout
	}

	var se *transport.StatusError
	if errors.As(a.Err, &se) {
		return ErrorStatus
	}
	var ne net.Error
	if errors.As(a.Err, &ne) && ne.Timeout() {
		return ErrorTimeout
	}
	return ErrorConnect
}

// Orchestrator runs the fallback cascade for outgoing messages. It is safe for concurrent use; each Send
// works on its own buffer.
type Orchestrator struct {
	candidates transport.CandidateList
	profile    transport.CapabilityProfile
	transports Transports

	streamTimeout     time.Duration
	singleShotTimeout time.Duration

	offline func(message, context string) offline.Response

	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator from cfg.
func NewOrchestrator(cfg Config) Orchestrator {
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.SingleShotTimeout == 0 {
		cfg.SingleShotTimeout = DefaultSingleShotTimeout
	}
	if cfg.Offline == nil {
		cfg.Offline = offline.Respond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logger := cfg.Logger.With(slog.String("module", "orchestrator"))

	addrs := make([]string, 0, cfg.Candidates.Len())
	for _, c := range cfg.Candidates.All() {
		addrs = append(addrs, c.Address)
	}
	logger.Debug("Orchestrator ready",
		slog.String("mode", cfg.Profile.Mode().String()),
		slog.Any("candidates", addrs),
	)

	return Orchestrator{
		candidates:        cfg.Candidates,
		profile:           cfg.Profile,
		transports:        cfg.Transports,
		streamTimeout:     cfg.StreamTimeout,
		singleShotTimeout: cfg.SingleShotTimeout,
		offline:           cfg.Offline,
		logger:            logger,
	}
}

// Plan returns the cascade this orchestrator runs for every message.
func (o Orchestrator) Plan() []Step {
	return Plan(o.profile, o.candidates)
}

// Send runs the cascade for req, streaming into buf, and always leaves the turn final. Attempts run one at
// a time and every attempt writes through a fresh writer, so an abandoned attempt can never append to
// the turn. The first attempt that delivered any content ends the cascade: a completed stream is kept
// as is, a broken one is kept as a partial answer. Only when no attempt delivered anything is the
// offline answer substituted. Cancelling ctx finalizes the turn with whatever it holds.
func (o Orchestrator) Send(ctx context.Context, req transport.Request, buf *Buffer) Result {
	var attempts []Attempt

	for _, step := range o.Plan() {
		t := o.transports.get(step.Mode)
		if t == nil {
			continue
		}

		timeout := o.streamTimeout
		if !step.Mode.Streaming() {
			timeout = o.singleShotTimeout
		}

		att := NewSession(t, timeout, o.logger).Run(ctx, step.Candidate, req, buf.Writer())
		attempts = append(attempts, att)

		switch {
		case att.State == StateSucceeded:
			buf.Finalize(att.Suggestions, att.Enhanced)
			o.logger.Info("Answer delivered",
				slog.String("mode", att.Mode.String()),
				slog.String("candidate", att.Candidate.Address),
				slog.Int("attempts", len(attempts)),
			)
			return Result{Kind: ResultFull, Turn: buf.Turn(), Attempts: attempts}
		case att.Outcome == OutcomeAborted:
			buf.Finalize(nil, req.Enhanced)
			o.logger.Info("Send aborted", slog.Int("attempts", len(attempts)))
			return Result{Kind: ResultAborted, Turn: buf.Turn(), Attempts: attempts}
		case att.Partial():
			buf.Finalize(nil, req.Enhanced)
			o.logger.Info("Keeping partial answer",
				slog.String("mode", att.Mode.String()),
				slog.String("candidate", att.Candidate.Address),
				slog.String("kind", Classify(att).String()),
				slog.String(errLoggerKey, att.Err.Error()),
			)
			return Result{Kind: ResultPartial, Turn: buf.Turn(), Attempts: attempts}
		}

		o.logger.Debug("Attempt failed, trying next",
			slog.String("mode", att.Mode.String()),
			slog.String("candidate", att.Candidate.Address),
			slog.String("kind", Classify(att).String()),
		)
	}

	resp := o.offline(req.Message, req.Context)
	if !buf.FinalizeDegraded(resp.Text, resp.Suggestions) {
		// The turn already held content.
		return Result{Kind: ResultPartial, Turn: buf.Turn(), Attempts: attempts}
	}
	o.logger.Warn("All attempts failed, answering offline", slog.Int("attempts", len(attempts)))

	return Result{Kind: ResultOffline, Turn: buf.Turn(), Attempts: attempts}
}
