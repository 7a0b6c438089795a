package transport

import (
	"context"
	"fmt"
	"io"
	"iter"
	"mime"
	"net/http"
	"net/url"

	"github.com/tmaxmax/go-sse"
)

// ServerPush opens GET-initiated event streams. It never reconnects: a dropped stream is reported to the
// caller, which decides what to try next.
type ServerPush struct {
	opts Options
}

// NewServerPush creates a server-push transport.
func NewServerPush(opts Options) ServerPush {
	opts.Paths = opts.Paths.orDefault()
	return ServerPush{opts: opts}
}

// Mode implements Transport.
func (ServerPush) Mode() Mode {
	return ModeServerPush
}

// Open issues the GET request carrying message, context, response_mode and the user id, when known, as
// query parameters.
func (p ServerPush) Open(ctx context.Context, c Candidate, req Request) (Conn, error) {
	q := url.Values{}
	q.Set("message", req.Message)
	q.Set("context", req.Context)
	mode := req.ResponseMode
	if mode == "" {
		mode = "auto"
	}
	q.Set("response_mode", mode)
	if req.UserData != nil && req.UserData.ID != "" {
		q.Set("user_id", req.UserData.ID)
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Address+p.opts.Paths.StreamGet+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	p.opts.apply(hr)
	hr.Header.Set("Accept", "text/event-stream")
	hr.Header.Set("Cache-Control", "no-cache")

	resp, err := p.opts.client().Do(hr)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if !success(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	return &bodyConn{body: resp.Body, frames: pushFrames}, nil
}

func pushFrames(body io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for ev, err := range sse.Read(body, nil) {
			if err != nil {
				yield(Frame{}, fmt.Errorf("error reading event: %w", err))
				return
			}
			if ev.Data == "" {
				continue
			}
			if !yield(DecodeFrame([]byte(ev.Data))) {
				return
			}
		}
	}
}
