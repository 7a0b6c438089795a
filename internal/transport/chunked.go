package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
)

// ChunkedPost opens POST requests whose event-stream body is read incrementally, one "data: " line per
// frame.
type ChunkedPost struct {
	opts Options
}

// NewChunkedPost creates a chunked POST transport.
func NewChunkedPost(opts Options) ChunkedPost {
	opts.Paths = opts.Paths.orDefault()
	return ChunkedPost{opts: opts}
}

// Mode implements Transport.
func (ChunkedPost) Mode() Mode {
	return ModeChunkedPost
}

// Open posts the request with stream set and returns once the response headers arrived.
func (p ChunkedPost) Open(ctx context.Context, c Candidate, req Request) (Conn, error) {
	jsonBody, err := json.Marshal(streamBody{
		Message:             req.Message,
		Context:             req.Context,
		UserData:            req.UserData,
		ConversationHistory: history(req),
		Stream:              true,
		UseEnhanced:         req.Enhanced,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Address+p.opts.Paths.Stream, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	p.opts.apply(hr)
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Accept", "text/event-stream")

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

	return &bodyConn{body: resp.Body, frames: chunkedFrames}, nil
}

func chunkedFrames(body io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for payload, err := range DataLines(body) {
			if errors.Is(err, ErrMalformedFrame) {
				if !yield(Frame{}, err) {
					return
				}
				continue
			}
			if err != nil {
				yield(Frame{}, fmt.Errorf("error reading response: %w", err))
				return
			}
			if !yield(DecodeFrame(payload)) {
				return
			}
		}
	}
}
