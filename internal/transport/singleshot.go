package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
)

const singleShotBodyLimit = 4 << 20

// SingleShot posts a buffered request and turns the JSON answer into a content frame followed by a done
// frame, so callers can treat it like a stream that delivered everything at once.
type SingleShot struct {
	opts Options
}

type singleShotResponse struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
}

// NewSingleShot creates a single-shot transport.
func NewSingleShot(opts Options) SingleShot {
	opts.Paths = opts.Paths.orDefault()
	return SingleShot{opts: opts}
}

// Mode implements Transport.
func (SingleShot) Mode() Mode {
	return ModeSingleShot
}

// Path returns the endpoint path used for the candidate.
func (s SingleShot) Path(c Candidate) string {
	if c.Loopback() || s.opts.Paths.Edge == "" {
		return s.opts.Paths.Chat
	}
	return s.opts.Paths.Edge
}

// Open performs the whole request. It fails unless the status is 2xx and the body is a JSON object with
// a non-empty response.
func (s SingleShot) Open(ctx context.Context, c Candidate, req Request) (Conn, error) {
	jsonBody, err := json.Marshal(singleShotBody{
		Message:             req.Message,
		Context:             req.Context,
		UserData:            req.UserData,
		ConversationHistory: history(req),
		UseStreaming:        false,
		UseEnhanced:         req.Enhanced,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Address+s.Path(c), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	s.opts.apply(hr)
	hr.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.client().Do(hr)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return nil, statusError(resp)
	}

	var res singleShotResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, singleShotBodyLimit)).Decode(&res); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if res.Response == "" {
		return nil, ErrEmptyResponse
	}

	return singleShotConn{res: res}, nil
}

type singleShotConn struct {
	res singleShotResponse
}

func (c singleShotConn) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if !yield(ContentFrame(c.res.Response), nil) {
			return
		}
		yield(DoneFrame(c.res.Suggestions, true), nil)
	}
}

func (singleShotConn) Close() error {
	return nil
}
