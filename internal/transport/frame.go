package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// FrameType discriminates the JSON payload of a frame.
type FrameType string

const (
	// FrameContent carries an incremental text fragment to append.
	FrameContent FrameType = "content"
	// FrameSuggestions carries follow-up prompts. It may arrive before the done frame.
	FrameSuggestions FrameType = "suggestions"
	// FrameDone terminates the stream. No frame follows it.
	FrameDone FrameType = "done"
	// FrameInfo is a connection notice sent by the push endpoint. It never carries answer text.
	FrameInfo FrameType = "info"
)

// DataPrefix marks a frame line in a chunked stream body.
const DataPrefix = "data: "

// ErrMalformedFrame is returned by DecodeFrame for payloads that are not a typed JSON object.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded unit of a streaming response.
type Frame struct {
	Type        FrameType `json:"type"`
	Content     string    `json:"content,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Enhanced    *bool     `json:"enhanced,omitempty"`
}

// ContentFrame returns a content frame carrying text.
func ContentFrame(text string) Frame {
	return Frame{Type: FrameContent, Content: text}
}

// SuggestionsFrame returns a suggestions frame.
func SuggestionsFrame(suggestions []string) Frame {
	return Frame{Type: FrameSuggestions, Suggestions: suggestions}
}

// DoneFrame returns a terminal frame.
func DoneFrame(suggestions []string, enhanced bool) Frame {
	return Frame{Type: FrameDone, Suggestions: suggestions, Enhanced: &enhanced}
}

// DecodeFrame parses one JSON payload. Payloads without a type are malformed; unknown types decode
// successfully and are left for the caller to ignore.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}

// EncodeFrame renders the JSON payload of a frame, without the data prefix.
func EncodeFrame(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("error marshaling frame: %w", err)
	}
	return b, nil
}

// MaxLineSize bounds one line of a chunked stream body, newline included.
const MaxLineSize = 64 << 10

// DataLines splits a chunked stream body on line boundaries and yields the payload of every line that
// starts with DataPrefix. Several frames may share one read and a frame may straddle two reads; only
// complete lines are yielded, except for a trailing unterminated line at end of body. Blank payloads
// and lines without the prefix are skipped. A line longer than MaxLineSize is discarded and reported
// as ErrMalformedFrame without ending the sequence. Read errors other than io.EOF are yielded once and
// end the sequence.
func DataLines(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		br := bufio.NewReaderSize(r, MaxLineSize)
		for {
			line, err := br.ReadSlice('\n')
			if errors.Is(err, bufio.ErrBufferFull) {
				for errors.Is(err, bufio.ErrBufferFull) {
					_, err = br.ReadSlice('\n')
				}
				line = nil
				if !yield(nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedFrame, MaxLineSize)) {
					return
				}
			}
			if len(line) > 0 {
				line = bytes.TrimRight(line, "\r\n")
				if payload, ok := bytes.CutPrefix(line, []byte(DataPrefix)); ok && len(bytes.TrimSpace(payload)) > 0 {
					// The reader reuses its buffer on the next read.
					if !yield(bytes.Clone(payload), nil) {
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
		}
	}
}
