package chat_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/chat"
	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/transport"
)

type item struct {
	frame transport.Frame
	err   error
}

type fakeConn struct {
	ctx   context.Context
	items []item
	// hang blocks after the items until the attempt context ends.
	hang bool

	closed atomic.Int32
}

func (c *fakeConn) Frames() iter.Seq2[transport.Frame, error] {
	return func(yield func(transport.Frame, error) bool) {
		for _, it := range c.items {
			if !yield(it.frame, it.err) {
				return
			}
		}
		if c.hang {
			<-c.ctx.Done()
			yield(transport.Frame{}, c.ctx.Err())
		}
	}
}

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return nil
}

type fakeTransport struct {
	mode  transport.Mode
	items []item
	hang  bool
	err   error

	opened atomic.Int32
	last   *fakeConn
}

func (t *fakeTransport) Mode() transport.Mode {
	return t.mode
}

func (t *fakeTransport) Open(ctx context.Context, _ transport.Candidate, _ transport.Request) (transport.Conn, error) {
	t.opened.Add(1)
	if t.err != nil {
		return nil, t.err
	}
	t.last = &fakeConn{ctx: ctx, items: t.items, hang: t.hang}
	return t.last, nil
}

func content(s string) item {
	return item{frame: transport.ContentFrame(s)}
}

func done(suggestions []string, enhanced bool) item {
	return item{frame: transport.DoneFrame(suggestions, enhanced)}
}

var testCandidate = transport.Candidate{Address: "http://127.0.0.1:8000"}

func TestSessionRun(t *testing.T) {
	tests := []struct {
		name  string
		tr    *fakeTransport
		check func(t *testing.T, att chat.Attempt)
	}{
		{
			name: "Completed stream",
			tr: &fakeTransport{mode: transport.ModeChunkedPost, items: []item{
				content("Merhaba"),
				{frame: transport.Frame{Type: transport.FrameInfo, Content: "connected"}},
				content(" dünya"),
				{frame: transport.SuggestionsFrame([]string{"a"})},
				done(nil, true),
				content("after done"),
			}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.StateSucceeded, att.State)
				assert.Equal(t, chat.OutcomeSucceeded, att.Outcome)
				assert.NoError(t, att.Err)
				assert.Equal(t, "Merhaba dünya", att.Text)
				assert.Equal(t, []string{"a"}, att.Suggestions)
				assert.True(t, att.Enhanced)
				assert.Equal(t, 5, att.Frames)
				assert.False(t, att.Partial())
			},
		},
		{
			name: "Done suggestions replace stashed ones",
			tr: &fakeTransport{mode: transport.ModeServerPush, items: []item{
				{frame: transport.SuggestionsFrame([]string{"a"})},
				done([]string{"b"}, false),
			}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.OutcomeSucceeded, att.Outcome)
				assert.Equal(t, []string{"b"}, att.Suggestions)
				assert.False(t, att.Enhanced)
			},
		},
		{
			name: "Malformed frames are skipped",
			tr: &fakeTransport{mode: transport.ModeChunkedPost, items: []item{
				{err: fmt.Errorf("%w: bad", transport.ErrMalformedFrame)},
				content("ok"),
				{err: fmt.Errorf("%w: bad", transport.ErrMalformedFrame)},
				done(nil, true),
			}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.OutcomeSucceeded, att.Outcome)
				assert.Equal(t, 2, att.Skipped)
				assert.Equal(t, "ok", att.Text)
			},
		},
		{
			name: "Stream ends before done",
			tr:   &fakeTransport{mode: transport.ModeChunkedPost, items: []item{content("Kısmi")}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.StateFailed, att.State)
				assert.Equal(t, chat.OutcomeTransportError, att.Outcome)
				require.ErrorIs(t, att.Err, transport.ErrStreamEnded)
				assert.True(t, att.Partial())
				assert.Equal(t, chat.ErrorConnect, chat.Classify(att))
			},
		},
		{
			name: "Whitespace before a reset",
			tr: &fakeTransport{mode: transport.ModeChunkedPost, items: []item{
				content(" \n"),
				{err: errors.New("connection reset")},
			}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.OutcomeTransportError, att.Outcome)
				assert.Equal(t, " \n", att.Text)
				assert.False(t, att.Partial())
			},
		},
		{
			name: "Read error",
			tr: &fakeTransport{mode: transport.ModeChunkedPost, items: []item{
				{err: errors.New("connection reset")},
				content("never"),
			}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.OutcomeTransportError, att.Outcome)
				assert.Empty(t, att.Text)
				assert.False(t, att.Partial())
			},
		},
		{
			name: "Status error",
			tr:   &fakeTransport{mode: transport.ModeSingleShot, err: &transport.StatusError{Code: 500}},
			check: func(t *testing.T, att chat.Attempt) {
				assert.Equal(t, chat.StateFailed, att.State)
				assert.Equal(t, chat.OutcomeTransportError, att.Outcome)
				assert.Equal(t, chat.ErrorStatus, chat.Classify(att))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := chat.NewBuffer(models.Turn{}, nil)

			att := chat.NewSession(tt.tr, time.Second, nil).
				Run(context.Background(), testCandidate, transport.Request{Message: "x"}, buf.Writer())

			assert.Equal(t, tt.tr.mode, att.Mode)
			assert.Equal(t, testCandidate, att.Candidate)
			assert.False(t, att.Finished.Before(att.Started))
			assert.Equal(t, att.Text, buf.Turn().Text)
			if tt.tr.last != nil {
				assert.Positive(t, tt.tr.last.closed.Load())
			}
			tt.check(t, att)
		})
	}
}

func TestSessionRunTimeout(t *testing.T) {
	tr := &fakeTransport{mode: transport.ModeChunkedPost, items: []item{content("Kısmi")}, hang: true}
	buf := chat.NewBuffer(models.Turn{}, nil)

	att := chat.NewSession(tr, 20*time.Millisecond, nil).
		Run(context.Background(), testCandidate, transport.Request{}, buf.Writer())

	assert.Equal(t, chat.OutcomeTimedOut, att.Outcome)
	assert.Equal(t, chat.ErrorTimeout, chat.Classify(att))
	assert.True(t, att.Partial())
	assert.Equal(t, "Kısmi", buf.Turn().Text)
	assert.Equal(t, att.Started.Add(20*time.Millisecond), att.Deadline)
	assert.Positive(t, tr.last.closed.Load())
}

func TestSessionRunAborted(t *testing.T) {
	t.Run("Canceled before opening", func(t *testing.T) {
		tr := &fakeTransport{mode: transport.ModeSingleShot}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		att := chat.NewSession(tr, time.Second, nil).
			Run(ctx, testCandidate, transport.Request{}, chat.NewBuffer(models.Turn{}, nil).Writer())

		assert.Equal(t, chat.OutcomeAborted, att.Outcome)
		assert.Equal(t, chat.ErrorAborted, chat.Classify(att))
		assert.Zero(t, tr.opened.Load())
	})

	t.Run("Canceled while streaming", func(t *testing.T) {
		tr := &fakeTransport{mode: transport.ModeServerPush, items: []item{content("Kısmi")}, hang: true}
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		att := chat.NewSession(tr, 0, nil).
			Run(ctx, testCandidate, transport.Request{}, chat.NewBuffer(models.Turn{}, nil).Writer())

		assert.Equal(t, chat.OutcomeAborted, att.Outcome)
		assert.Equal(t, "Kısmi", att.Text)
		assert.True(t, att.Deadline.IsZero())
	})

	t.Run("Writer revoked", func(t *testing.T) {
		tr := &fakeTransport{mode: transport.ModeChunkedPost, items: []item{content("a"), done(nil, true)}}
		buf := chat.NewBuffer(models.Turn{}, nil)
		w := buf.Writer()
		buf.Writer()

		att := chat.NewSession(tr, time.Second, nil).Run(context.Background(), testCandidate, transport.Request{}, w)

		assert.Equal(t, chat.OutcomeAborted, att.Outcome)
		assert.Empty(t, buf.Turn().Text)
	})
}

func TestStateAndOutcomeString(t *testing.T) {
	assert.Equal(t, "streaming", chat.StateStreaming.String())
	assert.Equal(t, "timed_out", chat.OutcomeTimedOut.String())
	assert.Equal(t, "unknown", chat.State(42).String())
}
