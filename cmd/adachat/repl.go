package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/uphera/adachat/internal/chat"
	"github.com/uphera/adachat/internal/models"
)

// repl reads messages line by line until EOF or "/quit". "/N" sends the N-th suggestion of the last
// answer. An interrupt while an answer streams stops that answer only.
func repl(ctx context.Context, conv *chat.Conversation, in io.Reader, p *printer) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		close(sig)
	}()
	go func() {
		for range sig {
			conv.Cancel()
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		p.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		var (
			res chat.Result
			err error
		)
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/"):
			n, convErr := strconv.Atoi(strings.TrimPrefix(line, "/"))
			if convErr != nil {
				p.notice("unknown command %q", line)
				continue
			}
			res, err = conv.SendSuggestion(ctx, n-1)
		default:
			res, err = conv.Send(ctx, line)
		}

		switch {
		case errors.Is(err, chat.ErrNoSuggestion):
			p.notice("no such suggestion")
			continue
		case err != nil:
			return err
		}
		p.result(res)
	}
}

// printer writes turns to the terminal as they stream.
type printer struct {
	mu sync.Mutex
	w  io.Writer

	// printed is the number of bytes of turnID already written.
	turnID  string
	printed int
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// update writes what the turn gained since the last call.
func (p *printer) update(t models.Turn) {
	if t.Role != models.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.ID != p.turnID {
		p.turnID = t.ID
		p.printed = 0
		fmt.Fprint(p.w, "\nAda: ")
	}
	if len(t.Text) > p.printed {
		fmt.Fprint(p.w, t.Text[p.printed:])
		p.printed = len(t.Text)
	}
}

// turn writes a complete turn.
func (p *printer) turn(t models.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	who := "Sen"
	if t.Role == models.RoleAssistant {
		who = "Ada"
	}
	fmt.Fprintf(p.w, "%s: %s\n", who, t.Text)
	p.suggestions(t.Suggestions)
}

// result closes the streamed turn.
func (p *printer) result(res chat.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w)
	switch res.Kind {
	case chat.ResultPartial:
		fmt.Fprintln(p.w, "(bağlantı kesildi, yanıtın bir kısmı gösteriliyor)")
	case chat.ResultOffline:
		fmt.Fprintln(p.w, "(çevrimdışı yanıt)")
	case chat.ResultAborted:
		fmt.Fprintln(p.w, "(durduruldu)")
	}
	p.suggestions(res.Turn.Suggestions)
}

func (p *printer) suggestions(s []string) {
	for i, sg := range s {
		fmt.Fprintf(p.w, "  /%d %s\n", i+1, sg)
	}
}

func (p *printer) prompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\n> ")
}

func (p *printer) notice(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}
