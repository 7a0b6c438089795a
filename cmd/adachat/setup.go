package main

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/uphera/adachat/internal/chat"
	"github.com/uphera/adachat/internal/transport"
)

// setup is everything derived from the command line once per process.
type setup struct {
	candidates transport.CandidateList
	profile    transport.CapabilityProfile

	opts              transport.Options
	streamTimeout     time.Duration
	singleShotTimeout time.Duration

	userData *transport.UserData
	logger   *slog.Logger
}

func newSetup(c *cli.Context) setup {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	origin := c.String("origin")
	env := transport.Environment{
		Host:               hostOf(origin),
		UserAgent:          c.String("user-agent"),
		DisableStreaming:   c.Bool("disable-stream"),
		LockedDownSuffixes: c.StringSlice("locked-down-host"),
	}
	profile := transport.Detect(env)

	hc := transport.HostContext{
		Origin:     origin,
		LockedDown: profile.Signals.LockedDownHost,
		Remote:     c.String("remote"),
	}
	if !c.Bool("no-loopback") {
		hc.Loopback = c.StringSlice("loopback")
	}
	candidates := transport.Candidates(hc)

	logger.Debug("Transport profile",
		slog.Bool("preferStreaming", profile.PreferStreaming),
		slog.Bool("preferServerPush", profile.PreferServerPush),
		slog.Bool("lockedDown", hc.LockedDown),
		slog.Int("candidates", candidates.Len()),
	)

	var userData *transport.UserData
	if id := c.String("user-id"); id != "" {
		userData = &transport.UserData{ID: id, Name: c.String("user-name")}
	}

	var opts transport.Options
	if token := c.String("token"); token != "" {
		opts.Header = http.Header{"Authorization": []string{"Bearer " + token}}
	}

	return setup{
		candidates:        candidates,
		opts:              opts,
		profile:           profile,
		streamTimeout:     c.Duration("timeout"),
		singleShotTimeout: c.Duration("single-shot-timeout"),
		userData:          userData,
		logger:            logger,
	}
}

func (s setup) orchestrator() chat.Orchestrator {
	return chat.NewOrchestrator(chat.Config{
		Candidates:        s.candidates,
		Profile:           s.profile,
		Transports:        chat.NewTransports(s.opts),
		StreamTimeout:     s.streamTimeout,
		SingleShotTimeout: s.singleShotTimeout,
		Logger:            s.logger,
	})
}

func hostOf(origin string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
