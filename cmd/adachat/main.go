package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/uphera/adachat/internal/chat"
	"github.com/uphera/adachat/internal/transport"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "adachat",
		Usage:     "Chat with the Ada AI career assistant from the terminal",
		Version:   version,
		ArgsUsage: "[message]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "origin",
				Usage:   "Same-origin deployment `URL`, tried first",
				EnvVars: []string{"ADACHAT_ORIGIN"},
			},
			&cli.StringFlag{
				Name:    "remote",
				Usage:   "Remote assistant API `URL`",
				Value:   "https://uphera.vercel.app",
				EnvVars: []string{"ADACHAT_API_URL"},
			},
			&cli.StringSliceFlag{
				Name:    "loopback",
				Usage:   "Local development `URL`, tried last (repeatable)",
				Value:   cli.NewStringSlice(transport.DefaultLoopback...),
				EnvVars: []string{"ADACHAT_LOOPBACK"},
			},
			&cli.BoolFlag{
				Name:  "no-loopback",
				Usage: "Never try local development addresses",
			},
			&cli.StringSliceFlag{
				Name:  "locked-down-host",
				Usage: "Host `SUFFIX` of single-origin edge deployments (repeatable)",
				Value: cli.NewStringSlice(transport.DefaultLockedDownSuffixes...),
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Usage:   "User agent `STRING` used for capability detection",
				Value:   "adachat/" + version,
				EnvVars: []string{"ADACHAT_USER_AGENT"},
			},
			&cli.BoolFlag{
				Name:    "disable-stream",
				Usage:   "Use single-shot requests only",
				EnvVars: []string{"ADACHAT_DISABLE_STREAM"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Budget of one streaming attempt",
				Value: chat.DefaultStreamTimeout,
			},
			&cli.DurationFlag{
				Name:  "single-shot-timeout",
				Usage: "Budget of one single-shot attempt",
				Value: chat.DefaultSingleShotTimeout,
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Conversation `CONTEXT`: general, profile, interview or network",
				Value: "general",
			},
			&cli.BoolFlag{
				Name:  "enhanced",
				Usage: "Ask for insight-oriented answers",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "response-mode",
				Usage: "Answer length: auto, short or long",
				Value: "auto",
			},
			&cli.StringFlag{
				Name:    "user-id",
				Usage:   "Profile `ID` sent with every message",
				Value:   "demo_user",
				EnvVars: []string{"ADACHAT_USER_ID"},
			},
			&cli.StringFlag{
				Name:    "user-name",
				Usage:   "Profile name sent with every message",
				EnvVars: []string{"ADACHAT_USER_NAME"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer `TOKEN` sent with every request",
				EnvVars: []string{"ADACHAT_TOKEN"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every attempt",
				EnvVars: []string{"ADACHAT_VERBOSE"},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	s := newSetup(c)

	p := newPrinter(c.App.Writer)
	conv := chat.NewConversation(s.orchestrator(), chat.ConversationConfig{
		Context:      c.String("context"),
		Enhanced:     c.Bool("enhanced"),
		ResponseMode: c.String("response-mode"),
		UserData:     s.userData,
		Welcome:      c.NArg() == 0,
		OnUpdate:     p.update,
		Logger:       s.logger,
	})
	defer conv.Close()

	if c.NArg() > 0 {
		res, err := conv.Send(c.Context, strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return err
		}
		p.result(res)
		return nil
	}

	for _, t := range conv.Turns() {
		p.turn(t)
	}
	return repl(c.Context, conv, c.App.Reader, p)
}
