package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MegaGrindStone/chat-playground/internal/consumer"
	"github.com/MegaGrindStone/chat-playground/internal/models"
)

// printer writes only what a message gained since the last update.
type printer struct {
	out, reasoning io.Writer

	id                 string
	textLen, reasonLen int
}

func main() {
	endpoint := flag.String("endpoint", "http://127.0.0.1:8080/api/chat", "chat proxy endpoint")
	model := flag.String("model", "", "model name to chat with")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *model == "" {
		fmt.Fprintln(os.Stderr, "-model is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, consumer.NewClient(*endpoint, nil, logger), *model, os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client consumer.Client, model string, in io.Reader, out, errOut io.Writer) error {
	var transcript models.Transcript

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}

		p := &printer{out: out, reasoning: errOut}
		err := client.Send(ctx, model, &transcript, prompt, p.update)
		fmt.Fprintln(out)

		var statusErr *consumer.StatusError
		switch {
		case err == nil:
		case errors.As(err, &statusErr):
			fmt.Fprintf(errOut, "Something went wrong. Please try again (%d)\n", statusErr.StatusCode)
		default:
			return err
		}
	}
}

func (p *printer) update(m models.Message) {
	if m.Role != models.RoleAssistant {
		return
	}
	if m.ID != p.id {
		p.id, p.textLen, p.reasonLen = m.ID, 0, 0
	}

	if r := m.Reasoning(); len(r) > p.reasonLen {
		fmt.Fprintf(p.reasoning, "\x1b[2m%s\x1b[0m", r[p.reasonLen:])
		p.reasonLen = len(r)
	}
	if t := m.Text(); len(t) > p.textLen {
		fmt.Fprint(p.out, t[p.textLen:])
		p.textLen = len(t)
	}
}
