package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/internal/observability"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/state"
)

// newReplCommand builds an interactive local debugging session: an
// in-process broker/store/worker, one fixed session_id, and a
// liner-driven prompt loop that submits a query and prints its events
// as they stream back.
func newReplCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively submit queries against an in-process worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(parseLevel("warn"))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			b, store, _, reg, llm, err := wireBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			defer store.Close()

			w := newConfiguredWorker(b, store, cfg, reg, llm, logger)
			go func() { _ = w.Run(ctx) }()

			return runRepl(ctx, b, cmd.OutOrStdout())
		},
	}
}

func runRepl(ctx context.Context, b broker.Broker, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	sessionID := uuid.New().String()
	fmt.Fprintf(out, "qagraph repl — session %s (Ctrl-D to quit)\n", sessionID)

	for {
		query, err := line.Prompt("qagraph> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		if query == "" {
			continue
		}
		line.AppendHistory(query)

		if err := submitAndStream(ctx, b, sessionID, query, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func submitAndStream(ctx context.Context, b broker.Broker, sessionID, query string, out io.Writer) error {
	job := &state.Job{
		RequestID:  uuid.New().String(),
		SessionID:  sessionID,
		Query:      query,
		EnqueuedAt: time.Now().UTC(),
	}

	sub, err := b.Subscribe(ctx, job.RequestID)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := b.Enqueue(ctx, job); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-sub.Events():
			if !open {
				return nil
			}
			switch ev.Kind {
			case state.EventNode:
				if p, ok := ev.Payload.(state.NodePayload); ok {
					fmt.Fprintf(out, "  -> %s\n", p.Name)
				}
			case state.EventComplete:
				if p, ok := ev.Payload.(state.CompletePayload); ok {
					fmt.Fprintf(out, "%s\n", p.FinalAnswer)
				}
				return nil
			case state.EventError:
				if p, ok := ev.Payload.(state.ErrorPayload); ok {
					return fmt.Errorf("%s: %s", p.Stage, p.Error)
				}
				return fmt.Errorf("job failed")
			}
		}
	}
}
