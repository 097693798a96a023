package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/ingest"
)

func newIngestCommand(opts *globalOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "ingest --from <app> [text...]",
		Short: "Process notification text from a payment app",
		Long: "Process notification text as if posted by the given app. With no text\n" +
			"arguments every non-empty line on stdin is one notification.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			stop := a.printEvents(out)

			if len(args) > 0 {
				reportResult(out, from, a.pipeline.Ingest(from, strings.Join(args, " ")))
			} else {
				err = ingestLines(cmd.InOrStdin(), out, a, from)
			}

			a.drain()
			stop()
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "originating app package name (e.g. net.one97.paytm)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func ingestLines(in io.Reader, out io.Writer, a *app, from string) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		reportResult(out, from, a.pipeline.Ingest(from, text))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// reportResult prints the results that produce no event.
func reportResult(out io.Writer, from string, r ingest.Result) {
	switch r {
	case ingest.Ignored:
		fmt.Fprintf(out, "IGNORED %s is not a supported payment app\n", from)
	case ingest.NoMatch:
		fmt.Fprintln(out, "SKIPPED no payment found in notification")
	}
}

type notification struct {
	Originator string `json:"originator"`
	Text       string `json:"text"`
}

func newWatchCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process JSON notifications from stdin until EOF or interrupt",
		Long: "Read one JSON object per line, {\"originator\": \"...\", \"text\": \"...\"},\n" +
			"and print every event as it is recorded.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stop := a.printEvents(cmd.OutOrStdout())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			err = runWatch(ctx, cmd.InOrStdin(), a)
			a.drain()
			stop()
			return err
		},
	}
}

func runWatch(ctx context.Context, in io.Reader, a *app) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watch interrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("reading stdin: %w", err)
				}
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var n notification
			if err := json.Unmarshal([]byte(line), &n); err != nil {
				a.logger.Warn("skipping malformed notification", "error", err)
				continue
			}
			r := a.pipeline.Ingest(n.Originator, n.Text)
			a.logger.Debug("notification processed", "originator", n.Originator, "result", r.String())
		}
	}
}
