package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groundcheck-ai/groundcheck/internal/pipeline"
)

func newQueryCmd() *cobra.Command {
	var mode string
	var budgetMS int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Run one query through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.Request{
				Query:           strings.Join(args, " "),
				Mode:            mode,
				LatencyBudgetMS: budgetMS,
			}
			return runQuery(cmd.Context(), req, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "normal", "Answer mode: normal or strict")
	cmd.Flags().IntVar(&budgetMS, "budget-ms", 0, "Latency budget in milliseconds (0 uses the server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}

func runQuery(ctx context.Context, req pipeline.Request, asJSON bool, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if req.LatencyBudgetMS <= 0 {
		req.LatencyBudgetMS = cfg.Server.DefaultBudgetMS
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.queries.Execute(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, resp.Answer)
	fmt.Fprintf(out, "\ndecision=%s confidence=%.4f", resp.Decision, resp.Confidence)
	if len(resp.Reasons) > 0 {
		fmt.Fprintf(out, " reasons=%s", strings.Join(resp.Reasons, ","))
	}
	fmt.Fprintln(out)
	for i, c := range resp.Citations {
		fmt.Fprintf(out, "[%d] %s\n", i+1, c.TextSnippet)
	}
	return nil
}
