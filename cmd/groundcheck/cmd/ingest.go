package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse, chunk, and index documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := map[string]string{}
			for _, pair := range metaPairs {
				k, v, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("metadata must be key=value, got %q", pair)
				}
				metadata[k] = v
			}
			return runIngest(cmd.Context(), args, metadata, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "Document metadata as key=value (repeatable)")
	return cmd
}

func runIngest(ctx context.Context, paths []string, metadata map[string]string, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		result, err := a.ingestor.IngestFile(ctx, filepath.Base(path), data, metadata)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Fprintf(out, "%s: doc %s, %d chunks, %s\n", path, result.DocID, result.ChunksCreated, result.Status)
	}
	return nil
}
