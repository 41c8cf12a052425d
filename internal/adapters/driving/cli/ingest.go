package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/watcher"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

var (
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestBatchSize    int
	ingestWatch        bool
	ingestQuiet        bool
)

var ingestCmd = &cobra.Command{
	Use:     "ingest <file.pdf>...",
	Aliases: []string{"add"},
	Short:   "Index PDF documents",
	Long: `Loads each PDF, splits its pages into overlapping chunks, embeds them and
stores them in the collection. Re-ingesting a document replaces its chunks.

With --watch, ragchat keeps running and re-ingests a document whenever it
is written again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.IntVar(&ingestChunkSize, "chunk-size", 0, "maximum chunk length in characters (default from config)")
	f.IntVar(&ingestChunkOverlap, "chunk-overlap", 0, "characters shared by neighbouring chunks (default from config)")
	f.IntVar(&ingestBatchSize, "batch-size", 0, "chunks embedded per request (default from config)")
	f.BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest documents when they change")
	f.BoolVarP(&ingestQuiet, "quiet", "q", false, "print only errors")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	svc, err := services.Ingestion(ctx)
	if err != nil {
		return err
	}

	opts := ingestOptions(cmd)

	var failed int
	for _, path := range args {
		if err := ingestOne(ctx, cmd, svc, path, opts); err != nil {
			failed++
			cmd.PrintErrf("Error: %s: %s\n", path, shell.Describe(err))
		}
	}

	if ingestWatch {
		return watchAndIngest(ctx, cmd, svc, args, opts)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// ingestOptions maps the flags that were set to per-call overrides.
func ingestOptions(cmd *cobra.Command) domain.IngestOptions {
	var opts domain.IngestOptions
	if cmd.Flags().Changed("chunk-size") {
		size := ingestChunkSize
		opts.ChunkSize = &size
	}
	if cmd.Flags().Changed("chunk-overlap") {
		overlap := ingestChunkOverlap
		opts.ChunkOverlap = &overlap
	}
	opts.BatchSize = ingestBatchSize
	return opts
}

func ingestOne(
	ctx context.Context, cmd *cobra.Command, svc driving.IngestionService, path string, opts domain.IngestOptions,
) error {
	if !ingestQuiet {
		cmd.Printf("Ingesting %s\n", path)
		opts.Progress = func(done, total int) {
			cmd.Printf("\r  %d/%d chunks stored", done, total)
			if done == total {
				cmd.Println()
			}
		}
	}

	report, err := svc.Ingest(ctx, path, opts)
	if err != nil {
		return err
	}
	if !ingestQuiet {
		shell.RenderReport(cmd.OutOrStdout(), report)
	}
	return nil
}

func watchAndIngest(
	ctx context.Context, cmd *cobra.Command, svc driving.IngestionService, paths []string, opts domain.IngestOptions,
) error {
	w, err := watcher.New(watcher.Config{Paths: paths}, func(ctx context.Context, path string) error {
		return ingestOne(ctx, cmd, svc, path, opts)
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cmd.Printf("Watching %d document(s) for changes. Press Ctrl+C to stop.\n", len(paths))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
