package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/liliang-cn/askbook/internal/corpus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestDir   string
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the documentation corpus",
	Long: `Reads every document under the docs directory, splits it into chunks and
stores the chunks that are not indexed yet. Rerunning over an unchanged
corpus stores nothing. With --watch the corpus is re-ingested on change.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDir, "dir", "d", "", "Docs directory (default ingest.docs_dir)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "Keep running and re-ingest on changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.requireReady(ctx); err != nil {
		return err
	}

	dir := ingestDir
	if dir == "" {
		dir = a.cfg.Ingest.DocsDir
	}

	report, err := a.ingest.Ingest(ctx, dir)
	if err != nil {
		return err
	}
	cmd.Printf("Processed %d documents (%d failed): %d chunks, %d stored, %d duplicates\n",
		report.Documents, report.Failed, report.Chunks, report.Stored, report.Duplicates)

	if !ingestWatch {
		return nil
	}

	cmd.Printf("Watching %s for changes...\n", dir)
	return corpus.Watch(ctx, dir, a.cfg.Ingest.WatchDebounce, a.logger, func(ctx context.Context) {
		report, err := a.ingest.Ingest(ctx, dir)
		if err != nil {
			a.logger.Error("Re-ingestion failed", zap.Error(err))
			return
		}
		cmd.Printf("Re-ingested: %d stored, %d duplicates\n", report.Stored, report.Duplicates)
	})
}
