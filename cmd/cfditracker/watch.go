package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-tracker/internal/async"
	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/ingest"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		dirs     []string
		batchArg string
		initial  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Extract documents as they appear in directories and store them in a batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(dirs) == 0 {
				return fmt.Errorf("--dir is required")
			}
			ctx := cmd.Context()

			repo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(repo)

			id, err := a.resolveBatch(ctx, repo, batchArg)
			if err != nil {
				return err
			}
			ctx = common.WithBatchID(ctx, id.String())
			log := common.LoggerFromContext(ctx, a.logger)

			agg, err := a.aggregator(nil)
			if err != nil {
				return err
			}

			paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       dirs,
				InitialScan: initial,
				Debounce:    debounce,
				SkipHidden:  true,
			}, a.logger)
			if err != nil {
				return err
			}
			seen := ingest.NewSeen()
			queue := async.NewWorkerQueue(func(jctx context.Context, job async.Job) {
				a.ingestPath(common.WithBatchID(jctx, id.String()), agg, repo, seen, id, job.Path)
			}, a.logger, async.WithWorkers(a.cfg.Extract.Workers), async.WithProcessTimeout(time.Minute))
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				queue.Shutdown(sctx)
			}()

			log.Info("watch.started", "dirs", dirs)
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %v into batch %s\n", dirs, id)

			for {
				select {
				case p, ok := <-paths:
					if !ok {
						return nil
					}
					if err := queue.Enqueue(ctx, async.Job{Path: p}); err != nil {
						log.Warn("watch.enqueue.failed", "path", p, "err", err)
					}
				case err, ok := <-errs:
					if !ok {
						return nil
					}
					log.Warn("watch.error", "err", err)
				}
			}
		},
	}
	cmd.Flags().StringSliceVar(&dirs, "dir", nil, "directory to watch, recursively (repeatable)")
	cmd.Flags().StringVar(&batchArg, "batch", "", "existing batch id to append to (a new batch is created when empty)")
	cmd.Flags().BoolVar(&initial, "initial-scan", true, "process documents already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is processed")
	return cmd
}

func (a *app) resolveBatch(ctx context.Context, repo repository.BatchRepository, raw string) (uuid.UUID, error) {
	if raw == "" {
		b, err := repo.Create(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		return b.ID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: --batch must be a UUID", common.ErrInvalidInput)
	}
	if _, err := repo.Get(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ingestPath extracts one file and appends its record. A file whose size and
// modification time match the last ingest is skipped; a genuinely rewritten
// file appends a new record. Failures are logged and the watch keeps running.
func (a *app) ingestPath(ctx context.Context, agg *batch.Aggregator, repo repository.BatchRepository, seen *ingest.Seen, id uuid.UUID, path string) {
	log := common.LoggerFromContext(ctx, a.logger)
	changed, err := seen.Changed(path)
	if err != nil {
		log.Warn("watch.file.skipped", "path", path, "err", err)
		return
	}
	if !changed {
		log.Debug("watch.file.unchanged", "path", path)
		return
	}
	up, err := ingest.FileUpload(path)
	if err != nil {
		log.Warn("watch.file.skipped", "path", path, "err", err)
		return
	}
	res, err := agg.Process(ctx, []batch.Upload{up})
	if err != nil {
		log.Warn("watch.file.abandoned", "path", path, "err", err)
		return
	}
	for _, r := range res.Rejected {
		log.Warn("watch.file.rejected", "path", path, "reason", r.Reason)
	}
	if len(res.Records) == 0 {
		return
	}
	if err := repo.AppendRecords(ctx, id, res.Records); err != nil {
		seen.Forget(path)
		log.Error("watch.file.store_failed", "path", path, "err", err)
		return
	}
	log.Info("watch.file.ok", "path", path, "failed", res.Failed)
}
