package worker

import (
	"time"

	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/kv"
	"github.com/tomfle18/aiostreams/internal/lock"
	"github.com/tomfle18/aiostreams/internal/userdata"
)

// InitPruneWorker sweeps expired locks, kv rows and stale users.
func InitPruneWorker() *Worker {
	return NewWorker(&WorkerConfig{
		Name:              "prune-expired",
		Interval:          config.PruneInterval,
		RunAtStartupAfter: 1 * time.Minute,
		Executor: func(w *Worker) error {
			if count, err := lock.Prune(); err != nil {
				w.Log.Error("failed to prune locks", "error", err)
			} else if count > 0 {
				w.Log.Info("pruned locks", "count", count)
			}

			if count, err := kv.Prune(); err != nil {
				w.Log.Error("failed to prune kv rows", "error", err)
			} else if count > 0 {
				w.Log.Info("pruned kv rows", "count", count)
			}

			if count, err := userdata.Prune(config.PruneMaxDays); err != nil {
				w.Log.Error("failed to prune users", "error", err)
			} else if count > 0 {
				w.Log.Info("pruned users", "count", count)
			}

			return nil
		},
	})
}
