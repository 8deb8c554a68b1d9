package jobs

import (
	"context"
	"log"
	"time"

	"semaphore/classroom/internal/config"
	"semaphore/classroom/internal/metrics"
)

// OrphanQueue is the ledger of uploaded objects nobody references.
type OrphanQueue interface {
	Pop(ctx context.Context, limit int) ([]string, error)
	Record(ctx context.Context, urls []string) error
	Size(ctx context.Context) (int64, error)
}

// ObjectDeleter removes stored objects by URL.
type ObjectDeleter interface {
	Delete(ctx context.Context, url string) error
}

func StartOrphanSweepJob(ctx context.Context, cfg config.Config, queue OrphanQueue, files ObjectDeleter) {
	if !cfg.OrphanSweepEnabled {
		return
	}
	if queue == nil || files == nil {
		log.Printf("orphan sweep job disabled: redis or file store not configured")
		return
	}
	interval := cfg.OrphanSweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	timeout := cfg.OrphanSweepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := cfg.OrphanSweepBatch
	if batch <= 0 {
		batch = 50
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				deleted, err := SweepOrphans(tickCtx, queue, files, batch)
				cancel()
				if err != nil {
					log.Printf("orphan sweep job error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("orphan sweep job deleted %d objects", deleted)
				}
				reportBacklog(ctx, queue, timeout)
			}
		}
	}()
}

// reportBacklog publishes how many orphans are still waiting for a sweep.
func reportBacklog(ctx context.Context, queue OrphanQueue, timeout time.Duration) {
	sizeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	size, err := queue.Size(sizeCtx)
	if err != nil {
		log.Printf("orphan sweep job backlog error: %v", err)
		return
	}
	metrics.SetOrphanBacklog(size)
}

// SweepOrphans deletes up to batch orphaned objects. URLs whose deletion
// fails go back to the queue for the next run.
func SweepOrphans(ctx context.Context, queue OrphanQueue, files ObjectDeleter, batch int) (int, error) {
	urls, err := queue.Pop(ctx, batch)
	if err != nil {
		return 0, err
	}
	var failed []string
	deleted := 0
	for _, url := range urls {
		err := files.Delete(ctx, url)
		metrics.ObserveUpload("sweep", err)
		if err != nil {
			log.Printf("orphan sweep delete failed for %s: %v", url, err)
			failed = append(failed, url)
			continue
		}
		deleted++
	}
	if len(failed) > 0 {
		if err := queue.Record(context.WithoutCancel(ctx), failed); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}
