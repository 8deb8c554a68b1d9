package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"semaphore/classroom/internal/config"
)

type fakeQueue struct {
	mu    sync.Mutex
	urls  []string
	sized int
}

func (q *fakeQueue) Pop(_ context.Context, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.urls) {
		limit = len(q.urls)
	}
	out := q.urls[:limit]
	q.urls = append([]string(nil), q.urls[limit:]...)
	return out, nil
}

func (q *fakeQueue) Record(_ context.Context, urls []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.urls = append(q.urls, urls...)
	return nil
}

func (q *fakeQueue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sized++
	return int64(len(q.urls)), nil
}

func (q *fakeQueue) sizeCalls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sized
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urls)
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
}

func (d *fakeDeleter) Delete(_ context.Context, url string) error {
	if strings.Contains(url, "stuck") {
		return errors.New("bucket unavailable")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, url)
	return nil
}

func (d *fakeDeleter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deleted)
}

func TestSweepOrphansRequeuesFailures(t *testing.T) {
	queue := &fakeQueue{urls: []string{"https://f/a", "https://f/stuck", "https://f/b", "https://f/c"}}
	files := &fakeDeleter{}

	deleted, err := SweepOrphans(context.Background(), queue, files, 3)
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	if queue.len() != 2 {
		t.Fatalf("expected c and the stuck url left, got %v", queue.urls)
	}
}

func TestStartOrphanSweepJobDisabledByDefault(t *testing.T) {
	queue := &fakeQueue{urls: []string{"https://f/a"}}
	files := &fakeDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartOrphanSweepJob(ctx, config.Config{OrphanSweepInterval: time.Millisecond}, queue, files)
	time.Sleep(20 * time.Millisecond)
	if files.count() != 0 {
		t.Fatalf("disabled job must not delete anything")
	}
}

func TestStartOrphanSweepJobDrainsQueue(t *testing.T) {
	queue := &fakeQueue{urls: []string{"https://f/a", "https://f/b"}}
	files := &fakeDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Config{OrphanSweepEnabled: true, OrphanSweepInterval: 5 * time.Millisecond, OrphanSweepBatch: 1}
	StartOrphanSweepJob(ctx, cfg, queue, files)

	deadline := time.Now().Add(2 * time.Second)
	for files.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if files.count() != 2 {
		t.Fatalf("expected both orphans deleted, got %d", files.count())
	}
	for queue.sizeCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if queue.sizeCalls() == 0 {
		t.Fatalf("expected the backlog to be reported after a sweep")
	}
}
