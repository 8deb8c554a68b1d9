package testkit

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

var ErrUploadRefused = errors.New("upload refused")

// Files is an in-memory file store. Uploads whose key contains FailOn are
// refused.
type Files struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	FailOn  string
}

func NewFiles() *Files {
	return &Files{objects: map[string][]byte{}}
}

func (f *Files) Upload(_ context.Context, key, _ string, _ int64, body io.Reader) (string, error) {
	if f.FailOn != "" && strings.Contains(key, f.FailOn) {
		return "", ErrUploadRefused
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://files.test/" + key
	f.objects[url] = data
	return url, nil
}

func (f *Files) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, url)
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *Files) Has(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[url]
	return ok
}

func (f *Files) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *Files) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Orphans collects URLs handed to the orphan ledger.
type Orphans struct {
	mu   sync.Mutex
	urls []string
}

func (o *Orphans) Record(_ context.Context, urls []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, urls...)
	return nil
}

func (o *Orphans) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
