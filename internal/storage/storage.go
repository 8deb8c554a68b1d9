package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

// FileStore is the blob store behind attachments, submission files and
// avatars. Upload returns the public URL of the stored object.
type FileStore interface {
	Upload(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// OrphanRecorder keeps track of uploaded objects that ended up without an
// owning record.
type OrphanRecorder interface {
	Record(ctx context.Context, urls []string) error
}

// File is an inbound upload, already opened by the transport layer.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

type Uploader struct {
	Files    FileStore
	Orphans  OrphanRecorder
	MaxBytes int64
	now      func() time.Time
}

func NewUploader(files FileStore, orphans OrphanRecorder, maxBytes int64, now func() time.Time) *Uploader {
	if now == nil {
		now = time.Now
	}
	return &Uploader{Files: files, Orphans: orphans, MaxBytes: maxBytes, now: now}
}

// CheckSizes rejects any file above the configured limit before a single
// byte is sent to the file store.
func (u *Uploader) CheckSizes(files []File) error {
	if u.MaxBytes <= 0 {
		return nil
	}
	for _, f := range files {
		if f.Size > u.MaxBytes {
			return operations.Invalid(operations.ErrFileTooLarge, fmt.Sprintf("%s exceeds %d bytes", f.Name, u.MaxBytes))
		}
	}
	return nil
}

// UploadAll stores files one at a time under prefix. The first failure
// aborts the remaining uploads; objects already stored are handed to the
// orphan recorder and the error is returned as an UploadFailure.
func (u *Uploader) UploadAll(ctx context.Context, prefix string, files []File) ([]model.Attachment, error) {
	if err := u.CheckSizes(files); err != nil {
		return nil, err
	}
	attachments := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		now := u.now().UTC()
		key := ObjectKey(prefix, f.Name, now)
		url, err := u.Files.Upload(ctx, key, f.MimeType, f.Size, f.Content)
		metrics.ObserveUpload("upload", err)
		if err != nil {
			log.Printf("upload %s failed: %v", key, err)
			u.Abandon(ctx, "upload", attachments)
			return nil, operations.UploadFailure(fmt.Sprintf("upload %s failed", f.Name))
		}
		attachments = append(attachments, model.Attachment{
			FileName:   f.Name,
			FileURL:    url,
			FileSize:   f.Size,
			MimeType:   f.MimeType,
			UploadedAt: now,
		})
	}
	return attachments, nil
}

// Abandon records attachments that were uploaded for a write that did not
// happen.
func (u *Uploader) Abandon(ctx context.Context, stage string, attachments []model.Attachment) {
	if len(attachments) == 0 {
		return
	}
	urls := make([]string, 0, len(attachments))
	for _, a := range attachments {
		urls = append(urls, a.FileURL)
	}
	metrics.ObserveOrphans(stage, len(urls))
	if u.Orphans == nil {
		log.Printf("orphaned uploads (%s): %s", stage, strings.Join(urls, ", "))
		return
	}
	if err := u.Orphans.Record(context.WithoutCancel(ctx), urls); err != nil {
		log.Printf("orphan ledger record failed (%s): %v", stage, err)
	}
}

// DeleteBestEffort removes objects and only logs failures.
func (u *Uploader) DeleteBestEffort(ctx context.Context, urls []string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		err := u.Files.Delete(ctx, url)
		metrics.ObserveUpload("delete", err)
		if err != nil {
			log.Printf("file delete failed for %s: %v", url, err)
		}
	}
}

// ErrStorageDisabled is returned by Disabled for every write.
var ErrStorageDisabled = errors.New("file storage is not configured")

// Disabled stands in for the blob store when no bucket credentials are set.
// Requests without files keep working; any upload fails.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, int64, io.Reader) (string, error) {
	return "", ErrStorageDisabled
}

func (Disabled) Delete(context.Context, string) error {
	return ErrStorageDisabled
}
