package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kurin/blazer/b2"
)

type B2FileStore struct {
	Client *b2.Client
	Bucket *b2.Bucket
}

func NewB2FileStore(ctx context.Context, accountID, appKey, bucketName string) (*B2FileStore, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}
	return &B2FileStore{Client: client, Bucket: bucket}, nil
}

func (s *B2FileStore) Upload(ctx context.Context, key, contentType string, _ int64, body io.Reader) (string, error) {
	obj := s.Bucket.Object(key)
	w := obj.NewWriter(ctx)
	if contentType != "" {
		w = w.WithAttrs(&b2.Attrs{ContentType: contentType})
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return obj.URL(), nil
}

func (s *B2FileStore) Delete(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return errors.New("url does not belong to bucket")
	}
	if err := s.Bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *B2FileStore) keyFromURL(url string) (string, bool) {
	prefix := fmt.Sprintf("%s/file/%s/", s.Bucket.BaseURL(), s.Bucket.Name())
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}
