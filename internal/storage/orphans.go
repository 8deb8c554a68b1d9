package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const orphanSetKey = "classroom:orphans"

// OrphanLedger is a Redis set of file URLs that were uploaded but never
// attached to a persisted record. The sweep job drains it.
type OrphanLedger struct {
	client *redis.Client
	key    string
}

func NewOrphanLedger(client *redis.Client) *OrphanLedger {
	return &OrphanLedger{client: client, key: orphanSetKey}
}

func (l *OrphanLedger) Record(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(urls))
	for _, url := range urls {
		members = append(members, url)
	}
	return l.client.SAdd(ctx, l.key, members...).Err()
}

// Pop removes and returns up to limit URLs.
func (l *OrphanLedger) Pop(ctx context.Context, limit int) ([]string, error) {
	urls, err := l.client.SPopN(ctx, l.key, int64(limit)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return urls, nil
}

func (l *OrphanLedger) Size(ctx context.Context) (int64, error) {
	return l.client.SCard(ctx, l.key).Result()
}
