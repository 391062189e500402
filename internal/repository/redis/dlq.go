package redis

import (
	"context"
	"encoding/json"

	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

type deadLetterQueue struct {
	client   *redis.Client
	listName string
}

// NewDeadLetterQueue returns a FIFO dead-letter list stored under listName.
func NewDeadLetterQueue(client *redis.Client, listName string) repository.DeadLetterRepository {
	return &deadLetterQueue{client: client, listName: listName}
}

func (q *deadLetterQueue) Push(ctx context.Context, letters ...repository.DeadLetter) error {
	if len(letters) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(letters))
	for _, l := range letters {
		data, err := json.Marshal(l)
		if err != nil {
			logger.Error("Failed to marshal dead letter", "key", l.Key, "error", err)
			continue
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return nil
	}

	if err := q.client.RPush(ctx, q.listName, values...).Err(); err != nil {
		return err
	}
	logger.Info("Stored dead letters", "list", q.listName, "count", len(values))
	return nil
}

// Pop removes and returns up to max letters from the head of the list.
func (q *deadLetterQueue) Pop(ctx context.Context, max int) ([]repository.DeadLetter, error) {
	if max <= 0 {
		return nil, nil
	}
	raw, err := q.client.LPopCount(ctx, q.listName, max).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	letters := make([]repository.DeadLetter, 0, len(raw))
	for _, r := range raw {
		var l repository.DeadLetter
		if err := json.Unmarshal([]byte(r), &l); err != nil {
			logger.Error("Dropping unreadable dead letter", "list", q.listName, "error", err)
			continue
		}
		letters = append(letters, l)
	}
	return letters, nil
}

func (q *deadLetterQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listName).Result()
}
