package events

import (
	"context"
	"errors"

	"estate-market-backend/internal/logger"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Record is a consumed message stripped of Kafka metadata.
type Record struct {
	Key   []byte
	Value []byte
	Topic string
}

type RecordProcessor interface {
	ProcessRecords(ctx context.Context, records []Record) error
}

// PollClient is the part of *kgo.Client the consumer drives.
type PollClient interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	AllowRebalance()
	Close()
}

type Consumer struct {
	client         PollClient
	processor      RecordProcessor
	name           string
	recordsPerPoll int
}

func NewConsumer(client PollClient, processor RecordProcessor, name string, recordsPerPoll int) *Consumer {
	if recordsPerPoll <= 0 {
		recordsPerPoll = 100
	}
	return &Consumer{client: client, processor: processor, name: name, recordsPerPoll: recordsPerPoll}
}

// Poll consumes until ctx is cancelled or the client closes. A batch is
// committed only after it was processed.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.client.Close()

	for {
		if ctx.Err() != nil {
			logger.Warn("Polling stopped: context canceled", "consumer", c.name)
			return ctx.Err()
		}

		fetches := c.client.PollRecords(ctx, c.recordsPerPoll)
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return context.Canceled
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Error("Fetch error", "consumer", c.name, "topic", topic, "partition", partition, "error", err)
		})

		fetched := fetches.Records()
		if len(fetched) == 0 {
			c.client.AllowRebalance()
			continue
		}

		records := make([]Record, len(fetched))
		for i, r := range fetched {
			records[i] = Record{Key: r.Key, Value: r.Value, Topic: r.Topic}
		}

		if err := c.processor.ProcessRecords(ctx, records); err != nil {
			logger.Error("Failed to process records", "consumer", c.name, "count", len(records), "error", err)
			c.client.AllowRebalance()
			continue
		}

		if err := c.client.CommitRecords(ctx, fetched...); err != nil {
			logger.Error("Failed to commit records", "consumer", c.name, "error", err)
		}
		c.client.AllowRebalance()
	}
}
