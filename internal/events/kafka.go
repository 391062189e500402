package events

import (
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
)

// NewProducerClient returns a client that produces to topic by default.
func NewProducerClient(brokers []string, topic string, metrics *kprom.Metrics) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}
	return kgo.NewClient(opts...)
}

// NewConsumerClient returns a group consumer with auto-commit disabled; the
// poll loop commits after each processed batch.
func NewConsumerClient(brokers []string, group, topic string, metrics *kprom.Metrics) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}
	return kgo.NewClient(opts...)
}
