package events

import (
	"context"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockEventRepo struct {
	mock.Mock
}

func (m *MockEventRepo) Insert(ctx context.Context, events []domain.TransactionEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventRepo) ListByTransaction(ctx context.Context, transactionID string) ([]domain.TransactionEvent, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransactionEvent), args.Error(1)
}

type MockDeadLetters struct {
	mock.Mock
}

func (m *MockDeadLetters) Push(ctx context.Context, letters ...repository.DeadLetter) error {
	args := m.Called(ctx, letters)
	return args.Error(0)
}

func (m *MockDeadLetters) Pop(ctx context.Context, max int) ([]repository.DeadLetter, error) {
	args := m.Called(ctx, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.DeadLetter), args.Error(1)
}

func (m *MockDeadLetters) Len(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// fakeProducer fails every record whose key is in failKeys.
type fakeProducer struct {
	failKeys map[string]error
	produced []*kgo.Record
}

func (f *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	// Reverse order: callers must not rely on result order.
	for i := len(rs) - 1; i >= 0; i-- {
		r := rs[i]
		err := f.failKeys[string(r.Key)]
		if err == nil {
			f.produced = append(f.produced, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

// fakePollClient serves the queued batches, then cancels the poll context.
type fakePollClient struct {
	batches   [][]*kgo.Record
	cancel    context.CancelFunc
	committed []*kgo.Record
	closed    bool
}

func (f *fakePollClient) PollRecords(ctx context.Context, max int) kgo.Fetches {
	if len(f.batches) == 0 {
		f.cancel()
		return kgo.Fetches{}
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "transaction-events",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: batch}},
	}}}}
}

func (f *fakePollClient) CommitRecords(ctx context.Context, rs ...*kgo.Record) error {
	f.committed = append(f.committed, rs...)
	return nil
}

func (f *fakePollClient) AllowRebalance() {}

func (f *fakePollClient) Close() { f.closed = true }
