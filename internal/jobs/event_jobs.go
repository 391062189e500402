package jobs

import (
	"context"

	"estate-market-backend/internal/events"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
)

// MaxReplayAttempts is how many delivery attempts a dead letter gets before
// it is dropped.
const MaxReplayAttempts = 5

// ReplayDeadLetters pops a batch from the dead-letter queue and republishes
// it. Letters that fail again go back on the queue until they run out of
// attempts.
func (jr *JobRunner) ReplayDeadLetters() {
	jr.runWithRecovery("ReplayDeadLetters", func() {
		if jr.services.Events == nil {
			logger.Info("Skipping dead-letter replay, no brokers configured")
			return
		}
		ctx := context.Background()

		letters, err := jr.dlq.Pop(ctx, jr.config.Transactions.ReplayBatchSize)
		if err != nil {
			logger.Error("Failed to pop dead letters", "error", err)
			return
		}
		if len(letters) == 0 {
			logger.Debug("Dead-letter queue is empty")
			return
		}

		replay := make([]repository.DeadLetter, 0, len(letters))
		for _, l := range letters {
			if events.Poisoned(l) {
				logger.Error("Dropping undecodable dead letter", "key", l.Key, "reason", l.Reason)
				continue
			}
			replay = append(replay, l)
		}

		failed := jr.services.Events.Republish(ctx, replay)
		var retry []repository.DeadLetter
		for _, l := range failed {
			if l.Attempts >= MaxReplayAttempts {
				logger.Error("Dropping dead letter after max attempts", "key", l.Key, "attempts", l.Attempts, "reason", l.Reason)
				continue
			}
			retry = append(retry, l)
		}

		if len(retry) > 0 {
			if err := jr.dlq.Push(ctx, retry...); err != nil {
				logger.Error("Failed to requeue dead letters, they are lost", "count", len(retry), "error", err)
				return
			}
		}
		logger.Info("Replayed dead letters", "popped", len(letters), "delivered", len(replay)-len(failed), "requeued", len(retry))
	})
}
