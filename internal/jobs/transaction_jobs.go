package jobs

import (
	"context"

	"estate-market-backend/internal/logger"
)

// ExpireStaleTransactions cancels pending transactions older than the
// configured TTL.
func (jr *JobRunner) ExpireStaleTransactions() {
	jr.runWithRecovery("ExpireStaleTransactions", func() {
		ctx := context.Background()
		cfg := jr.config.Transactions

		n, err := jr.services.Transactions.ExpireStale(ctx, cfg.PendingTTL, cfg.ExpireBatchSize)
		if err != nil {
			logger.Error("Failed to expire stale transactions", "error", err)
			return
		}
		logger.Info("Expired stale transactions", "count", n, "ttl", cfg.PendingTTL.String())
	})
}
