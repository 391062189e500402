package jobs

import (
	"context"

	"estate-market-backend/internal/config"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
	"estate-market-backend/internal/service"
)

// Republisher sends dead letters back to the event stream and returns the
// ones that failed again.
type Republisher interface {
	Republish(ctx context.Context, letters []repository.DeadLetter) []repository.DeadLetter
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	dlq      repository.DeadLetterRepository
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Transactions service.TransactionService
	// Events is nil when no brokers are configured; dead letters then stay
	// parked.
	Events Republisher
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, dlq repository.DeadLetterRepository, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		dlq:      dlq,
		config:   cfg,
	}
}

// Config returns the configuration the jobs were built with.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStaleTransactions()
	jr.ReplayDeadLetters()
}
