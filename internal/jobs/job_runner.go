package jobs

import (
	"bizops-backend/internal/config"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store     *repository.Store
	publisher events.Publisher
	config    *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store *repository.Store, publisher events.Publisher, cfg *config.Config) *JobRunner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &JobRunner{
		store:     store,
		publisher: publisher,
		config:    cfg,
	}
}

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
	jr.ReconcileLedgers()
	jr.ReportCreditBreaches()
}
