package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bizops-backend/internal/config"
	"bizops-backend/internal/jobs"
	"bizops-backend/internal/repository/memory"
)

func newScheduler(cfg config.SchedulerConfig) *Scheduler {
	return NewScheduler(jobs.NewJobRunner(memory.NewStore(), nil, &config.Config{Scheduler: cfg}))
}

func TestNewScheduler_RegistersJobs(t *testing.T) {
	s := newScheduler(config.SchedulerConfig{
		ReconcileLedgers:     "0 0 2 * * *",
		ReportCreditBreaches: "0 0 7 * * *",
	})

	assert.Len(t, s.cron.Entries(), 2)
	assert.True(t, s.IsRunning())

	s.Start()
	s.Stop()
}

func TestNewScheduler_SkipsInvalidSpec(t *testing.T) {
	s := newScheduler(config.SchedulerConfig{
		ReconcileLedgers:     "every night",
		ReportCreditBreaches: "0 0 7 * * *",
	})

	assert.Len(t, s.cron.Entries(), 1)
}

func TestNewScheduler_NothingRegistered(t *testing.T) {
	s := newScheduler(config.SchedulerConfig{ReconcileLedgers: "bad", ReportCreditBreaches: "bad"})
	assert.False(t, s.IsRunning())
}
