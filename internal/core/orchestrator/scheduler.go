package orchestrator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

// Scheduler enqueues a daily task on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	orch *Orchestrator
	spec string
}

func NewScheduler(orch *Orchestrator, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		orch: orch,
		spec: spec,
	}
}

// Start registers the daily trigger and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "scheduler")
	_, err := s.cron.AddFunc(s.spec, func() {
		t, err := s.orch.TriggerDaily(ctx)
		if err != nil {
			log.WithError(err).Error("scheduled daily run not enqueued")
			return
		}
		log.WithField(logger.FieldTaskID, t.ID).Info("scheduled daily run enqueued")
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}
	s.cron.Start()
	log.WithField("spec", s.spec).Info("scheduler started")
	return nil
}

// Stop halts the schedule and waits for a running trigger to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
