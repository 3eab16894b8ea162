package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"circle_notifier/internal/app"
)

// NotifierScheduler owns every timer in the service: the ledger poll tick,
// the daily deadline sweep, the more frequent fallback sweep, and the weekly
// dedup registry reset. It also fires each loop once shortly after startup.
type NotifierScheduler struct {
	cronEngine          *cron.Cron
	poller              *app.Poller
	deadlines           *app.DeadlineService
	logger              *logrus.Entry
	pollInterval        time.Duration
	cronSpecDailySweep  string
	cronSpecSweepRetry  string
	cronSpecWeeklyReset string
}

func NewNotifierScheduler(
	poller *app.Poller,
	deadlines *app.DeadlineService,
	logger *logrus.Entry,
	pollIntervalSeconds int,
	cronSpecDailySweep string, // e.g., "0 9 * * *" (9:00 AM daily)
	cronSpecSweepRetry string, // e.g., "0 * * * *" (hourly fallback)
	cronSpecWeeklyReset string, // e.g., "0 0 * * 1" (Monday midnight)
) *NotifierScheduler {
	return &NotifierScheduler{
		cronEngine:          cron.New(cron.WithLocation(time.Local)),
		poller:              poller,
		deadlines:           deadlines,
		logger:              logger,
		pollInterval:        time.Duration(pollIntervalSeconds) * time.Second,
		cronSpecDailySweep:  cronSpecDailySweep,
		cronSpecSweepRetry:  cronSpecSweepRetry,
		cronSpecWeeklyReset: cronSpecWeeklyReset,
	}
}

func (s *NotifierScheduler) Start() error {
	s.logger.Info("Starting notifier scheduler")

	// Ledger poll tick. Overlapping ticks are dropped by the poller's
	// try-lock, so a slow cycle never queues work behind itself.
	_, err := s.cronEngine.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), func() {
		s.poller.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("could not add poll job: %w", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecDailySweep, func() {
		s.logger.Info("Cron job triggered for daily deadline sweep")
		s.runDeadlineSweep()
	})
	if err != nil {
		return fmt.Errorf("could not add daily sweep job: %w", err)
	}

	// Fallback sweep: catches conditions that became true between daily runs
	// (the dedup registry keeps reruns from re-notifying).
	_, err = s.cronEngine.AddFunc(s.cronSpecSweepRetry, func() {
		s.logger.Debug("Cron job triggered for fallback deadline sweep")
		s.runDeadlineSweep()
	})
	if err != nil {
		return fmt.Errorf("could not add fallback sweep job: %w", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecWeeklyReset, func() {
		s.logger.Info("Cron job triggered for weekly dedup registry reset")
		s.deadlines.ResetRegistry()
	})
	if err != nil {
		return fmt.Errorf("could not add weekly reset job: %w", err)
	}

	s.cronEngine.Start()

	// Immediate startup runs: poll now, sweep deadlines shortly after so the
	// first poll's cursor initialization is not racing the sweep's dispatches.
	go s.poller.RunOnce(context.Background())
	go func() {
		time.Sleep(10 * time.Second)
		s.runDeadlineSweep()
	}()

	s.logger.Info("Notifier scheduler started with jobs")
	return nil
}

// runDeadlineSweep runs both evaluators. They share only the dedup registry,
// so they can safely run concurrently with each other and with the poller.
func (s *NotifierScheduler) runDeadlineSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.deadlines.CheckGoalDeadlines(ctx)
	s.deadlines.CheckCircleDeadlines(ctx)
}

func (s *NotifierScheduler) Stop() {
	s.logger.Info("Stopping notifier scheduler")
	ctx := s.cronEngine.Stop() // Waits for running jobs to finish.
	<-ctx.Done()
	s.logger.Info("Notifier scheduler gracefully stopped")
}
