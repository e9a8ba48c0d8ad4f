package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// OverdueMarker is the loan surface the scheduler drives
type OverdueMarker interface {
	MarkOverdueLoans(ctx context.Context) (int64, error)
	NotifyDueSoon(ctx context.Context) error
}

// ReservationExpirer is the reservation surface the scheduler drives
type ReservationExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// QueueProcessor drains the pending notification queue
type QueueProcessor interface {
	ProcessQueue(ctx context.Context, batchSize int) (int, error)
}

// Scheduler runs the periodic sweeps: overdue status refresh, stale
// reservation expiry, due-soon reminders, and notification delivery.
// Status stays a cached projection; fines and renewal checks always
// recompute from current time regardless of sweep cadence.
type Scheduler struct {
	cron         *cron.Cron
	loans        OverdueMarker
	reservations ReservationExpirer
	queue        QueueProcessor
	logger       *slog.Logger
}

// NewScheduler creates a scheduler wired to the lifecycle services
func NewScheduler(loans OverdueMarker, reservations ReservationExpirer, queue QueueProcessor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		loans:        loans,
		reservations: reservations,
		queue:        queue,
		logger:       logger,
	}
}

// Start registers the sweep jobs and starts the cron loop
func (s *Scheduler) Start() error {
	jobs := []struct {
		schedule string
		name     string
		run      func(ctx context.Context) error
	}{
		{"@hourly", "mark_overdue_loans", s.markOverdue},
		{"@hourly", "expire_stale_reservations", s.expireStale},
		{"@every 1m", "deliver_notifications", s.deliverNotifications},
		{"0 8 * * *", "due_soon_reminders", s.dueSoonReminders},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := job.run(ctx); err != nil {
				s.logger.Error("Scheduled job failed", "job", job.name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(jobs))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) markOverdue(ctx context.Context) error {
	_, err := s.loans.MarkOverdueLoans(ctx)
	return err
}

func (s *Scheduler) expireStale(ctx context.Context) error {
	_, err := s.reservations.ExpireStale(ctx)
	return err
}

func (s *Scheduler) deliverNotifications(ctx context.Context) error {
	_, err := s.queue.ProcessQueue(ctx, 100)
	return err
}

func (s *Scheduler) dueSoonReminders(ctx context.Context) error {
	return s.loans.NotifyDueSoon(ctx)
}
