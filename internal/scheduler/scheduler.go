// Package scheduler runs periodic maintenance jobs on cron expressions.
//
// Jobs receive a context that is cancelled when the scheduler stops, and a
// panicking job is recovered and logged without affecting later runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Maintenance defaults.
const (
	// DefaultPurgeSchedule runs the inbound ledger purge daily at 03:17.
	DefaultPurgeSchedule = "17 3 * * *"
	// DefaultInboundRetention keeps message ids long enough to cover any transport redelivery window.
	DefaultInboundRetention = 7 * 24 * time.Hour
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field expressions (min, hour, dom, month, dow) plus descriptors like @daily.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	logger := slogLogger{}
	c := cron.New(cron.WithParser(parser), cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
	ctx, cancel := context.WithCancel(context.Background())
	c.Start()
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel}
}

// AddJob schedules job under name using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(name, expr string, job Job) error {
	if _, err := s.cron.AddFunc(expr, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", expr, name, err)
	}
	slog.Debug("Scheduler.AddJob: job scheduled", "job", name, "schedule", expr)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		slog.Error("Scheduler.run: job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	slog.Debug("Scheduler.run: job finished", "job", name, "duration", time.Since(start))
}

// Stop stops the cron scheduler, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

// InboundPurger removes old inbound dedup records.
type InboundPurger interface {
	PurgeInbound(before time.Time) (int64, error)
}

// PurgeInboundJob deletes ledger records older than retention.
func PurgeInboundJob(p InboundPurger, retention time.Duration, now func() time.Time) Job {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		cutoff := now().Add(-retention)
		n, err := p.PurgeInbound(cutoff)
		if err != nil {
			return fmt.Errorf("purge inbound ledger: %w", err)
		}
		slog.Info("Scheduler.PurgeInboundJob: ledger purged", "removed", n, "cutoff", cutoff)
		return nil
	}
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
