// Package retention deletes webhook messages past the configured age on a
// cron schedule.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/config"
)

// Cleaner is the slice of the webhook service the janitor needs.
type Cleaner interface {
	CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error)
}

// Janitor runs the cleanup job on a schedule.
type Janitor struct {
	cfg     config.RetentionConfig
	cleaner Cleaner
	cron    *cron.Cron

	runTimeout time.Duration
}

// NewJanitor creates a janitor. Start is a no-op when retention is disabled.
func NewJanitor(cfg config.RetentionConfig, cleaner Cleaner) *Janitor {
	return &Janitor{
		cfg:        cfg,
		cleaner:    cleaner,
		cron:       cron.New(),
		runTimeout: 5 * time.Minute,
	}
}

// Start registers the cleanup job and starts the cron loop.
func (j *Janitor) Start() error {
	if !j.cfg.Enabled {
		log.Debug().Msg("Retention cleanup disabled")
		return nil
	}

	if _, err := j.cron.AddFunc(j.cfg.Schedule, j.runOnce); err != nil {
		return err
	}

	j.cron.Start()
	log.Info().
		Str("schedule", j.cfg.Schedule).
		Int("days", j.cfg.Days).
		Msg("Retention cleanup scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// RunNow triggers one cleanup pass immediately, outside the schedule.
func (j *Janitor) RunNow(ctx context.Context) (int64, error) {
	return j.cleaner.CleanupOldMessages(ctx, j.cfg.Days)
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	deleted, err := j.cleaner.CleanupOldMessages(ctx, j.cfg.Days)
	if err != nil {
		log.Error().Err(err).Msg("Retention cleanup failed")
		return
	}

	log.Info().
		Int64("deleted", deleted).
		Int("days", j.cfg.Days).
		Msg("Retention cleanup completed")
}
