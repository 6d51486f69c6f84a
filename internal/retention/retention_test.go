package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/hooktide/hooktide/internal/config"
)

type fakeCleaner struct {
	calls   atomic.Int64
	lastArg atomic.Int64
	deleted int64
	err     error
}

func (f *fakeCleaner) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	f.calls.Add(1)
	f.lastArg.Store(int64(olderThanDays))
	return f.deleted, f.err
}

func TestRunNow(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 7}
	janitor := NewJanitor(config.RetentionConfig{Enabled: true, Days: 30, Schedule: "0 3 * * *"}, cleaner)

	deleted, err := janitor.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if deleted != 7 {
		t.Errorf("deleted = %d, want 7", deleted)
	}
	if got := cleaner.lastArg.Load(); got != 30 {
		t.Errorf("olderThanDays = %d, want 30", got)
	}
}

func TestRunNowPropagatesError(t *testing.T) {
	wantErr := errors.New("backend down")
	janitor := NewJanitor(config.RetentionConfig{Enabled: true, Days: 30}, &fakeCleaner{err: wantErr})

	if _, err := janitor.RunNow(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestStartDisabledDoesNotSchedule(t *testing.T) {
	cleaner := &fakeCleaner{}
	janitor := NewJanitor(config.RetentionConfig{Enabled: false, Days: 30, Schedule: "* * * * *"}, cleaner)

	if err := janitor.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	janitor.Stop()

	if cleaner.calls.Load() != 0 {
		t.Error("cleanup should not have run when disabled")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	janitor := NewJanitor(config.RetentionConfig{Enabled: true, Days: 30, Schedule: "not a cron"}, &fakeCleaner{})

	if err := janitor.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
