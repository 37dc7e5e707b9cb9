package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	noop := func(ctx context.Context) error { return nil }
	if err := s.AddJob("every-minute", "* * * * *", noop); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("purge", DefaultPurgeSchedule, noop); err != nil {
		t.Errorf("default purge schedule rejected: %v", err)
	}
	if err := s.AddJob("daily", "@daily", noop); err != nil {
		t.Errorf("descriptor rejected: %v", err)
	}
	if err := s.AddJob("broken", "not a cron", noop); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestSchedulerRunSurvivesFailures(t *testing.T) {
	s := NewScheduler()
	calls := 0
	s.run("failing", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	s.run("ok", func(ctx context.Context) error {
		calls++
		return nil
	})
	s.Stop()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestSchedulerStopCancelsJobContext(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	var got error
	s.run("after-stop", func(ctx context.Context) error {
		got = ctx.Err()
		return nil
	})
	if !errors.Is(got, context.Canceled) {
		t.Errorf("job context err = %v, want context.Canceled", got)
	}
}

func TestPurgeInboundJob(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := st.RecordInbound("m1", "5571999887766"); err != nil {
		t.Fatal(err)
	}

	// A clock far in the future makes the record older than the retention window.
	future := func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	job := PurgeInboundJob(st, DefaultInboundRetention, future)
	if err := job(context.Background()); err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if dup, _ := st.IsDuplicate("m1"); dup {
		t.Error("expired record not purged")
	}

	if _, err := st.RecordInbound("m2", "5571999887766"); err != nil {
		t.Fatal(err)
	}
	if err := PurgeInboundJob(st, DefaultInboundRetention, time.Now)(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dup, _ := st.IsDuplicate("m2"); !dup {
		t.Error("recent record purged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := job(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled job err = %v", err)
	}
}
