package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/pipeline"
)

func newTestScheduler(t *testing.T) *Service {
	t.Helper()
	service := NewService(&common.SchedulerConfig{Timezone: "Europe/Zurich"}, arbor.NewLogger())
	return service.(*Service)
}

func waitForRuns(t *testing.T, counter *int32, want int32) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(counter) < want {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %d runs, got %d", want, atomic.LoadInt32(counter))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegisterAndTriggerJob(t *testing.T) {
	s := newTestScheduler(t)

	var runs int32
	err := s.RegisterJob("test_job", "@every 1h", "test job", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	// 1. Duplicate names are rejected.
	err = s.RegisterJob("test_job", "@every 1h", "test job", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("Expected duplicate registration to fail")
	}

	// 2. Manual trigger runs the handler without the scheduler started.
	if err := s.TriggerJob(context.Background(), "test_job"); err != nil {
		t.Fatalf("TriggerJob failed: %v", err)
	}
	waitForRuns(t, &runs, 1)

	// 3. Unknown jobs are rejected.
	if err := s.TriggerJob(context.Background(), "no_such_job"); err == nil {
		t.Error("Expected trigger of unknown job to fail")
	}
}

func TestInvalidScheduleRejected(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterJob("broken", "not a cron spec", "broken job", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("Expected invalid schedule to be rejected")
	}

	if len(s.JobStatuses()) != 0 {
		t.Error("Rejected job must not appear in statuses")
	}
}

func TestJobStatusTracksOutcome(t *testing.T) {
	s := newTestScheduler(t)

	var fail atomic.Bool
	fail.Store(true)
	var runs int32
	err := s.RegisterJob("flaky", "@every 1h", "sometimes fails", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		if fail.Load() {
			return errors.New("upstream unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	// 1. A failing run records its error.
	if err := s.TriggerJob(context.Background(), "flaky"); err != nil {
		t.Fatalf("TriggerJob failed: %v", err)
	}
	waitForRuns(t, &runs, 1)

	status := snapshot(t, s, "flaky")
	if status.LastError != "upstream unavailable" {
		t.Errorf("Expected recorded error, got %q", status.LastError)
	}
	if status.LastRun == nil {
		t.Error("Expected LastRun to be stamped")
	}

	// 2. A successful run clears it.
	fail.Store(false)
	if err := s.TriggerJob(context.Background(), "flaky"); err != nil {
		t.Fatalf("TriggerJob failed: %v", err)
	}
	waitForRuns(t, &runs, 2)

	status = snapshot(t, s, "flaky")
	if status.LastError != "" {
		t.Errorf("Expected cleared error, got %q", status.LastError)
	}
}

// JobStatusSnapshot mirrors the fields asserted on in tests
type JobStatusSnapshot struct {
	LastError string
	LastRun   *time.Time
	IsRunning bool
}

func snapshot(t *testing.T, s *Service, name string) *JobStatusSnapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, status := range s.JobStatuses() {
			if status.Name == name && !status.IsRunning {
				return &JobStatusSnapshot{
					LastError: status.LastError,
					LastRun:   status.LastRun,
					IsRunning: status.IsRunning,
				}
			}
		}
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for job %s to settle", name)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOverlappingExecutionSkipped(t *testing.T) {
	s := newTestScheduler(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	err := s.RegisterJob("slow", "@every 1h", "slow job", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		entered <- struct{}{}
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	if err := s.TriggerJob(context.Background(), "slow"); err != nil {
		t.Fatalf("TriggerJob failed: %v", err)
	}
	<-entered

	// A second trigger while the first is still running is rejected.
	if err := s.TriggerJob(context.Background(), "slow"); err == nil {
		t.Error("Expected overlapping trigger to be rejected")
	}

	close(release)
	snapshot(t, s, "slow")
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("Expected a single execution, got %d", got)
	}
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterJob("panicky", "@every 1h", "panics", func(ctx context.Context) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	if err := s.TriggerJob(context.Background(), "panicky"); err != nil {
		t.Fatalf("TriggerJob failed: %v", err)
	}

	// The job settles back to not-running with the panic recorded.
	deadline := time.After(2 * time.Second)
	for {
		statuses := s.JobStatuses()
		if len(statuses) == 1 && !statuses[0].IsRunning && statuses[0].LastError != "" {
			if statuses[0].LastError != "panic: boom" {
				t.Errorf("Expected panic error, got %q", statuses[0].LastError)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for panic recovery")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegisterIngestionJobs(t *testing.T) {
	s := newTestScheduler(t)
	config := &common.SchedulerConfig{
		Timezone:              "Europe/Zurich",
		FetchIntervalMinutes:  30,
		ScraperIntervalHours:  6,
		SearchIntervalMinutes: 60,
	}

	err := RegisterIngestionJobs(s, &pipeline.Orchestrator{}, &pipeline.Maintenance{}, pipeline.NewLogSearchRunner(arbor.NewLogger()), config)
	if err != nil {
		t.Fatalf("RegisterIngestionJobs failed: %v", err)
	}

	statuses := s.JobStatuses()
	if len(statuses) != 5 {
		t.Fatalf("Expected 5 registered jobs, got %d", len(statuses))
	}

	schedules := make(map[string]string)
	for _, status := range statuses {
		schedules[status.Name] = status.Schedule
	}
	expected := map[string]string{
		JobFetchProviders: "@every 30m",
		JobFetchScrapers:  "@every 6h",
		JobDedupSemantic:  "0 4 * * *",
		JobCheckJobURLs:   "0 3 * * 0",
		JobRunSavedSearch: "@every 60m",
	}
	for name, schedule := range expected {
		if schedules[name] != schedule {
			t.Errorf("Job %s: expected schedule %q, got %q", name, schedule, schedules[name])
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.RegisterJob("noop", "@every 1h", "noop", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("Expected second Start to fail")
	}

	// Next run is only known while running.
	statuses := s.JobStatuses()
	if len(statuses) != 1 || statuses[0].NextRun == nil {
		t.Error("Expected a next run time while the scheduler is running")
	}

	s.Stop()
	s.Stop() // idempotent
}
