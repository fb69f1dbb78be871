package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/service/worker"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewPipelineWorker(t *testing.T) {
	t.Run("rejects invalid schedule", func(t *testing.T) {
		_, err := worker.NewPipelineWorker([]worker.Job{
			{Name: "bad", Schedule: "every now and then", Run: func(context.Context) error { return nil }},
		})
		gt.Error(t, err)
	})

	t.Run("rejects missing function", func(t *testing.T) {
		_, err := worker.NewPipelineWorker([]worker.Job{{Name: "empty", Schedule: "@every 15m"}})
		gt.Error(t, err)
	})

	t.Run("accepts descriptors and cron specs", func(t *testing.T) {
		noop := func(context.Context) error { return nil }
		_, err := worker.NewPipelineWorker([]worker.Job{
			{Name: "a", Schedule: "@every 15m", Run: noop},
			{Name: "b", Schedule: "*/5 * * * *", Run: noop},
			{Name: "c", Schedule: "@hourly", Run: noop},
		})
		gt.NoError(t, err)
	})
}

func TestPipelineWorker_RunOnStart(t *testing.T) {
	var ingest, process atomic.Int32
	w, err := worker.NewPipelineWorker([]worker.Job{
		{Name: "ingest", Schedule: "@every 1h", Run: func(context.Context) error {
			ingest.Add(1)
			return nil
		}},
		{Name: "process", Schedule: "@every 1h", Run: func(context.Context) error {
			process.Add(1)
			return errors.New("model unavailable")
		}},
	}, worker.WithRunOnStart(true))
	gt.NoError(t, err).Required()

	gt.NoError(t, w.Start(context.Background())).Required()
	waitFor(t, 2*time.Second, func() bool { return ingest.Load() == 1 && process.Load() == 1 })
	w.Stop()
}

func TestPipelineWorker_Schedule(t *testing.T) {
	var runs atomic.Int32
	w, err := worker.NewPipelineWorker([]worker.Job{
		{Name: "tick", Schedule: "@every 1s", Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
	})
	gt.NoError(t, err).Required()

	gt.NoError(t, w.Start(context.Background())).Required()
	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 1 })
	w.Stop()

	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	gt.V(t, runs.Load()).Equal(after)
}

func TestPipelineWorker_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool

	w, err := worker.NewPipelineWorker([]worker.Job{
		{Name: "slow", Schedule: "@every 1h", Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		}},
	}, worker.WithRunOnStart(true))
	gt.NoError(t, err).Required()

	gt.NoError(t, w.Start(context.Background())).Required()
	<-started
	w.Stop()
	gt.B(t, cancelled.Load()).True()
}
