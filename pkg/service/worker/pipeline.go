package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

// Job is one scheduled unit of the pipeline
type Job struct {
	Name string
	// Schedule is a cron spec or a descriptor such as "@every 15m"
	Schedule string
	Run      func(ctx context.Context) error
}

// PipelineWorker runs pipeline jobs on cron schedules.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - A job never overlaps with itself; a tick that fires while the previous run is still going is skipped
type PipelineWorker struct {
	cron       *cron.Cron
	jobs       []Job
	runOnStart bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for PipelineWorker configuration
type Option func(*PipelineWorker)

// WithRunOnStart runs every job once right after Start, in the background
func WithRunOnStart(enabled bool) Option {
	return func(w *PipelineWorker) {
		w.runOnStart = enabled
	}
}

// NewPipelineWorker validates the schedules and creates the worker
func NewPipelineWorker(jobs []Job, opts ...Option) (*PipelineWorker, error) {
	w := &PipelineWorker{jobs: jobs}
	for _, opt := range opts {
		opt(w)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, job := range jobs {
		if job.Run == nil {
			return nil, goerr.New("job has no function", goerr.V("job", job.Name))
		}
		if _, err := parser.Parse(job.Schedule); err != nil {
			return nil, goerr.Wrap(err, "invalid job schedule",
				goerr.V("job", job.Name),
				goerr.V("schedule", job.Schedule))
		}
	}

	return w, nil
}

// Start registers the jobs and starts the scheduler. It does not block.
func (w *PipelineWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.cron = cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	for _, job := range w.jobs {
		if _, err := w.cron.AddFunc(job.Schedule, func() { w.execute(ctx, job) }); err != nil {
			w.cancel()
			return goerr.Wrap(err, "failed to schedule job", goerr.V("job", job.Name))
		}
		logging.Default().Info("pipeline job scheduled",
			"job", job.Name,
			"schedule", job.Schedule)
	}

	w.cron.Start()

	if w.runOnStart {
		for _, job := range w.jobs {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.execute(ctx, job)
			}()
		}
	}

	return nil
}

// Stop stops scheduling, cancels running jobs and waits for them to return
func (w *PipelineWorker) Stop() {
	logging.Default().Info("pipeline worker stopping")
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.wg.Wait()
	logging.Default().Info("pipeline worker stopped")
}

func (w *PipelineWorker) execute(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	logger := logging.From(ctx).With("job", job.Name)
	ctx = logging.With(ctx, logger)

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		// Log error but keep the schedule
		_ = errutil.Handle(ctx, goerr.Wrap(err, "pipeline job failed", goerr.V("job", job.Name)),
			"pipeline job failed (will retry next tick)")
		return
	}
	logger.Info("pipeline job finished", "duration", time.Since(started).String())
}

// cronLogger forwards scheduler messages to the process logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Default().Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Default().Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
