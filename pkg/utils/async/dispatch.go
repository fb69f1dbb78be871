package async

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

// Dispatch starts task in its own goroutine and returns a channel closed when
// it has finished. The task gets a context that outlives ctx but keeps its
// logger and Sentry hub. A returned error or a panic goes to errutil.Handle.
func Dispatch(ctx context.Context, name string, task func(ctx context.Context) error) <-chan struct{} {
	taskCtx := detach(ctx)
	logger := logging.From(taskCtx).With("task", name)
	taskCtx = logging.With(taskCtx, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(taskCtx, goerr.New("background task panicked",
					goerr.V("task", name), goerr.V("panic", r)), "background task panicked")
			}
		}()

		if err := task(taskCtx); err != nil {
			_ = errutil.Handle(taskCtx, goerr.Wrap(err, "background task failed", goerr.V("task", name)),
				"background task failed")
			return
		}
		logger.Debug("background task finished")
	}()
	return done
}

func detach(ctx context.Context) context.Context {
	out := logging.With(context.Background(), logging.From(ctx))
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		out = sentry.SetHubOnContext(out, hub.Clone())
	}
	return out
}
