package async_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/utils/async"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Flush(time.Duration) bool               { return true }
func (t *captureTransport) FlushWithContext(context.Context) bool { return true }
func (t *captureTransport) Configure(sentry.ClientOptions)        {}
func (t *captureTransport) Close()                                {}

func (t *captureTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func loggedContext() (context.Context, *lockedBuffer) {
	buf := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logging.With(context.Background(), logger), buf
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background task did not finish")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("task outlives the caller context", func(t *testing.T) {
		base, buf := loggedContext()
		ctx, cancel := context.WithCancel(base)
		cancel()

		var taskErr error
		done := async.Dispatch(ctx, "pipeline", func(ctx context.Context) error {
			taskErr = ctx.Err()
			return nil
		})
		wait(t, done)

		gt.NoError(t, taskErr)
		gt.String(t, buf.String()).Contains(`"task":"pipeline"`)
		gt.String(t, buf.String()).Contains("background task finished")
	})

	t.Run("failure is logged with the task name", func(t *testing.T) {
		ctx, buf := loggedContext()
		done := async.Dispatch(ctx, "pipeline", func(ctx context.Context) error {
			return errors.New("store unreachable")
		})
		wait(t, done)

		gt.String(t, buf.String()).Contains("background task failed")
		gt.String(t, buf.String()).Contains("store unreachable")
	})

	t.Run("panic is recovered", func(t *testing.T) {
		ctx, buf := loggedContext()
		done := async.Dispatch(ctx, "pipeline", func(ctx context.Context) error {
			panic("nil map")
		})
		wait(t, done)

		gt.String(t, buf.String()).Contains("background task panicked")
		gt.String(t, buf.String()).Contains("nil map")
	})

	t.Run("failure is reported through the caller's hub", func(t *testing.T) {
		tr := &captureTransport{}
		client, err := sentry.NewClient(sentry.ClientOptions{
			Dsn:       "https://public@sentry.example.com/1",
			Transport: tr,
		})
		gt.NoError(t, err).Required()
		ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

		done := async.Dispatch(ctx, "pipeline", func(ctx context.Context) error {
			return errors.New("store unreachable")
		})
		wait(t, done)

		tr.mu.Lock()
		defer tr.mu.Unlock()
		gt.A(t, tr.events).Length(1).Required()
		gt.V(t, tr.events[0].Tags["message"]).Equal("background task failed")
		gt.V(t, tr.events[0].Contexts["goerr"]["task"]).Equal(any("pipeline"))
	})
}
