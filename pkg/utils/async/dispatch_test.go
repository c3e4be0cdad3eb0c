package async_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mapsdrop/pkg/utils/async"
)

// recordHandler hands every error record to the test through a channel
type recordHandler struct {
	records chan slog.Record
}

func newRecordHandler() *recordHandler {
	return &recordHandler{records: make(chan slog.Record, 4)}
}

func (h *recordHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.records <- r.Clone()
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) next(t *testing.T) slog.Record {
	t.Helper()
	select {
	case r := <-h.records:
		return r
	case <-time.After(time.Second):
		t.Fatal("no error was logged")
		return slog.Record{}
	}
}

func attrs(r slog.Record) map[string]slog.Value {
	m := make(map[string]slog.Value)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	return m
}

func TestDispatch_ReturnedError(t *testing.T) {
	h := newRecordHandler()
	ctx := ctxlog.With(context.Background(), slog.New(h))

	async.Dispatch(ctx, func(ctx context.Context) error {
		return errors.New("slack webhook returned 500")
	})

	r := h.next(t)
	gt.V(t, r.Message).Equal("error in async handler")
	gt.S(t, attrs(r)["error"].String()).Contains("slack webhook returned 500")
}

func TestDispatch_Panic(t *testing.T) {
	h := newRecordHandler()
	ctx := ctxlog.With(context.Background(), slog.New(h))

	async.Dispatch(ctx, func(ctx context.Context) error {
		panic("notifier exploded")
	})

	r := h.next(t)
	gt.V(t, r.Message).Equal("panic in async handler")
	a := attrs(r)
	gt.S(t, a["recover"].String()).Contains("notifier exploded")
	gt.S(t, a["stack"].String()).Contains("dispatch_test.go")
}

func TestDispatch_OutlivesRequest(t *testing.T) {
	h := newRecordHandler()
	logger := slog.New(h)
	hub := sentry.NewHub(nil, sentry.NewScope())

	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.With(ctx, logger)
	ctx = sentry.SetHubOnContext(ctx, hub)

	type observed struct {
		err    error
		logger *slog.Logger
		hub    *sentry.Hub
	}
	ch := make(chan observed, 1)

	release := make(chan struct{})
	async.Dispatch(ctx, func(ctx context.Context) error {
		<-release
		ch <- observed{
			err:    ctx.Err(),
			logger: ctxlog.From(ctx),
			hub:    sentry.GetHubFromContext(ctx),
		}
		return nil
	})

	// the request finishes before the notification is sent
	cancel()
	close(release)

	select {
	case got := <-ch:
		gt.NoError(t, got.err)
		gt.V(t, got.logger).Equal(logger)
		gt.V(t, got.hub).NotNil()
		gt.B(t, got.hub == hub).False()
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}
