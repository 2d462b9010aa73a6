package telegram

import (
	"context"
	"testing"
	"time"

	logpkg "github.com/liuran001/TubeBot-Go/bot/logger"
	"github.com/liuran001/TubeBot-Go/bot/telegram/telegramtest"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartHandlersOutlivePollingUntilAbort(t *testing.T) {
	api := telegramtest.NewServer(t)
	api.Handle("getUpdates", func(call telegramtest.Call, seq int) any {
		if seq == 1 {
			return []any{map[string]any{"update_id": 1, "message": telegramtest.Message(1, 42, "believer")}}
		}
		time.Sleep(10 * time.Millisecond)
		return []any{}
	})
	b := &Bot{client: api.Bot(t), logger: logpkg.Discard()}

	ctx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()

	handlerCtx := make(chan context.Context, 1)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		err := b.Start(ctx, func(ctx context.Context, _ *telego.Bot, _ telego.Update) {
			handlerCtx <- ctx
			<-ctx.Done()
		})
		assert.NoError(t, err)
	}()

	var hctx context.Context
	select {
	case hctx = <-handlerCtx:
	case <-time.After(5 * time.Second):
		t.Fatal("update was not handled")
	}

	stopPolling()
	select {
	case <-stopped:
		t.Fatal("Start returned while a handler was still running")
	case <-time.After(100 * time.Millisecond):
	}
	require.NoError(t, hctx.Err())

	b.Abort()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Abort")
	}
	assert.ErrorIs(t, hctx.Err(), context.Canceled)
}

func TestAbortBeforeStartIsNoop(t *testing.T) {
	b := &Bot{}
	assert.NotPanics(t, b.Abort)
}
