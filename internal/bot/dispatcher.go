package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heimdex/scenebot/internal/logging"
)

// HandlerFunc processes one update.
type HandlerFunc func(ctx context.Context, upd tgbotapi.Update)

// Dispatcher runs one worker per user. A user's updates are handled in
// arrival order, and a slow update only delays that user. Workers exit when
// their queue is empty.
type Dispatcher struct {
	handle HandlerFunc
	logger *slog.Logger

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

type worker struct {
	queue []tgbotapi.Update
}

func NewDispatcher(handle HandlerFunc, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handle:  handle,
		logger:  logging.WithComponent(logger, "dispatcher"),
		workers: make(map[int64]*worker),
	}
}

// Dispatch queues upd for its sender. Updates without a sender are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, upd tgbotapi.Update) {
	userID, _, ok := sender(upd)
	if !ok {
		d.logger.Debug("dropping update without sender", "update_id", upd.UpdateID)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	w, running := d.workers[userID]
	if !running {
		w = &worker{}
		d.workers[userID] = w
		d.wg.Add(1)
		go d.run(ctx, userID, w)
	}
	w.queue = append(w.queue, upd)
}

// Active returns the number of users with queued or running updates.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Wait blocks until every worker has drained its queue.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, userID int64, w *worker) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(w.queue) == 0 {
			delete(d.workers, userID)
			d.mu.Unlock()
			return
		}
		upd := w.queue[0]
		w.queue = w.queue[1:]
		d.mu.Unlock()

		d.safeHandle(ctx, userID, upd)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, userID int64, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic handling update",
				"user_id", userID,
				"update_id", upd.UpdateID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	d.handle(ctx, upd)
}
