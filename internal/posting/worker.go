package posting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// Worker polls one dealership's queued posting items on a fixed
// interval, claiming a batch at a time via NextReady's SKIP LOCKED
// query and handing each to the shared Processor.
type Worker struct {
	dealershipID int64
	stores       *store.Stores
	processor    *Processor
	logger       *slog.Logger
	interval     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorker(dealershipID int64, stores *store.Stores, processor *Processor, logger *slog.Logger, interval time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		dealershipID: dealershipID,
		stores:       stores,
		processor:    processor,
		logger:       logger,
		interval:     interval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

func (w *Worker) drain() {
	items, err := w.stores.Postings.NextReady(w.ctx, w.dealershipID, 10)
	if err != nil {
		w.logger.Error("posting_next_ready_failed", slog.Int64("dealership_id", w.dealershipID), slog.String("error", err.Error()))
		return
	}
	for _, item := range items {
		w.processor.Process(w.ctx, item)
	}
}
