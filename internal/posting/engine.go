package posting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const defaultPollInterval = 5 * time.Second

// Engine owns one polling Worker per dealership, generalized from the
// teacher's per-auction bid-engine worker map (internal/bidengine):
// here a worker is created by EnsureWorker rather than on first bid,
// and Start calls it for every active dealership.
type Engine struct {
	stores       *store.Stores
	clock        clock.Clock
	processor    *Processor
	logger       *slog.Logger
	pollInterval time.Duration

	workersMu sync.Mutex
	workers   map[int64]*Worker
}

func NewEngine(stores *store.Stores, clk clock.Clock, automation BrowserAutomation, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		stores:       stores,
		clock:        clk,
		processor:    NewProcessor(stores, clk, automation, notifier, logger),
		logger:       logger,
		pollInterval: defaultPollInterval,
		workers:      make(map[int64]*Worker),
	}
}

// Start ensures a worker is running for every active dealership. Start
// is the only caller of EnsureWorker, so a dealership created afterward
// has no worker until the process restarts.
func (e *Engine) Start() {
	dealerships, err := e.stores.Dealerships.ListActive(context.Background())
	if err != nil {
		e.logger.Error("engine.Start.ListActive", "error", err)
		return
	}
	for _, d := range dealerships {
		e.EnsureWorker(d.ID)
	}
}

// EnsureWorker starts a poll loop for dealershipID if one isn't already
// running. Idempotent — safe to call on every enqueue.
func (e *Engine) EnsureWorker(dealershipID int64) {
	e.workersMu.Lock()
	defer e.workersMu.Unlock()

	if _, exists := e.workers[dealershipID]; exists {
		return
	}
	w := newWorker(dealershipID, e.stores, e.processor, e.logger, e.pollInterval)
	e.workers[dealershipID] = w
	w.Start()
}

// Stop shuts down every running worker and waits for in-flight batches
// to finish.
func (e *Engine) Stop() {
	e.workersMu.Lock()
	defer e.workersMu.Unlock()
	for _, w := range e.workers {
		w.Stop()
	}
}
