// Package scheduler runs the single process-wide timer loop that
// triggers a scrape per active dealership on its configured cadence
// (spec.md §4.4), grounded on the teacher's single-owner goroutine
// lifecycle (internal/bidengine.Engine: ctx/cancel/wg, Start/Stop).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// ScrapeTrigger is the callback the scheduler invokes once per due
// dealership. It is satisfied by internal/inventory.Runner.Run bound to
// that dealership's source URLs.
type ScrapeTrigger func(ctx context.Context, dealershipID int64, trigger domain.ScrapeTrigger)

const sweepInterval = time.Minute

// Scheduler ticks once a minute and fires ScrapeTrigger for every active
// dealership whose SchedulerCadenceCron is due at that minute. Manual
// triggers (handler-initiated) call the same ScrapeTrigger directly and
// bypass the sweep entirely.
type Scheduler struct {
	stores  *store.Stores
	clock   clock.Clock
	trigger ScrapeTrigger
	logger  *slog.Logger
	gron    gronx.Gronx

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(stores *store.Stores, clk clock.Clock, trigger ScrapeTrigger, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		stores:  stores,
		clock:   clk,
		trigger: trigger,
		logger:  logger,
		gron:    gronx.New(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	dealerships, err := s.stores.Dealerships.ListActive(s.ctx)
	if err != nil {
		s.logger.Error("scheduler_list_active_failed", slog.String("error", err.Error()))
		return
	}

	now := s.clock.Now()
	for _, d := range dealerships {
		settings, err := s.stores.Settings.Get(s.ctx, d.ID)
		if err != nil {
			s.logger.Error("scheduler_settings_failed", slog.Int64("dealership_id", d.ID), slog.String("error", err.Error()))
			continue
		}

		due, err := s.gron.IsDue(settings.SchedulerCadenceCron, now)
		if err != nil {
			s.logger.Warn("scheduler_invalid_cron", slog.Int64("dealership_id", d.ID), slog.String("cron", settings.SchedulerCadenceCron))
			continue
		}
		if !due {
			continue
		}

		go s.trigger(context.WithoutCancel(s.ctx), d.ID, domain.TriggerSchedule)
	}
}
