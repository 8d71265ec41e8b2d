package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errLoaderPanic = errors.New("dashboard loader panicked")

type Params struct {
	fx.In

	Readings readingdomain.Service
	Invoices invoicedomain.Service
	Log      *zap.Logger
	Clock    clock.Clock                 `optional:"true"`
	Metrics  *metrics.Metrics            `optional:"true"`
	Billing  *config.BillingConfigHolder `optional:"true"`
}

// Board holds the last-known-good dashboard snapshot. Reloads are tagged with
// a sequence number and only the latest issued one may commit.
type Board struct {
	readings readingdomain.Service
	invoices invoicedomain.Service
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics
	billing  *config.BillingConfigHolder

	seq atomic.Uint64

	mu      sync.Mutex
	current *dashboarddomain.Snapshot
	filter  dashboarddomain.Filter
}

func New(p Params) *Board {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Board{
		readings: p.Readings,
		invoices: p.Invoices,
		log:      p.Log.Named("dashboard.service"),
		clock:    clk,
		metrics:  p.Metrics,
		billing:  p.Billing,
	}
}

func (b *Board) Current(ctx context.Context) (*dashboarddomain.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, dashboarddomain.ErrNotLoaded
	}
	return b.current, nil
}

func (b *Board) Reload(ctx context.Context, filter dashboarddomain.Filter) (*dashboarddomain.Snapshot, error) {
	filter = normalizeFilter(filter)
	seq := b.seq.Add(1)
	log := logger.WithContext(ctx, b.log).With(zap.Uint64("seq", seq))

	snap, err := b.load(ctx, filter)

	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != b.seq.Load() {
		b.metrics.RecordDashboardReload(ctx, "stale")
		log.Debug("discarding stale reload", zap.Uint64("latest", b.seq.Load()))
		return nil, dashboarddomain.ErrStale
	}
	if err != nil {
		b.metrics.RecordDashboardReload(ctx, "failed")
		log.Warn("reload failed, keeping last snapshot", zap.Error(err))
		return nil, err
	}

	snap.Seq = seq
	snap.LoadedAt = b.clock.Now()
	b.current = snap
	b.filter = filter
	b.metrics.RecordDashboardReload(ctx, "committed")
	return snap, nil
}

// Approve forwards to the reading service and reloads with the last committed
// filter only when the approval was accepted. A rejected approval leaves the
// displayed snapshot untouched and returns it alongside the error.
func (b *Board) Approve(ctx context.Context, readingID string, reviewed bool) (*dashboarddomain.ApproveResult, error) {
	view, err := b.readings.Approve(ctx, readingID, reviewed)
	if err != nil {
		return &dashboarddomain.ApproveResult{Snapshot: b.snapshot()}, err
	}

	b.mu.Lock()
	filter := b.filter
	b.mu.Unlock()

	snap, err := b.Reload(ctx, filter)
	if err != nil {
		if !errors.Is(err, dashboarddomain.ErrStale) {
			logger.WithContext(ctx, b.log).Warn("reload after approval failed",
				zap.String("reading_id", readingID),
				zap.Error(err),
			)
		}
		return &dashboarddomain.ApproveResult{Reading: view, Snapshot: b.snapshot()}, nil
	}
	return &dashboarddomain.ApproveResult{Reading: view, Snapshot: snap, Reloaded: true}, nil
}

func (b *Board) snapshot() *dashboarddomain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// load fetches all four parts concurrently. Any failure fails the whole load.
func (b *Board) load(ctx context.Context, filter dashboarddomain.Filter) (*dashboarddomain.Snapshot, error) {
	page := pagination.Pagination{Page: filter.Page, Limit: b.billing.Get().DashboardPageSize}
	readingFilter := readingdomain.ListFilter{
		BuildingID:  filter.BuildingID,
		ApartmentID: filter.ApartmentID,
		Period:      filter.Period,
		MeterType:   filter.MeterType,
	}
	invoiceFilter := invoicedomain.ListFilter{
		BuildingID:  filter.BuildingID,
		ApartmentID: filter.ApartmentID,
		Period:      filter.Period,
	}

	snap := &dashboarddomain.Snapshot{Filter: filter}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard("readings.list", func() error {
		resp, err := b.readings.List(gctx, readingdomain.ListRequest{Pagination: page, Filter: readingFilter})
		if err != nil {
			return err
		}
		snap.Readings = resp
		return nil
	}))
	g.Go(guard("readings.stats", func() error {
		stats, err := b.readings.Stats(gctx, readingdomain.StatsRequest{Filter: readingFilter, AllowApproximate: true})
		if err != nil {
			return err
		}
		snap.ReadingStats = *stats
		return nil
	}))
	g.Go(guard("invoices.list", func() error {
		resp, err := b.invoices.List(gctx, invoicedomain.ListRequest{Pagination: page, Filter: invoiceFilter})
		if err != nil {
			return err
		}
		snap.Invoices = resp
		return nil
	}))
	g.Go(guard("invoices.summary", func() error {
		summary, err := b.invoices.Summary(gctx, invoiceFilter)
		if err != nil {
			return err
		}
		snap.InvoiceSummary = *summary
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// guard turns a panic in one loader into an error so a single bad record
// fails the reload instead of the process.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: %v", errLoaderPanic, name, r)
			}
		}()
		return fn()
	}
}

func normalizeFilter(f dashboarddomain.Filter) dashboarddomain.Filter {
	f.BuildingID = strings.TrimSpace(f.BuildingID)
	f.ApartmentID = strings.TrimSpace(f.ApartmentID)
	f.Period = strings.TrimSpace(f.Period)
	f.MeterType = readingdomain.MeterType(strings.ToLower(strings.TrimSpace(string(f.MeterType))))
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}
