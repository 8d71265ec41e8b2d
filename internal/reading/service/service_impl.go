package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/lock"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	"github.com/smallbiznis/rentbook/internal/reading/aggregate"
	"github.com/smallbiznis/rentbook/internal/reading/consumption"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/internal/reading/review"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const approvalLockTTL = 30 * time.Second

type Params struct {
	fx.In

	Store   readingdomain.Store
	Locker  lock.Locker
	Log     *zap.Logger
	Metrics *metrics.Metrics            `optional:"true"`
	Billing *config.BillingConfigHolder `optional:"true"`
}

type Service struct {
	store   readingdomain.Store
	locker  lock.Locker
	log     *zap.Logger
	metrics *metrics.Metrics
	billing *config.BillingConfigHolder
}

func New(p Params) readingdomain.Service {
	locker := p.Locker
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   p.Store,
		locker:  locker,
		log:     log.Named("reading.service"),
		metrics: p.Metrics,
		billing: p.Billing,
	}
}

func (s *Service) List(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResponse, error) {
	req.Pagination = req.Pagination.Normalize()
	if err := validateFilter(req.Filter); err != nil {
		return nil, err
	}

	res, err := s.store.List(ctx, req)
	if err != nil {
		return nil, err
	}

	calc := s.calculator(ctx)
	views := make([]readingdomain.ReadingView, 0, len(res.Items))
	for _, reading := range res.Items {
		views = append(views, toView(calc, reading))
	}

	stats := s.aggregate(ctx, calc, res.Items, readingdomain.ScopePage)
	return &readingdomain.ListResponse{
		Items: views,
		Meta:  res.Meta,
		Stats: stats,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*readingdomain.ReadingView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, readingdomain.ErrInvalidID
	}
	reading, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toView(s.calculator(ctx), *reading)
	return &view, nil
}

func (s *Service) Create(ctx context.Context, req readingdomain.WriteRequest) (*readingdomain.ReadingView, error) {
	reading, err := buildReading(req)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, reading)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("reading created",
		zap.String("reading_id", created.ID),
		zap.String("period", created.Period),
		zap.Int("items", len(created.Items)),
	)
	view := toView(s.calculator(ctx), *created)
	return &view, nil
}

func (s *Service) Update(ctx context.Context, id string, req readingdomain.WriteRequest) (*readingdomain.ReadingView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, readingdomain.ErrInvalidID
	}
	reading, err := buildReading(req)
	if err != nil {
		return nil, err
	}
	reading.ID = id

	updated, err := s.store.Update(ctx, reading)
	if err != nil {
		return nil, err
	}
	view := toView(s.calculator(ctx), *updated)
	return &view, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return readingdomain.ErrInvalidID
	}
	return s.store.Delete(ctx, id)
}

// Approve asks the store to set or clear the approval flag. Concurrent
// approvals of the same reading are rejected rather than submitted twice.
func (s *Service) Approve(ctx context.Context, id string, reviewed bool) (*readingdomain.ReadingView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, readingdomain.ErrInvalidID
	}
	log := logger.WithContext(ctx, s.log).With(zap.String("reading_id", id), zap.Bool("reviewed", reviewed))

	key := "rentbook:approve:" + id
	token, ok, err := s.locker.TryLock(ctx, key, approvalLockTTL)
	if err != nil {
		s.metrics.RecordApproval(ctx, "lock_error")
		return nil, fmt.Errorf("acquire approval lock: %w", err)
	}
	if !ok {
		s.metrics.RecordApproval(ctx, "in_flight")
		log.Info("approval already in flight")
		return nil, readingdomain.ErrApprovalInFlight
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn("release approval lock", zap.Error(err))
		}
	}()

	reading, err := s.store.Approve(ctx, id, reviewed)
	if err != nil {
		s.metrics.RecordApproval(ctx, "failed")
		log.Warn("approval rejected", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordApproval(ctx, "ok")
	log.Info("reading approval updated")
	view := toView(s.calculator(ctx), *reading)
	return &view, nil
}

// Stats returns the exact aggregate from the store. When the store cannot
// provide it and the caller allows it, the first page is aggregated instead
// and labelled as page-scoped.
func (s *Service) Stats(ctx context.Context, req readingdomain.StatsRequest) (*readingdomain.Stats, error) {
	if err := validateFilter(req.Filter); err != nil {
		return nil, err
	}

	stats, err := s.store.Stats(ctx, req.Filter, s.calculator(ctx).Parser)
	if err == nil {
		stats.Scope = readingdomain.ScopeCollection
		s.flagNegative(ctx, *stats)
		return stats, nil
	}
	if !req.AllowApproximate {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Warn("exact stats unavailable, falling back to page scope", zap.Error(err))
	page, listErr := s.store.List(ctx, readingdomain.ListRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: s.billing.Get().ApproximatePageSize},
		Filter:     req.Filter,
	})
	if listErr != nil {
		return nil, errors.Join(err, listErr)
	}

	approx := s.aggregate(ctx, s.calculator(ctx), page.Items, readingdomain.ScopePage)
	return &approx, nil
}

func (s *Service) aggregate(ctx context.Context, calc consumption.Calculator, readings []readingdomain.MeterReading, scope readingdomain.Scope) readingdomain.Stats {
	stats := aggregate.Aggregator{Calculator: calc}.Readings(readings, scope)
	s.flagNegative(ctx, stats)
	return stats
}

func (s *Service) flagNegative(ctx context.Context, stats readingdomain.Stats) {
	if stats.NegativeItems <= 0 {
		return
	}
	logger.WithContext(ctx, s.log).Warn("negative consumption excluded from total",
		zap.Int64("negative_items", stats.NegativeItems),
		zap.String("scope", string(stats.Scope)),
	)
	s.metrics.RecordNegativeConsumption(ctx, string(stats.Scope), stats.NegativeItems)
}

// calculator reports discarded index content against the request context.
func (s *Service) calculator(ctx context.Context) consumption.Calculator {
	log := logger.WithContext(ctx, s.log)
	return consumption.Calculator{
		Parser: numeric.NewParser(func(d numeric.Diagnostic) {
			log.Warn("non-numeric index coerced",
				zap.String("field", d.Field),
				zap.String("raw", d.Raw),
				zap.String("kind", d.Kind),
			)
			s.metrics.RecordCoercionDiscard(ctx, d.Field)
		}),
	}
}

func toView(calc consumption.Calculator, reading readingdomain.MeterReading) readingdomain.ReadingView {
	items := make([]readingdomain.ItemView, 0, len(reading.Items))
	for _, item := range reading.Items {
		res := calc.Of(item)
		items = append(items, readingdomain.ItemView{
			ReadingItem:        item,
			Consumption:        res.Value.String(),
			ConsumptionDisplay: res.Display,
			Negative:           res.Negative,
		})
	}
	return readingdomain.ReadingView{
		MeterReading: reading,
		State:        review.Resolve(reading),
		Items:        items,
	}
}

func buildReading(req readingdomain.WriteRequest) (readingdomain.MeterReading, error) {
	meterType := readingdomain.MeterType(strings.ToLower(strings.TrimSpace(string(req.MeterType))))
	if !meterType.Valid() {
		return readingdomain.MeterReading{}, readingdomain.ErrInvalidMeterType
	}

	period := strings.TrimSpace(req.Period)
	if !validPeriod(period) {
		return readingdomain.MeterReading{}, readingdomain.ErrInvalidPeriod
	}

	items := make([]readingdomain.ReadingItem, 0, len(req.Items))
	for _, item := range req.Items {
		newIndex := "0"
		if item.NewIndex != nil && strings.TrimSpace(*item.NewIndex) != "" {
			newIndex = strings.TrimSpace(*item.NewIndex)
		}

		var previous *string
		if item.PreviousIndex != nil && strings.TrimSpace(*item.PreviousIndex) != "" {
			previous = numeric.Ptr(strings.TrimSpace(*item.PreviousIndex))
		}

		images := make([]string, 0, len(item.Images))
		for _, image := range item.Images {
			if image = strings.TrimSpace(image); image != "" {
				images = append(images, image)
			}
		}

		items = append(items, readingdomain.ReadingItem{
			Name:          strings.TrimSpace(item.Name),
			PreviousIndex: previous,
			NewIndex:      newIndex,
			ReadingDate:   utc(item.ReadingDate),
			Images:        images,
		})
	}

	return readingdomain.MeterReading{
		BuildingID:  strings.TrimSpace(req.BuildingID),
		ApartmentID: strings.TrimSpace(req.ApartmentID),
		MeterType:   meterType,
		Period:      period,
		ReadingDate: utc(req.ReadingDate),
		Items:       items,
	}, nil
}

func validateFilter(filter readingdomain.ListFilter) error {
	if filter.MeterType != "" && !filter.MeterType.Valid() {
		return readingdomain.ErrInvalidMeterType
	}
	if period := strings.TrimSpace(filter.Period); period != "" && !validPeriod(period) {
		return readingdomain.ErrInvalidPeriod
	}
	return nil
}

func validPeriod(period string) bool {
	if len(period) != len("2006-01") {
		return false
	}
	_, err := time.Parse("2006-01", period)
	return err == nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
