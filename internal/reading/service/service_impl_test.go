package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/lock"
	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) List(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResult, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*readingdomain.ListResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) Get(ctx context.Context, id string) (*readingdomain.MeterReading, error) {
	args := m.Called(ctx, id)
	if res, ok := args.Get(0).(*readingdomain.MeterReading); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) Create(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	args := m.Called(ctx, reading)
	if res, ok := args.Get(0).(*readingdomain.MeterReading); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) Update(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	args := m.Called(ctx, reading)
	if res, ok := args.Get(0).(*readingdomain.MeterReading); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *storeMock) Approve(ctx context.Context, id string, reviewed bool) (*readingdomain.MeterReading, error) {
	args := m.Called(ctx, id, reviewed)
	if res, ok := args.Get(0).(*readingdomain.MeterReading); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) Stats(ctx context.Context, filter readingdomain.ListFilter, parser *numeric.Parser) (*readingdomain.Stats, error) {
	args := m.Called(ctx, filter, parser)
	if res, ok := args.Get(0).(*readingdomain.Stats); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func newService(t *testing.T, store readingdomain.Store, locker lock.Locker) readingdomain.Service {
	t.Helper()
	return New(Params{
		Store:   store,
		Locker:  locker,
		Log:     zaptest.NewLogger(t),
		Billing: config.NewStaticBillingConfig(config.BillingConfig{ApproximatePageSize: 50}),
	})
}

func scenarioA() readingdomain.MeterReading {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	return readingdomain.MeterReading{
		ID:        "1",
		MeterType: readingdomain.MeterTypeElectricity,
		Period:    "2024-01",
		Items: []readingdomain.ReadingItem{
			{PreviousIndex: numeric.Ptr("100"), NewIndex: "150.00", ReadingDate: &day, Images: []string{"a.jpg"}},
		},
	}
}

func scenarioB() readingdomain.MeterReading {
	return readingdomain.MeterReading{
		ID:        "2",
		MeterType: readingdomain.MeterTypeWater,
		Period:    "2024-01",
		Items:     []readingdomain.ReadingItem{{NewIndex: "30", Images: []string{}}},
	}
}

func TestListEnrichesReadingsWithPageStats(t *testing.T) {
	store := new(storeMock)
	store.On("List", mock.Anything, mock.Anything).Return(&readingdomain.ListResult{
		Items: []readingdomain.MeterReading{scenarioA(), scenarioB()},
		Meta:  pagination.BuildMeta(pagination.Pagination{Page: 1, Limit: 20}, 2),
	}, nil)

	svc := newService(t, store, nil)
	res, err := svc.List(context.Background(), readingdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	a := res.Items[0]
	assert.Equal(t, readingdomain.ReviewStateReviewed, a.State)
	assert.Equal(t, "50", a.Items[0].ConsumptionDisplay)

	b := res.Items[1]
	assert.Equal(t, readingdomain.ReviewStateNotFinalized, b.State)
	assert.Equal(t, "30", b.Items[0].Consumption)

	assert.Equal(t, readingdomain.ScopePage, res.Stats.Scope)
	assert.Equal(t, int64(1), res.Stats.Reviewed)
	assert.Equal(t, int64(1), res.Stats.NotFinalized)
	assert.True(t, res.Stats.TotalConsumption.Equal(decimal.NewFromInt(80)))
}

func TestCreateNormalizesPayload(t *testing.T) {
	store := new(storeMock)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r readingdomain.MeterReading) bool {
		return r.MeterType == readingdomain.MeterTypeWater &&
			r.Items[0].NewIndex == "0" &&
			r.Items[0].PreviousIndex == nil &&
			len(r.Items[0].Images) == 0
	})).Return(&readingdomain.MeterReading{ID: "9", Period: "2024-03"}, nil)

	svc := newService(t, store, nil)
	blank := "  "
	_, err := svc.Create(context.Background(), readingdomain.WriteRequest{
		MeterType: " Water ",
		Period:    "2024-03",
		Items:     []readingdomain.WriteItemRequest{{Name: "Room A", PreviousIndex: &blank, NewIndex: &blank}},
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := newService(t, new(storeMock), nil)

	_, err := svc.Create(context.Background(), readingdomain.WriteRequest{MeterType: "gas", Period: "2024-01"})
	assert.ErrorIs(t, err, readingdomain.ErrInvalidMeterType)

	for _, period := range []string{"2024-13", "2024-1", "01-2024", ""} {
		_, err = svc.Create(context.Background(), readingdomain.WriteRequest{MeterType: "water", Period: period})
		assert.ErrorIs(t, err, readingdomain.ErrInvalidPeriod, period)
	}
}

func TestApprovePropagatesStoreFailure(t *testing.T) {
	backendErr := errors.New("backend rejected")
	store := new(storeMock)
	store.On("Approve", mock.Anything, "1", true).Return(nil, backendErr).Once()

	svc := newService(t, store, lock.NewMemoryLocker())
	_, err := svc.Approve(context.Background(), "1", true)
	assert.ErrorIs(t, err, backendErr)

	// The lock is released after a failure so a retry can go through.
	approved := scenarioA()
	approved.Approved = true
	store.On("Approve", mock.Anything, "1", true).Return(&approved, nil).Once()
	view, err := svc.Approve(context.Background(), "1", true)
	require.NoError(t, err)
	assert.True(t, view.Approved)
	assert.Equal(t, readingdomain.ReviewStateReviewed, view.State)
}

func TestApproveRejectsConcurrentDuplicate(t *testing.T) {
	locker := lock.NewMemoryLocker()
	_, ok, err := locker.TryLock(context.Background(), "rentbook:approve:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	store := new(storeMock)
	svc := newService(t, store, locker)
	_, err = svc.Approve(context.Background(), "1", true)
	assert.ErrorIs(t, err, readingdomain.ErrApprovalInFlight)
	store.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatsPrefersExactAggregate(t *testing.T) {
	store := new(storeMock)
	store.On("Stats", mock.Anything, readingdomain.ListFilter{}, mock.Anything).Return(&readingdomain.Stats{Reviewed: 7}, nil)

	svc := newService(t, store, nil)
	stats, err := svc.Stats(context.Background(), readingdomain.StatsRequest{AllowApproximate: true})
	require.NoError(t, err)
	assert.Equal(t, readingdomain.ScopeCollection, stats.Scope)
	assert.Equal(t, int64(7), stats.Reviewed)
	store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestStatsFallsBackToPageScope(t *testing.T) {
	store := new(storeMock)
	store.On("Stats", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("stats endpoint down"))
	store.On("List", mock.Anything, mock.MatchedBy(func(req readingdomain.ListRequest) bool {
		return req.Page == 1 && req.Limit == 50
	})).Return(&readingdomain.ListResult{Items: []readingdomain.MeterReading{scenarioA()}}, nil)

	svc := newService(t, store, nil)

	_, err := svc.Stats(context.Background(), readingdomain.StatsRequest{})
	assert.Error(t, err)

	stats, err := svc.Stats(context.Background(), readingdomain.StatsRequest{AllowApproximate: true})
	require.NoError(t, err)
	assert.Equal(t, readingdomain.ScopePage, stats.Scope)
	assert.Equal(t, "50", stats.TotalConsumptionDisplay)
}

func newObservedService(store readingdomain.Store) (readingdomain.Service, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return New(Params{
		Store:   store,
		Log:     zap.New(core),
		Billing: config.NewStaticBillingConfig(config.BillingConfig{ApproximatePageSize: 50}),
	}), logs
}

func TestExactStatsReportCoercedIndexes(t *testing.T) {
	store := new(storeMock)
	store.On("Stats", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			parser := args.Get(2).(*numeric.Parser)
			dirty := "1O0"
			parser.ParseIndex("newIndex", &dirty)
		}).
		Return(&readingdomain.Stats{Reviewed: 1}, nil)

	svc, logs := newObservedService(store)
	stats, err := svc.Stats(context.Background(), readingdomain.StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, readingdomain.ScopeCollection, stats.Scope)

	entries := logs.FilterMessage("non-numeric index coerced").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "newIndex", entries[0].ContextMap()["field"])
	assert.Equal(t, "1O0", entries[0].ContextMap()["raw"])
}

func TestExactStatsFlagNegativeConsumption(t *testing.T) {
	store := new(storeMock)
	store.On("Stats", mock.Anything, mock.Anything, mock.Anything).
		Return(&readingdomain.Stats{NegativeItems: 2}, nil)

	svc, logs := newObservedService(store)
	_, err := svc.Stats(context.Background(), readingdomain.StatsRequest{})
	require.NoError(t, err)

	entries := logs.FilterMessage("negative consumption excluded from total").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["negative_items"])
	assert.Equal(t, string(readingdomain.ScopeCollection), entries[0].ContextMap()["scope"])
}
