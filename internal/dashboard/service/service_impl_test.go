package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type readingServiceMock struct {
	mock.Mock
}

func (m *readingServiceMock) List(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*readingdomain.ListResponse)
	return resp, args.Error(1)
}

func (m *readingServiceMock) Get(ctx context.Context, id string) (*readingdomain.ReadingView, error) {
	args := m.Called(ctx, id)
	view, _ := args.Get(0).(*readingdomain.ReadingView)
	return view, args.Error(1)
}

func (m *readingServiceMock) Create(ctx context.Context, req readingdomain.WriteRequest) (*readingdomain.ReadingView, error) {
	args := m.Called(ctx, req)
	view, _ := args.Get(0).(*readingdomain.ReadingView)
	return view, args.Error(1)
}

func (m *readingServiceMock) Update(ctx context.Context, id string, req readingdomain.WriteRequest) (*readingdomain.ReadingView, error) {
	args := m.Called(ctx, id, req)
	view, _ := args.Get(0).(*readingdomain.ReadingView)
	return view, args.Error(1)
}

func (m *readingServiceMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *readingServiceMock) Approve(ctx context.Context, id string, reviewed bool) (*readingdomain.ReadingView, error) {
	args := m.Called(ctx, id, reviewed)
	view, _ := args.Get(0).(*readingdomain.ReadingView)
	return view, args.Error(1)
}

func (m *readingServiceMock) Stats(ctx context.Context, req readingdomain.StatsRequest) (*readingdomain.Stats, error) {
	args := m.Called(ctx, req)
	stats, _ := args.Get(0).(*readingdomain.Stats)
	return stats, args.Error(1)
}

type invoiceServiceMock struct {
	mock.Mock
}

func (m *invoiceServiceMock) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*invoicedomain.ListResponse)
	return resp, args.Error(1)
}

func (m *invoiceServiceMock) Summary(ctx context.Context, filter invoicedomain.ListFilter) (*invoicedomain.Summary, error) {
	args := m.Called(ctx, filter)
	summary, _ := args.Get(0).(*invoicedomain.Summary)
	return summary, args.Error(1)
}

func (m *invoiceServiceMock) Get(ctx context.Context, id string) (*invoicedomain.Detail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*invoicedomain.Detail)
	return detail, args.Error(1)
}

func newTestBoard(t *testing.T) (*Board, *readingServiceMock, *invoiceServiceMock) {
	t.Helper()
	readings := &readingServiceMock{}
	invoices := &invoiceServiceMock{}
	board := New(Params{
		Readings: readings,
		Invoices: invoices,
		Log:      zaptest.NewLogger(t),
		Clock:    clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Billing:  config.NewStaticBillingConfig(config.BillingConfig{DashboardPageSize: 5}),
	})
	return board, readings, invoices
}

func pageIs(page int) any {
	return mock.MatchedBy(func(req readingdomain.ListRequest) bool { return req.Page == page })
}

func stubInvoices(invoices *invoiceServiceMock) {
	invoices.On("List", mock.Anything, mock.Anything).Return(&invoicedomain.ListResponse{}, nil)
	invoices.On("Summary", mock.Anything, mock.Anything).Return(&invoicedomain.Summary{InvoiceCount: 3}, nil)
}

func TestCurrentBeforeFirstReload(t *testing.T) {
	board, _, _ := newTestBoard(t)
	_, err := board.Current(context.Background())
	assert.ErrorIs(t, err, dashboarddomain.ErrNotLoaded)
}

func TestReloadCommitsSnapshot(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	readings.On("List", mock.Anything, mock.MatchedBy(func(req readingdomain.ListRequest) bool {
		return req.Page == 1 && req.Limit == 5 && req.Filter.MeterType == readingdomain.MeterTypeWater
	})).Return(&readingdomain.ListResponse{}, nil)
	readings.On("Stats", mock.Anything, mock.MatchedBy(func(req readingdomain.StatsRequest) bool {
		return req.AllowApproximate
	})).Return(&readingdomain.Stats{Reviewed: 2}, nil)
	stubInvoices(invoices)

	snap, err := board.Reload(context.Background(), dashboarddomain.Filter{MeterType: " Water "})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, int64(2), snap.ReadingStats.Reviewed)
	assert.Equal(t, 3, snap.InvoiceSummary.InvoiceCount)

	current, err := board.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, current)
}

func TestReloadFailureKeepsLastSnapshot(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	readings.On("List", mock.Anything, mock.Anything).Return(&readingdomain.ListResponse{}, nil)
	readings.On("Stats", mock.Anything, mock.Anything).Return(&readingdomain.Stats{Reviewed: 1}, nil).Once()
	readings.On("Stats", mock.Anything, mock.Anything).Return(nil, errors.New("backend down")).Once()
	stubInvoices(invoices)

	first, err := board.Reload(context.Background(), dashboarddomain.Filter{})
	require.NoError(t, err)

	_, err = board.Reload(context.Background(), dashboarddomain.Filter{Page: 2})
	require.Error(t, err)

	current, err := board.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
	assert.Equal(t, 1, current.Filter.Page)
}

func TestStaleReloadIsDiscarded(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	started := make(chan struct{})
	release := make(chan struct{})

	readings.On("List", mock.Anything, pageIs(1)).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&readingdomain.ListResponse{}, nil)
	readings.On("List", mock.Anything, pageIs(2)).Return(&readingdomain.ListResponse{}, nil)
	readings.On("Stats", mock.Anything, mock.Anything).Return(&readingdomain.Stats{}, nil)
	stubInvoices(invoices)

	done := make(chan error, 1)
	go func() {
		_, err := board.Reload(context.Background(), dashboarddomain.Filter{Page: 1})
		done <- err
	}()
	<-started

	newer, err := board.Reload(context.Background(), dashboarddomain.Filter{Page: 2})
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, dashboarddomain.ErrStale)

	current, err := board.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, newer, current)
	assert.Equal(t, 2, current.Filter.Page)
}

func TestApproveFailureLeavesSnapshotUntouched(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	readings.On("List", mock.Anything, mock.Anything).Return(&readingdomain.ListResponse{}, nil)
	readings.On("Stats", mock.Anything, mock.Anything).Return(&readingdomain.Stats{}, nil)
	stubInvoices(invoices)

	before, err := board.Reload(context.Background(), dashboarddomain.Filter{})
	require.NoError(t, err)

	rejected := errors.New("rejected")
	readings.On("Approve", mock.Anything, "r-1", true).Return(nil, rejected)

	result, err := board.Approve(context.Background(), "r-1", true)
	assert.ErrorIs(t, err, rejected)
	require.NotNil(t, result)
	assert.Same(t, before, result.Snapshot)
	assert.False(t, result.Reloaded)
	readings.AssertNumberOfCalls(t, "List", 1)
}

func TestApproveSuccessReloadsWithLastFilter(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	readings.On("List", mock.Anything, mock.Anything).Return(&readingdomain.ListResponse{}, nil)
	readings.On("Stats", mock.Anything, mock.Anything).Return(&readingdomain.Stats{}, nil)
	stubInvoices(invoices)

	_, err := board.Reload(context.Background(), dashboarddomain.Filter{BuildingID: "b-1", Page: 3})
	require.NoError(t, err)

	view := &readingdomain.ReadingView{MeterReading: readingdomain.MeterReading{ID: "r-1", Approved: true}}
	readings.On("Approve", mock.Anything, "r-1", true).Return(view, nil)

	result, err := board.Approve(context.Background(), "r-1", true)
	require.NoError(t, err)
	assert.True(t, result.Reloaded)
	assert.Equal(t, view, result.Reading)
	assert.Equal(t, uint64(2), result.Snapshot.Seq)
	assert.Equal(t, "b-1", result.Snapshot.Filter.BuildingID)
	assert.Equal(t, 3, result.Snapshot.Filter.Page)
}

func TestReloadSurvivesLoaderPanic(t *testing.T) {
	board, readings, invoices := newTestBoard(t)
	readings.On("List", mock.Anything, mock.Anything).Return(&readingdomain.ListResponse{}, nil).Once()
	readings.On("List", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("runtime error: slice bounds out of range [:10] with length 9")
	}).Return(nil, nil).Once()
	readings.On("Stats", mock.Anything, mock.Anything).Return(&readingdomain.Stats{}, nil)
	stubInvoices(invoices)

	first, err := board.Reload(context.Background(), dashboarddomain.Filter{})
	require.NoError(t, err)

	var reloadErr error
	require.NotPanics(t, func() {
		_, reloadErr = board.Reload(context.Background(), dashboarddomain.Filter{Page: 2})
	})
	assert.ErrorIs(t, reloadErr, errLoaderPanic)

	current, err := board.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
}
