package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) readingdomain.Store {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(conn, node, clock.NewFakeClock(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)))
}

func sampleReading(period string) readingdomain.MeterReading {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	return readingdomain.MeterReading{
		BuildingID:  "b-1",
		ApartmentID: "apt-101",
		MeterType:   readingdomain.MeterTypeElectricity,
		Period:      period,
		Items: []readingdomain.ReadingItem{
			{Name: "CTD-101-Room A", PreviousIndex: numeric.Ptr("100"), NewIndex: "150.00", ReadingDate: &day, Images: []string{"a.jpg"}},
			{Name: "CTD-101-Room B", NewIndex: "30", Images: []string{}},
		},
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Create(ctx, sampleReading("2024-01"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "apt-101", got.ApartmentID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "CTD-101-Room A", got.Items[0].Name)
	assert.Equal(t, []string{"a.jpg"}, got.Items[0].Images)
	assert.Nil(t, got.Items[1].PreviousIndex)
	assert.Nil(t, got.Items[1].ReadingDate)
	assert.Equal(t, []string{}, got.Items[1].Images)
	assert.False(t, got.Approved)
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, readingdomain.ErrNotFound)

	_, err = store.Get(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, readingdomain.ErrInvalidID)
}

func TestStoreUpdateReplacesItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Create(ctx, sampleReading("2024-01"))
	require.NoError(t, err)

	created.Items = created.Items[:1]
	created.Period = "2024-02"
	updated, err := store.Update(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", updated.Period)
	assert.Len(t, updated.Items, 1)
}

func TestStoreApproveAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Create(ctx, sampleReading("2024-01"))
	require.NoError(t, err)

	approved, err := store.Approve(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	require.NoError(t, store.Delete(ctx, created.ID))
	assert.ErrorIs(t, store.Delete(ctx, created.ID), readingdomain.ErrNotFound)

	_, err = store.Approve(ctx, created.ID, true)
	assert.ErrorIs(t, err, readingdomain.ErrNotFound)
}

func TestStoreListPagesAndFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, period := range []string{"2024-01", "2024-02", "2024-03"} {
		_, err := store.Create(ctx, sampleReading(period))
		require.NoError(t, err)
	}
	water := sampleReading("2024-03")
	water.MeterType = readingdomain.MeterTypeWater
	_, err := store.Create(ctx, water)
	require.NoError(t, err)

	res, err := store.List(ctx, readingdomain.ListRequest{Pagination: pagination.Pagination{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 4, res.Meta.Total)
	assert.True(t, res.Meta.HasMore)
	assert.Equal(t, "2024-03", res.Items[0].Period)

	res, err = store.List(ctx, readingdomain.ListRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: 10},
		Filter:     readingdomain.ListFilter{MeterType: readingdomain.MeterTypeWater},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, readingdomain.MeterTypeWater, res.Items[0].MeterType)
}

func TestStoreStatsCoversWholeCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, sampleReading("2024-01"))
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx, readingdomain.ListFilter{Period: "2024-01"}, nil)
	require.NoError(t, err)
	assert.Equal(t, readingdomain.ScopeCollection, stats.Scope)
	assert.Equal(t, int64(3), stats.NotFinalized)
	assert.Equal(t, "240", stats.TotalConsumptionDisplay)
}

func TestStoreStatsReportsDirtyIndexes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	dirty := sampleReading("2024-01")
	dirty.Items[1].NewIndex = "3O"
	_, err := store.Create(ctx, dirty)
	require.NoError(t, err)

	var got []numeric.Diagnostic
	parser := numeric.NewParser(func(d numeric.Diagnostic) { got = append(got, d) })

	stats, err := store.Stats(ctx, readingdomain.ListFilter{}, parser)
	require.NoError(t, err)
	assert.Equal(t, "50", stats.TotalConsumptionDisplay)
	require.Len(t, got, 1)
	assert.Equal(t, "newIndex", got[0].Field)
	assert.Equal(t, "3O", got[0].Raw)
}
