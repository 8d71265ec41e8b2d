package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/clock"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/pkg/db"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(Models()...))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	return New(conn, node, clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Insert(ctx, invoicedomain.Invoice{
		ApartmentID:   "apt-101",
		Period:        "2024-03",
		Collected:     numeric.Ptr("500000"),
		PrintTemplate: "hoa-don-hang-thang",
		Items: []invoicedomain.InvoiceItem{
			{ServiceName: "Tiền thuê phòng", Amount: numeric.Ptr("5000000"), Category: invoicedomain.CategoryRent},
			{ServiceName: "Tiền điện", UnitPrice: numeric.Ptr("3500"), Quantity: numeric.Ptr("120")},
		},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Tiền thuê phòng", got.Items[0].ServiceName)
	assert.Equal(t, invoicedomain.CategoryRent, got.Items[0].Category)
	assert.Nil(t, got.Items[1].Amount)
	assert.Equal(t, "500000", *got.Collected)
	assert.Nil(t, got.Total)

	_, err = store.Get(ctx, "42")
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)
}

func TestListAndScan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 1; i <= 5; i++ {
		_, err := store.Insert(ctx, invoicedomain.Invoice{
			Period: fmt.Sprintf("2024-%02d", i),
			Total:  numeric.Ptr("100"),
		})
		require.NoError(t, err)
	}

	res, err := store.List(ctx, invoicedomain.ListRequest{Pagination: pagination.Pagination{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 5, res.Meta.Total)
	assert.Equal(t, "2024-03", res.Items[0].Period)

	all, err := store.Scan(ctx, invoicedomain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	one, err := store.Scan(ctx, invoicedomain.ListFilter{Period: "2024-04"})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
