// Package seed loads a demo month into empty local stores.
package seed

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/zap"
)

const (
	demoBuilding = "demo-building"
	demoPeriod   = "2024-01"
)

// InvoiceWriter is the subset of the local invoice store the seeder needs.
type InvoiceWriter interface {
	List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResult, error)
	Insert(ctx context.Context, inv invoicedomain.Invoice) (*invoicedomain.Invoice, error)
}

// EnsureDemoData inserts demo readings and invoices. Each store is seeded
// only when it is empty, so running it twice is harmless.
func EnsureDemoData(ctx context.Context, readings readingdomain.Store, invoices InvoiceWriter, log *zap.Logger) error {
	if readings == nil || invoices == nil {
		return errors.New("seed stores are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	probe := pagination.Pagination{Page: 1, Limit: 1}

	existing, err := readings.List(ctx, readingdomain.ListRequest{Pagination: probe})
	if err != nil {
		return err
	}
	if existing.Meta.Total == 0 {
		for _, reading := range demoReadings() {
			if _, err := readings.Create(ctx, reading); err != nil {
				return err
			}
		}
		log.Info("seeded demo readings", zap.String("period", demoPeriod))
	}

	existingInvoices, err := invoices.List(ctx, invoicedomain.ListRequest{Pagination: probe})
	if err != nil {
		return err
	}
	if existingInvoices.Meta.Total == 0 {
		for _, inv := range demoInvoices() {
			if _, err := invoices.Insert(ctx, inv); err != nil {
				return err
			}
		}
		log.Info("seeded demo invoices", zap.String("period", demoPeriod))
	}
	return nil
}

func demoReadings() []readingdomain.MeterReading {
	day := time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC)
	return []readingdomain.MeterReading{
		{
			BuildingID:  demoBuilding,
			ApartmentID: "101",
			MeterType:   readingdomain.MeterTypeElectricity,
			Period:      demoPeriod,
			ReadingDate: &day,
			Items: []readingdomain.ReadingItem{
				{Name: "101-A", PreviousIndex: numeric.Ptr("1200"), NewIndex: "1315.5", ReadingDate: &day, Images: []string{"demo/101-a.jpg"}},
				{Name: "101-B", PreviousIndex: numeric.Ptr("830"), NewIndex: "872", ReadingDate: &day, Images: []string{}},
			},
		},
		{
			BuildingID:  demoBuilding,
			ApartmentID: "102",
			MeterType:   readingdomain.MeterTypeWater,
			Period:      demoPeriod,
			Items: []readingdomain.ReadingItem{
				{Name: "102-W", NewIndex: "14", Images: []string{}},
			},
		},
	}
}

func demoInvoices() []invoicedomain.Invoice {
	issued := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	due := issued.AddDate(0, 0, 10)
	return []invoicedomain.Invoice{
		{
			BuildingID:    demoBuilding,
			ApartmentID:   "101",
			Period:        demoPeriod,
			IssueDate:     &issued,
			DueDate:       &due,
			Collected:     numeric.Ptr("2,000,000"),
			PrintTemplate: "monthly",
			Items: []invoicedomain.InvoiceItem{
				{ServiceName: "Tiền phòng", Amount: numeric.Ptr("3,500,000")},
				{ServiceName: "Điện", UnitPrice: numeric.Ptr("3500"), Quantity: numeric.Ptr("157.5")},
				{ServiceName: "Internet", Amount: numeric.Ptr("100000"), Category: invoicedomain.CategoryService},
			},
		},
		{
			BuildingID:    demoBuilding,
			ApartmentID:   "102",
			Period:        demoPeriod,
			IssueDate:     &issued,
			Total:         numeric.Ptr("5000000"),
			PrintTemplate: "deposit",
		},
	}
}
