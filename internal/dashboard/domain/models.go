package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
)

// Filter selects what the dashboard shows. Page applies to both lists.
type Filter struct {
	BuildingID  string                  `json:"buildingId" form:"buildingId"`
	ApartmentID string                  `json:"apartmentId" form:"apartmentId"`
	Period      string                  `json:"period" form:"period"`
	MeterType   readingdomain.MeterType `json:"meterType" form:"meterType"`
	Page        int                     `json:"page" form:"page"`
}

// Snapshot is one consistent view of the dashboard. It is replaced as a whole
// and never partially updated.
type Snapshot struct {
	Seq            uint64                      `json:"seq"`
	LoadedAt       time.Time                   `json:"loadedAt"`
	Filter         Filter                      `json:"filter"`
	Readings       *readingdomain.ListResponse `json:"readings"`
	ReadingStats   readingdomain.Stats         `json:"readingStats"`
	Invoices       *invoicedomain.ListResponse `json:"invoices"`
	InvoiceSummary invoicedomain.Summary       `json:"invoiceSummary"`
}

// ApproveResult carries the approved reading and the snapshot the caller
// should display. Reloaded is false when the approval succeeded but the
// follow-up reload did not commit.
type ApproveResult struct {
	Reading  *readingdomain.ReadingView `json:"reading"`
	Snapshot *Snapshot                  `json:"snapshot"`
	Reloaded bool                       `json:"reloaded"`
}

type Service interface {
	Current(ctx context.Context) (*Snapshot, error)
	Reload(ctx context.Context, filter Filter) (*Snapshot, error)
	Approve(ctx context.Context, readingID string, reviewed bool) (*ApproveResult, error)
}

var (
	ErrNotLoaded = errors.New("dashboard_not_loaded")
	// ErrStale means a newer reload was issued while this one was in flight.
	ErrStale = errors.New("stale_reload")
)
