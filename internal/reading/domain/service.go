package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*ReadingView, error)
	Create(ctx context.Context, req WriteRequest) (*ReadingView, error)
	Update(ctx context.Context, id string, req WriteRequest) (*ReadingView, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string, reviewed bool) (*ReadingView, error)
	Stats(ctx context.Context, req StatsRequest) (*Stats, error)
}

// WriteRequest is the create/update payload.
type WriteRequest struct {
	BuildingID  string             `json:"buildingId"`
	ApartmentID string             `json:"apartmentId"`
	MeterType   MeterType          `json:"meterType"`
	Period      string             `json:"period"`
	ReadingDate *time.Time         `json:"readingDate"`
	Items       []WriteItemRequest `json:"items"`
}

type WriteItemRequest struct {
	Name          string     `json:"name"`
	PreviousIndex *string    `json:"previousIndex"`
	NewIndex      *string    `json:"newIndex"`
	ReadingDate   *time.Time `json:"readingDate"`
	Images        []string   `json:"images"`
}

type StatsRequest struct {
	Filter ListFilter
	// AllowApproximate permits a page-scoped fallback when the exact
	// aggregate cannot be obtained.
	AllowApproximate bool
}

// ItemView is a reading item with its derived consumption.
type ItemView struct {
	ReadingItem
	Consumption        string `json:"consumption"`
	ConsumptionDisplay string `json:"consumptionDisplay"`
	Negative           bool   `json:"negative"`
}

// ReadingView is a reading with its derived review state and item consumption.
type ReadingView struct {
	MeterReading
	State ReviewState `json:"state"`
	Items []ItemView  `json:"items"`
}

type ListResponse struct {
	Items []ReadingView   `json:"items"`
	Meta  pagination.Meta `json:"meta"`
	Stats Stats           `json:"stats"`
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidMeterType = errors.New("invalid_meter_type")
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrApprovalInFlight = errors.New("approval_in_flight")
)
