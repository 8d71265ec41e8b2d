package domain

import (
	"context"

	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

// ListFilter narrows reading queries. Empty fields do not filter.
type ListFilter struct {
	BuildingID  string    `form:"buildingId"`
	ApartmentID string    `form:"apartmentId"`
	Period      string    `form:"period"`
	MeterType   MeterType `form:"meterType"`
}

type ListRequest struct {
	pagination.Pagination
	Filter ListFilter
}

type ListResult struct {
	Items []MeterReading
	Meta  pagination.Meta
}

// Store is the record store that owns reading identity and timestamps.
type Store interface {
	List(ctx context.Context, req ListRequest) (*ListResult, error)
	Get(ctx context.Context, id string) (*MeterReading, error)
	Create(ctx context.Context, reading MeterReading) (*MeterReading, error)
	Update(ctx context.Context, reading MeterReading) (*MeterReading, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string, reviewed bool) (*MeterReading, error)
	// Stats returns the exact, collection-scoped aggregate. Values coerced
	// while aggregating are reported through parser.
	Stats(ctx context.Context, filter ListFilter, parser *numeric.Parser) (*Stats, error)
}
