package domain

import (
	"context"

	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

type ListFilter struct {
	BuildingID  string `form:"buildingId"`
	ApartmentID string `form:"apartmentId"`
	Period      string `form:"period"`
}

type ListRequest struct {
	pagination.Pagination
	Filter ListFilter
}

type ListResult struct {
	Items []Invoice
	Meta  pagination.Meta
}

// Store is the read side of the invoice record store.
type Store interface {
	List(ctx context.Context, req ListRequest) (*ListResult, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	// Scan returns every invoice matching filter across all pages.
	Scan(ctx context.Context, filter ListFilter) ([]Invoice, error)
}
