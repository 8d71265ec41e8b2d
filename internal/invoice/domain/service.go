package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Summary(ctx context.Context, filter ListFilter) (*Summary, error)
	Get(ctx context.Context, id string) (*Detail, error)
}

// InvoiceView is an invoice with its computed amount.
type InvoiceView struct {
	Invoice
	InvoiceAmount string `json:"invoiceAmount"`
}

type ListResponse struct {
	Items   []InvoiceView   `json:"items"`
	Meta    pagination.Meta `json:"meta"`
	Summary Summary         `json:"summary"`
}

// TemplateView is what a print template receives: the tag it was resolved to
// and the invoice totals.
type TemplateView struct {
	Tag    string  `json:"tag"`
	Name   string  `json:"name"`
	Totals Summary `json:"totals"`
}

type Detail struct {
	Invoice  Invoice      `json:"invoice"`
	Lines    []Line       `json:"lines"`
	Template TemplateView `json:"template"`
}

var (
	ErrNotFound  = errors.New("not_found")
	ErrInvalidID = errors.New("invalid_id")
)
