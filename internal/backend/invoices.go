package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

// scanPageSize is the page size used when walking every invoice page.
const scanPageSize = 100

// maxScanPages stops a Scan against a backend whose paging never ends.
const maxScanPages = 1000

var errScanLimit = errors.New("invoice scan exceeded page limit")

type invoiceStore struct {
	client *Client
}

// NewInvoiceStore returns an invoice store backed by the backend API.
func NewInvoiceStore(client *Client) invoicedomain.Store {
	return &invoiceStore{client: client}
}

func (s *invoiceStore) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResult, error) {
	page := req.Pagination.Normalize()
	query := invoiceQuery(req.Filter)
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("limit", strconv.Itoa(page.Limit))

	raw, err := s.client.do(ctx, "invoices.list", http.MethodGet, "/invoices", query, nil)
	if err != nil {
		return nil, err
	}
	return s.client.normalizer(ctx).invoiceList(raw, page)
}

func (s *invoiceStore) Get(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invoicedomain.ErrInvalidID
	}
	raw, err := s.client.do(ctx, "invoices.get", http.MethodGet, "/invoices/"+url.PathEscape(id), nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.Join(invoicedomain.ErrNotFound, err)
		}
		return nil, err
	}
	inv, err := s.client.normalizer(ctx).invoice(raw)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Scan walks the list endpoint page by page until the backend reports no
// more pages or returns an empty one.
func (s *invoiceStore) Scan(ctx context.Context, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	var out []invoicedomain.Invoice
	for page := 1; page <= maxScanPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.List(ctx, invoicedomain.ListRequest{
			Pagination: pagination.Pagination{Page: page, Limit: scanPageSize},
			Filter:     filter,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, result.Items...)
		if !result.Meta.HasMore || len(result.Items) == 0 {
			return out, nil
		}
	}
	return nil, errScanLimit
}

func invoiceQuery(filter invoicedomain.ListFilter) url.Values {
	query := url.Values{}
	setIf(query, "buildingId", filter.BuildingID)
	setIf(query, "apartmentId", filter.ApartmentID)
	setIf(query, "period", filter.Period)
	return query
}
