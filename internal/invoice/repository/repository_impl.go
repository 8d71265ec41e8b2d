package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/clock"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const invoiceColumns = `id, building_id, apartment_id, contract_id, period, issue_date, due_date, total, amount, collected, refunded, print_template, created_at, updated_at`

const itemColumns = `id, invoice_id, position, service_name, amount, unit_price, quantity, category`

// scanBatch bounds how many invoices Scan loads per query.
const scanBatch = 500

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

// Store is the gorm-backed invoice store.
type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func Provide(p Params) *Store {
	return New(p.DB, p.GenID, p.Clock)
}

func New(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Store{db: db, genID: genID, clock: clk}
}

func (s *Store) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResult, error) {
	page := req.Pagination.Normalize()
	where, args := filterClause(req.Filter)

	var total int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices`+where, args...,
	).Scan(&total).Error; err != nil {
		return nil, err
	}

	invoices, err := s.page(ctx, where, args, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}

	return &invoicedomain.ListResult{
		Items: invoices,
		Meta:  pagination.BuildMeta(page, int(total)),
	}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID <= 0 {
		return nil, invoicedomain.ErrInvalidID
	}

	var row invoiceRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		invoiceID,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, invoicedomain.ErrNotFound
	}

	invoices, err := s.withItems(ctx, []invoiceRow{row})
	if err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

// Scan walks every page of invoices matching filter.
func (s *Store) Scan(ctx context.Context, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	where, args := filterClause(filter)

	var all []invoicedomain.Invoice
	for offset := 0; ; offset += scanBatch {
		batch, err := s.page(ctx, where, args, scanBatch, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < scanBatch {
			break
		}
	}
	if all == nil {
		all = []invoicedomain.Invoice{}
	}
	return all, nil
}

// Insert stores a new invoice with its items and returns it with its ID.
func (s *Store) Insert(ctx context.Context, inv invoicedomain.Invoice) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	id := s.genID.Generate()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			inv.BuildingID,
			inv.ApartmentID,
			inv.ContractID,
			inv.Period,
			inv.IssueDate,
			inv.DueDate,
			inv.Total,
			inv.Amount,
			inv.Collected,
			inv.Refunded,
			inv.PrintTemplate,
			now,
			now,
		).Error; err != nil {
			return err
		}
		for i, item := range inv.Items {
			if err := tx.Exec(
				`INSERT INTO invoice_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				id,
				i,
				item.ServiceName,
				item.Amount,
				item.UnitPrice,
				item.Quantity,
				string(item.Category),
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id.String())
}

func (s *Store) page(ctx context.Context, where string, args []any, limit, offset int) ([]invoicedomain.Invoice, error) {
	var rows []invoiceRow
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where +
		` ORDER BY period DESC, id DESC LIMIT ? OFFSET ?`
	queryArgs := append(append([]any{}, args...), limit, offset)
	if err := s.db.WithContext(ctx).Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return s.withItems(ctx, rows)
}

func (s *Store) withItems(ctx context.Context, rows []invoiceRow) ([]invoicedomain.Invoice, error) {
	invoices := make([]invoicedomain.Invoice, 0, len(rows))
	if len(rows) == 0 {
		return invoices, nil
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var items []invoiceItemRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM invoice_items WHERE invoice_id IN ? ORDER BY invoice_id ASC, position ASC`,
		ids,
	).Scan(&items).Error; err != nil {
		return nil, err
	}

	byInvoice := make(map[snowflake.ID][]invoicedomain.InvoiceItem, len(rows))
	for _, item := range items {
		byInvoice[item.InvoiceID] = append(byInvoice[item.InvoiceID], invoicedomain.InvoiceItem{
			ServiceName: item.ServiceName,
			Amount:      item.Amount,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Category:    invoicedomain.Category(item.Category),
		})
	}

	for _, row := range rows {
		items := byInvoice[row.ID]
		if items == nil {
			items = []invoicedomain.InvoiceItem{}
		}
		invoices = append(invoices, invoicedomain.Invoice{
			ID:            row.ID.String(),
			BuildingID:    row.BuildingID,
			ApartmentID:   row.ApartmentID,
			ContractID:    row.ContractID,
			Period:        row.Period,
			IssueDate:     utcPtr(row.IssueDate),
			DueDate:       utcPtr(row.DueDate),
			Items:         items,
			Total:         row.Total,
			Amount:        row.Amount,
			Collected:     row.Collected,
			Refunded:      row.Refunded,
			PrintTemplate: row.PrintTemplate,
		})
	}
	return invoices, nil
}

func filterClause(filter invoicedomain.ListFilter) (string, []any) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if v := strings.TrimSpace(filter.BuildingID); v != "" {
		conds = append(conds, "building_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.ApartmentID); v != "" {
		conds = append(conds, "apartment_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Period); v != "" {
		conds = append(conds, "period = ?")
		args = append(args, v)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
