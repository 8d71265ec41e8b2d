// Package rollup computes invoice amounts and collection-wide money figures.
// Every call recomputes from the invoices it is given.
package rollup

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/invoice/classify"
	"github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/numeric"
)

type Engine struct {
	Classifier classify.Classifier
	Parser     *numeric.Parser
}

func New(classifier classify.Classifier) Engine {
	return Engine{Classifier: classifier}
}

// ItemAmount is the item's own amount when numeric, otherwise
// unitPrice x quantity when both are numeric and non-zero, otherwise zero.
func (e Engine) ItemAmount(item domain.InvoiceItem) decimal.Decimal {
	p := e.parser()
	if amount := p.ParseMoney("item.amount", item.Amount); amount.Valid {
		return amount.Value
	}

	unitPrice := p.ParseMoney("item.unitPrice", item.UnitPrice)
	quantity := p.ParseMoney("item.quantity", item.Quantity)
	if !unitPrice.Valid || !quantity.Valid || unitPrice.Value.IsZero() || quantity.Value.IsZero() {
		return decimal.Zero
	}
	return unitPrice.Value.Mul(quantity.Value)
}

// InvoiceAmount sums the items, or falls back to total, then amount, then zero
// when the invoice has no items.
func (e Engine) InvoiceAmount(inv domain.Invoice) decimal.Decimal {
	if len(inv.Items) > 0 {
		sum := decimal.Zero
		for _, item := range inv.Items {
			sum = sum.Add(e.ItemAmount(item))
		}
		return sum
	}

	p := e.parser()
	if total := p.ParseMoney("invoice.total", inv.Total); total.Valid {
		return total.Value
	}
	if amount := p.ParseMoney("invoice.amount", inv.Amount); amount.Valid {
		return amount.Value
	}
	return decimal.Zero
}

// RentAmount is the sum of rent-classified item amounts. Invoices without
// items contribute nothing because their total cannot be split.
func (e Engine) RentAmount(inv domain.Invoice) decimal.Decimal {
	rent := decimal.Zero
	for _, item := range inv.Items {
		if e.classify(item) == domain.CategoryRent {
			rent = rent.Add(e.ItemAmount(item))
		}
	}
	return rent
}

// Lines returns the invoice items with their amount and category.
func (e Engine) Lines(inv domain.Invoice) []domain.Line {
	lines := make([]domain.Line, 0, len(inv.Items))
	for _, item := range inv.Items {
		lines = append(lines, domain.Line{
			InvoiceItem: item,
			LineAmount:  e.ItemAmount(item),
			Class:       e.classify(item),
		})
	}
	return lines
}

// Summarize rolls up a collection of invoices.
func (e Engine) Summarize(invoices []domain.Invoice, scope domain.Scope) domain.Summary {
	p := e.parser()
	total := decimal.Zero
	rent := decimal.Zero
	collected := decimal.Zero
	refunded := decimal.Zero

	for _, inv := range invoices {
		total = total.Add(e.InvoiceAmount(inv))
		rent = rent.Add(e.RentAmount(inv))
		collected = collected.Add(p.ParseMoney("invoice.collected", inv.Collected).Value)
		refunded = refunded.Add(p.ParseMoney("invoice.refunded", inv.Refunded).Value)
	}

	return domain.Summary{
		TotalMoney:     total,
		RentMoney:      rent,
		ServiceMoney:   total.Sub(rent),
		TotalCollected: collected,
		TotalRefunded:  refunded,
		Due:            total.Sub(collected).Add(refunded),
		InvoiceCount:   len(invoices),
		Scope:          scope,
	}
}

// Invoice rolls up a single invoice.
func (e Engine) Invoice(inv domain.Invoice) domain.Summary {
	return e.Summarize([]domain.Invoice{inv}, domain.ScopeInvoice)
}

func (e Engine) classify(item domain.InvoiceItem) domain.Category {
	if e.Classifier == nil {
		return classify.Keywords{}.Classify(item)
	}
	return e.Classifier.Classify(item)
}

func (e Engine) parser() *numeric.Parser {
	if e.Parser == nil {
		return numeric.Default
	}
	return e.Parser
}
