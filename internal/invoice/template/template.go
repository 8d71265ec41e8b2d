// Package template maps an invoice's print template tag onto one of the
// known layouts. It hands renderers totals only.
package template

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/invoice/rollup"
)

type Template struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

const (
	Deposit       = "hoa-don-dat-coc"
	Monthly       = "hoa-don-hang-thang"
	Settlement    = "hoa-don-thanh-ly-hop-dong"
	DepositRefund = "hoa-don-hoan-tien-dat-coc"
	RoomTransfer  = "hoa-don-chuyen-nhuong"
	NewContract   = "hoa-don-hop-dong-moi"
)

var known = map[string]Template{
	Deposit:       {Tag: Deposit, Name: "deposit"},
	Monthly:       {Tag: Monthly, Name: "monthly rent"},
	Settlement:    {Tag: Settlement, Name: "contract settlement"},
	DepositRefund: {Tag: DepositRefund, Name: "deposit refund"},
	RoomTransfer:  {Tag: RoomTransfer, Name: "room transfer"},
	NewContract:   {Tag: NewContract, Name: "new contract"},
}

// Select resolves tag to a known template. Tags are slugged first, so
// "Hóa đơn đặt cọc" selects the deposit template. Unknown or empty tags fall
// back to the monthly template.
func Select(tag string) Template {
	key := slug.Make(strings.TrimSpace(tag))
	if t, ok := known[key]; ok {
		return t
	}
	return known[Monthly]
}

// Tags lists the known template tags.
func Tags() []string {
	return []string{Deposit, Monthly, Settlement, DepositRefund, RoomTransfer, NewContract}
}

// Resolve selects the template for inv and attaches its totals.
func Resolve(engine rollup.Engine, inv domain.Invoice) domain.TemplateView {
	t := Select(inv.PrintTemplate)
	return domain.TemplateView{
		Tag:    t.Tag,
		Name:   t.Name,
		Totals: engine.Invoice(inv),
	}
}
