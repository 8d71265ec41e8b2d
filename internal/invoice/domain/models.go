package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a billing document fetched from the record store. Money fields
// stay as the store sent them and are coerced only when rolled up.
type Invoice struct {
	ID            string        `json:"id"`
	BuildingID    string        `json:"buildingId"`
	ApartmentID   string        `json:"apartmentId"`
	ContractID    string        `json:"contractId"`
	Period        string        `json:"period"`
	IssueDate     *time.Time    `json:"issueDate"`
	DueDate       *time.Time    `json:"dueDate"`
	Items         []InvoiceItem `json:"items"`
	Total         *string       `json:"total"`
	Amount        *string       `json:"amount"`
	Collected     *string       `json:"collected"`
	Refunded      *string       `json:"refunded"`
	PrintTemplate string        `json:"printTemplate"`
}

type InvoiceItem struct {
	ServiceName string  `json:"serviceName"`
	Amount      *string `json:"amount"`
	UnitPrice   *string `json:"unitPrice"`
	Quantity    *string `json:"quantity"`
	// Category is an explicit rent/service tag. Empty means unknown.
	Category Category `json:"category,omitempty"`
}

type Category string

const (
	CategoryRent    Category = "rent"
	CategoryService Category = "service"
)

func (c Category) Valid() bool {
	return c == CategoryRent || c == CategoryService
}

// Line is an invoice item with its computed amount and category.
type Line struct {
	InvoiceItem
	LineAmount decimal.Decimal `json:"lineAmount"`
	Class      Category        `json:"class"`
}

// Scope labels whether a Summary covers one page or the whole collection.
type Scope string

const (
	ScopePage       Scope = "page"
	ScopeCollection Scope = "collection"
	ScopeInvoice    Scope = "invoice"
)

// Summary is the financial roll-up of a set of invoices. ServiceMoney is
// always TotalMoney - RentMoney and Due is always
// TotalMoney - TotalCollected + TotalRefunded.
type Summary struct {
	TotalMoney     decimal.Decimal `json:"totalMoney"`
	RentMoney      decimal.Decimal `json:"rentMoney"`
	ServiceMoney   decimal.Decimal `json:"serviceMoney"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
	TotalRefunded  decimal.Decimal `json:"totalRefunded"`
	Due            decimal.Decimal `json:"due"`
	InvoiceCount   int             `json:"invoiceCount"`
	Scope          Scope           `json:"scope"`
}
