package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type invoiceRow struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey"`
	BuildingID    string       `gorm:"column:building_id;type:text;not null;default:''"`
	ApartmentID   string       `gorm:"column:apartment_id;type:text;not null;default:''"`
	ContractID    string       `gorm:"column:contract_id;type:text;not null;default:''"`
	Period        string       `gorm:"column:period;type:text;not null;default:'';index:idx_invoices_period"`
	IssueDate     *time.Time   `gorm:"column:issue_date"`
	DueDate       *time.Time   `gorm:"column:due_date"`
	Total         *string      `gorm:"column:total;type:text"`
	Amount        *string      `gorm:"column:amount;type:text"`
	Collected     *string      `gorm:"column:collected;type:text"`
	Refunded      *string      `gorm:"column:refunded;type:text"`
	PrintTemplate string       `gorm:"column:print_template;type:text;not null;default:''"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;not null"`
}

func (invoiceRow) TableName() string { return "invoices" }

type invoiceItemRow struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey"`
	InvoiceID   snowflake.ID `gorm:"column:invoice_id;not null;index:idx_invoice_items_invoice,priority:1"`
	Position    int          `gorm:"column:position;not null;index:idx_invoice_items_invoice,priority:2"`
	ServiceName string       `gorm:"column:service_name;type:text;not null;default:''"`
	Amount      *string      `gorm:"column:amount;type:text"`
	UnitPrice   *string      `gorm:"column:unit_price;type:text"`
	Quantity    *string      `gorm:"column:quantity;type:text"`
	Category    string       `gorm:"column:category;type:text;not null;default:''"`
}

func (invoiceItemRow) TableName() string { return "invoice_items" }

// Models lists the row types for dialects migrated with AutoMigrate.
func Models() []any {
	return []any{&invoiceRow{}, &invoiceItemRow{}}
}
