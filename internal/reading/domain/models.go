package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeterType identifies which utility a reading measures.
type MeterType string

const (
	MeterTypeElectricity MeterType = "electricity"
	MeterTypeWater       MeterType = "water"
)

func (t MeterType) Valid() bool {
	switch t {
	case MeterTypeElectricity, MeterTypeWater:
		return true
	default:
		return false
	}
}

// MeterReading is one periodic submission of meter indexes for an apartment.
type MeterReading struct {
	ID          string        `json:"id"`
	BuildingID  string        `json:"buildingId"`
	ApartmentID string        `json:"apartmentId"`
	MeterType   MeterType     `json:"meterType"`
	Period      string        `json:"period"`
	ReadingDate *time.Time    `json:"readingDate"`
	Approved    bool          `json:"approved"`
	Items       []ReadingItem `json:"items"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ReadingItem is a single meter line within a reading. Order is display order.
type ReadingItem struct {
	Name          string     `json:"name"`
	PreviousIndex *string    `json:"previousIndex"`
	NewIndex      string     `json:"newIndex"`
	ReadingDate   *time.Time `json:"readingDate"`
	Images        []string   `json:"images"`
}

// ReviewState is derived from a reading's items, never stored.
type ReviewState string

const (
	ReviewStateNotFinalized ReviewState = "not_finalized"
	ReviewStateReviewed     ReviewState = "reviewed"
	ReviewStateNotReviewed  ReviewState = "not_reviewed"
)

// Scope labels whether Stats covers the whole collection or one fetched page.
type Scope string

const (
	ScopePage       Scope = "page"
	ScopeCollection Scope = "collection"
)

type Stats struct {
	NotFinalized            int64           `json:"notFinalized"`
	Reviewed                int64           `json:"reviewed"`
	NotReviewed             int64           `json:"notReviewed"`
	TotalConsumption        decimal.Decimal `json:"totalConsumption"`
	TotalConsumptionDisplay string          `json:"totalConsumptionDisplay"`
	// NegativeItems counts items whose consumption was below zero and was
	// therefore left out of TotalConsumption.
	NegativeItems int64 `json:"negativeItems"`
	Scope         Scope `json:"scope"`
}
