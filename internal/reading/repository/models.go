package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type readingRow struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey"`
	BuildingID  string       `gorm:"column:building_id;type:text;not null;default:''"`
	ApartmentID string       `gorm:"column:apartment_id;type:text;not null;default:'';index:idx_readings_apartment,priority:1"`
	MeterType   string       `gorm:"column:meter_type;type:text;not null"`
	Period      string       `gorm:"column:period;type:text;not null;index:idx_readings_period;index:idx_readings_apartment,priority:2"`
	ReadingDate *time.Time   `gorm:"column:reading_date"`
	Approved    bool         `gorm:"column:approved;not null;default:false"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null"`
}

func (readingRow) TableName() string { return "readings" }

type readingItemRow struct {
	ID            snowflake.ID                `gorm:"column:id;primaryKey"`
	ReadingID     snowflake.ID                `gorm:"column:reading_id;not null;index:idx_reading_items_reading,priority:1"`
	Position      int                         `gorm:"column:position;not null;index:idx_reading_items_reading,priority:2"`
	Name          string                      `gorm:"column:name;type:text;not null;default:''"`
	PreviousIndex *string                     `gorm:"column:previous_index;type:text"`
	NewIndex      string                      `gorm:"column:new_index;type:text;not null;default:'0'"`
	ReadingDate   *time.Time                  `gorm:"column:reading_date"`
	Images        datatypes.JSONSlice[string] `gorm:"column:images"`
}

func (readingItemRow) TableName() string { return "reading_items" }

// Models lists the row types for dialects migrated with AutoMigrate.
func Models() []any {
	return []any{&readingRow{}, &readingItemRow{}}
}
