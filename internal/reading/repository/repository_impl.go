package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/internal/reading/aggregate"
	"github.com/smallbiznis/rentbook/internal/reading/consumption"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const readingColumns = `id, building_id, apartment_id, meter_type, period, reading_date, approved, created_at, updated_at`

const itemColumns = `id, reading_id, position, name, previous_index, new_index, reading_date, images`

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

type store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

// Provide returns the gorm-backed reading store.
func Provide(p Params) readingdomain.Store {
	return New(p.DB, p.GenID, p.Clock)
}

func New(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) readingdomain.Store {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &store{db: db, genID: genID, clock: clk}
}

func (s *store) List(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResult, error) {
	page := req.Pagination.Normalize()
	where, args := filterClause(req.Filter)

	var total int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM readings`+where, args...,
	).Scan(&total).Error; err != nil {
		return nil, err
	}

	var rows []readingRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+` FROM readings`+where+
			` ORDER BY period DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	readings, err := s.withItems(ctx, s.db, rows)
	if err != nil {
		return nil, err
	}

	return &readingdomain.ListResult{
		Items: readings,
		Meta:  pagination.BuildMeta(page, int(total)),
	}, nil
}

func (s *store) Get(ctx context.Context, id string) (*readingdomain.MeterReading, error) {
	readingID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findByID(ctx, s.db, readingID)
}

func (s *store) Create(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	now := s.clock.Now()
	row := toRow(reading)
	row.ID = s.genID.Generate()
	row.CreatedAt = now
	row.UpdatedAt = now

	var created *readingdomain.MeterReading
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO readings (`+readingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID,
			row.BuildingID,
			row.ApartmentID,
			row.MeterType,
			row.Period,
			row.ReadingDate,
			row.Approved,
			row.CreatedAt,
			row.UpdatedAt,
		).Error; err != nil {
			return err
		}
		if err := s.insertItems(ctx, tx, row.ID, reading.Items); err != nil {
			return err
		}
		found, err := s.findByID(ctx, tx, row.ID)
		if err != nil {
			return err
		}
		created = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *store) Update(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	readingID, err := parseID(reading.ID)
	if err != nil {
		return nil, err
	}
	row := toRow(reading)

	var updated *readingdomain.MeterReading
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE readings
			 SET building_id = ?, apartment_id = ?, meter_type = ?, period = ?, reading_date = ?, updated_at = ?
			 WHERE id = ?`,
			row.BuildingID,
			row.ApartmentID,
			row.MeterType,
			row.Period,
			row.ReadingDate,
			s.clock.Now(),
			readingID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return readingdomain.ErrNotFound
		}
		if err := tx.Exec(`DELETE FROM reading_items WHERE reading_id = ?`, readingID).Error; err != nil {
			return err
		}
		if err := s.insertItems(ctx, tx, readingID, reading.Items); err != nil {
			return err
		}
		found, err := s.findByID(ctx, tx, readingID)
		if err != nil {
			return err
		}
		updated = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *store) Delete(ctx context.Context, id string) error {
	readingID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM reading_items WHERE reading_id = ?`, readingID).Error; err != nil {
			return err
		}
		res := tx.Exec(`DELETE FROM readings WHERE id = ?`, readingID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return readingdomain.ErrNotFound
		}
		return nil
	})
}

func (s *store) Approve(ctx context.Context, id string, reviewed bool) (*readingdomain.MeterReading, error) {
	readingID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE readings SET approved = ?, updated_at = ? WHERE id = ?`,
		reviewed,
		s.clock.Now(),
		readingID,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, readingdomain.ErrNotFound
	}
	return s.findByID(ctx, s.db, readingID)
}

// Stats scans every reading matching filter, so the result is exact.
func (s *store) Stats(ctx context.Context, filter readingdomain.ListFilter, parser *numeric.Parser) (*readingdomain.Stats, error) {
	where, args := filterClause(filter)

	var rows []readingRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+` FROM readings`+where+` ORDER BY id ASC`, args...,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	readings, err := s.withItems(ctx, s.db, rows)
	if err != nil {
		return nil, err
	}

	calc := consumption.Calculator{Parser: parser}
	stats := aggregate.Aggregator{Calculator: calc}.Readings(readings, readingdomain.ScopeCollection)
	return &stats, nil
}

func (s *store) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*readingdomain.MeterReading, error) {
	var row readingRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+` FROM readings WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, readingdomain.ErrNotFound
	}

	readings, err := s.withItems(ctx, db, []readingRow{row})
	if err != nil {
		return nil, err
	}
	return &readings[0], nil
}

func (s *store) withItems(ctx context.Context, db *gorm.DB, rows []readingRow) ([]readingdomain.MeterReading, error) {
	readings := make([]readingdomain.MeterReading, 0, len(rows))
	if len(rows) == 0 {
		return readings, nil
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var items []readingItemRow
	if err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM reading_items WHERE reading_id IN ? ORDER BY reading_id ASC, position ASC`,
		ids,
	).Scan(&items).Error; err != nil {
		return nil, err
	}

	byReading := make(map[snowflake.ID][]readingdomain.ReadingItem, len(rows))
	for _, item := range items {
		byReading[item.ReadingID] = append(byReading[item.ReadingID], fromItemRow(item))
	}

	for _, row := range rows {
		reading := fromRow(row)
		reading.Items = byReading[row.ID]
		if reading.Items == nil {
			reading.Items = []readingdomain.ReadingItem{}
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

func (s *store) insertItems(ctx context.Context, tx *gorm.DB, readingID snowflake.ID, items []readingdomain.ReadingItem) error {
	for i, item := range items {
		images := item.Images
		if images == nil {
			images = []string{}
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO reading_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			readingID,
			i,
			item.Name,
			item.PreviousIndex,
			item.NewIndex,
			item.ReadingDate,
			datatypes.NewJSONSlice(images),
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func filterClause(filter readingdomain.ListFilter) (string, []any) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 4)
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
	if v := strings.TrimSpace(string(filter.MeterType)); v != "" {
		conds = append(conds, "meter_type = ?")
		args = append(args, v)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, readingdomain.ErrInvalidID
	}
	return id, nil
}

func toRow(reading readingdomain.MeterReading) readingRow {
	return readingRow{
		BuildingID:  reading.BuildingID,
		ApartmentID: reading.ApartmentID,
		MeterType:   string(reading.MeterType),
		Period:      reading.Period,
		ReadingDate: reading.ReadingDate,
		Approved:    reading.Approved,
	}
}

func fromRow(row readingRow) readingdomain.MeterReading {
	return readingdomain.MeterReading{
		ID:          row.ID.String(),
		BuildingID:  row.BuildingID,
		ApartmentID: row.ApartmentID,
		MeterType:   readingdomain.MeterType(row.MeterType),
		Period:      row.Period,
		ReadingDate: utcPtr(row.ReadingDate),
		Approved:    row.Approved,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func fromItemRow(row readingItemRow) readingdomain.ReadingItem {
	images := []string(row.Images)
	if images == nil {
		images = []string{}
	}
	return readingdomain.ReadingItem{
		Name:          row.Name,
		PreviousIndex: row.PreviousIndex,
		NewIndex:      row.NewIndex,
		ReadingDate:   utcPtr(row.ReadingDate),
		Images:        images,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
