// Package export renders reading pages as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "summary"
	readingsSheet = "readings"
)

var readingHeaders = []string{
	"Reading ID", "Building", "Apartment", "Meter", "Period", "State", "Approved",
	"Item", "Previous Index", "New Index", "Consumption", "Negative",
}

// ContentType is the MIME type of BuildReadingsXLSX output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BuildReadingsXLSX writes one row per reading item plus a summary sheet with
// the aggregate and the scope it covers.
func BuildReadingsXLSX(resp *readingdomain.ListResponse) ([]byte, error) {
	if resp == nil {
		resp = &readingdomain.ListResponse{}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	stats := resp.Stats
	summary := [][]any{
		{"Scope", string(stats.Scope)},
		{"Not finalized", stats.NotFinalized},
		{"Reviewed", stats.Reviewed},
		{"Not reviewed", stats.NotReviewed},
		{"Total consumption", stats.TotalConsumptionDisplay},
		{"Negative items", stats.NegativeItems},
		{"Page", resp.Meta.Page},
		{"Total readings", resp.Meta.Total},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	header := make([]any, len(readingHeaders))
	for i, h := range readingHeaders {
		header[i] = h
	}
	if err := setRow(f, readingsSheet, 1, header); err != nil {
		return nil, err
	}

	row := 2
	for _, reading := range resp.Items {
		for _, item := range reading.Items {
			previous := ""
			if item.PreviousIndex != nil {
				previous = *item.PreviousIndex
			}
			values := []any{
				reading.ID,
				reading.BuildingID,
				reading.ApartmentID,
				string(reading.MeterType),
				reading.Period,
				string(reading.State),
				reading.Approved,
				item.Name,
				previous,
				item.NewIndex,
				item.ConsumptionDisplay,
				item.Negative,
			}
			if err := setRow(f, readingsSheet, row, values); err != nil {
				return nil, err
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}
