package backend

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestCamel(t *testing.T) {
	cases := map[string]string{
		"building_id":   "buildingId",
		"buildingId":    "buildingId",
		"BuildingId":    "buildingId",
		"_id":           "id",
		"total-pages":   "totalPages",
		"previousIndex": "previousIndex",
	}
	for in, want := range cases {
		assert.Equal(t, want, camel(in), in)
	}
}

func TestNormalizeReadingSnakeCaseAndAliases(t *testing.T) {
	raw := decodeJSON(t, `{
		"data": {
			"id": 42,
			"building": {"id": "b-1"},
			"apartment_id": "a-7",
			"type": "Dien",
			"period": "03/2024",
			"reading_date": "2024-03-05",
			"is_approved": "true",
			"reading_items": [
				{"name": "main", "old_index": 100, "current_index": "150.5", "photos": [{"url": "u1"}, "u2", ""]},
				{"name": "sub", "new_index": null}
			]
		}
	}`)

	reading, err := normalizer{}.reading(raw)
	require.NoError(t, err)

	assert.Equal(t, "42", reading.ID)
	assert.Equal(t, "b-1", reading.BuildingID)
	assert.Equal(t, "a-7", reading.ApartmentID)
	assert.Equal(t, readingdomain.MeterTypeElectricity, reading.MeterType)
	assert.Equal(t, "2024-03", reading.Period)
	require.NotNil(t, reading.ReadingDate)
	assert.Equal(t, 5, reading.ReadingDate.Day())
	assert.True(t, reading.Approved)

	require.Len(t, reading.Items, 2)
	require.NotNil(t, reading.Items[0].PreviousIndex)
	assert.Equal(t, "100", *reading.Items[0].PreviousIndex)
	assert.Equal(t, "150.5", reading.Items[0].NewIndex)
	assert.Equal(t, []string{"u1", "u2"}, reading.Items[0].Images)

	assert.Nil(t, reading.Items[1].PreviousIndex)
	assert.Equal(t, "0", reading.Items[1].NewIndex)
	assert.Equal(t, []string{}, reading.Items[1].Images)
}

func TestCanonicalKeyWinsOverSnakeCase(t *testing.T) {
	m := canonicalMap(map[string]any{"new_index": "1", "newIndex": "2"})
	assert.Equal(t, "2", m["newIndex"])
}

func TestNormalizeReadingRejectsNonObject(t *testing.T) {
	_, err := normalizer{}.reading([]any{})
	assert.ErrorIs(t, err, errMalformedPayload)
}

func TestNormalizeReadingListShapes(t *testing.T) {
	req := pagination.Pagination{Page: 2, Limit: 2}

	t.Run("bare array", func(t *testing.T) {
		result, err := normalizer{}.readingList(decodeJSON(t, `[{"id":"1"},{"id":"2"}]`), req)
		require.NoError(t, err)
		assert.Len(t, result.Items, 2)
		assert.Equal(t, 2, result.Meta.Page)
		assert.True(t, result.Meta.HasMore)
	})

	t.Run("data with pagination", func(t *testing.T) {
		result, err := normalizer{}.readingList(decodeJSON(t,
			`{"data":[{"id":"3"}],"pagination":{"current_page":"3","per_page":2,"total_items":5}}`), req)
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, 3, result.Meta.Page)
		assert.Equal(t, 5, result.Meta.Total)
		assert.Equal(t, 3, result.Meta.TotalPages)
		assert.False(t, result.Meta.HasMore)
	})

	t.Run("nested items", func(t *testing.T) {
		result, err := normalizer{}.readingList(decodeJSON(t,
			`{"data":{"items":[{"id":"1"}],"meta":{"total":9,"has_more":true}}}`), req)
		require.NoError(t, err)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 9, result.Meta.Total)
		assert.True(t, result.Meta.HasMore)
	})

	t.Run("empty body", func(t *testing.T) {
		result, err := normalizer{}.readingList(nil, req)
		require.NoError(t, err)
		assert.Empty(t, result.Items)
		assert.False(t, result.Meta.HasMore)
	})
}

func TestNormalizeStats(t *testing.T) {
	stats, err := normalizer{}.stats(decodeJSON(t,
		`{"data":{"not_finalized":"2","reviewed":3,"unreviewed":1,"total_consumption":"1,250.5"}}`))
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.NotFinalized)
	assert.Equal(t, int64(3), stats.Reviewed)
	assert.Equal(t, int64(1), stats.NotReviewed)
	assert.Equal(t, "1250.5", stats.TotalConsumptionDisplay)
	assert.Equal(t, readingdomain.ScopeCollection, stats.Scope)
}

func TestNormalizeInvoice(t *testing.T) {
	raw := decodeJSON(t, `{
		"id": "inv-1",
		"total_amount": 1500000,
		"paid_amount": "500000",
		"refund": null,
		"template": "deposit",
		"issue_date": "2024-03-01T00:00:00Z",
		"invoice_items": [
			{"name": "Tiền phòng", "amount": 1000000},
			{"service_name": "Điện", "price": "3500", "qty": 100, "category": "SERVICE"}
		]
	}`)

	inv, err := normalizer{}.invoice(raw)
	require.NoError(t, err)

	assert.Equal(t, "inv-1", inv.ID)
	require.NotNil(t, inv.Total)
	assert.Equal(t, "1500000", *inv.Total)
	require.NotNil(t, inv.Collected)
	assert.Equal(t, "500000", *inv.Collected)
	assert.Nil(t, inv.Refunded)
	assert.Nil(t, inv.Amount)
	assert.Equal(t, "deposit", inv.PrintTemplate)
	require.NotNil(t, inv.IssueDate)

	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Tiền phòng", inv.Items[0].ServiceName)
	assert.Equal(t, "Điện", inv.Items[1].ServiceName)
	require.NotNil(t, inv.Items[1].UnitPrice)
	assert.Equal(t, "3500", *inv.Items[1].UnitPrice)
	assert.Equal(t, "service", string(inv.Items[1].Category))
}

func TestParseTime(t *testing.T) {
	n := normalizer{}
	assert.Nil(t, n.parseTime("readingDate", ""))
	assert.Nil(t, n.parseTime("readingDate", "yesterday"))
	require.NotNil(t, n.parseTime("readingDate", "2024-03-05 10:00:00"))
	require.NotNil(t, n.parseTime("readingDate", "2024-03-05T10:00:00+07:00"))
	assert.Equal(t, 19, n.parseTime("readingDate", "2024-03-05T02:00:00+07:00").Hour())
}

func TestParseTimeReportsUnknownLayout(t *testing.T) {
	var got []numeric.Diagnostic
	n := normalizer{parser: numeric.NewParser(func(d numeric.Diagnostic) {
		got = append(got, d)
	})}

	assert.Nil(t, n.parseTime("items.readingDate", "05/01/2024"))
	assert.Nil(t, n.parseTime("items.readingDate", "  "))
	require.NotNil(t, n.parseTime("items.readingDate", "2024-01-05"))

	require.Len(t, got, 1)
	assert.Equal(t, "items.readingDate", got[0].Field)
	assert.Equal(t, "05/01/2024", got[0].Raw)
	assert.Equal(t, numeric.KindUnparsable, got[0].Kind)
}

func TestNormalizeReadingReportsDroppedItemDate(t *testing.T) {
	var fields []string
	n := normalizer{parser: numeric.NewParser(func(d numeric.Diagnostic) {
		fields = append(fields, d.Field)
	})}

	reading, err := n.reading(decodeJSON(t,
		`{"id":"1","items":[{"name":"main","newIndex":"10","readingDate":"05/01/2024"}]}`))
	require.NoError(t, err)
	require.Len(t, reading.Items, 1)
	assert.Nil(t, reading.Items[0].ReadingDate)
	assert.Equal(t, []string{"items.readingDate"}, fields)
}

func TestNormalizePeriod(t *testing.T) {
	cases := map[string]string{
		"2024-03":              "2024-03",
		"03/2024":              "2024-03",
		" 2024-03-05 ":         "2024-03",
		"2024-03-05T10:00:00Z": "2024-03",
		"2024-1-5":             "2024-1-5",
		"2024-01-1":            "2024-01-1",
		"2024-1-15":            "2024-1-15",
		"":                     "",
	}
	for in, want := range cases {
		assert.NotPanics(t, func() {
			assert.Equal(t, want, normalizePeriod(in), in)
		}, in)
	}
}
