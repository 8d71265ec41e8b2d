package template

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/invoice/rollup"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/stretchr/testify/assert"
)

func TestSelectKnownTags(t *testing.T) {
	for _, tag := range Tags() {
		assert.Equal(t, tag, Select(tag).Tag)
	}
}

func TestSelectFallsBackToMonthly(t *testing.T) {
	for _, tag := range []string{"unknown-tag", "", "   ", "hoa-don"} {
		assert.Equal(t, Monthly, Select(tag).Tag, tag)
	}
}

func TestSelectNormalizesTag(t *testing.T) {
	assert.Equal(t, Deposit, Select("Hóa đơn đặt cọc").Tag)
	assert.Equal(t, RoomTransfer, Select(" HOA-DON-CHUYEN-NHUONG ").Tag)
}

func TestResolveCarriesTotals(t *testing.T) {
	inv := domain.Invoice{
		PrintTemplate: Settlement,
		Total:         numeric.Ptr("1200"),
		Collected:     numeric.Ptr("200"),
	}
	view := Resolve(rollup.Engine{}, inv)
	assert.Equal(t, Settlement, view.Tag)
	assert.True(t, view.Totals.Due.Equal(decimal.NewFromInt(1000)))
}
