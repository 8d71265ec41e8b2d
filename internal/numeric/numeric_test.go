package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex(t *testing.T) {
	cases := []struct {
		name  string
		raw   *string
		want  string
		valid bool
	}{
		{name: "nil", raw: nil, want: "0"},
		{name: "blank", raw: Ptr("   "), want: "0"},
		{name: "integer", raw: Ptr("150"), want: "150", valid: true},
		{name: "trailing zeros", raw: Ptr("150.00"), want: "150", valid: true},
		{name: "negative", raw: Ptr("-3.5"), want: "-3.5", valid: true},
		{name: "garbage", raw: Ptr("12kWh"), want: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Default.ParseIndex("newIndex", tc.raw)
			assert.Equal(t, tc.want, res.Value.String())
			assert.Equal(t, tc.valid, res.Valid)
		})
	}
}

func TestParseMoneyStripsFormatting(t *testing.T) {
	var diags []Diagnostic
	p := NewParser(func(d Diagnostic) { diags = append(diags, d) })

	res := p.ParseMoney("amount", Ptr("5,000,000"))
	require.True(t, res.Valid)
	assert.True(t, res.Value.Equal(decimal.NewFromInt(5000000)))
	assert.Empty(t, diags, "thousands separators are formatting, not data loss")

	res = p.ParseMoney("amount", Ptr("5,000,000 đ"))
	assert.True(t, res.Value.Equal(decimal.NewFromInt(5000000)))
	assert.True(t, res.Discarded)
	require.Len(t, diags, 1)
	assert.Equal(t, KindStripped, diags[0].Kind)
}

func TestParseMoneyUnparsableBecomesZero(t *testing.T) {
	var diags []Diagnostic
	p := NewParser(func(d Diagnostic) { diags = append(diags, d) })

	for _, raw := range []string{"5.000.000", "n/a", "1-2", "-"} {
		res := p.ParseMoney("total", Ptr(raw))
		assert.True(t, res.Value.IsZero(), raw)
		assert.False(t, res.Valid, raw)
		assert.True(t, res.Present, raw)
	}
	assert.Len(t, diags, 4)
	for _, d := range diags {
		assert.Equal(t, KindUnparsable, d.Kind)
		assert.Equal(t, "total", d.Field)
	}
}

func TestReporterDoesNotChangeResult(t *testing.T) {
	raw := Ptr("3,500 VND")
	silent := Default.ParseMoney("unitPrice", raw)
	loud := NewParser(func(Diagnostic) {}).ParseMoney("unitPrice", raw)
	assert.Equal(t, silent, loud)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "12", Display(decimal.RequireFromString("12.00")))
	assert.Equal(t, "12.5", Display(decimal.RequireFromString("12.50")))
	assert.Equal(t, "-7", Display(decimal.RequireFromString("-7.0")))
	assert.Equal(t, "0", Display(decimal.Zero))
}
