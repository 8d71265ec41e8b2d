package classify

import (
	"testing"

	"github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func TestKeywordsClassify(t *testing.T) {
	c := NewKeywords(Static(DefaultKeywords...))

	cases := []struct {
		name string
		want domain.Category
	}{
		{name: "Tiền thuê phòng", want: domain.CategoryRent},
		{name: "TIỀN NHÀ tháng 3", want: domain.CategoryRent},
		{name: "Vệ sinh nhà", want: domain.CategoryRent},
		{name: "Tiền điện", want: domain.CategoryService},
		{name: "Internet", want: domain.CategoryService},
		{name: "", want: domain.CategoryService},
		{name: "   ", want: domain.CategoryService},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(domain.InvoiceItem{ServiceName: tc.name}))
		})
	}
}

func TestKeywordsMatchDecomposedInput(t *testing.T) {
	c := NewKeywords(nil)
	decomposed := norm.NFD.String("Tiền phòng")
	assert.Equal(t, domain.CategoryRent, c.Classify(domain.InvoiceItem{ServiceName: decomposed}))
}

func TestKeywordsFollowSource(t *testing.T) {
	c := NewKeywords(Static("rent"))
	assert.Equal(t, domain.CategoryRent, c.Classify(domain.InvoiceItem{ServiceName: "Monthly Rent"}))
	assert.Equal(t, domain.CategoryService, c.Classify(domain.InvoiceItem{ServiceName: "Tiền phòng"}))
}

func TestExplicitPrefersCategory(t *testing.T) {
	c := Explicit{Fallback: NewKeywords(nil)}

	assert.Equal(t, domain.CategoryService,
		c.Classify(domain.InvoiceItem{ServiceName: "Vệ sinh nhà", Category: domain.CategoryService}))
	assert.Equal(t, domain.CategoryRent,
		c.Classify(domain.InvoiceItem{ServiceName: "Vệ sinh nhà", Category: "bogus"}))
}
