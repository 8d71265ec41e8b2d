// Package classify decides whether an invoice line is rent or a service charge.
package classify

import (
	"strings"

	"github.com/smallbiznis/rentbook/internal/invoice/domain"
	"golang.org/x/text/unicode/norm"
)

// Classifier assigns a category to one invoice item.
type Classifier interface {
	Classify(item domain.InvoiceItem) domain.Category
}

// KeywordSource supplies the rent-indicating substrings. It is read on every
// call so a reloaded configuration takes effect immediately.
type KeywordSource interface {
	RentKeywords() []string
}

var DefaultKeywords = []string{"nhà", "thuê", "phòng", "tiền nhà", "tiền thuê"}

type staticKeywords []string

func (s staticKeywords) RentKeywords() []string { return s }

// Static returns a fixed keyword source.
func Static(keywords ...string) KeywordSource {
	return staticKeywords(keywords)
}

// Keywords classifies an item as rent when its lower-cased service name
// contains any rent keyword as a substring. Names and keywords are NFC
// normalised first so composed and decomposed Vietnamese diacritics match.
// Substring matching means "Vệ sinh nhà" is rent.
type Keywords struct {
	source KeywordSource
}

func NewKeywords(source KeywordSource) Keywords {
	return Keywords{source: source}
}

func (k Keywords) Classify(item domain.InvoiceItem) domain.Category {
	name := fold(item.ServiceName)
	if name == "" {
		return domain.CategoryService
	}
	for _, keyword := range k.keywords() {
		keyword = fold(keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(name, keyword) {
			return domain.CategoryRent
		}
	}
	return domain.CategoryService
}

func (k Keywords) keywords() []string {
	if k.source == nil {
		return DefaultKeywords
	}
	keywords := k.source.RentKeywords()
	if len(keywords) == 0 {
		return DefaultKeywords
	}
	return keywords
}

// Explicit trusts a valid Category on the item and asks Fallback otherwise.
type Explicit struct {
	Fallback Classifier
}

func (e Explicit) Classify(item domain.InvoiceItem) domain.Category {
	if item.Category.Valid() {
		return item.Category
	}
	if e.Fallback == nil {
		return Keywords{}.Classify(item)
	}
	return e.Fallback.Classify(item)
}

func fold(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
