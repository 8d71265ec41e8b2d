// Package numeric coerces the loosely formatted index and money strings the
// record store hands back into decimals. Coercion never fails: anything that
// does not parse becomes zero and is reported to the configured Reporter.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Result is a coerced value together with what happened to the input.
type Result struct {
	Value decimal.Decimal
	// Present is false for nil or blank input.
	Present bool
	// Valid is true when the (cleaned) input parsed as a finite decimal.
	Valid bool
	// Discarded is true when non-numeric content was thrown away, either by
	// stripping characters or by falling back to zero.
	Discarded bool
}

// Diagnostic describes one lossy coercion.
type Diagnostic struct {
	Field string
	Raw   string
	Kind  string
}

const (
	KindUnparsable = "unparsable"
	KindStripped   = "stripped"
)

// Reporter receives a Diagnostic whenever coercion discards content.
type Reporter func(Diagnostic)

// Parser carries the reporter used by ParseIndex and ParseMoney.
type Parser struct {
	report Reporter
}

func NewParser(report Reporter) *Parser {
	return &Parser{report: report}
}

// Default is a Parser without a reporter.
var Default = &Parser{}

// ParseIndex parses a meter index. Blank input is zero; anything that is not a
// plain decimal is zero.
func (p *Parser) ParseIndex(field string, raw *string) Result {
	if raw == nil {
		return Result{Value: decimal.Zero}
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return Result{Value: decimal.Zero}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		p.emit(Diagnostic{Field: field, Raw: *raw, Kind: KindUnparsable})
		return Result{Value: decimal.Zero, Present: true, Discarded: true}
	}
	return Result{Value: value, Present: true, Valid: true}
}

// ParseMoney parses a currency-formatted amount. Every rune other than a
// digit, '.' or '-' is stripped before parsing, so "5,000,000 đ" reads as
// 5000000 while "5.000.000" does not parse and becomes zero.
func (p *Parser) ParseMoney(field string, raw *string) Result {
	if raw == nil {
		return Result{Value: decimal.Zero}
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return Result{Value: decimal.Zero}
	}

	cleaned := strip(trimmed)
	stripped := cleaned != trimmed
	if cleaned == "" {
		p.emit(Diagnostic{Field: field, Raw: *raw, Kind: KindUnparsable})
		return Result{Value: decimal.Zero, Present: true, Discarded: true}
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		p.emit(Diagnostic{Field: field, Raw: *raw, Kind: KindUnparsable})
		return Result{Value: decimal.Zero, Present: true, Discarded: true}
	}
	if stripped && hasNonFormatting(trimmed) {
		p.emit(Diagnostic{Field: field, Raw: *raw, Kind: KindStripped})
		return Result{Value: value, Present: true, Valid: true, Discarded: true}
	}
	return Result{Value: value, Present: true, Valid: true}
}

// Report forwards a diagnostic for content dropped outside ParseIndex and
// ParseMoney, such as an unreadable date.
func (p *Parser) Report(d Diagnostic) {
	p.emit(d)
}

func (p *Parser) emit(d Diagnostic) {
	if p == nil || p.report == nil {
		return
	}
	p.report(d)
}

func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasNonFormatting reports whether s holds anything beyond digits, signs,
// dots and the usual thousands separators and whitespace.
func hasNonFormatting(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == ',', r == '_', r == ' ', r == '\u00a0':
		default:
			return true
		}
	}
	return false
}

// Display renders d without trailing fractional zeros: 12.00 -> "12",
// 12.50 -> "12.5".
func Display(d decimal.Decimal) string {
	return d.String()
}

// Ptr returns a pointer to s. Handy for building optional fields.
func Ptr(s string) *string {
	return &s
}
