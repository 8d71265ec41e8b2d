package backend

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

// Everything the backend returns passes through this file exactly once.
// Keys are canonicalised to camelCase, known alternative field names are
// folded onto the canonical one, and the result is decoded into wire structs
// with weak typing so numbers and numeric strings are interchangeable.

var errMalformedPayload = errors.New("malformed backend payload")

// normalizer reports values it has to drop through parser.
type normalizer struct {
	parser *numeric.Parser
}

type wireMeta struct {
	Page       int   `mapstructure:"page"`
	Limit      int   `mapstructure:"limit"`
	Total      *int  `mapstructure:"total"`
	TotalPages int   `mapstructure:"totalPages"`
	HasMore    *bool `mapstructure:"hasMore"`
}

type wireReading struct {
	ID          string            `mapstructure:"id"`
	BuildingID  string            `mapstructure:"buildingId"`
	ApartmentID string            `mapstructure:"apartmentId"`
	MeterType   string            `mapstructure:"meterType"`
	Period      string            `mapstructure:"period"`
	ReadingDate string            `mapstructure:"readingDate"`
	Approved    bool              `mapstructure:"approved"`
	Items       []wireReadingItem `mapstructure:"items"`
	CreatedAt   string            `mapstructure:"createdAt"`
	UpdatedAt   string            `mapstructure:"updatedAt"`
}

type wireReadingItem struct {
	Name          string   `mapstructure:"name"`
	PreviousIndex *string  `mapstructure:"previousIndex"`
	NewIndex      *string  `mapstructure:"newIndex"`
	ReadingDate   string   `mapstructure:"readingDate"`
	Images        []string `mapstructure:"images"`
}

type wireStats struct {
	NotFinalized     int64  `mapstructure:"notFinalized"`
	Reviewed         int64  `mapstructure:"reviewed"`
	NotReviewed      int64  `mapstructure:"notReviewed"`
	TotalConsumption string `mapstructure:"totalConsumption"`
	NegativeItems    int64  `mapstructure:"negativeItems"`
}

type wireInvoice struct {
	ID            string            `mapstructure:"id"`
	BuildingID    string            `mapstructure:"buildingId"`
	ApartmentID   string            `mapstructure:"apartmentId"`
	ContractID    string            `mapstructure:"contractId"`
	Period        string            `mapstructure:"period"`
	IssueDate     string            `mapstructure:"issueDate"`
	DueDate       string            `mapstructure:"dueDate"`
	Items         []wireInvoiceItem `mapstructure:"items"`
	Total         *string           `mapstructure:"total"`
	Amount        *string           `mapstructure:"amount"`
	Collected     *string           `mapstructure:"collected"`
	Refunded      *string           `mapstructure:"refunded"`
	PrintTemplate string            `mapstructure:"printTemplate"`
}

type wireInvoiceItem struct {
	ServiceName string  `mapstructure:"serviceName"`
	Amount      *string `mapstructure:"amount"`
	UnitPrice   *string `mapstructure:"unitPrice"`
	Quantity    *string `mapstructure:"quantity"`
	Category    string  `mapstructure:"category"`
}

// wireWriteReading is the strict shape sent on create and update.
type wireWriteReading struct {
	BuildingID  string                 `json:"buildingId"`
	ApartmentID string                 `json:"apartmentId"`
	MeterType   string                 `json:"meterType"`
	Period      string                 `json:"period"`
	ReadingDate *time.Time             `json:"readingDate"`
	Items       []wireWriteReadingItem `json:"items"`
}

type wireWriteReadingItem struct {
	Name          string     `json:"name"`
	PreviousIndex *string    `json:"previousIndex"`
	NewIndex      string     `json:"newIndex"`
	ReadingDate   *time.Time `json:"readingDate"`
	Images        []string   `json:"images"`
}

var readingAliases = map[string][]string{
	"id":          {"readingId", "uuid"},
	"buildingId":  {"building"},
	"apartmentId": {"apartment", "roomId", "room"},
	"meterType":   {"type", "meter"},
	"period":      {"month", "billingPeriod"},
	"items":       {"readingItems", "details", "meters"},
	"approved":    {"isApproved", "approve"},
}

var readingItemAliases = map[string][]string{
	"name":          {"meterName", "label"},
	"previousIndex": {"oldIndex", "prevIndex", "previous"},
	"newIndex":      {"currentIndex", "newValue", "index"},
	"images":        {"photos", "imageUrls", "attachments"},
}

var statsAliases = map[string][]string{
	"notFinalized":     {"unfinalized", "notFinalised"},
	"notReviewed":      {"unreviewed"},
	"totalConsumption": {"consumption", "total"},
}

var metaAliases = map[string][]string{
	"page":       {"currentPage", "pageNumber"},
	"limit":      {"pageSize", "perPage", "size"},
	"total":      {"totalItems", "totalCount", "count"},
	"totalPages": {"pages", "lastPage", "pageCount"},
	"hasMore":    {"hasNext", "hasNextPage"},
}

var invoiceAliases = map[string][]string{
	"id":            {"invoiceId", "uuid"},
	"buildingId":    {"building"},
	"apartmentId":   {"apartment", "roomId", "room"},
	"contractId":    {"contract"},
	"items":         {"invoiceItems", "lines", "details", "services"},
	"total":         {"totalAmount", "grandTotal"},
	"collected":     {"paid", "paidAmount", "collectedAmount"},
	"refunded":      {"refund", "refundAmount", "refundedAmount"},
	"printTemplate": {"template", "templateType"},
	"issueDate":     {"issuedAt", "invoiceDate"},
}

var invoiceItemAliases = map[string][]string{
	"serviceName": {"name", "service", "title"},
	"unitPrice":   {"price"},
	"quantity":    {"qty"},
	"category":    {"kind"},
}

func (n normalizer) reading(v any) (readingdomain.MeterReading, error) {
	m, ok := unwrapObject(v)
	if !ok {
		return readingdomain.MeterReading{}, errMalformedPayload
	}
	applyAliases(m, readingAliases)
	if items, ok := m["items"].([]any); ok {
		for _, item := range items {
			if im, ok := item.(map[string]any); ok {
				applyAliases(im, readingItemAliases)
				im["images"] = flattenImages(im["images"])
			}
		}
	}

	var w wireReading
	if err := decode(m, &w); err != nil {
		return readingdomain.MeterReading{}, err
	}

	items := make([]readingdomain.ReadingItem, 0, len(w.Items))
	for _, it := range w.Items {
		newIndex := "0"
		if it.NewIndex != nil && strings.TrimSpace(*it.NewIndex) != "" {
			newIndex = strings.TrimSpace(*it.NewIndex)
		}
		var previous *string
		if it.PreviousIndex != nil && strings.TrimSpace(*it.PreviousIndex) != "" {
			previous = numeric.Ptr(strings.TrimSpace(*it.PreviousIndex))
		}
		images := it.Images
		if images == nil {
			images = []string{}
		}
		items = append(items, readingdomain.ReadingItem{
			Name:          it.Name,
			PreviousIndex: previous,
			NewIndex:      newIndex,
			ReadingDate:   n.parseTime("items.readingDate", it.ReadingDate),
			Images:        images,
		})
	}

	reading := readingdomain.MeterReading{
		ID:          strings.TrimSpace(w.ID),
		BuildingID:  w.BuildingID,
		ApartmentID: w.ApartmentID,
		MeterType:   normalizeMeterType(w.MeterType),
		Period:      normalizePeriod(w.Period),
		ReadingDate: n.parseTime("readingDate", w.ReadingDate),
		Approved:    w.Approved,
		Items:       items,
	}
	if t := n.parseTime("createdAt", w.CreatedAt); t != nil {
		reading.CreatedAt = *t
	}
	if t := n.parseTime("updatedAt", w.UpdatedAt); t != nil {
		reading.UpdatedAt = *t
	}
	return reading, nil
}

func (n normalizer) readingList(v any, req pagination.Pagination) (*readingdomain.ListResult, error) {
	rawItems, meta, err := listPayload(v)
	if err != nil {
		return nil, err
	}
	readings := make([]readingdomain.MeterReading, 0, len(rawItems))
	for _, raw := range rawItems {
		reading, err := n.reading(raw)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return &readingdomain.ListResult{
		Items: readings,
		Meta:  normalizeMeta(meta, req, len(readings)),
	}, nil
}

func (n normalizer) stats(v any) (*readingdomain.Stats, error) {
	m, ok := unwrapObject(v)
	if !ok {
		return nil, errMalformedPayload
	}
	applyAliases(m, statsAliases)

	var w wireStats
	if err := decode(m, &w); err != nil {
		return nil, err
	}
	total := n.parser.ParseMoney("totalConsumption", &w.TotalConsumption).Value
	return &readingdomain.Stats{
		NotFinalized:            w.NotFinalized,
		Reviewed:                w.Reviewed,
		NotReviewed:             w.NotReviewed,
		TotalConsumption:        total,
		TotalConsumptionDisplay: numeric.Display(total),
		NegativeItems:           w.NegativeItems,
		Scope:                   readingdomain.ScopeCollection,
	}, nil
}

func (n normalizer) invoice(v any) (invoicedomain.Invoice, error) {
	m, ok := unwrapObject(v)
	if !ok {
		return invoicedomain.Invoice{}, errMalformedPayload
	}
	applyAliases(m, invoiceAliases)
	if items, ok := m["items"].([]any); ok {
		for _, item := range items {
			if im, ok := item.(map[string]any); ok {
				applyAliases(im, invoiceItemAliases)
			}
		}
	}

	var w wireInvoice
	if err := decode(m, &w); err != nil {
		return invoicedomain.Invoice{}, err
	}

	items := make([]invoicedomain.InvoiceItem, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, invoicedomain.InvoiceItem{
			ServiceName: it.ServiceName,
			Amount:      blankToNil(it.Amount),
			UnitPrice:   blankToNil(it.UnitPrice),
			Quantity:    blankToNil(it.Quantity),
			Category:    invoicedomain.Category(strings.ToLower(strings.TrimSpace(it.Category))),
		})
	}

	return invoicedomain.Invoice{
		ID:            strings.TrimSpace(w.ID),
		BuildingID:    w.BuildingID,
		ApartmentID:   w.ApartmentID,
		ContractID:    w.ContractID,
		Period:        normalizePeriod(w.Period),
		IssueDate:     n.parseTime("issueDate", w.IssueDate),
		DueDate:       n.parseTime("dueDate", w.DueDate),
		Items:         items,
		Total:         blankToNil(w.Total),
		Amount:        blankToNil(w.Amount),
		Collected:     blankToNil(w.Collected),
		Refunded:      blankToNil(w.Refunded),
		PrintTemplate: strings.TrimSpace(w.PrintTemplate),
	}, nil
}

func (n normalizer) invoiceList(v any, req pagination.Pagination) (*invoicedomain.ListResult, error) {
	rawItems, meta, err := listPayload(v)
	if err != nil {
		return nil, err
	}
	invoices := make([]invoicedomain.Invoice, 0, len(rawItems))
	for _, raw := range rawItems {
		inv, err := n.invoice(raw)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return &invoicedomain.ListResult{
		Items: invoices,
		Meta:  normalizeMeta(meta, req, len(invoices)),
	}, nil
}

func toWireReading(reading readingdomain.MeterReading) wireWriteReading {
	items := make([]wireWriteReadingItem, 0, len(reading.Items))
	for _, item := range reading.Items {
		images := item.Images
		if images == nil {
			images = []string{}
		}
		items = append(items, wireWriteReadingItem{
			Name:          item.Name,
			PreviousIndex: item.PreviousIndex,
			NewIndex:      item.NewIndex,
			ReadingDate:   item.ReadingDate,
			Images:        images,
		})
	}
	return wireWriteReading{
		BuildingID:  reading.BuildingID,
		ApartmentID: reading.ApartmentID,
		MeterType:   string(reading.MeterType),
		Period:      reading.Period,
		ReadingDate: reading.ReadingDate,
		Items:       items,
	}
}

// listPayload finds the item array and the pagination object in a list
// response. Accepted shapes: a bare array, {items, meta}, {data: [...], meta}
// and {data: {items, meta}}.
func listPayload(v any) ([]any, map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil, nil
	case []any:
		return t, nil, nil
	case map[string]any:
		m := canonicalMap(t)
		applyAliases(m, map[string][]string{
			"items": {"results", "rows", "records", "docs"},
			"meta":  {"pagination", "paging"},
		})
		meta, _ := m["meta"].(map[string]any)
		if items, ok := m["items"].([]any); ok {
			return items, meta, nil
		}
		switch data := m["data"].(type) {
		case []any:
			return data, meta, nil
		case map[string]any:
			items, innerMeta, err := listPayload(data)
			if innerMeta == nil {
				innerMeta = meta
			}
			return items, innerMeta, err
		}
		return nil, meta, nil
	default:
		return nil, nil, errMalformedPayload
	}
}

func normalizeMeta(raw map[string]any, req pagination.Pagination, count int) pagination.Meta {
	req = req.Normalize()
	if raw == nil {
		// Without a meta object a full page is the only hint that more exist.
		meta := pagination.BuildMeta(req, (req.Page-1)*req.Limit+count)
		meta.HasMore = count == req.Limit
		return meta
	}
	m := canonicalMap(raw)
	applyAliases(m, metaAliases)

	var w wireMeta
	if err := decode(m, &w); err != nil {
		return pagination.BuildMeta(req, (req.Page-1)*req.Limit+count)
	}
	if w.Page > 0 {
		req.Page = w.Page
	}
	if w.Limit > 0 {
		req.Limit = w.Limit
	}
	total := (req.Page-1)*req.Limit + count
	if w.Total != nil {
		total = *w.Total
	}
	meta := pagination.BuildMeta(req, total)
	if w.Total == nil && w.TotalPages > 0 {
		meta.TotalPages = w.TotalPages
		meta.HasMore = req.Page < w.TotalPages
	}
	if w.HasMore != nil {
		meta.HasMore = *w.HasMore
	}
	return meta
}

func unwrapObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	m = canonicalMap(m)
	if data, ok := m["data"].(map[string]any); ok && len(m) <= 3 {
		return canonicalMap(data), true
	}
	return m, true
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(canonical(input))
}

// canonical rewrites every map key in v to camelCase. When both spellings of
// a key are present the camelCase one wins.
func canonical(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return canonicalMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = canonical(item)
		}
		return out
	default:
		return v
	}
}

func canonicalMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if camel(k) == k {
			out[k] = canonical(v)
		}
	}
	for k, v := range m {
		ck := camel(k)
		if _, exists := out[ck]; !exists {
			out[ck] = canonical(v)
		}
	}
	return out
}

func camel(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(parts) == 0 {
		return key
	}
	var b strings.Builder
	for i, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		if i == 0 {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		b.WriteString(part[size:])
	}
	return b.String()
}

// applyAliases copies the first present alias onto the canonical key when the
// canonical key is absent. A referenced object ({"building": {"id": 1}})
// contributes its id.
func applyAliases(m map[string]any, aliases map[string][]string) {
	for target, candidates := range aliases {
		if v, ok := m[target]; ok && v != nil {
			m[target] = refID(target, v)
			continue
		}
		for _, candidate := range candidates {
			if v, ok := m[candidate]; ok && v != nil {
				m[target] = refID(target, v)
				break
			}
		}
	}
}

func refID(target string, v any) any {
	if !strings.HasSuffix(target, "Id") && target != "id" {
		return v
	}
	if ref, ok := v.(map[string]any); ok {
		for _, key := range []string{"id", "_id", "uuid"} {
			if id, ok := ref[key]; ok {
				return id
			}
		}
	}
	return v
}

func flattenImages(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case map[string]any:
			for _, key := range []string{"url", "src", "path"} {
				if s, ok := t[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime returns nil for blank input and for layouts it does not know; the
// latter is reported since a lost item date changes the review state.
func (n normalizer) parseTime(field, raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			t = t.UTC()
			return &t
		}
	}
	n.parser.Report(numeric.Diagnostic{Field: field, Raw: raw, Kind: numeric.KindUnparsable})
	return nil
}

func normalizeMeterType(raw string) readingdomain.MeterType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "electricity", "electric", "power", "dien", "điện":
		return readingdomain.MeterTypeElectricity
	case "water", "nuoc", "nước":
		return readingdomain.MeterTypeWater
	default:
		return readingdomain.MeterType(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// normalizePeriod accepts YYYY-MM and the MM/YYYY form some screens send.
func normalizePeriod(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("01/2006", raw); err == nil {
		return t.Format("2006-01")
	}
	if len(raw) >= len("2006-01-02") {
		if t, err := time.Parse("2006-01-02", raw[:len("2006-01-02")]); err == nil {
			return t.Format("2006-01")
		}
	}
	return raw
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
