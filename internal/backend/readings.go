package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallbiznis/rentbook/internal/numeric"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
)

type readingStore struct {
	client *Client
}

// NewReadingStore returns a reading store backed by the backend API.
func NewReadingStore(client *Client) readingdomain.Store {
	return &readingStore{client: client}
}

func (s *readingStore) List(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResult, error) {
	page := req.Pagination.Normalize()
	query := readingQuery(req.Filter)
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("limit", strconv.Itoa(page.Limit))

	raw, err := s.client.do(ctx, "readings.list", http.MethodGet, "/readings", query, nil)
	if err != nil {
		return nil, err
	}
	return s.client.normalizer(ctx).readingList(raw, page)
}

func (s *readingStore) Get(ctx context.Context, id string) (*readingdomain.MeterReading, error) {
	path, err := readingPath(id)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.do(ctx, "readings.get", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, mapReadingError(err)
	}
	return s.decodeOne(ctx, raw)
}

func (s *readingStore) Create(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	raw, err := s.client.do(ctx, "readings.create", http.MethodPost, "/readings", nil, toWireReading(reading))
	if err != nil {
		return nil, mapReadingError(err)
	}
	return s.decodeOne(ctx, raw)
}

func (s *readingStore) Update(ctx context.Context, reading readingdomain.MeterReading) (*readingdomain.MeterReading, error) {
	path, err := readingPath(reading.ID)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.do(ctx, "readings.update", http.MethodPatch, path, nil, toWireReading(reading))
	if err != nil {
		return nil, mapReadingError(err)
	}
	if raw == nil {
		return s.Get(ctx, reading.ID)
	}
	return s.decodeOne(ctx, raw)
}

func (s *readingStore) Delete(ctx context.Context, id string) error {
	path, err := readingPath(id)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, "readings.delete", http.MethodDelete, path, nil, nil)
	return mapReadingError(err)
}

// Approve sets the reviewed flag. Some backend versions answer 204, in which
// case the reading is fetched again so callers always get the stored state.
func (s *readingStore) Approve(ctx context.Context, id string, reviewed bool) (*readingdomain.MeterReading, error) {
	path, err := readingPath(id)
	if err != nil {
		return nil, err
	}
	body := map[string]bool{"reviewed": reviewed}
	raw, err := s.client.do(ctx, "readings.approve", http.MethodPatch, path+"/approve", nil, body)
	if err != nil {
		return nil, mapReadingError(err)
	}
	if raw == nil {
		return s.Get(ctx, id)
	}
	return s.decodeOne(ctx, raw)
}

// Stats reports a dirty total through parser when one is given.
func (s *readingStore) Stats(ctx context.Context, filter readingdomain.ListFilter, parser *numeric.Parser) (*readingdomain.Stats, error) {
	raw, err := s.client.do(ctx, "readings.stats", http.MethodGet, "/readings/stats", readingQuery(filter), nil)
	if err != nil {
		return nil, err
	}
	n := s.client.normalizer(ctx)
	if parser != nil {
		n.parser = parser
	}
	return n.stats(raw)
}

func (s *readingStore) decodeOne(ctx context.Context, raw any) (*readingdomain.MeterReading, error) {
	reading, err := s.client.normalizer(ctx).reading(raw)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func readingQuery(filter readingdomain.ListFilter) url.Values {
	query := url.Values{}
	setIf(query, "buildingId", filter.BuildingID)
	setIf(query, "apartmentId", filter.ApartmentID)
	setIf(query, "period", filter.Period)
	setIf(query, "meterType", string(filter.MeterType))
	return query
}

func readingPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", readingdomain.ErrInvalidID
	}
	return "/readings/" + url.PathEscape(id), nil
}

func mapReadingError(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return errors.Join(readingdomain.ErrNotFound, err)
	}
	return err
}

func setIf(query url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		query.Set(key, value)
	}
}
