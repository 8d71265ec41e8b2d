package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// bindPagination reads page and limit from the query string. Values outside
// the accepted window are clamped later by Normalize.
func bindPagination(c *gin.Context) (pagination.Pagination, error) {
	var p pagination.Pagination
	page, err := parseOptionalInt(c.Query("page"))
	if err != nil {
		return p, newValidationError("page", "invalid_page", "page must be an integer")
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		return p, newValidationError("limit", "invalid_limit", "limit must be an integer")
	}
	if page != nil {
		p.Page = *page
	}
	if limit != nil {
		p.Limit = *limit
	}
	return p, nil
}

func allowApproximate(c *gin.Context) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Query("fallback"))) {
	case "":
		return false, nil
	case "page":
		return true, nil
	}
	allow, err := parseOptionalBool(c.Query("fallback"))
	if err != nil {
		return false, newValidationError("fallback", "invalid_fallback", "fallback must be 'page' or a boolean")
	}
	return allow != nil && *allow, nil
}
