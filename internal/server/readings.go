package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbook/internal/export"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
)

type approveReadingRequest struct {
	Reviewed *bool `json:"reviewed"`
}

func bindReadingFilter(c *gin.Context) (readingdomain.ListFilter, error) {
	var filter readingdomain.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, invalidRequestError()
	}
	return filter, nil
}

func (s *Server) ListReadings(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := bindReadingFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.readingSvc.List(c.Request.Context(), readingdomain.ListRequest{
		Pagination: page,
		Filter:     filter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReadingStats(c *gin.Context) {
	filter, err := bindReadingFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	allow, err := allowApproximate(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.readingSvc.Stats(c.Request.Context(), readingdomain.StatsRequest{
		Filter:           filter,
		AllowApproximate: allow,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) ExportReadings(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := bindReadingFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.readingSvc.List(c.Request.Context(), readingdomain.ListRequest{
		Pagination: page,
		Filter:     filter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out, err := export.BuildReadingsXLSX(resp)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period := strings.TrimSpace(filter.Period)
	if period == "" {
		period = "all"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="readings-%s-p%d.xlsx"`, period, resp.Meta.Page))
	c.Data(http.StatusOK, export.ContentType, out)
}

func (s *Server) GetReadingByID(c *gin.Context) {
	id := readingID(c)
	item, err := s.readingSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CreateReading(c *gin.Context) {
	var req readingdomain.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.readingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateReading(c *gin.Context) {
	id := readingID(c)

	var req readingdomain.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.readingSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DeleteReading(c *gin.Context) {
	if err := s.readingSvc.Delete(c.Request.Context(), readingID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ApproveReading(c *gin.Context) {
	id := readingID(c)

	reviewed, err := bindReviewed(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.readingSvc.Approve(c.Request.Context(), id, reviewed)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func bindReviewed(c *gin.Context) (bool, error) {
	var req approveReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return false, invalidRequestError()
	}
	if req.Reviewed == nil {
		return false, newValidationError("reviewed", "required", "reviewed is required")
	}
	return *req.Reviewed, nil
}

// readingID also tags the request log with the reading being touched.
func readingID(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("reading_id", id)
	return id
}
