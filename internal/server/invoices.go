package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
)

func bindInvoiceFilter(c *gin.Context) (invoicedomain.ListFilter, error) {
	var filter invoicedomain.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, invalidRequestError()
	}
	return filter, nil
}

func (s *Server) ListInvoices(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := bindInvoiceFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListRequest{
		Pagination: page,
		Filter:     filter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceSummary(c *gin.Context) {
	filter, err := bindInvoiceFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.invoiceSvc.Summary(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	detail, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}
