package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
)

func (s *Server) GetDashboard(c *gin.Context) {
	snap, err := s.dashboardSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// ReloadDashboard accepts the filter either as a JSON body or as query
// parameters. An empty body reloads with defaults.
func (s *Server) ReloadDashboard(c *gin.Context) {
	var filter dashboarddomain.Filter
	if err := c.ShouldBindJSON(&filter); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	snap, err := s.dashboardSvc.Reload(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (s *Server) ApproveFromDashboard(c *gin.Context) {
	id := readingID(c)

	reviewed, err := bindReviewed(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.dashboardSvc.Approve(c.Request.Context(), id, reviewed)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
