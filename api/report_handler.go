package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"inphora/service"
)

type reportHandler struct {
	reports service.ReportService
}

func newReportHandler(reports service.ReportService) *reportHandler {
	return &reportHandler{reports: reports}
}

// asOfDate reads the optional as_of query parameter, defaulting to now
func asOfDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now(), true
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return asOf, true
}

func (h *reportHandler) Portfolio(c *gin.Context) {
	asOf, ok := asOfDate(c)
	if !ok {
		return
	}

	summary, err := h.reports.PortfolioSummary(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *reportHandler) Arrears(c *gin.Context) {
	asOf, ok := asOfDate(c)
	if !ok {
		return
	}

	dist, err := h.reports.ArrearsDistribution(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dist)
}
