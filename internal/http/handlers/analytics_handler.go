// Consumption analytics and operator endpoints:
//   - GET  /analytics/consumption?days=7
//   - POST /admin/deductions/retry?limit=100
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Fredcx/ezmenu/internal/utils"
)

const (
	defaultReportDays = 7
	defaultRetryLimit = 100
	maxRetryLimit     = 1000
)

// RetryResponse reports how many pending deductions were applied.
type RetryResponse struct {
	Applied int `json:"applied" example:"3"`
}

// ConsumptionReport godoc
// @ID          consumptionReport
// @Summary     Ingredient consumption over recent days
// @Description Per-day totals (newest first), the busiest day, period totals and overconsumption alerts.
// @Tags        Analytics
// @Produce     json
// @Param       days  query  int  false  "Calendar days including today"  default(7)
// @Success     200  {object}  analytics.Report
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /analytics/consumption [get]
func (h *Handlers) ConsumptionReport(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), defaultReportDays)
	rep, err := h.analytics.Report(c.Request.Context(), days)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// RetryDeductions godoc
// @ID          retryDeductions
// @Summary     Re-apply stock deductions left pending
// @Tags        Admin
// @Produce     json
// @Param       limit  query  int  false  "Maximum orders to process"  default(100)
// @Success     200  {object}  handlers.RetryResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/deductions/retry [post]
func (h *Handlers) RetryDeductions(c *gin.Context) {
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), defaultRetryLimit), 1, maxRetryLimit)
	n, err := h.deduction.RetryPending(c.Request.Context(), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RetryResponse{Applied: n})
}
