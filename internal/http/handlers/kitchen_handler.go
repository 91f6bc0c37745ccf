// Kitchen queue endpoints:
//   - GET   /kitchen/items?status=sent,preparing
//   - PATCH /kitchen/items/{id}/status
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// UpdateStatusRequest advances a sent item through the kitchen workflow.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" example:"preparing"`
}

// KitchenItemsResponse lists sent items still on the board.
type KitchenItemsResponse struct {
	Items []domain.SentLineItem `json:"items"`
}

// ListKitchenItems godoc
// @ID          listKitchenItems
// @Summary     Items in the kitchen queue
// @Description Unarchived sent items ordered by send time. Filter with a comma-separated status list.
// @Tags        Kitchen
// @Produce     json
// @Param       status  query  string  false  "e.g. sent,preparing"
// @Success     200  {object}  handlers.KitchenItemsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /kitchen/items [get]
func (h *Handlers) ListKitchenItems(c *gin.Context) {
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	items, err := h.kitchen.ListItems(c.Request.Context(), statuses)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.SentLineItem{}
	}
	ok(c, http.StatusOK, KitchenItemsResponse{Items: items})
}

// UpdateKitchenStatus godoc
// @ID          updateKitchenStatus
// @Summary     Advance a sent item
// @Description Allowed: sent → preparing → ready → completed.
// @Tags        Kitchen
// @Accept      json
// @Produce     json
// @Param       id    path  string                        true  "Sent item ID"
// @Param       body  body  handlers.UpdateStatusRequest  true  "Next status"
// @Success     200  {object}  domain.SentLineItem
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Invalid transition"
// @Router      /kitchen/items/{id}/status [patch]
func (h *Handlers) UpdateKitchenStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status is required")
		return
	}
	item, err := h.kitchen.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}
