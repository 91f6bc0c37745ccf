// Recipe and availability endpoints:
//   - GET /recipes/{itemId}
//   - PUT /recipes/{itemId}              (replace the whole recipe)
//   - GET /menu/availability             (every catalog item)
//   - GET /menu/{itemId}/availability
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Fredcx/ezmenu/internal/services"
	"github.com/Fredcx/ezmenu/internal/stock"
)

// RecipeResponse carries an item's requirements. An empty list means the
// item is untracked.
type RecipeResponse struct {
	ItemID       string                 `json:"item_id"`
	Requirements []services.Requirement `json:"requirements"`
}

// ReplaceRecipeRequest replaces an item's requirements.
type ReplaceRecipeRequest struct {
	Requirements []services.Requirement `json:"requirements"`
}

// AvailabilityResponse reports one item's classification.
type AvailabilityResponse struct {
	ItemID       string             `json:"item_id"`
	Availability stock.Availability `json:"availability" example:"low_stock"`
}

// ListAvailabilityResponse reports every catalog item.
type ListAvailabilityResponse struct {
	Items []services.ItemAvailability `json:"items"`
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a menu item's recipe
// @Tags        Recipes
// @Produce     json
// @Param       itemId  path  string  true  "Menu item ID"
// @Success     200  {object}  handlers.RecipeResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /recipes/{itemId} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	itemID := c.Param("itemId")
	reqs, err := h.recipes.Get(c.Request.Context(), itemID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RecipeResponse{ItemID: itemID, Requirements: reqs})
}

// ReplaceRecipe godoc
// @ID          replaceRecipe
// @Summary     Replace a menu item's recipe
// @Description An empty list makes the item untracked. Amounts must be positive and ingredients must not repeat.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Param       itemId  path  string                         true  "Menu item ID"
// @Param       body    body  handlers.ReplaceRecipeRequest  true  "Requirements"
// @Success     200  {object}  handlers.RecipeResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown ingredient"
// @Router      /recipes/{itemId} [put]
func (h *Handlers) ReplaceRecipe(c *gin.Context) {
	var req ReplaceRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	itemID := c.Param("itemId")
	reqs, err := h.recipes.Replace(c.Request.Context(), itemID, req.Requirements)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RecipeResponse{ItemID: itemID, Requirements: reqs})
}

// ListAvailability godoc
// @ID          listAvailability
// @Summary     Stock availability of every menu item
// @Tags        Menu
// @Produce     json
// @Success     200  {object}  handlers.ListAvailabilityResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /menu/availability [get]
func (h *Handlers) ListAvailability(c *gin.Context) {
	items, err := h.avail.ResolveAll(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []services.ItemAvailability{}
	}
	ok(c, http.StatusOK, ListAvailabilityResponse{Items: items})
}

// GetAvailability godoc
// @ID          getAvailability
// @Summary     Stock availability of one menu item
// @Description Untracked items are always available. Ingredients missing from the ledger are ignored.
// @Tags        Menu
// @Produce     json
// @Param       itemId  path  string  true  "Menu item ID"
// @Success     200  {object}  handlers.AvailabilityResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /menu/{itemId}/availability [get]
func (h *Handlers) GetAvailability(c *gin.Context) {
	itemID := c.Param("itemId")
	a, err := h.avail.Resolve(c.Request.Context(), itemID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AvailabilityResponse{ItemID: itemID, Availability: a})
}
