// Ingredient ledger endpoints:
//   - GET  /ingredients                     (list, weak ETag)
//   - GET  /ingredients/low-stock
//   - POST /ingredients
//   - GET  /ingredients/{id}
//   - POST /ingredients/{id}/adjust
//   - PUT  /ingredients/{id}/quantity
//   - PUT  /ingredients/{id}/min-threshold
//   - PUT  /ingredients/{id}/daily-average
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/services"
)

// CreateIngredientRequest is the payload for registering an ingredient.
type CreateIngredientRequest struct {
	ID           string           `json:"id" example:"salmon"`
	Name         string           `json:"name" binding:"required" example:"Salmão"`
	Unit         string           `json:"unit" binding:"required" example:"g"`
	Quantity     decimal.Decimal  `json:"quantity" swaggertype:"string" example:"1000"`
	MinThreshold decimal.Decimal  `json:"min_threshold" swaggertype:"string" example:"500"`
	Category     string           `json:"category" example:"fish"`
	DailyAverage *decimal.Decimal `json:"daily_average,omitempty" swaggertype:"string" example:"800"`
}

// AdjustRequest applies a signed delta to the stock level.
type AdjustRequest struct {
	Delta *decimal.Decimal `json:"delta" swaggertype:"string" example:"-150"`
}

// ValueRequest carries an administrative override. For daily-average a
// null value clears it.
type ValueRequest struct {
	Value *decimal.Decimal `json:"value" swaggertype:"string" example:"500"`
}

// ListIngredientsResponse wraps the ledger.
type ListIngredientsResponse struct {
	Ingredients []domain.Ingredient `json:"ingredients"`
}

// ledgerVersioner is implemented by ledgers that can report a cheap
// change marker.
type ledgerVersioner interface {
	Version(ctx context.Context) (int64, *time.Time, error)
}

// ListIngredients godoc
// @ID          listIngredients
// @Summary     List the stock ledger
// @Description Returns every ingredient ordered by name. Supports a weak ETag via If-None-Match.
// @Tags        Ingredients
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListIngredientsResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /ingredients [get]
func (h *Handlers) ListIngredients(c *gin.Context) {
	ctx := c.Request.Context()

	if v, isVersioned := h.ledger.(ledgerVersioner); isVersioned {
		if count, maxTS, err := v.Version(ctx); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"ingredients:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if c.GetHeader("If-None-Match") == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.ledger.List(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListIngredientsResponse{Ingredients: items})
}

// ListLowStock godoc
// @ID          listLowStock
// @Summary     Ingredients at or below their threshold
// @Tags        Ingredients
// @Produce     json
// @Success     200  {object}  handlers.ListIngredientsResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /ingredients/low-stock [get]
func (h *Handlers) ListLowStock(c *gin.Context) {
	items, err := h.ledger.ListLowStock(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListIngredientsResponse{Ingredients: items})
}

// GetIngredient godoc
// @ID          getIngredient
// @Summary     Get one ingredient
// @Tags        Ingredients
// @Produce     json
// @Param       id   path  string  true  "Ingredient ID"
// @Success     200  {object}  domain.Ingredient
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id} [get]
func (h *Handlers) GetIngredient(c *gin.Context) {
	ing, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ing)
}

// CreateIngredient godoc
// @ID          createIngredient
// @Summary     Register an ingredient
// @Tags        Ingredients
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateIngredientRequest  true  "Ingredient"
// @Success     201  {object}  domain.Ingredient
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "ID already taken"
// @Router      /ingredients [post]
func (h *Handlers) CreateIngredient(c *gin.Context) {
	var req CreateIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and unit are required")
		return
	}
	ing, err := h.ledger.Create(c.Request.Context(), services.IngredientInput{
		ID:           req.ID,
		Name:         req.Name,
		Unit:         req.Unit,
		Quantity:     req.Quantity,
		MinThreshold: req.MinThreshold,
		Category:     req.Category,
		DailyAverage: req.DailyAverage,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ing)
}

// AdjustIngredient godoc
// @ID          adjustIngredient
// @Summary     Apply a stock delta
// @Description quantity = max(0, quantity + delta). Negative deltas that overshoot clamp at zero.
// @Tags        Ingredients
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Ingredient ID"
// @Param       body  body  handlers.AdjustRequest  true  "Delta"
// @Success     200  {object}  domain.Ingredient
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id}/adjust [post]
func (h *Handlers) AdjustIngredient(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delta == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "delta is required")
		return
	}
	ing, err := h.ledger.Adjust(c.Request.Context(), c.Param("id"), *req.Delta)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ing)
}

// SetIngredientQuantity godoc
// @ID          setIngredientQuantity
// @Summary     Overwrite the stock level
// @Tags        Ingredients
// @Accept      json
// @Produce     json
// @Param       id    path  string                 true  "Ingredient ID"
// @Param       body  body  handlers.ValueRequest  true  "New quantity"
// @Success     200  {object}  domain.Ingredient
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id}/quantity [put]
func (h *Handlers) SetIngredientQuantity(c *gin.Context) {
	h.setValue(c, h.ledger.SetQuantity)
}

// SetIngredientMinThreshold godoc
// @ID          setIngredientMinThreshold
// @Summary     Overwrite the low-stock threshold
// @Tags        Ingredients
// @Accept      json
// @Produce     json
// @Param       id    path  string                 true  "Ingredient ID"
// @Param       body  body  handlers.ValueRequest  true  "New threshold"
// @Success     200  {object}  domain.Ingredient
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id}/min-threshold [put]
func (h *Handlers) SetIngredientMinThreshold(c *gin.Context) {
	h.setValue(c, h.ledger.SetMinThreshold)
}

// SetIngredientDailyAverage godoc
// @ID          setIngredientDailyAverage
// @Summary     Set or clear the expected daily consumption
// @Tags        Ingredients
// @Accept      json
// @Produce     json
// @Param       id    path  string                 true  "Ingredient ID"
// @Param       body  body  handlers.ValueRequest  true  "Daily average, null clears"
// @Success     200  {object}  domain.Ingredient
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /ingredients/{id}/daily-average [put]
func (h *Handlers) SetIngredientDailyAverage(c *gin.Context) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ing, err := h.ledger.SetDailyAverage(c.Request.Context(), c.Param("id"), req.Value)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ing)
}

func (h *Handlers) setValue(c *gin.Context, set func(context.Context, string, decimal.Decimal) (*domain.Ingredient, error)) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value is required")
		return
	}
	ing, err := set(c.Request.Context(), c.Param("id"), *req.Value)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ing)
}
