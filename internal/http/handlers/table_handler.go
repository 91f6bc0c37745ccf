// Table session endpoints. Every route is scoped by {tableId}; the calling
// diner is identified by X-Client-ID (see middleware.ClientIdentity).
//   - POST   /tables/{tableId}/session        (start or join)
//   - GET    /tables/{tableId}/session        (snapshot)
//   - DELETE /tables/{tableId}/session        (close and release)
//   - GET    /tables/{tableId}/cart
//   - POST   /tables/{tableId}/cart           (add one unit)
//   - PUT    /tables/{tableId}/cart           (set a line quantity)
//   - DELETE /tables/{tableId}/cart           (clear)
//   - DELETE /tables/{tableId}/cart/lines     (remove one line)
//   - POST   /tables/{tableId}/send           (submit the cart, idempotent)
//   - POST   /tables/{tableId}/direct-orders  (staff charge, bypasses the cart)
//   - GET    /tables/{tableId}/orders
//
// Idempotency:
// A send carrying an Idempotency-Key that was already committed for
// (client, table, key) returns the recorded order with
// `Idempotency-Replayed: true` instead of submitting again.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/http/middleware"
	"github.com/Fredcx/ezmenu/internal/services"
)

// StartSessionRequest opens (or joins) a table session.
type StartSessionRequest struct {
	Clients    int `json:"clients" example:"2"`
	RoundLimit int `json:"round_limit,omitempty" example:"10"`
}

// CartLineRequest addresses one line of the caller's cart.
type CartLineRequest struct {
	ItemID      string `json:"item_id" binding:"required" example:"sushi-salmon"`
	Observation string `json:"observation" example:"no wasabi"`
	Alacarte    bool   `json:"alacarte" example:"false"`
}

// UpdateQuantityRequest sets a line quantity. Zero or less removes the line.
type UpdateQuantityRequest struct {
	CartLineRequest
	Quantity int `json:"quantity" example:"3"`
}

// DirectOrderRequest charges items straight to the table.
type DirectOrderRequest struct {
	Items []services.DirectItem `json:"items"`
}

// CartResponse is the table's unsent cart with the round counters.
type CartResponse struct {
	Cart          []domain.CartLine `json:"cart"`
	RodizioInCart int               `json:"rodizio_in_cart"`
	RodizioSent   int               `json:"rodizio_sent"`
	RoundLimit    int               `json:"round_limit"`
	Remaining     int               `json:"remaining"`
}

// LineResponse wraps an updated cart line; Line is null when removed.
type LineResponse struct {
	Line *domain.CartLine `json:"line"`
}

// ListOrdersResponse lists a session's orders.
type ListOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

func (r CartLineRequest) key(clientID string) services.LineKey {
	return services.LineKey{
		ItemID:      r.ItemID,
		ClientID:    clientID,
		Observation: r.Observation,
		Alacarte:    r.Alacarte,
	}
}

// StartSession godoc
// @ID          startSession
// @Summary     Start or join a table session
// @Description Returns 201 when a new session is opened and 200 when the diners join the active one.
// @Tags        Tables
// @Accept      json
// @Produce     json
// @Param       tableId  path  string                        true  "Table ID"
// @Param       body     body  handlers.StartSessionRequest  true  "Diners"
// @Success     201  {object}  domain.TableSession
// @Success     200  {object}  domain.TableSession
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/session [post]
func (h *Handlers) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	sess, created, err := h.sessions.Start(c.Request.Context(), c.Param("tableId"), req.Clients, req.RoundLimit)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, sess)
}

// GetSession godoc
// @ID          getSession
// @Summary     Snapshot of the active session
// @Tags        Tables
// @Produce     json
// @Param       tableId  path  string  true  "Table ID"
// @Success     200  {object}  services.Snapshot
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Request.Context(), c.Param("tableId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// CloseSession godoc
// @ID          closeSession
// @Summary     Close the session and release the table
// @Tags        Tables
// @Produce     json
// @Param       tableId  path  string  true  "Table ID"
// @Success     200  {object}  domain.TableSession
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/session [delete]
func (h *Handlers) CloseSession(c *gin.Context) {
	sess, err := h.sessions.Close(c.Request.Context(), c.Param("tableId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// GetCart godoc
// @ID          getCart
// @Summary     The table's shared cart
// @Tags        Cart
// @Produce     json
// @Param       tableId  path  string  true  "Table ID"
// @Success     200  {object}  handlers.CartResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/cart [get]
func (h *Handlers) GetCart(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Request.Context(), c.Param("tableId"))
	if err != nil {
		failErr(c, err)
		return
	}
	cart := snap.Cart
	if cart == nil {
		cart = []domain.CartLine{}
	}
	ok(c, http.StatusOK, CartResponse{
		Cart:          cart,
		RodizioInCart: snap.RodizioInCart,
		RodizioSent:   snap.RodizioSent,
		RoundLimit:    snap.Session.RoundLimit,
		Remaining:     snap.Remaining,
	})
}

// AddToCart godoc
// @ID          addToCart
// @Summary     Add one unit to the caller's cart line
// @Description When the rodízio round limit is reached the response is 200 with added=false and the cart is unchanged.
// @Tags        Cart
// @Accept      json
// @Produce     json
// @Param       tableId      path    string                    true   "Table ID"
// @Param       X-Client-ID  header  string                    false  "Diner identifier"
// @Param       body         body    handlers.CartLineRequest  true   "Line"
// @Success     200  {object}  services.AddResult
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/cart [post]
func (h *Handlers) AddToCart(c *gin.Context) {
	var req CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id is required")
		return
	}
	res, err := h.sessions.AddToCart(c.Request.Context(), c.Param("tableId"),
		services.AddInput{LineKey: req.key(middleware.ClientID(c))})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdateCartQuantity godoc
// @ID          updateCartQuantity
// @Summary     Set the quantity of a cart line
// @Description Quantities of zero or less remove the line. The round limit is not checked here.
// @Tags        Cart
// @Accept      json
// @Produce     json
// @Param       tableId      path    string                          true   "Table ID"
// @Param       X-Client-ID  header  string                          false  "Diner identifier"
// @Param       body         body    handlers.UpdateQuantityRequest  true   "Line and quantity"
// @Success     200  {object}  handlers.LineResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/cart [put]
func (h *Handlers) UpdateCartQuantity(c *gin.Context) {
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id is required")
		return
	}
	line, err := h.sessions.UpdateQuantity(c.Request.Context(), c.Param("tableId"),
		req.key(middleware.ClientID(c)), req.Quantity)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LineResponse{Line: line})
}

// RemoveCartLine godoc
// @ID          removeCartLine
// @Summary     Remove one of the caller's cart lines
// @Tags        Cart
// @Param       tableId      path    string  true   "Table ID"
// @Param       X-Client-ID  header  string  false  "Diner identifier"
// @Param       item_id      query   string  true   "Menu item ID"
// @Param       observation  query   string  false  "Line observation"
// @Param       alacarte     query   bool    false  "Forced à-la-carte line"
// @Success     204  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/cart/lines [delete]
func (h *Handlers) RemoveCartLine(c *gin.Context) {
	req := CartLineRequest{
		ItemID:      c.Query("item_id"),
		Observation: c.Query("observation"),
	}
	if req.ItemID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id is required")
		return
	}
	if raw := c.Query("alacarte"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "alacarte must be a boolean")
			return
		}
		req.Alacarte = v
	}
	if err := h.sessions.RemoveFromCart(c.Request.Context(), c.Param("tableId"), req.key(middleware.ClientID(c))); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ClearCart godoc
// @ID          clearCart
// @Summary     Empty the table's cart
// @Tags        Cart
// @Param       tableId  path  string  true  "Table ID"
// @Success     204  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/cart [delete]
func (h *Handlers) ClearCart(c *gin.Context) {
	if err := h.sessions.ClearCart(c.Request.Context(), c.Param("tableId")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// SendOrder godoc
// @ID          sendOrder
// @Summary     Submit the cart to the kitchen
// @Description Moves every cart line into one order and deducts stock. An empty cart yields 200 with sent=false.
// @Description A repeated Idempotency-Key returns the recorded order with Idempotency-Replayed: true.
// @Tags        Tables
// @Produce     json
// @Param       tableId          path    string  true   "Table ID"
// @Param       X-Client-ID      header  string  false  "Diner identifier"
// @Param       Idempotency-Key  header  string  false  "Idempotency key"
// @Success     201  {object}  services.SendResult
// @Success     200  {object}  services.SendResult  "Replayed, or nothing to send"
// @Header      200  {string}  Idempotency-Replayed  "true when replayed"
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Order not sent, the cart is intact"
// @Router      /tables/{tableId}/send [post]
func (h *Handlers) SendOrder(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.sessions.Send(c.Request.Context(), c.Param("tableId"), middleware.ClientID(c), key)
	if err != nil {
		failErr(c, err)
		return
	}
	switch {
	case res.Replayed:
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, res)
	case !res.Sent:
		ok(c, http.StatusOK, res)
	default:
		ok(c, http.StatusCreated, res)
	}
}

// CreateDirectOrder godoc
// @ID          createDirectOrder
// @Summary     Charge items directly to the table
// @Description Staff path: the items skip the cart and the round limit but still deduct stock.
// @Tags        Tables
// @Accept      json
// @Produce     json
// @Param       tableId  path  string                       true  "Table ID"
// @Param       body     body  handlers.DirectOrderRequest  true  "Items"
// @Success     201  {object}  domain.Order
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/direct-orders [post]
func (h *Handlers) CreateDirectOrder(c *gin.Context) {
	var req DirectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "items are required")
		return
	}
	for i := range req.Items {
		if req.Items[i].ClientID == "" {
			req.Items[i].ClientID = middleware.ClientID(c)
		}
	}
	order, err := h.sessions.AddDirect(c.Request.Context(), c.Param("tableId"), req.Items)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

// ListOrders godoc
// @ID          listOrders
// @Summary     Orders of the active session
// @Tags        Tables
// @Produce     json
// @Param       tableId  path  string  true  "Table ID"
// @Success     200  {object}  handlers.ListOrdersResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /tables/{tableId}/orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	orders, err := h.sessions.ListOrders(c.Request.Context(), c.Param("tableId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	ok(c, http.StatusOK, ListOrdersResponse{Orders: orders})
}
