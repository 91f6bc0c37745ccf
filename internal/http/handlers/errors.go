package handlers

// Stable, machine-readable error codes carried in ErrorResponse.Code.
// Clients branch on these; messages are for humans only.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "service_unavailable"

	// Domain-specific:
	ErrCodeIngredientNotFound = "ingredient_not_found"
	ErrCodeMenuItemNotFound   = "menu_item_not_found"
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeLineNotFound       = "line_not_found"
	ErrCodeOrderNotFound      = "order_not_found"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeOrderNotSent       = "order_not_sent"
)
