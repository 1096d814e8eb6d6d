package merchantapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type cartItemPayload struct {
	SessionID string `json:"session_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (h *Handler) addCartItem(c echo.Context) error {
	var payload cartItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse cart item", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid cart item", err.Error())
	}
	view, err := h.api.AddToCart(payload.SessionID, payload.ProductID, payload.Quantity)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, view)
}

func (h *Handler) removeCartItem(c echo.Context) error {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "session_id is required", nil)
	}
	// quantity is optional: absent means remove the whole line
	quantity := 0
	if raw := c.QueryParam("quantity"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 1 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "quantity must be a positive integer", nil)
		}
		quantity = q
	}
	view, err := h.api.RemoveFromCart(sessionID, c.Param("product_id"), quantity)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, view)
}

func (h *Handler) viewCart(c echo.Context) error {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "session_id is required", nil)
	}
	return ok(c, h.api.ViewCart(sessionID))
}
