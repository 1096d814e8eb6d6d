package merchantapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
)

type apiResponse struct {
	Code   string      `json:"code"`
	Msg    string      `json:"msg,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiResponse{Code: "OK", Data: data})
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	return c.JSON(status, apiResponse{Code: code, Msg: msg, Detail: detail})
}

// failErr maps the core error taxonomy to HTTP statuses. The conversational
// layer relays 4xx responses as clarifying answers, so the message carries
// the wrapped context.
func failErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return fail(c, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return fail(c, http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", err.Error(), nil)
	case errors.Is(err, domain.ErrPersistence):
		return fail(c, http.StatusServiceUnavailable, "PERSISTENCE_ERROR", err.Error(), nil)
	default:
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}
