package merchantapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
	"github.com/voxshop/merchantd/internal/ledger"
	"github.com/voxshop/merchantd/internal/query"
)

type createOrderPayload struct {
	SessionID      string             `json:"session_id" validate:"required"`
	LineItems      []ledger.ItemInput `json:"line_items,omitempty"`
	FromCart       bool               `json:"from_cart,omitempty"`
	Buyer          *domain.Buyer      `json:"buyer,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

func (h *Handler) createOrder(c echo.Context) error {
	var payload createOrderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid order", err.Error())
	}
	order, err := h.api.CreateOrder(c.Request().Context(), CreateOrderRequest{
		SessionID:      payload.SessionID,
		Items:          payload.LineItems,
		FromCart:       payload.FromCart,
		Buyer:          payload.Buyer,
		IdempotencyKey: payload.IdempotencyKey,
	})
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

func (h *Handler) getLastOrder(c echo.Context) error {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "session_id is required", nil)
	}
	order, err := h.api.GetLastOrder(c.Request().Context(), sessionID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

func (h *Handler) listOrders(c echo.Context) error {
	sessionID, timeRange, err := parseHistoryQuery(c)
	if err != nil {
		return failErr(c, err)
	}
	orders, err := h.api.ListOrders(c.Request().Context(), sessionID, timeRange)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, orders)
}

func (h *Handler) orderTotals(c echo.Context) error {
	sessionID, timeRange, err := parseHistoryQuery(c)
	if err != nil {
		return failErr(c, err)
	}
	summary, err := h.api.TotalsSummary(c.Request().Context(), sessionID, timeRange)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, summary)
}

// OrderExportRow is the flattened CSV shape: one row per line item.
type OrderExportRow struct {
	OrderID    int64  `csv:"order_id"`
	SessionID  string `csv:"session_id"`
	CreatedAt  string `csv:"created_at"`
	Status     string `csv:"status"`
	ProductID  string `csv:"product_id"`
	Quantity   int    `csv:"quantity"`
	UnitAmount int64  `csv:"unit_amount"`
	LineTotal  int64  `csv:"line_total"`
	Currency   string `csv:"currency"`
}

func (h *Handler) exportOrders(c echo.Context) error {
	sessionID, timeRange, err := parseHistoryQuery(c)
	if err != nil {
		return failErr(c, err)
	}
	orders, err := h.api.ListOrders(c.Request().Context(), sessionID, timeRange)
	if err != nil {
		return failErr(c, err)
	}
	rows := ExportRows(orders)
	data, err := gocsv.MarshalString(&rows)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export orders", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=orders-%s.csv", sessionID))
	return c.Blob(http.StatusOK, "text/csv", []byte(data))
}

// ExportRows flattens orders into CSV rows, one per line item. Shared with
// the daily export job.
func ExportRows(orders []domain.Order) []OrderExportRow {
	rows := make([]OrderExportRow, 0, len(orders))
	for _, o := range orders {
		for _, li := range o.Items {
			rows = append(rows, OrderExportRow{
				OrderID:    o.ID,
				SessionID:  o.SessionID,
				CreatedAt:  o.CreatedAt.Format(time.RFC3339),
				Status:     o.Status,
				ProductID:  li.ProductID,
				Quantity:   li.Quantity,
				UnitAmount: li.UnitAmount,
				LineTotal:  li.LineTotal(),
				Currency:   li.Currency,
			})
		}
	}
	return rows
}

// parseHistoryQuery reads session_id plus the optional date_from/date_to
// bounds. Dates accept any format dateparse understands.
func parseHistoryQuery(c echo.Context) (string, *query.TimeRange, error) {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return "", nil, errors.Wrap(domain.ErrValidation, "session_id is required")
	}
	var timeRange *query.TimeRange
	if raw := strings.TrimSpace(c.QueryParam("date_from")); raw != "" {
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			return "", nil, errors.Wrapf(domain.ErrValidation, "invalid date_from %q", raw)
		}
		timeRange = &query.TimeRange{From: &t}
	}
	if raw := strings.TrimSpace(c.QueryParam("date_to")); raw != "" {
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			return "", nil, errors.Wrapf(domain.ErrValidation, "invalid date_to %q", raw)
		}
		if timeRange == nil {
			timeRange = &query.TimeRange{}
		}
		timeRange.To = &t
	}
	return sessionID, timeRange, nil
}
