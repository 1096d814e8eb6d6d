package merchantapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/webserver"
)

func newTestServer(t *testing.T) *webserver.WebServer {
	t.Helper()
	ws := webserver.New(config.WebConfig{Host: "127.0.0.1", Port: 0})
	Register(ws, newTestAPI(t))
	return ws
}

func doRequest(ws *webserver.WebServer, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ws.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCatalogEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := doRequest(ws, http.MethodGet, "/acp/catalog", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "OK", resp.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/catalog?max_price=800&category=mug", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/catalog?max_price=cheap", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeResponse(t, rec).Code)

	// unknown filter keys are rejected, not ignored
	rec = doRequest(ws, http.MethodGet, "/acp/catalog?brand=acme", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogProductEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := doRequest(ws, http.MethodGet, "/acp/catalog/mug-001", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/catalog/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, rec).Code)
}

func TestCartEndpoints(t *testing.T) {
	ws := newTestServer(t)

	rec := doRequest(ws, http.MethodPost, "/acp/cart/items",
		`{"session_id":"s1","product_id":"mug-001","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/cart?session_id=s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subtotal":1600`)

	rec = doRequest(ws, http.MethodDelete, "/acp/cart/items/mug-001?session_id=s1&quantity=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subtotal":800`)

	// validator rejects a missing quantity
	rec = doRequest(ws, http.MethodPost, "/acp/cart/items",
		`{"session_id":"s1","product_id":"mug-001"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/cart", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderEndpoints(t *testing.T) {
	ws := newTestServer(t)

	rec := doRequest(ws, http.MethodPost, "/acp/cart/items",
		`{"session_id":"s1","product_id":"mug-001","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","from_cart":true,"idempotency_key":"checkout-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1600`)

	// replay returns the same order
	rec = doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","from_cart":true,"idempotency_key":"checkout-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/orders/last?session_id=s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/orders?session_id=s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/orders/totals?session_id=s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1600`)

	rec = doRequest(ws, http.MethodGet, "/acp/orders/last?session_id=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderEndpointErrors(t *testing.T) {
	ws := newTestServer(t)

	// line_items together with from_cart
	rec := doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","from_cart":true,"line_items":[{"product_id":"mug-001","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown product
	rec = doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","line_items":[{"product_id":"ghost","quantity":1}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// idempotency conflict
	rec = doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","line_items":[{"product_id":"mug-001","quantity":1}],"idempotency_key":"k1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","line_items":[{"product_id":"mug-001","quantity":2}],"idempotency_key":"k1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeResponse(t, rec).Code)

	// bad date filter
	rec = doRequest(ws, http.MethodGet, "/acp/orders?session_id=s1&date_from=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderExportEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := doRequest(ws, http.MethodPost, "/acp/orders",
		`{"session_id":"s1","line_items":[{"product_id":"mug-001","quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(ws, http.MethodGet, "/acp/orders/export?session_id=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "orders-s1.csv")
	body := rec.Body.String()
	assert.Contains(t, body, "order_id")
	assert.Contains(t, body, "mug-001")
}
