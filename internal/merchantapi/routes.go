package merchantapi

import (
	"github.com/voxshop/merchantd/internal/webserver"
)

// Handler binds the API surface to echo handlers.
type Handler struct {
	api *API
}

// NewHandler creates the HTTP handler set over the API surface.
func NewHandler(api *API) *Handler {
	return &Handler{api: api}
}

// Register mounts the merchant API under the web server's /acp group.
func Register(ws *webserver.WebServer, api *API) {
	h := NewHandler(api)

	ws.ApiGET("/catalog", h.listCatalog)
	ws.ApiGET("/catalog/:id", h.getCatalogProduct)

	ws.ApiPOST("/cart/items", h.addCartItem)
	ws.ApiDELETE("/cart/items/:product_id", h.removeCartItem)
	ws.ApiGET("/cart", h.viewCart)

	ws.ApiPOST("/orders", h.createOrder)
	ws.ApiGET("/orders", h.listOrders)
	ws.ApiGET("/orders/last", h.getLastOrder)
	ws.ApiGET("/orders/totals", h.orderTotals)
	ws.ApiGET("/orders/export", h.exportOrders)
}
