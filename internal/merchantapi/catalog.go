package merchantapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
)

// attribute filter params accepted on /acp/catalog
var attributeParams = []string{"color", "size"}

func (h *Handler) listCatalog(c echo.Context) error {
	filter, err := parseCatalogFilter(c.QueryParams())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, h.api.ListProducts(filter))
}

func (h *Handler) getCatalogProduct(c echo.Context) error {
	product, err := h.api.GetProduct(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, product)
}

// parseCatalogFilter whitelists the query params; anything unknown is a
// validation error rather than a silently ignored key.
func parseCatalogFilter(params url.Values) (catalog.Filter, error) {
	known := map[string]bool{"category": true, "max_price": true, "q": true}
	for _, attr := range attributeParams {
		known[attr] = true
	}
	for key := range params {
		if !known[key] {
			return catalog.Filter{}, errors.Wrapf(domain.ErrValidation, "unknown filter %q", key)
		}
	}

	filter := catalog.Filter{
		Category: strings.TrimSpace(params.Get("category")),
		Query:    strings.TrimSpace(params.Get("q")),
	}
	if raw := strings.TrimSpace(params.Get("max_price")); raw != "" {
		maxPrice, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxPrice < 0 {
			return catalog.Filter{}, errors.Wrapf(domain.ErrValidation, "invalid max_price %q", raw)
		}
		filter.MaxPrice = &maxPrice
	}
	for _, attr := range attributeParams {
		if v := strings.TrimSpace(params.Get(attr)); v != "" {
			if filter.Attributes == nil {
				filter.Attributes = map[string]string{}
			}
			filter.Attributes[attr] = v
		}
	}
	return filter, nil
}
