package domain

// Product is a single catalog entry. The catalog is loaded once at process
// start and products are immutable afterwards; Price is in minor currency
// units (e.g. cents, paise).
type Product struct {
	ID          string            `json:"id" form:"id"`
	Name        string            `json:"name" form:"name"`
	Description string            `json:"description,omitempty" form:"description"`
	Price       int64             `json:"price" form:"price"`
	Currency    string            `json:"currency" form:"currency"`
	Category    string            `json:"category" form:"category"`
	Attributes  map[string]string `json:"attributes,omitempty" form:"attributes"`
	Tags        []string          `json:"tags,omitempty" form:"tags"`
}

// Attribute returns the named attribute value ("" when absent).
func (p Product) Attribute(name string) string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[name]
}
