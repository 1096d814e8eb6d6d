package catalog

import (
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Filter is the ANDed product query. A zero Filter matches the full catalog.
type Filter struct {
	// Category matches exactly, case-insensitive.
	Category string
	// MaxPrice is an inclusive upper bound in minor units.
	MaxPrice *int64
	// Attributes are equality filters (color, size, ...), case-insensitive.
	Attributes map[string]string
	// Query is a free-text term matched case-insensitively against name,
	// description, id, category, attribute values and tags.
	Query string
}

// Store holds the immutable product registry for the process lifetime.
// It is read-only after construction and safe for concurrent use without
// locking.
type Store struct {
	products []domain.Product
	index    map[string]int
}

// NewStore builds a store from a product list, preserving insertion order.
func NewStore(products []domain.Product) (*Store, error) {
	s := &Store{
		products: make([]domain.Product, 0, len(products)),
		index:    make(map[string]int, len(products)),
	}
	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			return nil, errors.Wrap(domain.ErrValidation, "catalog entry without id")
		}
		if _, dup := s.index[p.ID]; dup {
			return nil, errors.Wrapf(domain.ErrValidation, "duplicate product id %s", p.ID)
		}
		if p.Price < 0 {
			return nil, errors.Wrapf(domain.ErrValidation, "product %s has negative price", p.ID)
		}
		if strings.TrimSpace(p.Currency) == "" {
			return nil, errors.Wrapf(domain.ErrValidation, "product %s has no currency", p.ID)
		}
		s.index[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

// LoadFile reads a JSON catalog file (array of products) and builds a store.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog file %s", path)
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrapf(domain.ErrValidation, "parse catalog file %s: %s", path, err.Error())
	}
	store, err := NewStore(products)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded",
		zap.String("path", path),
		zap.Int("products", len(products)))
	return store, nil
}

// List returns the products satisfying the filter in catalog insertion
// order. An empty result is a valid answer, not an error.
func (s *Store) List(f Filter) []domain.Product {
	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if s.matches(p, f) {
			result = append(result, p)
		}
	}
	return result
}

// Lookup returns the product with the given id.
func (s *Store) Lookup(id string) (domain.Product, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	return s.products[i], nil
}

// Size returns the number of catalog entries.
func (s *Store) Size() int {
	return len(s.products)
}

func (s *Store) matches(p domain.Product, f Filter) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	for name, want := range f.Attributes {
		if !strings.EqualFold(p.Attribute(name), want) {
			return false
		}
	}
	if f.Query != "" && !matchesTerm(p, f.Query) {
		return false
	}
	return true
}

// matchesTerm is the free-text match: a case-insensitive substring test over
// name, description, id, category, attribute values and tags.
func matchesTerm(p domain.Product, term string) bool {
	t := strings.ToLower(term)
	if strings.Contains(strings.ToLower(p.Name), t) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), t) {
		return true
	}
	if strings.Contains(strings.ToLower(p.ID), t) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Category), t) {
		return true
	}
	for _, v := range p.Attributes {
		if strings.Contains(strings.ToLower(v), t) {
			return true
		}
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), t) {
			return true
		}
	}
	return false
}
