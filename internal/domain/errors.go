package domain

import "github.com/pkg/errors"

// Error taxonomy for the commerce core. Call sites wrap these sentinels with
// errors.Wrapf so classification via errors.Is survives annotation, e.g.
//
//	errors.Wrapf(domain.ErrNotFound, "product %s", id)
var (
	// ErrValidation covers malformed input: unknown filter keys,
	// quantity < 1, missing required fields.
	ErrValidation = errors.New("validation error")

	// ErrNotFound covers unknown products, cart lines and orders.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an idempotency key is reused with a
	// payload different from the original request.
	ErrConflict = errors.New("conflict")

	// ErrCurrencyMismatch is returned when line items or an aggregation
	// span more than one currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrPersistence is returned when the durable append failed after the
	// bounded internal retries.
	ErrPersistence = errors.New("persistence error")
)
