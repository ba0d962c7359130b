package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, entity.ErrDecode) {
//	    // any decode failure
//	}
var (
	// ErrDecode is the umbrella error wrapped by every decode failure.
	ErrDecode = errors.New("entity: decode failed")

	// ErrInvalidPayload is returned when the payload is not valid JSON.
	ErrInvalidPayload = errors.New("entity: invalid payload")

	// ErrNotObject is returned when the payload is valid JSON but not an object.
	ErrNotObject = errors.New("entity: payload is not an object")

	// ErrMissingEntityID is returned when entity_id is absent, not a string,
	// or empty after trimming whitespace.
	ErrMissingEntityID = errors.New("entity: missing entity_id")

	// ErrMissingState is returned when the state field is absent.
	ErrMissingState = errors.New("entity: missing state")

	// ErrInvalidState is returned when state is present but not a scalar.
	ErrInvalidState = errors.New("entity: invalid state")

	// ErrEntityNotFound is returned when an entity ID does not exist in the registry.
	ErrEntityNotFound = errors.New("entity: not found")
)
