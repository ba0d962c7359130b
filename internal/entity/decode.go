package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decode parses a raw datagram payload into an Update.
//
// The payload must be a JSON object with at minimum a non-empty entity_id
// and a scalar state. Numbers and booleans in the state field are coerced
// to their string form; objects, arrays, and null are rejected. Attributes
// defaults to an empty map and broadcaster_name to "" when absent.
//
// Decode is pure: it never panics on adversarial input and touches no
// shared state. All failures wrap ErrDecode plus a specific sentinel,
// checkable with errors.Is.
//
// Parameters:
//   - raw: The datagram payload as received from the wire
//
// Returns:
//   - Update: Decoded update (SourceIP left empty for the caller to attach)
//   - error: nil on success, otherwise a wrapped decode sentinel
func Decode(raw []byte) (Update, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Update{}, fmt.Errorf("%w: %w: %w", ErrDecode, ErrInvalidPayload, err)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return Update{}, fmt.Errorf("%w: %w", ErrDecode, ErrNotObject)
	}

	entityID, err := decodeEntityID(obj)
	if err != nil {
		return Update{}, err
	}

	state, err := decodeState(obj)
	if err != nil {
		return Update{}, err
	}

	u := Update{
		EntityID:   entityID,
		State:      state,
		Attributes: Attributes{},
	}

	if attrs, ok := obj["attributes"].(map[string]any); ok {
		u.Attributes = deepCopyMap(attrs)
	}

	if name, ok := obj["broadcaster_name"].(string); ok {
		u.BroadcasterName = name
	}

	return u, nil
}

// decodeEntityID extracts and validates the entity_id field.
func decodeEntityID(obj map[string]any) (string, error) {
	raw, present := obj["entity_id"]
	if !present {
		return "", fmt.Errorf("%w: %w", ErrDecode, ErrMissingEntityID)
	}

	id, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %w: not a string", ErrDecode, ErrMissingEntityID)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %w: empty after trimming", ErrDecode, ErrMissingEntityID)
	}

	return id, nil
}

// decodeState extracts the state field, coercing scalars to strings.
func decodeState(obj map[string]any) (string, error) {
	raw, present := obj["state"]
	if !present {
		return "", fmt.Errorf("%w: %w", ErrDecode, ErrMissingState)
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		// json.Unmarshal delivers all JSON numbers as float64
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		// Objects, arrays, and JSON null are not valid states
		return "", fmt.Errorf("%w: %w: %T", ErrDecode, ErrInvalidState, raw)
	}
}
