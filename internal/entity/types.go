package entity

import "time"

// Attributes holds arbitrary entity metadata as a JSON map.
//
// Examples:
//
//	Temperature sensor: {"unit_of_measurement": "°C", "battery_level": 87}
//	Light: {"brightness": 192, "color_mode": "xy"}
type Attributes map[string]any

// Update is a decoded entity broadcast, ready to apply to the registry.
//
// SourceIP is not part of the wire payload; the listener attaches it from
// the datagram's remote address before applying.
type Update struct {
	// EntityID is the unique entity identifier (e.g., "sensor.garden_temp").
	EntityID string `json:"entity_id"`

	// State is the entity state, always carried as a string.
	// Numeric and boolean wire values are coerced to their string form.
	State string `json:"state"`

	// Attributes holds optional metadata. Never nil after decode.
	Attributes Attributes `json:"attributes"`

	// BroadcasterName identifies the broadcasting instance ("" if absent).
	BroadcasterName string `json:"broadcaster_name"`

	// SourceIP is the remote address the datagram arrived from.
	SourceIP string `json:"source_ip"`
}

// Record is a live registry entry for a single entity.
type Record struct {
	// EntityID is the unique entity identifier.
	EntityID string `json:"entity_id"`

	// State is the most recently received state.
	State string `json:"state"`

	// Attributes is the most recently received attribute map.
	Attributes Attributes `json:"attributes"`

	// BroadcasterName identifies which instance last updated this entity.
	BroadcasterName string `json:"broadcaster_name"`

	// SourceIP is the address the last update arrived from.
	SourceIP string `json:"source_ip"`

	// LastSeen is when the last update for this entity arrived (UTC).
	// Monotonically non-decreasing while the record is live.
	LastSeen time.Time `json:"last_seen"`
}

// DeepCopy creates a fully independent copy of the record.
// Used to isolate registry internals from callers (and vice versa).
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields
	cpy.Attributes = deepCopyMap(r.Attributes)
	return &cpy
}

// deepCopyMap creates a deep copy of an attribute map.
// Nested maps and slices are recursively copied.
func deepCopyMap(m Attributes) Attributes {
	if m == nil {
		return nil
	}
	cpy := make(Attributes, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(deepCopyMap(val))
	case Attributes:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
