package mqtt

import "fmt"

// Topic prefixes for Entity Receiver.
//
// All topics live under a single root so downstream consumers can subscribe
// with entreceiver/# and receive everything the receiver publishes.
const (
	// TopicPrefix is the root of all Entity Receiver topics.
	TopicPrefix = "entreceiver"

	// TopicPrefixEntity is the base for per-entity topics.
	TopicPrefixEntity = "entreceiver/entity"

	// TopicPrefixEvent is the base for lifecycle event topics.
	TopicPrefixEvent = "entreceiver/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "entreceiver/system"
)

// Topics provides builders for Entity Receiver MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("sensor.garden_temp")
//	// Returns: "entreceiver/entity/sensor.garden_temp/state"
type Topics struct{}

// EntityState returns the retained state topic for an entity.
//
// Example: entreceiver/entity/sensor.garden_temp/state
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixEntity, entityID)
}

// EntityEvent returns the topic for entity lifecycle events.
// Kind is one of "created", "updated", or "removed".
//
// Example: entreceiver/event/created
func (Topics) EntityEvent(kind string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, kind)
}

// SystemStatus returns the system status topic.
// Used for the online/offline announcements and the LWT message.
//
// Example: entreceiver/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ListenerStatus returns the UDP listener status topic. Retained, so
// late subscribers see the current ingest state.
//
// Example: entreceiver/system/listener
func (Topics) ListenerStatus() string {
	return fmt.Sprintf("%s/listener", TopicPrefixSystem)
}

// AllEntityStates returns a pattern matching every entity state topic.
//
// Pattern: entreceiver/entity/+/state
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixEntity)
}

// AllEvents returns a pattern matching every lifecycle event topic.
//
// Pattern: entreceiver/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixEvent)
}
