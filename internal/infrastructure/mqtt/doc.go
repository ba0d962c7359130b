// Package mqtt provides the MQTT publishing layer for Entity Receiver.
//
// The receiver pushes three kinds of messages to the broker:
//
//   - Entity state: retained, one topic per entity
//     (entreceiver/entity/{entity_id}/state)
//   - Lifecycle events: non-retained added/updated/removed notifications
//     (entreceiver/event/{kind})
//   - System status: retained online/offline announcements with an LWT
//     configured so the broker reports an unexpected disconnect
//     (entreceiver/system/status)
//
// The client is publish-only. It wraps paho.mqtt.golang with connection
// management, auto-reconnect with exponential backoff, and publish timeouts.
// MQTT is optional: when disabled in config the rest of the receiver runs
// without it.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return fmt.Errorf("connecting to broker: %w", err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.EntityState("sensor.garden_temp")
//	if err := client.PublishRetained(topic, payload); err != nil {
//	    log.Warn("publish failed", "error", err)
//	}
package mqtt
