package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityState records a numeric entity state value.
//
// Called when a received state parses as a number; non-numeric states are
// skipped by the caller. The write is non-blocking; data is batched and
// sent asynchronously.
//
// Parameters:
//   - entityID: The entity identifier (e.g., "sensor.garden_temp")
//   - broadcaster: Name of the broadcasting instance
//   - value: The numeric state value
//   - receivedAt: When the update arrived on the wire
//
// Example:
//
//	client.WriteEntityState("sensor.garden_temp", "Remote Home Assistant", 21.4, now)
func (c *Client) WriteEntityState(entityID, broadcaster string, value float64, receivedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_state",
		map[string]string{
			"entity_id":   entityID,
			"broadcaster": broadcaster,
		},
		map[string]interface{}{
			"value": value,
		},
		receivedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteEntityMetric records a numeric attribute from an entity update.
//
// Used for telemetry carried in the attributes map, such as battery level
// or signal strength.
//
// Parameters:
//   - entityID: The entity identifier
//   - metric: The attribute name (e.g., "battery_level")
//   - value: The numeric value
//   - receivedAt: When the update arrived on the wire
func (c *Client) WriteEntityMetric(entityID, metric string, value float64, receivedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_metrics",
		map[string]string{
			"entity_id": entityID,
			"metric":    metric,
		},
		map[string]interface{}{
			"value": value,
		},
		receivedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteReceiverStats records listener throughput counters.
//
// Called periodically so dashboards can graph ingest rate and error rates.
//
// Parameters:
//   - received: Total datagrams received
//   - accepted: Total updates applied to the registry
//   - rejected: Total datagrams rejected by the decoder
func (c *Client) WriteReceiverStats(received, accepted, rejected uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"receiver_stats",
		map[string]string{},
		map[string]interface{}{
			"received": int64(received), //nolint:gosec // counters, wraparound acceptable
			"accepted": int64(accepted),
			"rejected": int64(rejected),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
