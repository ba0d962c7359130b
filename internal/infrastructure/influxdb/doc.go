// Package influxdb provides time-series storage for Entity Receiver.
//
// It wraps the official influxdb-client-go v2 library with receiver-specific
// patterns for connection management, measurement writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series data for:
//   - Numeric entity states (temperature, humidity, power readings)
//   - Numeric attributes carried in updates (battery level, signal strength)
//   - Receiver throughput counters
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "entreceiver",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteEntityState("sensor.garden_temp", "Remote Home Assistant", 21.4, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. InfluxDB is optional: when disabled in config, Connect returns
// ErrDisabled and the receiver runs without telemetry.
package influxdb
