package influxdb_test

import (
	"errors"
	"testing"
	"time"

	"github.com/haedwin/entity-receiver/internal/infrastructure/config"
	"github.com/haedwin/entity-receiver/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "entreceiver-dev-token",
		Org:           "entreceiver",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteEntityState(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close() //nolint:errcheck // Test cleanup

	client.WriteEntityState("sensor.garden_temp", "Remote Home Assistant", 21.4, time.Now())
	client.WriteEntityMetric("sensor.garden_temp", "battery_level", 87, time.Now())
	client.WriteReceiverStats(100, 95, 5)

	// Writes are async; flush to surface any immediate failures
	client.Flush()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after writes")
	}
}

func TestWriteWhenDisconnected(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Writes after Close must be silent no-ops
	client.WriteEntityState("sensor.garden_temp", "Remote Home Assistant", 21.4, time.Now())
	client.Flush()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
