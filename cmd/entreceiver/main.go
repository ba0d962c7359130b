// Entity Receiver - UDP entity broadcast ingestion service
//
// Entity Receiver listens for JSON entity state broadcasts over UDP,
// maintains an in-memory registry of known entities with staleness
// eviction, and fans lifecycle events out to WebSocket subscribers,
// MQTT, InfluxDB, and a SQLite history store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/haedwin/entity-receiver/migrations"

	"github.com/haedwin/entity-receiver/internal/api"
	"github.com/haedwin/entity-receiver/internal/entity"
	"github.com/haedwin/entity-receiver/internal/infrastructure/config"
	"github.com/haedwin/entity-receiver/internal/infrastructure/database"
	"github.com/haedwin/entity-receiver/internal/infrastructure/influxdb"
	"github.com/haedwin/entity-receiver/internal/infrastructure/logging"
	"github.com/haedwin/entity-receiver/internal/infrastructure/mqtt"
	"github.com/haedwin/entity-receiver/internal/receiver"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// notifierBufferSize is the event buffer for slow consumers (MQTT,
// InfluxDB, history writes). Events beyond this are dropped and counted
// rather than stalling the registry.
const notifierBufferSize = 256

// historyWriteTimeout bounds each history insert so a locked database
// cannot back up the event pipeline indefinitely.
const historyWriteTimeout = 5 * time.Second

// receiverStatsInterval is how often listener throughput counters are
// written to InfluxDB.
const receiverStatsInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Entity Receiver",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// State history store, with a retention task so the table stays
	// bounded on long-running deployments.
	history := entity.NewSQLiteHistoryRepository(db.DB)

	if cfg.Database.HistoryRetentionDays > 0 {
		pruner := entity.NewPruner(history, cfg.GetHistoryRetention(), 0)
		pruner.SetLogger(log)
		go pruner.Run(ctx)
		log.Info("history retention enabled", "days", cfg.Database.HistoryRetentionDays)
	} else {
		log.Info("history retention disabled, table will grow unbounded")
	}

	// Initialise entity registry
	registry := entity.NewRegistry(cfg.GetStalenessTimeout())
	registry.SetLogger(log)
	log.Info("entity registry initialised",
		"staleness_timeout", cfg.GetStalenessTimeout(),
		"broadcaster", cfg.Receiver.BroadcasterName,
	)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// Set up MQTT logging callbacks
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub is shared between the API server and the registry's
	// lifecycle notifications, so it is created here rather than inside
	// the server.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// WebSocket fan-out is synchronous: Broadcast never blocks (slow
	// clients are disconnected by the hub), so it is safe to run inline
	// with registry dispatch.
	registry.Subscribe(entity.NotifierFunc(func(e entity.Event) {
		hub.Broadcast(api.EntityChannel(string(e.Kind)), e.Record)
	}))

	// MQTT, InfluxDB, and history writes go through a buffered channel
	// notifier so broker or disk latency never stalls packet intake.
	sideEffects := entity.NewChannelNotifier(notifierBufferSize,
		makeEventHandler(ctx, log, mqttClient, influxClient, history))
	registry.Subscribe(sideEffects)
	go sideEffects.Run(ctx)

	// UDP listener
	listener := receiver.NewListener(receiver.Config{
		Port:            cfg.Receiver.UDPPort,
		PollInterval:    cfg.GetPollInterval(),
		MaxDatagramSize: cfg.Receiver.MaxDatagramSize,
	}, registry)
	listener.SetLogger(log)

	if cfg.Receiver.Enabled {
		if startErr := listener.Start(); startErr != nil {
			return fmt.Errorf("starting UDP listener: %w", startErr)
		}
		defer func() {
			log.Info("stopping UDP listener")
			listener.Stop()
		}()
		log.Info("UDP listener started",
			"port", cfg.Receiver.UDPPort,
			"poll_interval", cfg.GetPollInterval(),
		)
	} else {
		log.Info("UDP listener disabled at boot (can be enabled via API)")
	}

	// Staleness sweeper
	sweeper := entity.NewSweeper(registry, cfg.GetSweepInterval())
	sweeper.SetLogger(log)
	go sweeper.Run(ctx)
	log.Info("staleness sweeper started", "interval", cfg.GetSweepInterval())

	// Throughput counters feed dashboards regardless of entity traffic.
	if influxClient != nil {
		go publishReceiverStats(ctx, influxClient, listener)
	}

	// API server
	apiServer, err := api.New(api.Deps{
		Config:           cfg.API,
		WS:               cfg.WebSocket,
		Logger:           log,
		Registry:         registry,
		Listener:         listener,
		History:          history,
		ExternalHub:      hub,
		OnListenerChange: makeListenerStatusPublisher(log, mqttClient, cfg.Receiver.UDPPort),
		Version:          version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	if dropped := sideEffects.Dropped(); dropped > 0 {
		log.Warn("lifecycle events dropped during run", "count", dropped)
	}

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. UDP listener (if started)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Entity Receiver stopped")
	return nil
}

// makeEventHandler builds the handler invoked for each entity lifecycle
// event drained from the channel notifier. Any of the sinks may be nil.
func makeEventHandler(ctx context.Context, log *logging.Logger, mqttClient *mqtt.Client, influxClient *influxdb.Client, history entity.HistoryRepository) func(entity.Event) {
	topics := mqtt.Topics{}

	return func(e entity.Event) {
		// MQTT: retained state per entity plus a transient event stream.
		if mqttClient != nil {
			publishEvent(log, mqttClient, topics, e)
		}

		removed := e.Kind == entity.EventRemoved

		// InfluxDB: numeric states only. Non-numeric states (e.g. "on",
		// "unavailable") carry no value worth charting. Numeric attributes
		// (battery level, signal strength) go in as per-entity metrics.
		if influxClient != nil && !removed {
			if value, parseErr := strconv.ParseFloat(e.Record.State, 64); parseErr == nil {
				influxClient.WriteEntityState(e.Record.EntityID, e.Record.BroadcasterName, value, e.Record.LastSeen)
			}
			for name, value := range numericAttributes(e.Record.Attributes) {
				influxClient.WriteEntityMetric(e.Record.EntityID, name, value, e.Record.LastSeen)
			}
		}

		// History: every create and update is persisted.
		if history != nil && !removed {
			writeCtx, cancel := context.WithTimeout(ctx, historyWriteTimeout)
			if recordErr := history.RecordUpdate(writeCtx, e.Record); recordErr != nil {
				log.Error("recording entity history", "entity_id", e.Record.EntityID, "error", recordErr)
			}
			cancel()
		}
	}
}

// publishReceiverStats writes the listener's throughput counters to
// InfluxDB on a fixed tick so ingest and error rates can be graphed.
func publishReceiverStats(ctx context.Context, client *influxdb.Client, listener *receiver.Listener) {
	ticker := time.NewTicker(receiverStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := listener.GetStats()
			client.WriteReceiverStats(stats.Received, stats.Accepted, stats.DecodeFailures)
		}
	}
}

// numericAttributes extracts the float-valued attributes of an update,
// the subset worth recording as metrics.
func numericAttributes(attrs entity.Attributes) map[string]float64 {
	var out map[string]float64
	for name, v := range attrs {
		if value, ok := v.(float64); ok {
			if out == nil {
				out = make(map[string]float64)
			}
			out[name] = value
		}
	}
	return out
}

// makeListenerStatusPublisher returns the callback invoked when the
// listener is switched via the API. Publishes retained system status to
// MQTT so dashboards see the current ingest state. Nil-safe when MQTT
// is disabled.
func makeListenerStatusPublisher(log *logging.Logger, client *mqtt.Client, port int) func(bool) {
	if client == nil {
		return nil
	}
	topics := mqtt.Topics{}

	return func(enabled bool) {
		payload, err := json.Marshal(map[string]any{
			"listener_enabled": enabled,
			"udp_port":         port,
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Error("encoding listener status", "error", err)
			return
		}
		if err := client.PublishRetained(topics.ListenerStatus(), payload); err != nil {
			log.Warn("publishing listener status", "error", err)
		}
	}
}

// publishEvent sends a lifecycle event to MQTT: the retained per-entity
// state topic (cleared on removal) and the per-kind event topic.
func publishEvent(log *logging.Logger, client *mqtt.Client, topics mqtt.Topics, e entity.Event) {
	stateTopic := topics.EntityState(e.Record.EntityID)

	if e.Kind == entity.EventRemoved {
		// Empty retained payload clears the topic on the broker.
		if err := client.PublishRetained(stateTopic, nil); err != nil {
			log.Warn("clearing retained entity state", "topic", stateTopic, "error", err)
		}
	} else {
		payload, err := json.Marshal(e.Record)
		if err != nil {
			log.Error("encoding entity state", "entity_id", e.Record.EntityID, "error", err)
			return
		}
		if err := client.PublishRetained(stateTopic, payload); err != nil {
			log.Warn("publishing entity state", "topic", stateTopic, "error", err)
		}
	}

	event, err := json.Marshal(map[string]any{
		"kind":      string(e.Kind),
		"entity":    e.Record,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Error("encoding lifecycle event", "entity_id", e.Record.EntityID, "error", err)
		return
	}
	if err := client.PublishEvent(topics.EntityEvent(string(e.Kind)), event); err != nil {
		log.Warn("publishing lifecycle event", "kind", e.Kind, "error", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses ENTRECEIVER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ENTRECEIVER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
