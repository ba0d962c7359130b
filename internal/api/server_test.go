package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haedwin/entity-receiver/internal/entity"
	"github.com/haedwin/entity-receiver/internal/infrastructure/config"
	"github.com/haedwin/entity-receiver/internal/infrastructure/logging"
	"github.com/haedwin/entity-receiver/internal/receiver"
)

// testServer creates a Server with a real registry and an unstarted listener.
func testServer(t *testing.T) (*Server, *entity.Registry) {
	t.Helper()

	registry := entity.NewRegistry(10 * time.Minute)
	listener := receiver.NewListener(receiver.Config{
		Port:         0,
		PollInterval: 20 * time.Millisecond,
	}, registry)
	t.Cleanup(listener.Stop)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   log,
		Registry: registry,
		Listener: listener,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry
}

// doRequest executes a request against the server's router.
func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func seedEntity(reg *entity.Registry, id, state, broadcaster string) {
	reg.ApplyUpdate(entity.Update{
		EntityID:        id,
		State:           state,
		Attributes:      entity.Attributes{},
		BroadcasterName: broadcaster,
		SourceIP:        "192.168.1.50",
	})
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestHandleListEntities(t *testing.T) {
	srv, reg := testServer(t)
	seedEntity(reg, "sensor.a", "1", "Remote Home Assistant")
	seedEntity(reg, "sensor.b", "2", "Cabin HA")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entities []entity.Record `json:"entities"`
		Count    int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestHandleListEntitiesBroadcasterFilter(t *testing.T) {
	srv, reg := testServer(t)
	seedEntity(reg, "sensor.a", "1", "Remote Home Assistant")
	seedEntity(reg, "sensor.b", "2", "Cabin HA")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities?broadcaster=Cabin+HA", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entities []entity.Record `json:"entities"`
		Count    int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if body.Count != 1 || body.Entities[0].EntityID != "sensor.b" {
		t.Errorf("filtered result = %+v", body)
	}
}

func TestHandleGetEntity(t *testing.T) {
	srv, reg := testServer(t)
	seedEntity(reg, "sensor.garden_temp", "21.4", "Remote Home Assistant")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities/sensor.garden_temp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got entity.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if got.State != "21.4" {
		t.Errorf("State = %q", got.State)
	}
	if got.SourceIP != "192.168.1.50" {
		t.Errorf("SourceIP = %q", got.SourceIP)
	}
}

func TestHandleGetEntityNotFound(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities/sensor.ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeleteEntity(t *testing.T) {
	srv, reg := testServer(t)
	seedEntity(reg, "sensor.a", "1", "Remote Home Assistant")

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/entities/sensor.a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reg.Count() != 0 {
		t.Error("entity not removed from registry")
	}

	// Deleting again is a 404
	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/entities/sensor.a", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleEntityStats(t *testing.T) {
	srv, reg := testServer(t)
	seedEntity(reg, "sensor.a", "1", "Remote Home Assistant")
	seedEntity(reg, "sensor.b", "2", "Remote Home Assistant")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats entity.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if stats.TotalEntities != 2 {
		t.Errorf("TotalEntities = %d, want 2", stats.TotalEntities)
	}
	if stats.ByBroadcaster["Remote Home Assistant"] != 2 {
		t.Errorf("ByBroadcaster = %v", stats.ByBroadcaster)
	}
}

func TestHandleEntityHistoryDisabled(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities/sensor.a/history", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history disabled", rec.Code)
	}
}

func TestHandleListenerSwitch(t *testing.T) {
	srv, _ := testServer(t)

	// Initially stopped
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/listener", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status listenerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if status.Enabled {
		t.Error("listener reported enabled before start")
	}

	// Enable
	rec = doRequest(t, srv, http.MethodPut, "/api/v1/listener", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if !status.Enabled {
		t.Error("listener not enabled after PUT")
	}

	// Disable
	rec = doRequest(t, srv, http.MethodPut, "/api/v1/listener", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if status.Enabled {
		t.Error("listener still enabled after PUT disable")
	}
}

func TestHandleSetListenerValidation(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `{{{`},
		{name: "missing enabled", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/v1/listener", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestEntityChannel(t *testing.T) {
	if got := EntityChannel("created"); got != "entity.created" {
		t.Errorf("EntityChannel() = %q", got)
	}
}
