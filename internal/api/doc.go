// Package api provides the HTTP REST API and WebSocket server for Entity
// Receiver.
//
// It exposes the live entity registry, per-entity state history, the
// listener enable/disable switch, and a WebSocket feed of lifecycle events
// (entity.created, entity.updated, entity.removed, listener.status).
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The API is intended for a trusted LAN, matching the UDP ingest path; it
// carries no authentication layer.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
