// Package entity implements the core domain of Entity Receiver: decoding
// broadcast payloads, the live entity registry, lifecycle notification,
// staleness expiry, and the state-history audit trail.
//
// # Data flow
//
// The UDP listener hands raw datagrams to Decode, which validates the JSON
// payload and produces an Update. Updates are applied to the Registry,
// which keys records by entity_id with last-write-wins semantics and stamps
// LastSeen on every accepted update. A Sweeper removes records that have
// not been refreshed within the staleness timeout.
//
// # Lifecycle events
//
// Every registry mutation fires exactly one Event (created, updated, or
// removed) to all subscribed Notifiers. Dispatch is synchronous under the
// registry lock with per-notifier panic recovery; slow consumers (MQTT,
// history writes) are decoupled through a ChannelNotifier with a bounded
// buffer that drops on overflow rather than blocking ingest.
//
// # Isolation
//
// Records are deep-copied on the way in and out of the registry, so callers
// and subscribers can never alias registry internals. Decode is pure and
// never panics on adversarial input.
//
// # History
//
// HistoryRepository persists every accepted update; the SQLite
// implementation stores rows in the entity_state_history table created by
// the embedded migrations. The registry itself is purely in-memory: restart
// intentionally clears live state, which is rebuilt by the broadcaster's
// next cycle.
package entity
