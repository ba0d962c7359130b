// Package receiver implements the UDP ingestion loop for Entity Receiver.
//
// A Listener binds the configured UDP port and reads datagrams in a
// dedicated goroutine. Each read is bounded by a deadline of one poll
// interval, which doubles as the idle tick: Stop closes the socket and the
// loop observes shutdown within one interval even when no traffic arrives.
//
// Datagrams are decoded by the entity package and, on success, applied to
// the registry with the sender's IP attached. Malformed payloads and
// transient receive errors are counted, logged, and dropped; the loop only
// exits on Stop. Bind failures are fatal and surface as ErrBind from Start
// with no socket held.
//
// The listener can be stopped and restarted at runtime; the operator API
// exposes this as an enable/disable switch.
package receiver
