package receiver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haedwin/entity-receiver/internal/entity"
)

// Logger defines the logging interface used by the Listener.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the subset of the entity registry the listener needs.
type Registry interface {
	ApplyUpdate(u entity.Update) bool
}

// Stats holds listener throughput counters.
type Stats struct {
	Received       uint64 `json:"received"`
	Accepted       uint64 `json:"accepted"`
	DecodeFailures uint64 `json:"decode_failures"`
	ReceiveErrors  uint64 `json:"receive_errors"`
}

// Listener receives entity broadcasts over UDP and applies them to the
// registry.
//
// The receive loop runs in its own goroutine using a read deadline as the
// poll tick, so Stop can interrupt an otherwise idle socket within one
// poll interval. Malformed datagrams and transient receive errors are
// counted and logged; neither stops the loop.
//
// Start and Stop are idempotent and safe for concurrent use.
type Listener struct {
	port         int
	pollInterval time.Duration
	maxDatagram  int
	registry     Registry
	logger       Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	done    chan struct{}
	wg      sync.WaitGroup
	running bool

	received       atomic.Uint64
	accepted       atomic.Uint64
	decodeFailures atomic.Uint64
	receiveErrors  atomic.Uint64
}

// Config holds listener construction parameters.
type Config struct {
	// Port is the UDP port to bind.
	Port int

	// PollInterval is the read deadline per loop iteration.
	PollInterval time.Duration

	// MaxDatagramSize is the receive buffer size per datagram.
	MaxDatagramSize int
}

// NewListener creates a listener for the given registry.
// The socket is not bound until Start is called.
func NewListener(cfg Config, registry Registry) *Listener {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	maxDatagram := cfg.MaxDatagramSize
	if maxDatagram <= 0 {
		maxDatagram = 4096
	}

	return &Listener{
		port:         cfg.Port,
		pollInterval: poll,
		maxDatagram:  maxDatagram,
		registry:     registry,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start binds the UDP socket and launches the receive loop.
//
// Binding on all interfaces; a bind failure wraps ErrBind and leaves no
// socket held. Calling Start on a running listener is a no-op.
//
// Returns:
//   - error: nil on success or if already running, ErrBind on bind failure
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: l.port})
	if err != nil {
		return fmt.Errorf("%w: port %d: %w", ErrBind, l.port, err)
	}

	l.conn = conn
	l.done = make(chan struct{})
	l.running = true

	l.wg.Add(1)
	go l.receiveLoop(conn, l.done)

	l.logger.Info("listener started", "port", l.port, "poll_interval", l.pollInterval)
	return nil
}

// Stop closes the socket and waits for the receive loop to exit.
//
// Bounded by one poll interval. Calling Stop on a stopped listener is a
// no-op.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}

	close(l.done)
	l.conn.Close() //nolint:errcheck // Closing to unblock the read
	l.running = false
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("listener stopped", "port", l.port)
}

// IsRunning reports whether the receive loop is active.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Port returns the configured UDP port.
func (l *Listener) Port() int {
	return l.port
}

// GetStats returns a snapshot of the throughput counters.
func (l *Listener) GetStats() Stats {
	return Stats{
		Received:       l.received.Load(),
		Accepted:       l.accepted.Load(),
		DecodeFailures: l.decodeFailures.Load(),
		ReceiveErrors:  l.receiveErrors.Load(),
	}
}

// receiveLoop reads datagrams until the listener is stopped.
func (l *Listener) receiveLoop(conn *net.UDPConn, done chan struct{}) {
	defer l.wg.Done()

	buf := make([]byte, l.maxDatagram)
	for {
		select {
		case <-done:
			return
		default:
		}

		// The deadline doubles as the idle poll tick
		if err := conn.SetReadDeadline(time.Now().Add(l.pollInterval)); err != nil {
			select {
			case <-done:
				return // Socket closed by Stop
			default:
			}
			// Dead socket without a Stop call. Exit, but leave the
			// running flag accurate so IsRunning does not lie.
			l.receiveErrors.Add(1)
			l.logger.Error("setting read deadline, stopping receive loop", "error", err)
			l.markStopped(conn)
			return
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue // Idle tick, nothing arrived
			}
			select {
			case <-done:
				return // Socket closed by Stop
			default:
			}
			l.receiveErrors.Add(1)
			l.logger.Warn("receive error", "error", err)
			continue
		}

		l.received.Add(1)
		l.handleDatagram(buf[:n], addr)
	}
}

// markStopped clears the running flag when the receive loop exits on
// its own. A later Stop sees running false and returns immediately; a
// later Start rebinds as normal.
func (l *Listener) markStopped(conn *net.UDPConn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	conn.Close() //nolint:errcheck // Already dead, closing to release the port
}

// handleDatagram decodes one datagram and applies it to the registry.
func (l *Listener) handleDatagram(raw []byte, addr *net.UDPAddr) {
	u, err := entity.Decode(raw)
	if err != nil {
		l.decodeFailures.Add(1)
		l.logger.Warn("dropping malformed datagram",
			"source", addr.IP.String(),
			"size", len(raw),
			"error", err,
		)
		return
	}

	u.SourceIP = addr.IP.String()
	l.registry.ApplyUpdate(u)
	l.accepted.Add(1)

	l.logger.Debug("update applied",
		"entity_id", u.EntityID,
		"state", u.State,
		"source", u.SourceIP,
	)
}
