package receiver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/haedwin/entity-receiver/internal/entity"
)

// captureRegistry records applied updates for assertions.
type captureRegistry struct {
	mu      sync.Mutex
	updates []entity.Update
}

func (c *captureRegistry) ApplyUpdate(u entity.Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return true
}

func (c *captureRegistry) snapshot() []entity.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.Update, len(c.updates))
	copy(out, c.updates)
	return out
}

// startTestListener starts a listener on an ephemeral port and returns it
// with the bound address.
func startTestListener(t *testing.T, reg Registry) (*Listener, *net.UDPAddr) {
	t.Helper()

	l := NewListener(Config{
		Port:         0, // Ephemeral
		PollInterval: 20 * time.Millisecond,
	}, reg)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(l.Stop)

	addr, ok := l.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		t.Fatal("listener local address is not UDP")
	}
	return l, addr
}

// sendDatagram sends one UDP datagram to the listener.
func sendDatagram(t *testing.T, addr *net.UDPAddr, payload string) {
	t.Helper()

	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: addr.Port})
	if err != nil {
		t.Fatalf("dialing listener: %v", err)
	}
	defer conn.Close() //nolint:errcheck // Test cleanup

	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("sending datagram: %v", err)
	}
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestListenerEndToEnd(t *testing.T) {
	reg := &captureRegistry{}
	l, addr := startTestListener(t, reg)

	sendDatagram(t, addr, `{"entity_id":"sensor.garden_temp","state":"21.4","broadcaster_name":"Remote Home Assistant"}`)

	if !waitFor(t, 2*time.Second, func() bool { return len(reg.snapshot()) == 1 }) {
		t.Fatal("update never reached the registry")
	}

	u := reg.snapshot()[0]
	if u.EntityID != "sensor.garden_temp" {
		t.Errorf("EntityID = %q", u.EntityID)
	}
	if u.State != "21.4" {
		t.Errorf("State = %q", u.State)
	}
	if u.SourceIP != "127.0.0.1" {
		t.Errorf("SourceIP = %q, want 127.0.0.1", u.SourceIP)
	}

	stats := l.GetStats()
	if stats.Received != 1 || stats.Accepted != 1 {
		t.Errorf("stats = %+v, want received=1 accepted=1", stats)
	}
}

func TestListenerDropsMalformed(t *testing.T) {
	reg := &captureRegistry{}
	l, addr := startTestListener(t, reg)

	sendDatagram(t, addr, `not json at all`)
	sendDatagram(t, addr, `{"state":"on"}`) // Missing entity_id
	sendDatagram(t, addr, `{"entity_id":"sensor.ok","state":"on"}`)

	if !waitFor(t, 2*time.Second, func() bool { return len(reg.snapshot()) == 1 }) {
		t.Fatal("valid update never reached the registry")
	}

	// The loop must survive malformed input and keep counting
	if !waitFor(t, 2*time.Second, func() bool { return l.GetStats().DecodeFailures == 2 }) {
		t.Errorf("DecodeFailures = %d, want 2", l.GetStats().DecodeFailures)
	}
	if got := reg.snapshot(); len(got) != 1 || got[0].EntityID != "sensor.ok" {
		t.Errorf("registry saw %+v, want only sensor.ok", got)
	}
}

func TestListenerMultipleDatagrams(t *testing.T) {
	reg := &captureRegistry{}
	_, addr := startTestListener(t, reg)

	const n = 20
	for i := 0; i < n; i++ {
		sendDatagram(t, addr, fmt.Sprintf(`{"entity_id":"sensor.%02d","state":"on"}`, i))
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(reg.snapshot()) == n }) {
		t.Errorf("got %d updates, want %d", len(reg.snapshot()), n)
	}
}

func TestStartIdempotent(t *testing.T) {
	reg := &captureRegistry{}
	l, _ := startTestListener(t, reg)

	// Second Start on a running listener is a no-op
	if err := l.Start(); err != nil {
		t.Errorf("Start() on running listener error = %v, want nil", err)
	}
	if !l.IsRunning() {
		t.Error("IsRunning() = false after double Start")
	}
}

func TestStopIdempotentAndReleasesPort(t *testing.T) {
	reg := &captureRegistry{}
	l, addr := startTestListener(t, reg)

	l.Stop()
	if l.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	l.Stop() // Second Stop is a no-op

	// The port must be rebindable after Stop
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: addr.Port})
	if err != nil {
		t.Fatalf("port not released after Stop: %v", err)
	}
	conn.Close() //nolint:errcheck // Test cleanup
}

func TestStartBindFailure(t *testing.T) {
	// Occupy a port, then try to bind a listener to it
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		t.Fatalf("occupying port: %v", err)
	}
	defer conn.Close() //nolint:errcheck // Test cleanup

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		t.Fatal("local address is not UDP")
	}

	reg := &captureRegistry{}
	l := NewListener(Config{Port: addr.Port, PollInterval: 20 * time.Millisecond}, reg)

	err = l.Start()
	if err == nil {
		l.Stop()
		t.Fatal("Start() expected bind error")
	}
	if !errors.Is(err, ErrBind) {
		t.Errorf("Start() error = %v, want ErrBind", err)
	}
	if l.IsRunning() {
		t.Error("IsRunning() = true after bind failure")
	}
}

func TestRestartAfterStop(t *testing.T) {
	reg := &captureRegistry{}
	l, _ := startTestListener(t, reg)

	l.Stop()
	if err := l.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer l.Stop()

	if !l.IsRunning() {
		t.Error("IsRunning() = false after restart")
	}
}

// TestSocketDeathClearsRunning closes the socket out from under the
// receive loop without calling Stop. The loop must notice, exit, and
// clear the running flag so IsRunning stays honest.
func TestSocketDeathClearsRunning(t *testing.T) {
	reg := &captureRegistry{}
	l, _ := startTestListener(t, reg)

	l.conn.Close() //nolint:errcheck // Simulating an external socket failure

	if !waitFor(t, 2*time.Second, func() bool { return !l.IsRunning() }) {
		t.Fatal("IsRunning() still true after socket death")
	}

	if l.GetStats().ReceiveErrors == 0 {
		t.Error("ReceiveErrors = 0, want the failure counted")
	}

	// Stop on the self-stopped listener is a no-op, and a fresh Start
	// rebinds as normal.
	l.Stop()
	if err := l.Start(); err != nil {
		t.Fatalf("restart after socket death error = %v", err)
	}
	defer l.Stop()

	if !l.IsRunning() {
		t.Error("IsRunning() = false after restart")
	}
}
