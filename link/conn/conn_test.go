package conn

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rlink/link/codec"
	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/serializer"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/ValentinKolb/rlink/link/transport/mem"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func testConfig(name string) common.ConnConfig {
	config := common.DefaultConnConfig()
	config.Name = name
	config.ProbeInterval = 50 * time.Millisecond
	config.MaxProbes = 5
	return config
}

func newTestConn(t *testing.T, network *mem.Network, config common.ConnConfig) *Connection {
	t.Helper()
	return newTestConnOver(t, network.NewTransport(), config, serializer.NewJSONSerializer())
}

func newTestConnOver(t *testing.T, tr transport.IDatagramTransport, config common.ConnConfig, s serializer.IFrameSerializer) *Connection {
	t.Helper()

	c, err := NewConnection(config, tr, s)
	if err != nil {
		t.Fatalf("NewConnection failed: %v", err)
	}
	t.Cleanup(func() {
		c.Stop()
	})
	return c
}

// startPair starts two connections talking to each other
func startPair(t *testing.T, network *mem.Network, configA, configB common.ConnConfig) (a, b *Connection) {
	t.Helper()

	a = newTestConn(t, network, configA)
	b = newTestConn(t, network, configB)

	if err := a.Start(configA.Name, configB.Name); err != nil {
		t.Fatalf("Start %s failed: %v", configA.Name, err)
	}
	if err := b.Start(configB.Name, configA.Name); err != nil {
		t.Fatalf("Start %s failed: %v", configB.Name, err)
	}
	return a, b
}

// collect polls c until count payloads arrived or the timeout expires
func collect(t *testing.T, c *Connection, count int, timeout time.Duration) []string {
	t.Helper()

	var got []string
	deadline := time.Now().Add(timeout)
	for len(got) < count {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout: received %d of %d payloads (%s)", len(got), count, c.Stats())
		}
		got = append(got, c.Poll()...)
		time.Sleep(5 * time.Millisecond)
	}
	return got
}

func expectPayloads(t *testing.T, got, expected []string) {
	t.Helper()

	if len(got) != len(expected) {
		t.Fatalf("Expected %d payloads %v, got %d %v", len(expected), expected, len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Expected %q at position %d, got %q", expected[i], i, got[i])
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestConnectionExchange(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	a, b := startPair(t, network, testConfig("a"), testConfig("b"))

	if a.State() != StateListening {
		t.Fatalf("Expected listening state, got %s", a.State())
	}

	for _, p := range []string{"ENTER", `MOVE {"x":1}`, "EXIT"} {
		if err := a.Send(p); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	expectPayloads(t, collect(t, b, 3, 2*time.Second), []string{"ENTER", `MOVE {"x":1}`, "EXIT"})

	if err := b.Send("WELCOME"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	expectPayloads(t, collect(t, a, 1, 2*time.Second), []string{"WELCOME"})

	// the reply acknowledged everything a sent
	deadline := time.Now().Add(2 * time.Second)
	for a.Stats().Unacked != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected empty retransmission log, stats: %s", a.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestConnectionRepairsGap loses the second of three payloads and expects
// the third one to trigger the resend of both
func TestConnectionRepairsGap(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	a, b := startPair(t, network, testConfig("a"), testConfig("b"))

	a.Send("A")
	expectPayloads(t, collect(t, b, 1, 2*time.Second), []string{"A"})

	network.SetPartitioned(true)
	a.Send("B")
	time.Sleep(20 * time.Millisecond)
	network.SetPartitioned(false)

	a.Send("C")
	expectPayloads(t, collect(t, b, 2, 2*time.Second), []string{"B", "C"})

	stats := b.Stats()
	if stats.ResendRequests < 1 {
		t.Errorf("Expected at least one resend request, stats: %s", stats)
	}
	if stats.LocalAck != 3 {
		t.Errorf("Expected local ack 3, got %d", stats.LocalAck)
	}
}

// TestConnectionLossyNetwork sends over a network that loses, duplicates
// and reorders datagrams. Once the network heals a final payload reveals
// any remaining gap.
func TestConnectionLossyNetwork(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{
		LossRate:      0.1,
		DuplicateRate: 0.05,
		ReorderRate:   0.1,
		Seed:          7,
	})
	a, b := startPair(t, network, testConfig("a"), testConfig("b"))

	const count = 50
	var expected []string
	for i := 0; i < count; i++ {
		p := fmt.Sprintf("payload-%d", i)
		expected = append(expected, p)
		if err := a.Send(p); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	network.SetLossRate(0)
	a.Send("done")
	expected = append(expected, "done")

	expectPayloads(t, collect(t, b, len(expected), 20*time.Second), expected)
}

func TestConnectionDisconnect(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})

	config := testConfig("lonely")
	config.ProbeInterval = 10 * time.Millisecond
	c := newTestConn(t, network, config)

	var disconnects atomic.Int32
	fired := make(chan struct{}, 1)
	c.OnDisconnect(func() {
		disconnects.Add(1)
		fired <- struct{}{}
	})

	var livenessErrors atomic.Int32
	c.OnError(func(err error) {
		if common.IsKind(err, common.ErrKindLiveness) {
			livenessErrors.Add(1)
		}
	})

	// nobody is bound at the remote endpoint
	if err := c.Start("lonely", "nobody"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect notification did not fire")
	}

	// give a second notification the chance to show up
	time.Sleep(100 * time.Millisecond)

	if n := disconnects.Load(); n != 1 {
		t.Errorf("Expected exactly one disconnect notification, got %d", n)
	}
	if n := livenessErrors.Load(); n != 1 {
		t.Errorf("Expected exactly one liveness error, got %d", n)
	}
	if probes := c.Stats().ProbesSent; probes != 5 {
		t.Errorf("Expected 5 probes, got %d", probes)
	}

	// the socket stays open, the application decides
	if c.State() != StateListening {
		t.Errorf("Expected connection to stay listening, got %s", c.State())
	}
}

func TestConnectionCloseOnDisconnect(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})

	config := testConfig("lonely")
	config.ProbeInterval = 10 * time.Millisecond
	config.CloseOnDisconnect = true
	c := newTestConn(t, network, config)

	if err := c.Start("lonely", "nobody"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateClosed {
		if time.Now().After(deadline) {
			t.Fatalf("Expected connection to close after disconnect, state %s", c.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Send("late"); !errors.Is(err, common.ErrNotListening) {
		t.Errorf("Expected ErrNotListening after close, got %v", err)
	}

	// Stop still waits for the goroutines
	if err := c.Stop(); err != nil {
		t.Errorf("Stop after disconnect failed: %v", err)
	}
	if network.Endpoints() != 0 {
		t.Errorf("Expected endpoint to be released")
	}
}

func TestConnectionTrafficKeepsAlive(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})

	configA, configB := testConfig("a"), testConfig("b")
	configA.ProbeInterval = 20 * time.Millisecond
	configB.ProbeInterval = time.Hour

	a, b := startPair(t, network, configA, configB)

	var disconnected atomic.Bool
	a.OnDisconnect(func() {
		disconnected.Store(true)
	})

	// b talks more often than a's probe interval
	for i := 0; i < 20; i++ {
		b.Send(fmt.Sprintf("tick-%d", i))
		time.Sleep(5 * time.Millisecond)
	}

	if disconnected.Load() {
		t.Errorf("Expected traffic to keep the connection alive")
	}
	if probes := a.Stats().ProbesSent; probes > 1 {
		t.Errorf("Expected at most one probe while traffic flows, got %d", probes)
	}
}

func TestConnectionBindFailure(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})

	first := newTestConn(t, network, testConfig("first"))
	if err := first.Start("taken", "peer"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second := newTestConn(t, network, testConfig("second"))
	err := second.Start("taken", "peer")
	if !common.IsKind(err, common.ErrKindBind) {
		t.Fatalf("Expected bind error, got %v", err)
	}
	if !errors.Is(err, mem.ErrAddressInUse) {
		t.Errorf("Expected bind error to wrap the transport error, got %v", err)
	}
	if second.State() != StateIdle {
		t.Errorf("Expected connection to stay idle after bind failure, got %s", second.State())
	}
}

func TestConnectionSendValidation(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	c := newTestConn(t, network, testConfig("c"))

	if err := c.Send("early"); !errors.Is(err, common.ErrNotListening) {
		t.Errorf("Expected ErrNotListening before Start, got %v", err)
	}

	if err := c.Start("c", "peer"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start("c", "peer"); !errors.Is(err, common.ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}

	tests := []struct {
		name     string
		payload  string
		expected error
	}{
		{"delimiter", "a|b", common.ErrDelimiterInPayload},
		{"invalid utf-8", "bad\xffbyte", common.ErrInvalidUTF8},
		{"larger than a datagram", strings.Repeat("x", 100*1024), common.ErrFrameTooLarge},
		{"just below a datagram", strings.Repeat("x", common.MaxDatagramSize-1), common.ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Send(tt.payload)
			if !errors.Is(err, tt.expected) || !common.IsKind(err, common.ErrKindProtocol) {
				t.Errorf("Expected protocol error wrapping %v, got %v", tt.expected, err)
			}
		})
	}

	if stats := c.Stats(); stats.NextSequence != 1 {
		t.Errorf("Expected rejected payloads not to consume a sequence, stats: %s", stats)
	}
}

// TestConnectionRejectedPayloadsKeepLinkUsable checks that payloads the peer
// could not decode never enter the retransmission log, for every serializer
func TestConnectionRejectedPayloadsKeepLinkUsable(t *testing.T) {
	for _, name := range []string{"json", "text"} {
		t.Run(name, func(t *testing.T) {
			network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})

			configA, configB := testConfig("a"), testConfig("b")
			configA.MaxFrameSize = 256
			configB.MaxFrameSize = 256

			s, err := serializer.New(name)
			if err != nil {
				t.Fatalf("serializer.New failed: %v", err)
			}
			a := newTestConnOver(t, network.NewTransport(), configA, s)
			b := newTestConnOver(t, network.NewTransport(), configB, s)
			if err := a.Start("a", "b"); err != nil {
				t.Fatalf("Start a failed: %v", err)
			}
			if err := b.Start("b", "a"); err != nil {
				t.Fatalf("Start b failed: %v", err)
			}

			if err := a.Send(strings.Repeat("x", 300)); !errors.Is(err, common.ErrFrameTooLarge) {
				t.Errorf("Expected ErrFrameTooLarge, got %v", err)
			}
			if err := a.Send("bad\xffbyte"); !errors.Is(err, common.ErrInvalidUTF8) {
				t.Errorf("Expected ErrInvalidUTF8, got %v", err)
			}

			fits := strings.Repeat("y", 100)
			expected := []string{"before", fits, "héllo wörld", "after"}
			for _, payload := range expected {
				if err := a.Send(payload); err != nil {
					t.Fatalf("Send %q failed: %v", payload, err)
				}
			}

			expectPayloads(t, collect(t, b, len(expected), 5*time.Second), expected)

			if stats := b.Stats(); stats.ResendRequests != 0 {
				t.Errorf("Expected no resend requests on a clean network, stats: %s", stats)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Receive errors
// --------------------------------------------------------------------------

var errFlaky = errors.New("flaky socket")

// flakyTransport fails the first receives, then returns one datagram and
// blocks until closed
type flakyTransport struct {
	failures int
	datagram []byte

	mu    sync.Mutex
	calls int

	closed    chan struct{}
	closeOnce sync.Once
}

func newFlakyTransport(failures int, datagram []byte) *flakyTransport {
	return &flakyTransport{
		failures: failures,
		datagram: datagram,
		closed:   make(chan struct{}),
	}
}

func (f *flakyTransport) Open(common.TransportConfig) error { return nil }

func (f *flakyTransport) Send([]byte) error {
	select {
	case <-f.closed:
		return transport.ErrClosed
	default:
		return nil
	}
}

func (f *flakyTransport) Receive(buf []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, transport.ErrClosed
	default:
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	switch {
	case call <= f.failures:
		return 0, errFlaky
	case call == f.failures+1:
		return copy(buf, f.datagram), nil
	}

	<-f.closed
	return 0, transport.ErrClosed
}

func (f *flakyTransport) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
	})
	return nil
}

func (f *flakyTransport) LocalAddr() string { return "flaky" }

func (f *flakyTransport) GetName() string { return "flaky" }

func TestConnectionSurvivesReceiveErrors(t *testing.T) {
	const failures = 3

	s := serializer.NewJSONSerializer()
	datagram, err := codec.NewCodec(s, common.DefaultProtocolTag, common.DefaultDelimiter).
		Encode(common.NewDataFrame(common.DefaultProtocolTag, 1, 0, "survived"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tr := newFlakyTransport(failures, datagram)
	c := newTestConnOver(t, tr, testConfig("c"), s)

	transient := make(chan error, failures)
	c.OnError(func(err error) {
		if !common.IsKind(err, common.ErrKindTransient) {
			return
		}
		select {
		case transient <- err:
		default:
		}
	})

	if err := c.Start("c", "peer"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < failures; i++ {
		select {
		case err := <-transient:
			if !errors.Is(err, errFlaky) {
				t.Errorf("Expected transient error to wrap the socket error, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout: got %d of %d transient errors", i, failures)
		}
	}

	expectPayloads(t, collect(t, c, 1, 2*time.Second), []string{"survived"})

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not end the receive loop")
	}

	if c.State() != StateClosed {
		t.Errorf("Expected closed state, got %s", c.State())
	}
}

func TestConnectionReportsInvalidFrames(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	c := newTestConn(t, network, testConfig("c"))

	errs := make(chan error, 8)
	c.OnError(func(err error) {
		errs <- err
	})

	if err := c.Start("c", "intruder"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	intruder := network.NewTransport()
	if err := intruder.Open(common.TransportConfig{LocalEndpoint: "intruder", RemoteEndpoint: "c"}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer intruder.Close()

	intruder.Send([]byte(`not json|{"protocolId":"OTHER","sequence":1,"ack":0,"type":"data","packageData":"x"}|`))

	var kinds []common.ErrorKind
	for len(kinds) < 2 {
		select {
		case err := <-errs:
			kinds = append(kinds, common.KindOf(err))
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected two reported errors, got %v", kinds)
		}
	}

	for _, k := range kinds {
		if k != common.ErrKindCodec {
			t.Errorf("Expected codec errors, got %s", k)
		}
	}
	if got := c.Poll(); len(got) != 0 {
		t.Errorf("Expected nothing to be delivered, got %v", got)
	}
	if dropped := c.Stats().FramesDropped; dropped != 2 {
		t.Errorf("Expected 2 dropped frames, got %d", dropped)
	}
}

func TestConnectionStop(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	a, b := startPair(t, network, testConfig("a"), testConfig("b"))

	a.Send("before stop")
	expected := []string{"before stop"}

	// wait until the payload sits in b's inbound queue
	deadline := time.Now().Add(2 * time.Second)
	for b.Stats().Delivered != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Payload was not delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Stop()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if b.State() != StateClosed {
		t.Errorf("Expected closed state, got %s", b.State())
	}
	if err := b.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
	if err := b.Send("after stop"); !errors.Is(err, common.ErrNotListening) {
		t.Errorf("Expected ErrNotListening after Stop, got %v", err)
	}

	// delivered payloads survive the stop
	expectPayloads(t, b.Poll(), expected)

	// a stopped connection can not be started again
	if err := b.Start("b", "a"); !errors.Is(err, common.ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted after Stop, got %v", err)
	}
}

func TestConnectionStopIdle(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{Seed: 1})
	c := newTestConn(t, network, testConfig("idle"))

	if err := c.Stop(); err != nil {
		t.Errorf("Stop of idle connection failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Second Stop of idle connection failed: %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("Expected closed state, got %s", c.State())
	}
}

func TestNewConnectionValidatesConfig(t *testing.T) {
	network := mem.NewNetwork(mem.NetworkConfig{})

	config := testConfig("bad")
	config.MaxProbes = 0

	if _, err := NewConnection(config, network.NewTransport(), serializer.NewJSONSerializer()); err == nil {
		t.Errorf("Expected invalid config to be rejected")
	}
}
