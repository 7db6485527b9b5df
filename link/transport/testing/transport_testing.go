package testing

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/transport"
)

// TransportFactory is a function that creates a new unbound transport
type TransportFactory func() transport.IDatagramTransport

// EndpointFactory returns two distinct, currently unused endpoints
type EndpointFactory func(t testing.TB) (a, b string)

// receiveTimeout bounds every blocking Receive in the suite
const receiveTimeout = 2 * time.Second

// RunTransportTests runs the conformance test suite for a datagram transport.
// The transport under test must not lose datagrams between two local peers.
func RunTransportTests(t *testing.T, name string, factory TransportFactory, endpoints EndpointFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SendReceive", func(t *testing.T) {
			testSendReceive(t, factory, endpoints)
		})

		t.Run("Bidirectional", func(t *testing.T) {
			testBidirectional(t, factory, endpoints)
		})

		t.Run("ManyDatagrams", func(t *testing.T) {
			testManyDatagrams(t, factory, endpoints)
		})

		t.Run("CloseUnblocksReceive", func(t *testing.T) {
			testCloseUnblocksReceive(t, factory, endpoints)
		})

		t.Run("SendAfterClose", func(t *testing.T) {
			testSendAfterClose(t, factory, endpoints)
		})

		t.Run("DoubleBind", func(t *testing.T) {
			testDoubleBind(t, factory, endpoints)
		})

		t.Run("CloseIdempotent", func(t *testing.T) {
			testCloseIdempotent(t, factory, endpoints)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// openPair opens two transports pointing at each other
func openPair(t *testing.T, factory TransportFactory, endpoints EndpointFactory) (a, b transport.IDatagramTransport) {
	t.Helper()

	epA, epB := endpoints(t)
	a, b = factory(), factory()

	if err := a.Open(common.TransportConfig{LocalEndpoint: epA, RemoteEndpoint: epB}); err != nil {
		t.Fatalf("Failed to open transport at %s: %v", epA, err)
	}
	if err := b.Open(common.TransportConfig{LocalEndpoint: epB, RemoteEndpoint: epA}); err != nil {
		a.Close()
		t.Fatalf("Failed to open transport at %s: %v", epB, err)
	}

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

type received struct {
	data []byte
	err  error
}

// receive reads one datagram or fails the test after receiveTimeout
func receive(t *testing.T, tr transport.IDatagramTransport) []byte {
	t.Helper()

	ch := make(chan received, 1)
	go func() {
		buf := make([]byte, common.DefaultBufferSize)
		n, err := tr.Receive(buf)
		ch <- received{data: buf[:n], err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("Receive failed: %v", r.err)
		}
		return r.data
	case <-time.After(receiveTimeout):
		t.Fatalf("Timeout waiting for datagram on %s", tr.LocalAddr())
		return nil
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSendReceive(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	a, b := openPair(t, factory, endpoints)

	msg := []byte(`{"protocolId":"MRQST","sequence":1,"ack":0,"type":"data","packageData":"A"}|`)
	if err := a.Send(msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got := receive(t, b)
	if !bytes.Equal(got, msg) {
		t.Errorf("Expected %q, got %q", msg, got)
	}
}

func testBidirectional(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	a, b := openPair(t, factory, endpoints)

	if err := a.Send([]byte("ping")); err != nil {
		t.Fatalf("Send a->b failed: %v", err)
	}
	if got := receive(t, b); string(got) != "ping" {
		t.Errorf("Expected ping, got %q", got)
	}

	if err := b.Send([]byte("pong")); err != nil {
		t.Fatalf("Send b->a failed: %v", err)
	}
	if got := receive(t, a); string(got) != "pong" {
		t.Errorf("Expected pong, got %q", got)
	}
}

func testManyDatagrams(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	a, b := openPair(t, factory, endpoints)

	const count = 100

	// keep the receive queue drained while sending
	ch := make(chan received, count)
	go func() {
		buf := make([]byte, common.DefaultBufferSize)
		for i := 0; i < count; i++ {
			n, err := b.Receive(buf)
			ch <- received{data: append([]byte(nil), buf[:n]...), err: err}
			if err != nil {
				return
			}
		}
	}()

	for i := 0; i < count; i++ {
		if err := a.Send([]byte(fmt.Sprintf("datagram-%d", i))); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	timeout := time.After(receiveTimeout)
	for len(seen) < count {
		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatalf("Receive failed: %v", r.err)
			}
			seen[string(r.data)] = true
		case <-timeout:
			t.Fatalf("Timeout after receiving %d of %d datagrams", len(seen), count)
		}
	}

	for i := 0; i < count; i++ {
		if !seen[fmt.Sprintf("datagram-%d", i)] {
			t.Errorf("Datagram %d was not received", i)
		}
	}
}

func testCloseUnblocksReceive(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	_, b := openPair(t, factory, endpoints)

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		_, err := b.Receive(buf)
		errCh <- err
	}()

	// give the reader time to block
	time.Sleep(50 * time.Millisecond)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, transport.ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(receiveTimeout):
		t.Fatalf("Receive did not return after Close")
	}
}

func testSendAfterClose(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	a, _ := openPair(t, factory, endpoints)

	a.Close()

	if err := a.Send([]byte("late")); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Expected ErrClosed on Send after Close, got %v", err)
	}

	buf := make([]byte, 16)
	if _, err := a.Receive(buf); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Expected ErrClosed on Receive after Close, got %v", err)
	}
}

func testDoubleBind(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	epA, epB := endpoints(t)

	first := factory()
	if err := first.Open(common.TransportConfig{LocalEndpoint: epA, RemoteEndpoint: epB}); err != nil {
		t.Fatalf("Failed to open first transport: %v", err)
	}
	defer first.Close()

	second := factory()
	if err := second.Open(common.TransportConfig{LocalEndpoint: epA, RemoteEndpoint: epB}); err == nil {
		second.Close()
		t.Errorf("Expected second bind of %s to fail", epA)
	}
}

func testCloseIdempotent(t *testing.T, factory TransportFactory, endpoints EndpointFactory) {
	a, _ := openPair(t, factory, endpoints)

	if err := a.Close(); err != nil {
		t.Errorf("First Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	// closing a transport that was never opened is fine too
	if err := factory().Close(); err != nil {
		t.Errorf("Close of unopened transport failed: %v", err)
	}
}
