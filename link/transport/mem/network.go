package mem

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// ErrAddressInUse is returned by Open if another transport is bound to the endpoint
var ErrAddressInUse = errors.New("mem: address already in use")

// DefaultQueueSize is the number of datagrams an endpoint buffers before dropping
const DefaultQueueSize = 1024

// --------------------------------------------------------------------------
// Network
// --------------------------------------------------------------------------

// NetworkConfig describes the faults the in-memory network injects.
// All rates are probabilities in [0, 1] applied per datagram.
type NetworkConfig struct {
	LossRate      float64 // datagram is dropped
	DuplicateRate float64 // datagram is delivered twice
	ReorderRate   float64 // datagram is held back until the next one to the same endpoint
	Seed          int64   // seed of the fault generator, 0 picks a random seed
	QueueSize     int     // per endpoint receive queue, 0 means DefaultQueueSize
}

// Network is an in-memory datagram network. Transports created by the same
// network can reach each other by endpoint name.
type Network struct {
	config      NetworkConfig
	endpoints   *xsync.MapOf[string, *endpoint]
	partitioned atomic.Bool

	mu   sync.Mutex // Protects rng, held and the rates
	rng  *rand.Rand
	held map[string][]byte // datagrams held back for reordering, by destination

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewNetwork creates a new in-memory network with the given fault model
func NewNetwork(config NetworkConfig) *Network {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Network{
		config:    config,
		endpoints: xsync.NewMapOf[string, *endpoint](),
		rng:       rand.New(rand.NewSource(seed)),
		held:      make(map[string][]byte),
	}
}

// NewTransport creates a new unbound transport attached to this network
func (n *Network) NewTransport() transport.IDatagramTransport {
	return &memTransport{network: n}
}

// SetPartitioned drops every datagram while partitioned is true
func (n *Network) SetPartitioned(partitioned bool) {
	n.partitioned.Store(partitioned)
}

// SetLossRate changes the loss rate of the network
func (n *Network) SetLossRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.config.LossRate = rate
}

// Stats returns the number of delivered and dropped datagrams
func (n *Network) Stats() (delivered, dropped uint64) {
	return n.delivered.Load(), n.dropped.Load()
}

// Endpoints returns the number of bound endpoints
func (n *Network) Endpoints() int {
	return n.endpoints.Size()
}

// send applies the fault model and hands the datagram to the destination
func (n *Network) send(to string, data []byte) {
	if n.partitioned.Load() {
		n.dropped.Add(1)
		return
	}

	n.mu.Lock()
	if n.rng.Float64() < n.config.LossRate {
		n.mu.Unlock()
		n.dropped.Add(1)
		return
	}

	out := [][]byte{data}
	if n.rng.Float64() < n.config.DuplicateRate {
		out = append(out, data)
	}

	if held, ok := n.held[to]; ok {
		// release the held datagram after the current one
		delete(n.held, to)
		out = append(out, held)
	} else if n.rng.Float64() < n.config.ReorderRate {
		n.held[to] = data
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	for _, d := range out {
		n.deliver(to, d)
	}
}

func (n *Network) deliver(to string, data []byte) {
	ep, ok := n.endpoints.Load(to)
	if !ok {
		n.dropped.Add(1) // nobody listening
		return
	}

	select {
	case ep.inbox <- data:
		n.delivered.Add(1)
	default:
		n.dropped.Add(1) // receive queue full
	}
}

// --------------------------------------------------------------------------
// Endpoint
// --------------------------------------------------------------------------

type endpoint struct {
	inbox     chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (e *endpoint) close() {
	e.closeOnce.Do(func() {
		close(e.closeCh)
	})
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// memTransport implements transport.IDatagramTransport on top of a Network
type memTransport struct {
	network *Network
	local   string
	remote  string
	ep      *endpoint
	mu      sync.RWMutex // Protects local, remote and ep
	closed  atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDatagramTransport)
// --------------------------------------------------------------------------

func (t *memTransport) Open(config common.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ep != nil || t.closed.Load() {
		return fmt.Errorf("mem transport already opened")
	}
	if config.LocalEndpoint == "" {
		return fmt.Errorf("mem transport requires a local endpoint name")
	}

	ep := &endpoint{
		inbox:   make(chan []byte, t.network.config.QueueSize),
		closeCh: make(chan struct{}),
	}
	if _, loaded := t.network.endpoints.LoadOrStore(config.LocalEndpoint, ep); loaded {
		return fmt.Errorf("failed to bind %s: %w", config.LocalEndpoint, ErrAddressInUse)
	}

	t.local = config.LocalEndpoint
	t.remote = config.RemoteEndpoint
	t.ep = ep

	Logger.Debugf("Bound mem endpoint %s, sending to %s", t.local, t.remote)
	return nil
}

func (t *memTransport) Send(data []byte) error {
	t.mu.RLock()
	ep, remote := t.ep, t.remote
	t.mu.RUnlock()

	if ep == nil || t.closed.Load() {
		return transport.ErrClosed
	}

	// the caller may reuse data after Send returns
	buf := make([]byte, len(data))
	copy(buf, data)

	t.network.send(remote, buf)
	return nil
}

func (t *memTransport) Receive(buf []byte) (int, error) {
	t.mu.RLock()
	ep := t.ep
	t.mu.RUnlock()

	if ep == nil || t.closed.Load() {
		return 0, transport.ErrClosed
	}

	select {
	case data := <-ep.inbox:
		return copy(buf, data), nil // truncated like a real datagram socket
	case <-ep.closeCh:
		return 0, transport.ErrClosed
	}
}

func (t *memTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ep == nil {
		return nil
	}

	// only unregister the endpoint if it is still ours
	ep := t.ep
	t.network.endpoints.Compute(t.local, func(old *endpoint, loaded bool) (*endpoint, bool) {
		return old, !loaded || old == ep
	})
	ep.close()

	Logger.Debugf("Closed mem endpoint %s", t.local)
	return nil
}

func (t *memTransport) LocalAddr() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.local
}

func (t *memTransport) GetName() string {
	return "mem"
}
