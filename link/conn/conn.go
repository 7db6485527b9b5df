package conn

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/ValentinKolb/rlink/lib/queue"
	"github.com/ValentinKolb/rlink/link/codec"
	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/serializer"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerLink)

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// State is the lifecycle state of a connection
type State int32

const (
	StateIdle      State = iota // created, not started yet
	StateListening              // bound, receive loop and actor running
	StateClosed                 // stopped, cannot be restarted
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Actor Events
// --------------------------------------------------------------------------

type eventKind uint8

const (
	evSend    eventKind = iota // application payload to send
	evInbound                  // frames decoded from one datagram
	evError                    // error observed outside the actor
)

// event is a message in the actor's mailbox
type event struct {
	kind    eventKind
	payload string
	frames  []common.Frame
	errs    []error
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection is a reliable, ordered link to a single peer over a datagram
// transport. All protocol state is owned by one actor goroutine, the receive
// loop and the application talk to it through a mailbox.
type Connection struct {
	config    common.ConnConfig
	transport transport.IDatagramTransport
	codec     *codec.Codec

	state     atomic.Int32
	lifecycle sync.Mutex // Serializes Start and Stop

	mailbox *queue.Mailbox[event]
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closing sync.Once

	// owned by the actor goroutine
	seq *sequencer
	sup *supervisor

	inbox   inbox
	metrics *connMetrics

	hookMu       sync.RWMutex
	onDisconnect func()
	onError      func(error)
}

// NewConnection creates a new connection that is not started yet.
// It takes a config, transport and serializer as parameters.
//
// Usage:
//
//	c, err := conn.NewConnection(
//		common.DefaultConnConfig(),
//		udp.NewUDPTransport(),
//		serializer.NewJSONSerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//
//	if err := c.Start("0.0.0.0:11000", "127.0.0.1:3000"); err != nil {
//		panic(err)
//	}
//	defer c.Stop()
func NewConnection(
	config common.ConnConfig,
	transport transport.IDatagramTransport,
	serializer serializer.IFrameSerializer,
) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	c := &Connection{
		config:    config,
		transport: transport,
		codec:     codec.NewCodec(serializer, config.ProtocolTag, config.Delimiter),
		stopCh:    make(chan struct{}),
		seq:       newSequencer(config.ProtocolTag),
		metrics:   newConnMetrics(config.Name),
	}
	c.publishGauges()

	Logger.Debugf("Created connection %s (%s transport, %s serializer)", config.Name, transport.GetName(), serializer.GetName())
	return c, nil
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Start binds localEndpoint and starts the receive loop and the timeout
// supervision. Every frame is sent to remoteEndpoint. A bind failure is
// returned as an ErrKindBind error and leaves the connection idle.
func (c *Connection) Start(localEndpoint, remoteEndpoint string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if State(c.state.Load()) != StateIdle {
		return common.ErrAlreadyStarted
	}

	tc := c.config.Transport
	tc.LocalEndpoint = localEndpoint
	tc.RemoteEndpoint = remoteEndpoint

	if err := c.transport.Open(tc); err != nil {
		Logger.Errorf("Connection %s failed to bind %s: %v", c.config.Name, localEndpoint, err)
		return common.NewError(common.ErrKindBind, "start", err)
	}
	c.config.Transport = tc

	c.mailbox = queue.NewMailbox[event]()
	c.sup = newSupervisor(c.config.ProbeInterval, c.config.MaxProbes)

	c.wg.Add(2)
	go c.run()
	go c.receiveLoop()

	c.state.Store(int32(StateListening))
	Logger.Infof("Connection %s listening on %s, peer %s", c.config.Name, c.transport.LocalAddr(), remoteEndpoint)
	return nil
}

// Send queues payload for reliable delivery to the peer. It returns before
// the frame is on the wire. The payload must be valid UTF-8, must not contain
// the delimiter and its frame must fit into a single datagram.
func (c *Connection) Send(payload string) error {
	if State(c.state.Load()) != StateListening {
		return common.ErrNotListening
	}
	if err := c.checkPayload(payload); err != nil {
		return err
	}

	if !c.mailbox.Push(event{kind: evSend, payload: payload}) {
		return common.ErrNotListening
	}
	return nil
}

// checkPayload rejects payloads the peer could never decode. Once logged such
// a frame would be resent forever and block every later sequence.
func (c *Connection) checkPayload(payload string) error {
	if strings.IndexByte(payload, c.config.Delimiter) >= 0 {
		return common.NewError(common.ErrKindProtocol, "send", common.ErrDelimiterInPayload)
	}
	if !utf8.ValidString(payload) {
		return common.NewError(common.ErrKindProtocol, "send", common.ErrInvalidUTF8)
	}

	limit := c.maxEncodedSize()
	if len(payload) >= limit {
		return common.NewError(common.ErrKindProtocol, "send",
			fmt.Errorf("%w: payload of %d bytes, limit %d", common.ErrFrameTooLarge, len(payload), limit))
	}

	// widest possible header, both counters at their max
	data, err := c.codec.Encode(common.NewDataFrame(c.config.ProtocolTag, math.MaxUint64, math.MaxUint64, payload))
	if err != nil {
		return err
	}
	if len(data) > limit {
		return common.NewError(common.ErrKindProtocol, "send",
			fmt.Errorf("%w: frame of %d bytes, limit %d", common.ErrFrameTooLarge, len(data), limit))
	}
	return nil
}

// maxEncodedSize is the largest encoded frame, delimiter included, that fits
// into one datagram and passes the receiver's framer
func (c *Connection) maxEncodedSize() int {
	return min(c.config.MaxFrameSize+1, common.MaxDatagramSize, common.DefaultBufferSize)
}

// Poll returns all payloads received in order since the last call and
// empties the inbound queue. It never blocks and returns nil if nothing
// arrived. Payloads received before Stop can still be polled afterwards.
func (c *Connection) Poll() []string {
	return c.inbox.drain()
}

// Stop closes the transport, stops the receive loop and the timeout
// supervision and waits for both to exit. Calling Stop more than once is a
// no-op. Stop must not be called from an OnError hook.
func (c *Connection) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.mailbox == nil {
		// never started
		c.state.Store(int32(StateClosed))
		return nil
	}

	err := c.shutdown()
	c.wg.Wait()
	c.mailbox.Discard()
	return err
}

// OnDisconnect registers fn to be called once when the peer stopped
// answering timeout probes. fn runs on its own goroutine.
func (c *Connection) OnDisconnect(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onDisconnect = fn
}

// OnError registers fn as observability hook. It receives every error the
// protocol absorbs (framing, codec, protocol and transient socket errors) and
// the liveness error preceding the disconnect. fn runs on the connection's
// goroutine and must return quickly.
func (c *Connection) OnError(fn func(error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onError = fn
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the connection counters
func (c *Connection) Stats() Stats {
	return c.metrics.snapshot()
}

// Name returns the configured name of the connection
func (c *Connection) Name() string {
	return c.config.Name
}

// --------------------------------------------------------------------------
// Actor
// --------------------------------------------------------------------------

// shutdown marks the connection closed and unblocks both goroutines. It does
// not wait for them, so the actor itself can call it.
func (c *Connection) shutdown() error {
	var err error
	c.closing.Do(func() {
		c.state.Store(int32(StateClosed))
		err = c.transport.Close()
		close(c.stopCh)
		Logger.Infof("Connection %s closed", c.config.Name)
	})
	return err
}

// run is the actor loop. It is the only goroutine touching the sequencer,
// the retransmission log and the supervisor.
func (c *Connection) run() {
	defer c.wg.Done()
	defer c.sup.stop()

	for {
		select {
		case <-c.stopCh:
			return

		case ev, ok := <-c.mailbox.Recv():
			if !ok {
				return
			}
			c.dispatch(ev)

		case <-c.sup.C():
			if !c.onExpire() {
				return
			}
		}
	}
}

func (c *Connection) dispatch(ev event) {
	switch ev.kind {
	case evSend:
		f := c.seq.data(ev.payload)
		c.transmit(f)

	case evInbound:
		// any datagram proves the peer is alive, even if nothing in it decodes
		c.sup.reset()

		for _, err := range ev.errs {
			c.metrics.inc(metricFramesDropped, 1)
			c.report(err)
		}

		for _, f := range ev.frames {
			c.metrics.inc(metricFramesReceived, 1)
			Logger.Debugf("Connection %s received %s", c.config.Name, f)
			c.apply(c.seq.handle(f))
		}

	case evError:
		for _, err := range ev.errs {
			c.report(err)
		}
	}

	c.publishGauges()
}

// apply carries out the outcome of a handled frame
func (c *Connection) apply(out outcome) {
	if out.err != nil {
		c.report(out.err)
	}
	if out.dropped {
		c.metrics.inc(metricFramesDropped, 1)
	}

	for _, f := range out.transmit {
		switch f.Kind {
		case common.FrameData:
			c.metrics.inc(metricFramesResent, 1)
		case common.FrameResendRequest:
			c.metrics.inc(metricResendRequests, 1)
			Logger.Debugf("Connection %s detected gap, requesting resend after %d", c.config.Name, f.Ack)
		}
		c.transmit(f)
	}

	for _, d := range out.deliver {
		if c.inbox.push(d.sequence, d.payload) {
			c.metrics.inc(metricDelivered, 1)
		}
	}
}

// onExpire handles a silent probe interval. It returns false if the actor has to stop.
func (c *Connection) onExpire() bool {
	probe, disconnect := c.sup.expire()

	if probe {
		c.metrics.inc(metricProbesSent, 1)
		Logger.Debugf("Connection %s silent for %s, sending timeout probe %d/%d", c.config.Name, c.config.ProbeInterval, c.sup.misses, c.config.MaxProbes)
		c.transmit(c.seq.probe())
	}

	if !disconnect {
		return true
	}

	Logger.Warningf("Connection %s: peer did not answer %d probes, disconnected", c.config.Name, c.config.MaxProbes)
	c.report(common.NewError(common.ErrKindLiveness, "probe", common.ErrPeerUnresponsive))

	c.hookMu.RLock()
	fn := c.onDisconnect
	c.hookMu.RUnlock()
	if fn != nil {
		go fn()
	}

	if c.config.CloseOnDisconnect {
		if err := c.shutdown(); err != nil {
			Logger.Warningf("Connection %s failed to close transport: %v", c.config.Name, err)
		}
		return false
	}
	return true
}

// transmit encodes f and hands it to the transport
func (c *Connection) transmit(f common.Frame) {
	data, err := c.codec.Encode(f)
	if err != nil {
		c.report(err)
		return
	}

	if err := c.transport.Send(data); err != nil {
		if State(c.state.Load()) == StateClosed {
			return
		}
		c.report(common.NewError(common.ErrKindTransient, "send", err))
		return
	}

	c.metrics.inc(metricFramesSent, 1)
	Logger.Debugf("Connection %s sent %s", c.config.Name, f)
}

// report counts, logs and forwards an absorbed error to the observability hook
func (c *Connection) report(err error) {
	kind := common.KindOf(err)
	c.metrics.error(kind)

	switch kind {
	case common.ErrKindTransient:
		Logger.Warningf("Connection %s: %v", c.config.Name, err)
	case common.ErrKindLiveness:
		// logged by the supervisor
	default:
		Logger.Debugf("Connection %s dropped frame: %v", c.config.Name, err)
	}

	c.hookMu.RLock()
	fn := c.onError
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// publishGauges copies the actor owned counters into the stats registry
func (c *Connection) publishGauges() {
	c.metrics.gauge(metricUnacked, int64(c.seq.log.len()))
	c.metrics.gauge(metricLocalAck, int64(c.seq.localAck))
	c.metrics.gauge(metricNextSeq, int64(c.seq.nextSeq))
}
