// Package conn implements the reliable link: ordered, de-duplicated and
// gap-repaired delivery of string payloads between two peers over a lossy
// datagram transport, plus liveness detection.
//
// Architecture:
//
// Every Connection runs two goroutines. The receive loop blocks on the
// transport, splits each datagram into frames (framer) and decodes them
// (codec). The actor owns all protocol state and handles, one at a time, the
// events of its mailbox (lib/queue): decoded frames from the receive loop,
// payloads from Send and expiries of the supervisor timer. Because only the
// actor touches the sequence counter, the local ack and the retransmission
// log, compound steps like prune-then-resend need no locks.
//
//	application --Send--> mailbox --> actor --> codec --> transport --> peer
//	peer --> transport --> receive loop (framer, codec) --> mailbox --> actor
//	actor --> inbound queue --Poll--> application
//
// Protocol:
//
//   - Data frames carry a sequence starting at 1 and the piggy-backed
//     cumulative ack of the sender. Sent data frames stay in the
//     retransmission log until the peer acknowledges them.
//   - A data frame with sequence localAck+1 is delivered, older ones are
//     duplicates and dropped. A newer one reveals a gap: it is dropped and
//     one resend request carrying localAck is sent. There is no reorder
//     buffer, the peer replays everything after the requested ack.
//   - A timeout probe is answered by resending the newest logged frame.
//   - After ProbeInterval without any inbound datagram a probe is sent.
//     When MaxProbes consecutive probes stay unanswered the OnDisconnect hook
//     fires once and probing stops. The socket stays open unless
//     CloseOnDisconnect is set.
//
// Errors:
//
// Only bind failures are returned (from Start). Framing, codec, protocol and
// transient socket errors are absorbed: the frame is dropped and the error is
// logged, counted and passed to the OnError hook. Closing the transport
// through Stop is not an error.
//
// Metrics:
//
// Stats returns a snapshot of the per-connection counters (go-metrics
// registry). The same counters are exported process wide in Prometheus text
// format by WriteMetrics (VictoriaMetrics).
package conn
