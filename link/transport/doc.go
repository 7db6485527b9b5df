// Package transport defines the datagram transport abstraction of the reliable
// link. It provides a common contract that all transport implementations must
// fulfill, so the protocol layer never depends on a concrete socket type.
//
// The package focuses on:
//   - A minimal connectionless contract: bind, send to a fixed peer, receive from anyone
//   - A close signal that unblocks a pending receive (ErrClosed)
//   - Enabling multiple transport implementations (UDP, Unix datagram sockets, in-memory)
//
// Key Components:
//
//   - IDatagramTransport: Interface all transports implement.
//
//   - base: Protocol agnostic implementation on top of net.PacketConn, extended
//     with connectors for udp and unixgram.
//
//   - mem: In-process network with configurable loss, duplication and
//     reordering, used for tests and simulations.
//
//   - testing: Conformance suite every transport implementation runs.
package transport
