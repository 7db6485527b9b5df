// Package base provides a foundation for datagram transports of the reliable
// link, implementing the socket handling independent of the specific network
// protocol (UDP, Unix datagram sockets, etc.). It serves as a base layer that
// is extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic transport on top of net.PacketConn
//   - Binding, resolving and tuning sockets through an injected connector
//   - Mapping "use of closed network connection" to transport.ErrClosed so the
//     receive loop can tell a shutdown apart from a transient failure
//
// Key Components:
//
//   - IConnector: Interface for protocol-specific operations (listen, resolve,
//     socket tuning, cleanup of leftover socket files).
//
//   - datagramTransport: Core implementation. Send writes one datagram to the
//     fixed remote address, Receive blocks on ReadFrom with the caller's buffer,
//     Close closes the socket which unblocks a pending Receive.
//
// Thread Safety:
//
//	Send, Receive and Close may be called concurrently. Exactly one goroutine
//	is expected to call Receive (the connection's receive loop).
package base
