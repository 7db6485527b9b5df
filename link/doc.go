// Package link provides reliable, ordered message delivery between two peers
// on top of connectionless datagrams that may be lost, duplicated or
// reordered.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures shared by all layers, including the Frame,
//     the connection configuration, the classified LinkError and logging.
//
//   - framer: Splits the received byte stream into delimited frame strings,
//     independent of how the transport chunks the stream.
//
//   - serializer: Frame serialization with two text formats (JSON, compact text).
//
//   - codec: Combines a serializer with the protocol tag check and the frame
//     delimiter.
//
//   - transport: Datagram transport abstraction with pluggable implementations
//     (UDP, Unix datagram sockets, in-memory network).
//
//   - conn: The reliable connection. Sequencing, acknowledgement, gap repair,
//     retransmission, keepalive probes and disconnect detection.
package link
