// Package common provides the core data structures and utilities shared by
// all parts of the reliable link. It defines the wire frame, the configuration
// structures and the error taxonomy used by the other packages.
//
// The package focuses on:
//   - Frame definition for all traffic between two peers
//   - Configuration structures for connections and transports
//   - A classified error type that decides how faults propagate
//   - Custom logging implementation on top of Dragonboat's logger facade
//
// Key Components:
//
//   - Frame: The unit of wire exchange. Carries the magic protocol tag, the
//     sender's sequence number, the piggy-backed cumulative ack, the kind of
//     frame and, for data frames, the opaque payload.
//
//   - FrameKind: Enumeration of data, resend request and timeout probe frames.
//     Serialized as a string in JSON, the numeric form of older peers is
//     accepted when decoding.
//
//   - ConnConfig / TransportConfig: Parameters of a connection (endpoints,
//     framing, liveness) with sane defaults and a printable representation.
//
//   - LinkError: Error carrying an ErrorKind (bind, framing, codec, protocol,
//     transient, liveness). Only bind errors reach the caller directly, the
//     others are absorbed by the protocol and reported to observers.
//
//   - Logger: Custom formatter installed through logger.SetLoggerFactory.
package common
