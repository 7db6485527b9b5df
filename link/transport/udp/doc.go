// Package udp implements the UDP transport of the reliable link. It provides
// the UDP-specific connector for the base package's datagram transport.
//
// Endpoints use the host:port form, e.g. "0.0.0.0:11000" as local endpoint and
// "127.0.0.1:3000" as remote endpoint. Every datagram is sent to the remote
// endpoint, datagrams from any sender are accepted.
package udp
