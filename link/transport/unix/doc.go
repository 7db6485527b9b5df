// Package unix implements a Unix datagram socket (unixgram) transport of the
// reliable link, for two peers on the same host. It provides the
// unixgram-specific connector for the base package's datagram transport.
//
// Endpoints are socket file paths, e.g. "/tmp/rlink-a.sock". A stale socket
// file at the local path is removed before binding and the file is removed
// again when the transport is closed.
//
// Unix datagram sockets do not lose or reorder datagrams under normal
// operation, the protocol still runs unchanged on top of them.
package unix
