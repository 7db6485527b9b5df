// Package mem provides an in-memory datagram network for tests and
// simulations of the reliable link.
//
// A Network connects any number of transports by endpoint name. It can inject
// the faults of a real datagram network, configured through NetworkConfig:
//
//   - Loss: a datagram is silently dropped
//   - Duplication: a datagram is delivered twice
//   - Reordering: a datagram is held back and delivered after the next
//     datagram to the same endpoint
//   - Partition: every datagram is dropped until the partition is lifted
//
// The fault generator is seeded, so a failing run can be reproduced with the
// same seed. Bound endpoints are kept in a concurrent map (xsync.MapOf), each
// endpoint owns a bounded receive queue which drops datagrams when full.
//
// Example usage:
//
//	network := mem.NewNetwork(mem.NetworkConfig{LossRate: 0.1, Seed: 42})
//	a, b := network.NewTransport(), network.NewTransport()
//	_ = a.Open(common.TransportConfig{LocalEndpoint: "a", RemoteEndpoint: "b"})
//	_ = b.Open(common.TransportConfig{LocalEndpoint: "b", RemoteEndpoint: "a"})
package mem
