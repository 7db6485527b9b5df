// Package testing provides a standardised conformance test suite for
// implementations of the transport.IDatagramTransport interface.
//
// The suite checks the contract the reliable link depends on: datagrams
// travel between two bound peers, Close unblocks a pending Receive with
// transport.ErrClosed, a closed transport refuses further use and an endpoint
// can only be bound once.
//
// Example usage:
//
//	factory := func() transport.IDatagramTransport {
//		return NewMyTransport()
//	}
//	endpoints := func(t testing.TB) (string, string) {
//		return "a", "b"
//	}
//
//	transporttesting.RunTransportTests(t, "MyTransport", factory, endpoints)
package testing
