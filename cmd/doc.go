// Package cmd implements the command-line interface of rlink. It provides a
// hierarchical command structure for running a reliable link against a
// remote peer and for simulating the protocol locally.
//
// The package is organized into several subpackages:
//
//   - peer: Interactive peer, sends stdin lines and prints received payloads
//   - echo: Counterpart that sends every received payload back
//   - sim: Two peers over a lossy in-memory network with order verification
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable RLINK_<FLAG>
// (dashes become underscores) or a .env / .env.local file.
//
// See rlink -help for a list of all commands.
package cmd
