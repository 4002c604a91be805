// Package cmd implements the command-line interface of dGrid. It provides a
// hierarchical command structure with operations for running the server,
// working with named caches as a client and inspecting POF streams.
//
// The package is organized into several subpackages:
//
//   - cache: Commands for named cache operations (get, put, remove, etc.)
//   - pof: Commands to dump and encode POF streams
//   - serve: Commands for starting and configuring the dGrid server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dgrid -help for a list of all commands.
package cmd
