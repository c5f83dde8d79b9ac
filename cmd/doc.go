// Package cmd implements the command-line interface of dbatch. It provides
// commands to run storage nodes and to read from a cluster of them.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a storage node backed by the in-memory store
//   - query: Batch reads against a cluster described by a topology file (get, exists, read, nodes, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set through environment variables with the DBATCH_
// prefix or in .env / .env.local files. See dbatch -help for a list of all
// commands.
package cmd
