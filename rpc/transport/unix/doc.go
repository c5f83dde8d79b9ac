// Package unix implements the Unix domain socket transport for the batch RPC
// system. It is meant for nodes running on the same machine as the client,
// such as local test clusters.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting connection pooling, request correlation and failure handling
// from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket
//     file left by a previous run
//
// The default buffer size is 64 KB.
package unix
