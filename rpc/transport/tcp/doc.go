// Package tcp implements the TCP socket transport for the batch RPC system.
// It provides the base package's connector interfaces for TCP connections and
// applies the configured socket options (no delay, keep alive, linger, buffer
// sizes) to both dialed and accepted connections.
//
// See the base package documentation for connection pooling, framing and
// failure handling.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp
