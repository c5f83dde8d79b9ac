// Package base provides the protocol independent part of the stream transports
// (TCP, Unix sockets). Protocol specific code plugs in through connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Keeps a pool of connections per endpoint. Connections are
//     dialed on first use and replaced after they fail. Requests are correlated
//     with responses by a request ID, so many requests share one connection.
//
//   - serverTransport: Accepts connections and runs the registered handler for
//     every request, with a bounded number of workers per connection.
//
// Frame Format:
//
//	[8 bytes requestID][4 bytes length][payload], integers big endian.
//
// Failure Handling:
//
//	The client never retries. A failed dial or write, or a broken connection,
//	is returned as batch.ErrConnection and an expired context as
//	batch.ErrNodeTimeout, so the caller decides whether and where to retry.
//	When a connection breaks, every request waiting on it fails at once.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized
//	per frame, responses are read by one goroutine per connection.
package base
