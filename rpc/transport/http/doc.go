// Package http implements an HTTP transport for the batch RPC system. Every
// request is a POST of the serialized batch request to /batch on the node's
// address, the body of the reply is the serialized response.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport on a shared
//     http.Client. Plain host:port node addresses are prefixed with http://.
//     An expired context is reported as batch.ErrNodeTimeout, other request
//     failures as batch.ErrConnection, a non-200 status as a server error.
//
//   - httpServerTransport: Implements IRPCServerTransport on an http.Server,
//     with a request logging middleware at debug log level.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use once connected.
package http
