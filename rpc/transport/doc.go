// Package transport defines the interfaces for moving serialized batch
// requests between a client and the nodes of a cluster. Implementations live
// in the subpackages (tcp, unix, http).
//
// Key Components:
//
//   - IRPCClientTransport: Client side transport. One instance serves every
//     node, the endpoint is passed with each request and connections are
//     opened on demand.
//
//   - IRPCServerTransport: Server side transport that receives requests and
//     passes them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Transports do not retry. Failures are classified with the batch package
// errors (batch.ErrConnection, batch.ErrNodeTimeout) and the batch executor
// decides whether to retry and on which node.
package transport
