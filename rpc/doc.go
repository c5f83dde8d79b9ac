// Package rpc connects batch clients with storage nodes. A client sends one
// batch read request per node and a node answers with one row per requested
// key.
//
// The package is organized into several subpackages:
//
//   - common: Wire messages (BatchRequest, BatchResponse), client and
//     server configuration, and the logger format.
//
//   - transport: Request/response exchange with pluggable implementations
//     (TCP, Unix sockets, HTTP). Transports report failures but never retry.
//
//   - serializer: Message encoding with multiple format options (Binary,
//     JSON, GOB).
//
//   - client: The batch client, which runs the batch engine on event loops
//     and exposes collect-all and streaming calls.
//
//   - server: The node side, which answers batch reads from a store.
package rpc
