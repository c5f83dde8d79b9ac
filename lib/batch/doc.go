// Package batch implements the dispatch and retry engine for multi-key reads
// against a partitioned key-value cluster.
//
// A batch call takes a list of keys, groups them by the node that owns each
// key, sends one request per node and merges the per-key rows of all
// responses into one result. When a node request fails with a transient
// error, only the keys of that node are re-partitioned (walking to the next
// replica) and sent again. Keys of nodes that already answered are never
// sent twice.
//
// Call Types:
//
//   - ReadList / ReadListStream: each BatchRead selects its own bins and
//     receives its Record in place
//   - GetArray / GetStream: the same bins are read for every key
//   - ExistsArray / ExistsStream: only existence is checked, nodes must not
//     return bin data
//
// The Array and List calls deliver exactly one Result once all keys are
// answered. The Stream calls deliver every row as it arrives, followed by
// exactly one terminal call with a nil error on success. After the terminal
// callback, late responses of the same call are dropped.
//
// Collaborators:
//
// The package does not open sockets or know the cluster layout. A call is
// started with an Env that provides:
//
//   - Partitioner: maps keys to nodes (see package cluster)
//   - Encoder / Decoder: builds request bytes and parses rows (see package rpc/client)
//   - Submitter: sends bytes to a node and calls back exactly once
//   - EventLoop: the single worker all callbacks of a call run on
//
// Since every callback of a call runs on the same loop, the call state is
// never locked. Independent calls may run on different loops.
//
// Errors:
//
// Connection failures, node timeouts and inactive nodes are retryable (see
// IsRetryable). A response that does not match the request (UnexpectedKeyError,
// UnrequestedDataError, ParseError) or an exceeded total timeout
// (ErrTotalTimeout) fails the whole call.
package batch
