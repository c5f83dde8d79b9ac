// Package client implements the batch client. It connects the batch engine
// (lib/batch) with a cluster topology (lib/cluster), event loops
// (lib/eventloop) and an RPC transport and serializer.
//
// Key Components:
//
//   - BatchClient: Public entry point. Collect-all calls (Get, GetHeader,
//     Exists, ReadList) block until the call ends or the context is done.
//     Streaming calls (GetStream, ExistsStream, ReadListStream) return a
//     Stream whose items arrive while other nodes are still answering.
//
//   - codec: Converts engine requests into wire messages and responses into
//     rows. A response level result code becomes a *batch.Error.
//
//   - submitter: Sends a node request on its own goroutine and posts the
//     outcome back to the event loop of the call.
//
//   - clientMetrics: VictoriaMetrics counters and histograms for node
//     requests, retries and calls.
//
// Every call runs in an OpenTelemetry span named after the call. The
// deadline of the context shortens the total timeout of the policy.
//
// Usage Example:
//
//	topology, err := cluster.LoadTopology("cluster.yaml")
//	c, err := cluster.NewCluster(topology)
//
//	bc, err := client.NewBatchClient(
//	  common.ClientConfig{EventLoops: 4, ReplicaMode: "sequence", TotalTimeoutMs: 1000},
//	  c,
//	  tcp.NewTCPClientTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	defer bc.Close()
//
//	records, err := bc.Get(ctx, keys, "name", "email")
//
// Thread Safety:
//
//	A BatchClient is safe for concurrent use. A Stream must be consumed by a
//	single goroutine.
package client
