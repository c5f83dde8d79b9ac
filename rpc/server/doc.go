// Package server implements the node side of the batch RPC system. A node
// serves the records of a store.IStore and answers batch read requests sent
// by the client.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Answers batch reads with one row per requested
//     key, in request order. Missing records get a KeyNotFound row, existence
//     reads get rows without bins. A namespace the store does not serve, a
//     batch above the key limit or an expired node side timeout fail the whole
//     request with a response level result code.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     store, transport and serializer. An optional seed file is loaded into the
//     store before the transport starts listening.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  NodeName:   "node-1",
//	  Namespaces: []string{"test"},
//	  SeedFile:   "seed.yaml",
//	  Transport:  common.TransportConfig{Endpoint: "0.0.0.0:3000"},
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  lstore.NewLocalStore(config.Namespaces...),
//	  tcp.NewTCPServerTransport(0, 0),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server handles concurrent requests across multiple connections. Each
//	request is processed independently. Serve should be called only once.
package server
