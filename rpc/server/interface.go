package server

import (
	"github.com/ValentinKolb/dbatch/lib/store"
	"github.com/ValentinKolb/dbatch/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a BatchRequest and a store as parameters.
	// It returns a BatchResponse as a response
	// If the whole request fails, the error is set in the response
	Handle(req *common.BatchRequest, store store.IStore) (resp *common.BatchResponse)
}
