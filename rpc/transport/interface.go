package transport

import (
	"context"

	"github.com/ValentinKolb/dbatch/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the serialized request and returns the serialized response
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil after Close was called.
	Listen(config common.ServerConfig) error
	// Close stops accepting connections and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport.
// A single transport talks to every node of the cluster, the endpoint is
// chosen per request.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration.
	// Connections are opened lazily on the first request to an endpoint.
	Connect(config common.ClientConfig) error
	// Send sends a request to the endpoint and returns the response.
	// The deadline of ctx bounds the write and the wait for the response.
	Send(ctx context.Context, endpoint string, req []byte) (resp []byte, err error)
	// Close closes all connections
	Close() error
}
