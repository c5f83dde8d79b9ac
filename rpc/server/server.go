package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dbatch/lib/store"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/serializer"
	"github.com/ValentinKolb/dbatch/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server answering batch reads from s
// It takes a config, store, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		lstore.NewLocalStore(config.Namespaces...),
//		tcp.NewTCPServerTransport(0, 0),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	s store.IStore,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &rpcServer{
		config:     config,
		store:      s,
		adapter:    NewIStoreServerAdapter(config.MaxBatchKeys),
		transport:  transport,
		serializer: serializer,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	store      store.IStore
	adapter    IRPCServerAdapter
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
}

// handle decodes a request, runs the adapter and encodes the response
func (s *rpcServer) handle(req []byte) []byte {
	var msg common.BatchRequest
	var resp *common.BatchResponse

	if err := s.serializer.DeserializeRequest(req, &msg); err != nil {
		resp = common.NewErrorResponse(common.OpUnknown, common.ResultParameterError,
			fmt.Errorf("failed to deserialize request: %s", err))
	} else {
		resp = s.adapter.Handle(&msg, s.store)
	}

	if resp.ResultCode != 0 {
		Logger.Warningf("Node %s rejected %s request with %d keys: %s",
			s.config.NodeName, msg.OpCode, len(msg.Entries), resp.Err)
	}

	val, err := s.serializer.SerializeResponse(resp)
	if err != nil {
		Logger.Errorf("Failed to serialize response: %v", err)
		val, _ = s.serializer.SerializeResponse(common.NewErrorResponse(msg.OpCode, common.ResultServerError,
			fmt.Errorf("failed to serialize response: %s", err)))
	}
	return val
}

func (s *rpcServer) init() error {
	if s.store == nil {
		return errors.New("no store configured")
	}
	for _, ns := range s.config.Namespaces {
		if !s.store.HasNamespace(ns) {
			return fmt.Errorf("store does not serve namespace %q", ns)
		}
	}

	// Load test data
	if s.config.SeedFile != "" {
		n, err := store.LoadSeed(s.store, s.config.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to load seed file: %w", err)
		}
		Logger.Infof("Loaded %d records from %s", n, s.config.SeedFile)
	}

	Logger.Infof("Node %s setup completed successfully", s.config.NodeName)

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	return nil
}

// Serve starts the RPC server
// This function will also initialize the server and start the transport layer.
// It blocks until Close is called.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport layer
func (s *rpcServer) Close() error {
	return s.transport.Close()
}
