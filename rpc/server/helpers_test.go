package server

import (
	"os"

	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/transport"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// nopTransport records the registered handler and never listens
type nopTransport struct {
	handler transport.ServerHandleFunc
}

func (n *nopTransport) RegisterHandler(h transport.ServerHandleFunc) { n.handler = h }
func (n *nopTransport) Listen(common.ServerConfig) error             { return nil }
func (n *nopTransport) Close() error                                 { return nil }
