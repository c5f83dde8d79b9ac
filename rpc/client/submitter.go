package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/lib/cluster"
	"github.com/ValentinKolb/dbatch/rpc/transport"
)

// submitter sends node requests through the transport. The blocking send
// runs on its own goroutine, the callback is posted back to the call's loop.
// It implements batch.Submitter.
type submitter struct {
	transport transport.IRPCClientTransport
}

func (s *submitter) Submit(loop batch.EventLoop, node batch.Node, buf []byte, timeout time.Duration, onResponse func([]byte), onError func(error)) {
	if n, ok := node.(*cluster.Node); ok && !n.IsActive() {
		loop.Execute(func() { onError(fmt.Errorf("%w: %s", batch.ErrNodeDown, node.Name())) })
		return
	}

	go func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := s.transport.Send(ctx, node.Address(), buf)
		loop.Execute(func() {
			if err != nil {
				onError(err)
				return
			}
			onResponse(resp)
		})
	}()
}
