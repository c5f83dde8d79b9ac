package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var errTransportClosed = errors.New("transport is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// session is one open connection with its own reader goroutine. A session
// is never reused after it failed, the pool dials a new one instead.
type session struct {
	conn     net.Conn
	endpoint string
	writeMu  sync.Mutex // Serializes frames written to conn
	pending  *xsync.MapOf[uint64, chan responseResult]
	closed   atomic.Bool
}

// endpointPool holds the sessions of one endpoint, used round robin
type endpointPool struct {
	endpoint string
	mu       sync.Mutex
	sessions []*session // nil entries are dialed on first use
	next     atomic.Uint64
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	pools         *xsync.MapOf[string, *endpointPool]
	nextRequestID atomic.Uint64
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
		pools:     xsync.NewMapOf[string, *endpointPool](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	// Close all existing connections
	t.closeSessions()

	t.config = config
	t.stopping.Store(false)

	Logger.Infof("Using %s transport with %d connections per endpoint",
		t.connector.GetName(), t.connectionsPerEndpoint())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, endpoint string, req []byte) ([]byte, error) {
	if t.stopping.Load() {
		return nil, fmt.Errorf("%w: %s: %v", batch.ErrConnection, endpoint, errTransportClosed)
	}

	pool, _ := t.pools.LoadOrCompute(endpoint, func() *endpointPool {
		return &endpointPool{
			endpoint: endpoint,
			sessions: make([]*session, t.connectionsPerEndpoint()),
		}
	})

	s, err := pool.session(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", batch.ErrConnection, endpoint, err)
	}

	// Register the request before writing, the response may arrive at once
	requestID := t.nextRequestID.Add(1)
	respCh := make(chan responseResult, 1)
	s.pending.Store(requestID, respCh)
	defer s.pending.Delete(requestID)

	// The reader may have failed the session before the request was registered
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: %s: connection closed", batch.ErrConnection, endpoint)
	}

	if err := s.write(requestID, req, t.writeDeadline(ctx)); err != nil {
		s.fail(err)
		return nil, fmt.Errorf("%w: write to %s: %v", batch.ErrConnection, endpoint, err)
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", batch.ErrNodeTimeout, endpoint)
		}
		return nil, fmt.Errorf("request to %s: %w", endpoint, ctx.Err())
	}
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeSessions()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) connectionsPerEndpoint() int {
	return max(1, t.config.Transport.ConnectionsPerEndpoint)
}

// dialTimeout returns the configured dial timeout, shortened to the deadline of ctx
func (t *clientTransport) dialTimeout(ctx context.Context) time.Duration {
	timeout := time.Duration(t.config.Transport.DialTimeoutMs) * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// writeDeadline returns the deadline of ctx or the configured socket timeout
func (t *clientTransport) writeDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if t.config.TimeoutSecond > 0 {
		return time.Now().Add(time.Duration(t.config.TimeoutSecond) * time.Second)
	}
	return time.Time{}
}

// closeSessions closes every open session and forgets all pools
func (t *clientTransport) closeSessions() {
	t.pools.Range(func(endpoint string, pool *endpointPool) bool {
		pool.mu.Lock()
		for _, s := range pool.sessions {
			if s != nil {
				s.fail(errTransportClosed)
			}
		}
		pool.mu.Unlock()
		t.pools.Delete(endpoint)
		return true
	})
}

// session selects the next session via round robin, dialing it if needed
func (p *endpointPool) session(ctx context.Context, t *clientTransport) (*session, error) {
	idx := 0
	if len(p.sessions) > 1 {
		idx = int(p.next.Add(1) % uint64(len(p.sessions)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.sessions[idx]; s != nil && !s.closed.Load() {
		return s, nil
	}

	timeout := t.dialTimeout(ctx)
	if timeout < 0 {
		return nil, context.DeadlineExceeded
	}

	conn, err := t.connector.Connect(p.endpoint, timeout)
	if err != nil {
		return nil, err
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, t.config.Transport); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection: %v", err)
	}

	s := &session{
		conn:     conn,
		endpoint: p.endpoint,
		pending:  xsync.NewMapOf[uint64, chan responseResult](),
	}
	p.sessions[idx] = s
	go s.readResponses()

	Logger.Infof("Connected to %s (connection %d/%d)", p.endpoint, idx+1, len(p.sessions))
	return s, nil
}

// write sends one frame, holding the write lock for the whole frame
func (s *session) write(requestID uint64, data []byte, deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return writeFrame(s.conn, requestID, data)
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (s *session) readResponses() {
	for {
		requestID, data, err := readFrame(s.conn, nil)
		if err != nil {
			if !s.closed.Load() {
				Logger.Warningf("Connection to %s failed: %v", s.endpoint, err)
			}
			s.fail(err)
			return
		}

		respCh, found := s.pending.LoadAndDelete(requestID)
		if !found {
			// The request gave up waiting before the response arrived
			Logger.Debugf("Dropping response for unknown request ID %d from %s", requestID, s.endpoint)
			continue
		}
		respCh <- responseResult{data: data}
	}
}

// fail closes the session and fails every request still waiting on it
func (s *session) fail(cause error) {
	if s.closed.Swap(true) {
		return
	}
	s.conn.Close()

	err := fmt.Errorf("%w: %s: %v", batch.ErrConnection, s.endpoint, cause)
	s.pending.Range(func(requestID uint64, respCh chan responseResult) bool {
		s.pending.Delete(requestID)
		select {
		case respCh <- responseResult{err: err}:
		default:
		}
		return true
	})
}
