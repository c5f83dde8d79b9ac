package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/lib/cluster"
	"github.com/ValentinKolb/dbatch/lib/eventloop"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/serializer"
	"github.com/ValentinKolb/dbatch/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var Logger = logger.GetLogger("client")

var (
	// ErrClientClosed is returned by calls on a closed client
	ErrClientClosed = errors.New("batch client is closed")

	errStreamClosed = errors.New("stream closed by consumer")
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	metricsSet     *metrics.Set
	tracerProvider trace.TracerProvider
	policy         *batch.Policy
}

// Option configures a BatchClient.
type Option func(*options)

// WithMetricsSet records client metrics in set instead of a private set.
func WithMetricsSet(set *metrics.Set) Option {
	return func(o *options) { o.metricsSet = set }
}

// WithTracerProvider creates spans with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithPolicy overrides the policy built from the client configuration.
func WithPolicy(p *batch.Policy) Option {
	return func(o *options) { o.policy = p }
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// BatchClient reads many keys at once from a partitioned cluster. Keys are
// grouped by node, every node gets one request and failed nodes are retried
// according to the policy.
type BatchClient struct {
	policy    *batch.Policy
	cluster   *cluster.Cluster
	transport transport.IRPCClientTransport
	codec     *codec
	submitter *submitter
	metrics   *clientMetrics
	tracer    trace.Tracer
	loops     *eventloop.Group
	closed    atomic.Bool

	// closing is cancelled by Close and ends every call still waiting
	closing  context.Context
	shutdown context.CancelFunc
}

// NewBatchClient creates a client for the nodes of c and connects the transport.
//
// Usage:
//
//	topology, _ := cluster.LoadTopology("cluster.yaml")
//	c, _ := cluster.NewCluster(topology)
//	client, err := client.NewBatchClient(config, c, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		panic(err)
//	}
//	defer client.Close()
//
//	records, err := client.Get(ctx, keys)
func NewBatchClient(
	config common.ClientConfig,
	c *cluster.Cluster,
	t transport.IRPCClientTransport,
	s serializer.IRPCSerializer,
	opts ...Option,
) (*BatchClient, error) {
	if c == nil || t == nil || s == nil {
		return nil, fmt.Errorf("cluster, transport and serializer are required")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	policy := o.policy
	if policy == nil {
		var err error
		if policy, err = config.Policy(); err != nil {
			return nil, fmt.Errorf("invalid batch policy: %w", err)
		}
	}
	if o.metricsSet == nil {
		o.metricsSet = metrics.NewSet()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	if err := t.Connect(config); err != nil {
		return nil, fmt.Errorf("failed to connect transport: %w", err)
	}

	client := &BatchClient{
		policy:    policy,
		cluster:   c,
		transport: t,
		codec:     newCodec(s),
		submitter: &submitter{transport: t},
		metrics:   newClientMetrics(o.metricsSet),
		tracer:    o.tracerProvider.Tracer("github.com/ValentinKolb/dbatch/rpc/client"),
		loops:     eventloop.NewGroup(max(1, config.EventLoops)),
	}
	client.closing, client.shutdown = context.WithCancel(context.Background())

	Logger.Infof("Created batch client for cluster %s with %d event loops (%s)",
		c.Topology().Name, client.loops.Size(), policy)
	return client, nil
}

// Close stops the event loops and closes the transport. Calls in flight
// return ErrClientClosed and their streams end with it.
func (c *BatchClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.shutdown()
	c.loops.Close()
	return c.transport.Close()
}

// Policy returns a copy of the default policy of the client.
func (c *BatchClient) Policy() batch.Policy {
	return *c.policy
}

// Cluster returns the cluster the client reads from.
func (c *BatchClient) Cluster() *cluster.Cluster {
	return c.cluster
}

// WriteMetrics writes the client metrics in Prometheus text format.
func (c *BatchClient) WriteMetrics(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Collect-all Calls
// --------------------------------------------------------------------------

// Get reads the records of keys. The result has one entry per key, nil for
// keys that were not found. Without binNames all bins are read.
func (c *BatchClient) Get(ctx context.Context, keys []*batch.Key, binNames ...string) ([]*batch.Record, error) {
	return collect(ctx, c, "get", len(keys), func(env *batch.Env, p *batch.Policy, done func(batch.Result[[]*batch.Record])) {
		batch.GetArray(env, p, keys, binNames, 0, done)
	})
}

// GetHeader reads generation and expiration of keys without bin data.
func (c *BatchClient) GetHeader(ctx context.Context, keys []*batch.Key) ([]*batch.Record, error) {
	return collect(ctx, c, "get-header", len(keys), func(env *batch.Env, p *batch.Policy, done func(batch.Result[[]*batch.Record])) {
		batch.GetArray(env, p, keys, nil, batch.ReadAttrRead|batch.ReadAttrNoBinData, done)
	})
}

// Exists reports for every key whether its record exists.
func (c *BatchClient) Exists(ctx context.Context, keys []*batch.Key) ([]bool, error) {
	return collect(ctx, c, "exists", len(keys), func(env *batch.Env, p *batch.Policy, done func(batch.Result[[]bool])) {
		batch.ExistsArray(env, p, keys, done)
	})
}

// ReadList executes the reads and sets the Record of every read, nil if the
// key was not found. The reads are only modified if the call succeeds.
func (c *BatchClient) ReadList(ctx context.Context, reads []*batch.BatchRead) error {
	// the call works on copies so a cancelled call never writes into reads
	pending := make([]*batch.BatchRead, len(reads))
	for i, r := range reads {
		pending[i] = &batch.BatchRead{Key: r.Key, BinNames: r.BinNames, ReadAllBins: r.ReadAllBins}
	}

	done, err := collect(ctx, c, "read-list", len(reads), func(env *batch.Env, p *batch.Policy, done func(batch.Result[[]*batch.BatchRead])) {
		batch.ReadList(env, p, pending, done)
	})
	if err != nil {
		return err
	}
	for i, r := range done {
		reads[i].Record = r.Record
	}
	return nil
}

// --------------------------------------------------------------------------
// Streaming Calls
// --------------------------------------------------------------------------

// GetStream reads the records of keys and delivers them as they arrive.
func (c *BatchClient) GetStream(ctx context.Context, keys []*batch.Key, binNames ...string) *Stream[KeyRecord] {
	return stream(ctx, c, "get-stream", len(keys), func(env *batch.Env, p *batch.Policy, s *Stream[KeyRecord], end func(error)) {
		batch.GetStream(env, p, keys, binNames, 0, func(key *batch.Key, rec *batch.Record) {
			s.push(&KeyRecord{Key: key, Record: rec})
		}, end)
	})
}

// ExistsStream delivers the existence of keys as results arrive.
func (c *BatchClient) ExistsStream(ctx context.Context, keys []*batch.Key) *Stream[KeyExists] {
	return stream(ctx, c, "exists-stream", len(keys), func(env *batch.Env, p *batch.Policy, s *Stream[KeyExists], end func(error)) {
		batch.ExistsStream(env, p, keys, func(key *batch.Key, exists bool) {
			s.push(&KeyExists{Key: key, Exists: exists})
		}, end)
	})
}

// ReadListStream executes the reads and delivers a copy of every read with its
// Record set. The reads themselves are not modified.
func (c *BatchClient) ReadListStream(ctx context.Context, reads []*batch.BatchRead) *Stream[batch.BatchRead] {
	return stream(ctx, c, "read-list-stream", len(reads), func(env *batch.Env, p *batch.Policy, s *Stream[batch.BatchRead], end func(error)) {
		batch.ReadListStream(env, p, reads, s.push, end)
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// env returns the collaborators of one call, bound to the next event loop
func (c *BatchClient) env() *batch.Env {
	return &batch.Env{
		Loop:        c.loops.Next(),
		Partitioner: c.cluster,
		Encoder:     c.codec,
		Decoder:     c.codec,
		Submitter:   c.submitter,
		Metrics:     c.metrics,
	}
}

// callPolicy shortens the total timeout to the deadline of ctx
func (c *BatchClient) callPolicy(ctx context.Context) *batch.Policy {
	p := *c.policy
	if deadline, ok := ctx.Deadline(); ok {
		remaining := max(time.Until(deadline), time.Nanosecond)
		if p.TotalTimeout <= 0 || remaining < p.TotalTimeout {
			p.TotalTimeout = remaining
		}
	}
	return &p
}

// startSpan opens the span of one call
func (c *BatchClient) startSpan(ctx context.Context, name string, keys int, p *batch.Policy) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "batch."+name, trace.WithAttributes(
		attribute.Int("batch.keys", keys),
		attribute.String("batch.replica", p.Replica.String()),
		attribute.Int("batch.max_retries", p.MaxRetries),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// collect runs a collect-all call and waits for its result, for ctx or for
// the client to close. The value is only handed out with a result.
func collect[T any](ctx context.Context, c *BatchClient, name string, keys int, start func(*batch.Env, *batch.Policy, func(batch.Result[T]))) (T, error) {
	var zero T
	if c.closed.Load() {
		return zero, ErrClientClosed
	}

	p := c.callPolicy(ctx)
	_, span := c.startSpan(ctx, name, keys, p)

	resultCh := make(chan batch.Result[T], 1)
	start(c.env(), p, func(r batch.Result[T]) { resultCh <- r })

	select {
	case r := <-resultCh:
		endSpan(span, r.Err)
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Value, nil
	case <-ctx.Done():
		endSpan(span, ctx.Err())
		return zero, ctx.Err()
	case <-c.closing.Done():
		endSpan(span, ErrClientClosed)
		return zero, ErrClientClosed
	}
}

// stream runs a streaming call. The stream ends with the call, when ctx is
// done or when the client closes.
func stream[T any](ctx context.Context, c *BatchClient, name string, keys int, start func(*batch.Env, *batch.Policy, *Stream[T], func(error))) *Stream[T] {
	s := newStream[T]()
	if c.closed.Load() {
		s.finish(ErrClientClosed)
		return s
	}

	p := c.callPolicy(ctx)
	_, span := c.startSpan(ctx, name, keys, p)

	s.mu.Lock()
	stopCtx := context.AfterFunc(ctx, func() { s.finish(ctx.Err()) })
	stopClose := context.AfterFunc(c.closing, func() { s.finish(ErrClientClosed) })
	s.stop = func() bool {
		a, b := stopCtx(), stopClose()
		return a && b
	}
	s.mu.Unlock()

	start(c.env(), p, s, func(err error) {
		endSpan(span, err)
		s.finish(err)
	})
	return s
}
