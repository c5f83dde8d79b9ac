package batch

import (
	"time"
)

// --------------------------------------------------------------------------
// Cluster Side Collaborators
// --------------------------------------------------------------------------

// Node is an opaque handle of a cluster node. Two handles denote the same
// node if their names are equal.
type Node interface {
	// Name returns the unique node name
	Name() string
	// Address returns the transport endpoint of the node
	Address() string
}

// Assignment is a set of keys (by index into the caller's key slice) that is
// sent to one node in one command.
type Assignment struct {
	Node       Node
	KeyIndices []int
}

// Partitioner maps keys to nodes.
type Partitioner interface {
	// Assign partitions indices (positions in keys) into assignments. Every
	// index must be part of exactly one assignment. sequence is the attempt
	// counter used to walk through replicas; exclude is the node that just
	// failed (nil on the first attempt) and should not be chosen if another
	// replica qualifies. Assign must be deterministic for fixed inputs.
	Assign(keys []*Key, indices []int, policy *Policy, sequence int, exclude Node) ([]*Assignment, error)
}

// --------------------------------------------------------------------------
// Wire Side Collaborators
// --------------------------------------------------------------------------

// Entry is one key of a node request, in the order rows are expected back.
type Entry struct {
	Index    int
	Key      *Key
	BinNames []string
	ReadAttr ReadAttr
}

// Request is everything the encoder needs to build one node request.
type Request struct {
	Policy  *Policy
	Timeout time.Duration
	Entries []Entry
}

// Encoder builds the request bytes of one command.
type Encoder interface {
	EncodeBatchRead(req *Request) ([]byte, error)
}

// Row is one decoded per-key result. OpCount is the number of bins the node
// returned for the row.
type Row struct {
	Namespace  string
	Digest     []byte
	ResultCode ResultCode
	Generation uint32
	Expiration uint32
	OpCount    int
	Bins       map[string][]byte
}

// record converts the row into a Record.
func (r *Row) record() *Record {
	return &Record{
		Bins:       r.Bins,
		Generation: r.Generation,
		Expiration: r.Expiration,
	}
}

// Decoder parses the response bytes of one command into rows. A response
// level failure reported by the node is returned as *Error.
type Decoder interface {
	DecodeBatchRead(buf []byte) ([]Row, error)
}

// --------------------------------------------------------------------------
// Scheduling Collaborators
// --------------------------------------------------------------------------

// EventLoop runs callbacks one at a time on a single worker.
type EventLoop interface {
	// Execute runs fn on the loop
	Execute(fn func())
	// Schedule runs fn on the loop after delay
	Schedule(delay time.Duration, fn func())
}

// Submitter sends request bytes to a node. Exactly one of onResponse and
// onError is called per submission, and it is called on loop.
type Submitter interface {
	Submit(loop EventLoop, node Node, buf []byte, timeout time.Duration, onResponse func([]byte), onError func(error))
}

// --------------------------------------------------------------------------
// Environment
// --------------------------------------------------------------------------

// Env bundles the collaborators of a batch call. Loop is the worker every
// callback of the call runs on.
type Env struct {
	Loop        EventLoop
	Partitioner Partitioner
	Encoder     Encoder
	Decoder     Decoder
	Submitter   Submitter
	Metrics     Metrics

	// Now returns the current time, time.Now if nil
	Now func() time.Time
}

func (e *Env) validate() error {
	if e == nil || e.Loop == nil || e.Partitioner == nil || e.Encoder == nil || e.Decoder == nil || e.Submitter == nil {
		return ErrInvalidEnv
	}
	return nil
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) metrics() Metrics {
	if e.Metrics != nil {
		return e.Metrics
	}
	return NopMetrics()
}

// Result is the outcome of a collect-all call: the collected value on
// success, or the error that ended the call.
type Result[T any] struct {
	Value T
	Err   error
}
