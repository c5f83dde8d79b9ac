package batch

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Nodes and Partitioner
// --------------------------------------------------------------------------

type fakeNode struct {
	name string
}

func (n *fakeNode) Name() string    { return n.name }
func (n *fakeNode) Address() string { return n.name + ":3000" }

// assignCall records one Assign invocation.
type assignCall struct {
	indices  []int
	sequence int
	exclude  string
}

// tablePartitioner assigns key index i to replicas[i][sequence % n], skipping
// the excluded node if another replica exists.
type tablePartitioner struct {
	nodes    map[string]*fakeNode
	replicas map[int][]string
	err      error
	calls    []assignCall
}

func newTablePartitioner(replicas map[int][]string) *tablePartitioner {
	p := &tablePartitioner{
		nodes:    map[string]*fakeNode{},
		replicas: replicas,
	}
	for _, names := range replicas {
		for _, name := range names {
			p.nodes[name] = &fakeNode{name: name}
		}
	}
	return p
}

func (p *tablePartitioner) Assign(_ []*Key, indices []int, _ *Policy, sequence int, exclude Node) ([]*Assignment, error) {
	call := assignCall{indices: append([]int(nil), indices...), sequence: sequence}
	if exclude != nil {
		call.exclude = exclude.Name()
	}
	p.calls = append(p.calls, call)
	if p.err != nil {
		return nil, p.err
	}

	var out []*Assignment
	byNode := map[string]*Assignment{}
	for _, idx := range indices {
		names := p.replicas[idx]
		name := names[sequence%len(names)]
		if exclude != nil && name == exclude.Name() {
			for i := 1; i < len(names); i++ {
				candidate := names[(sequence+i)%len(names)]
				if candidate != exclude.Name() {
					name = candidate
					break
				}
			}
		}
		a, ok := byNode[name]
		if !ok {
			a = &Assignment{Node: p.nodes[name]}
			byNode[name] = a
			out = append(out, a)
		}
		a.KeyIndices = append(a.KeyIndices, idx)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// inlineLoop runs tasks on the calling goroutine. Scheduled tasks are kept
// until the test runs them.
type inlineLoop struct {
	delays    []time.Duration
	scheduled []func()
}

func (l *inlineLoop) Execute(fn func()) { fn() }

func (l *inlineLoop) Schedule(d time.Duration, fn func()) {
	l.delays = append(l.delays, d)
	l.scheduled = append(l.scheduled, fn)
}

// runScheduled runs all scheduled tasks, including tasks scheduled meanwhile.
func (l *inlineLoop) runScheduled() {
	for len(l.scheduled) > 0 {
		fn := l.scheduled[0]
		l.scheduled = l.scheduled[1:]
		fn()
	}
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// fakeCodec keeps encoded requests in memory and hands out their index as
// request bytes. Responses are JSON encoded rows.
type fakeCodec struct {
	requests  []*Request
	encodeErr error
}

func (c *fakeCodec) EncodeBatchRead(req *Request) ([]byte, error) {
	if c.encodeErr != nil {
		return nil, c.encodeErr
	}
	c.requests = append(c.requests, req)
	return []byte(strconv.Itoa(len(c.requests) - 1)), nil
}

func (c *fakeCodec) DecodeBatchRead(buf []byte) ([]Row, error) {
	var rows []Row
	if err := json.Unmarshal(buf, &rows); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	return rows, nil
}

func (c *fakeCodec) request(buf []byte) *Request {
	id, err := strconv.Atoi(string(buf))
	if err != nil {
		panic(err)
	}
	return c.requests[id]
}

// --------------------------------------------------------------------------
// Submitter
// --------------------------------------------------------------------------

type submission struct {
	node       Node
	request    *Request
	timeout    time.Duration
	onResponse func([]byte)
	onError    func(error)
}

func (s *submission) indices() []int {
	out := make([]int, len(s.request.Entries))
	for i, e := range s.request.Entries {
		out[i] = e.Index
	}
	return out
}

// respondRows sends rows as the node response.
func (s *submission) respondRows(t *testing.T, rows []Row) {
	t.Helper()
	buf, err := json.Marshal(rows)
	require.NoError(t, err)
	s.onResponse(buf)
}

// respondFound answers every entry with an existing record holding bin "v"
// set to the key index. Entries listed in missing get KeyNotFound.
func (s *submission) respondFound(t *testing.T, missing ...int) {
	t.Helper()
	skip := map[int]bool{}
	for _, idx := range missing {
		skip[idx] = true
	}
	rows := make([]Row, len(s.request.Entries))
	for i, e := range s.request.Entries {
		rows[i] = Row{
			Namespace:  e.Key.Namespace,
			Digest:     e.Key.Digest,
			ResultCode: ResultOK,
			Generation: 1,
		}
		if skip[e.Index] {
			rows[i].ResultCode = ResultKeyNotFound
			continue
		}
		if e.ReadAttr&ReadAttrNoBinData == 0 {
			rows[i].Bins = map[string][]byte{"v": []byte(strconv.Itoa(e.Index))}
			rows[i].OpCount = 1
		}
	}
	s.respondRows(t, rows)
}

type fakeSubmitter struct {
	codec       *fakeCodec
	submissions []*submission
}

func (s *fakeSubmitter) Submit(_ EventLoop, node Node, buf []byte, timeout time.Duration, onResponse func([]byte), onError func(error)) {
	s.submissions = append(s.submissions, &submission{
		node:       node,
		request:    s.codec.request(buf),
		timeout:    timeout,
		onResponse: onResponse,
		onError:    onError,
	})
}

// take returns and forgets all submissions made so far.
func (s *fakeSubmitter) take() []*submission {
	out := s.submissions
	s.submissions = nil
	return out
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

type countingMetrics struct {
	submitted int
	failed    int
	splits    []int
	completed []bool
}

func (m *countingMetrics) CommandSubmitted(string)    { m.submitted++ }
func (m *countingMetrics) CommandFailed(string, bool) { m.failed++ }
func (m *countingMetrics) RetrySplit(_ string, n int) { m.splits = append(m.splits, n) }
func (m *countingMetrics) CallCompleted(_ string, ok bool, _ time.Duration) {
	m.completed = append(m.completed, ok)
}

// --------------------------------------------------------------------------
// Harness
// --------------------------------------------------------------------------

type harness struct {
	loop        *inlineLoop
	codec       *fakeCodec
	submitter   *fakeSubmitter
	partitioner *tablePartitioner
	metrics     *countingMetrics
	now         time.Time
	env         *Env
}

func newHarness(replicas map[int][]string) *harness {
	h := &harness{
		loop:        &inlineLoop{},
		codec:       &fakeCodec{},
		partitioner: newTablePartitioner(replicas),
		metrics:     &countingMetrics{},
		now:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.submitter = &fakeSubmitter{codec: h.codec}
	h.env = &Env{
		Loop:        h.loop,
		Partitioner: h.partitioner,
		Encoder:     h.codec,
		Decoder:     h.codec,
		Submitter:   h.submitter,
		Metrics:     h.metrics,
		Now:         func() time.Time { return h.now },
	}
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func testKeys(t *testing.T, n int) []*Key {
	t.Helper()
	keys := make([]*Key, n)
	for i := range keys {
		key, err := NewKey("test", "users", "user-"+strconv.Itoa(i))
		require.NoError(t, err)
		keys[i] = key
	}
	return keys
}

func testPolicy() *Policy {
	return &Policy{
		Replica:             ReplicaSequence,
		TotalTimeout:        time.Second,
		SocketTimeout:       200 * time.Millisecond,
		MaxRetries:          2,
		SleepBetweenRetries: 10 * time.Millisecond,
	}
}

// resultRecorder counts terminal callbacks of collect-all calls.
type resultRecorder[T any] struct {
	results []Result[T]
}

func (r *resultRecorder[T]) done(res Result[T]) {
	r.results = append(r.results, res)
}

func (r *resultRecorder[T]) single(t *testing.T) Result[T] {
	t.Helper()
	require.Len(t, r.results, 1, "expected exactly one terminal callback")
	return r.results[0]
}

// streamRecorder records items and terminal callbacks of streaming calls.
type streamRecorder[T any] struct {
	items []T
	ends  []error
}

func (r *streamRecorder[T]) end(err error) {
	r.ends = append(r.ends, err)
}

var errBoom = errors.New("boom")
