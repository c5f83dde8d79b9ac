package batch

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

func TestGetArrayOneCommandPerNode(t *testing.T) {
	h := newHarness(map[int][]string{
		0: {"A", "B"},
		1: {"B", "A"},
		2: {"A", "B"},
		3: {"C", "A"},
	})
	keys := testKeys(t, 4)
	rec := &resultRecorder[[]*Record]{}

	GetArray(h.env, testPolicy(), keys, nil, 0, rec.done)

	subs := h.submitter.take()
	require.Len(t, subs, 3)
	got := map[string][]int{}
	for _, s := range subs {
		got[s.node.Name()] = s.indices()
	}
	if diff := cmp.Diff(map[string][]int{"A": {0, 2}, "B": {1}, "C": {3}}, got); diff != "" {
		t.Fatalf("unexpected assignments (-want +got):\n%s", diff)
	}

	require.Empty(t, rec.results)
	subs[0].respondFound(t)
	subs[1].respondFound(t)
	require.Empty(t, rec.results, "call must not complete before every node answered")
	subs[2].respondFound(t, 3)

	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Len(t, res.Value, 4)
	for i := 0; i < 3; i++ {
		require.NotNil(t, res.Value[i], "record %d", i)
		require.Equal(t, []byte(fmt.Sprint(i)), res.Value[i].Bins["v"])
	}
	require.Nil(t, res.Value[3], "missing key must yield a nil record")
	require.Equal(t, []bool{true}, h.metrics.completed)
}

func TestEveryKeySentExactlyOnce(t *testing.T) {
	replicas := map[int][]string{}
	nodes := []string{"A", "B", "C", "D", "E"}
	for i := 0; i < 50; i++ {
		replicas[i] = []string{nodes[i%len(nodes)], nodes[(i+1)%len(nodes)]}
	}
	h := newHarness(replicas)
	keys := testKeys(t, 50)

	ExistsArray(h.env, testPolicy(), keys, func(Result[[]bool]) {})

	var seen []int
	for _, s := range h.submitter.take() {
		seen = append(seen, s.indices()...)
	}
	sort.Ints(seen)
	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, seen)
}

func TestRequestEntriesFollowVariant(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}})
	keys := testKeys(t, 2)

	GetArray(h.env, testPolicy(), keys, []string{"name", "age"}, 0, func(Result[[]*Record]) {})
	ExistsArray(h.env, testPolicy(), keys, func(Result[[]bool]) {})
	GetArray(h.env, testPolicy(), keys, nil, 0, func(Result[[]*Record]) {})

	subs := h.submitter.take()
	require.Len(t, subs, 3)

	get := subs[0].request.Entries[0]
	require.Equal(t, []string{"name", "age"}, get.BinNames)
	require.Equal(t, ReadAttrRead, get.ReadAttr)

	exists := subs[1].request.Entries[0]
	require.Nil(t, exists.BinNames)
	require.Equal(t, ReadAttrRead|ReadAttrNoBinData, exists.ReadAttr)

	all := subs[2].request.Entries[1]
	require.Equal(t, ReadAttrRead|ReadAttrGetAll, all.ReadAttr)
	require.Same(t, keys[1], all.Key)
}

func TestEmptyKeysSucceedImmediately(t *testing.T) {
	h := newHarness(nil)
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), nil, rec.done)

	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Empty(t, res.Value)
	require.Empty(t, h.submitter.submissions)
	require.Empty(t, h.partitioner.calls)
}

func TestNilKeyFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}})
	keys := testKeys(t, 2)
	keys[1] = nil
	rec := &resultRecorder[[]*Record]{}

	GetArray(h.env, testPolicy(), keys, nil, 0, rec.done)

	res := rec.single(t)
	var batchErr *Error
	require.ErrorAs(t, res.Err, &batchErr)
	require.Equal(t, ResultClientInvalidArgument, batchErr.Code)
	require.Empty(t, h.submitter.submissions)
}

func TestPartitionErrorFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	h.partitioner.err = ErrNoNodes
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 1), rec.done)

	res := rec.single(t)
	require.ErrorIs(t, res.Err, ErrNoNodes)
	require.Nil(t, res.Value)
}

func TestIncompleteEnvFailsSynchronously(t *testing.T) {
	rec := &resultRecorder[[]bool]{}
	ExistsArray(&Env{}, nil, nil, rec.done)
	require.ErrorIs(t, rec.single(t).Err, ErrInvalidEnv)
}

func TestEncodeErrorFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	h.codec.encodeErr = errBoom
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 1), rec.done)

	require.ErrorIs(t, rec.single(t).Err, errBoom)
}

func TestSocketTimeoutBoundedByTotalTimeout(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	policy := testPolicy()
	policy.Replica = ReplicaMaster

	ExistsArray(h.env, policy, testKeys(t, 1), func(Result[[]bool]) {})
	first := h.submitter.take()
	require.Len(t, first, 1)
	require.Equal(t, 200*time.Millisecond, first[0].timeout)

	h.advance(900 * time.Millisecond)
	first[0].onError(ErrNodeTimeout)
	h.loop.runScheduled()

	second := h.submitter.take()
	require.Len(t, second, 1)
	require.Equal(t, 100*time.Millisecond, second[0].timeout)
}

// --------------------------------------------------------------------------
// Retry
// --------------------------------------------------------------------------

func TestRetryMovesOnlyFailedKeys(t *testing.T) {
	h := newHarness(map[int][]string{
		0: {"A", "B"},
		1: {"A", "C"},
		2: {"A", "C"},
		3: {"D", "A"},
	})
	keys := testKeys(t, 4)
	e := newExecutor(h.env, testPolicy(), keys, newGetVariant(keys, nil, 0))
	rec := &resultRecorder[[]*Record]{}
	v := e.variant.(*getVariant)
	v.records = make([]*Record, len(keys))
	v.done = rec.done

	e.start()
	subs := h.submitter.take()
	require.Len(t, subs, 2)
	require.Equal(t, "A", subs[0].node.Name())
	require.Equal(t, 2, e.outstanding)

	subs[1].respondFound(t)
	require.Equal(t, 1, e.outstanding)

	subs[0].onError(fmt.Errorf("dial A: %w", ErrConnection))

	require.Len(t, h.partitioner.calls, 2)
	retry := h.partitioner.calls[1]
	require.Equal(t, []int{0, 1, 2}, retry.indices)
	require.Equal(t, 1, retry.sequence)
	require.Equal(t, "A", retry.exclude)
	require.Equal(t, 1, e.sequence)

	retries := h.submitter.take()
	require.Len(t, retries, 2)
	require.Equal(t, "B", retries[0].node.Name())
	require.Equal(t, []int{0}, retries[0].indices())
	require.Equal(t, "C", retries[1].node.Name())
	require.Equal(t, []int{1, 2}, retries[1].indices())
	require.Equal(t, 2, e.outstanding)
	require.Empty(t, e.pendingWork())
	require.Empty(t, h.loop.scheduled, "a split retry is not delayed")

	retries[0].respondFound(t)
	require.Empty(t, rec.results)
	retries[1].respondFound(t)

	res := rec.single(t)
	require.NoError(t, res.Err)
	for i, r := range res.Value {
		require.NotNil(t, r, "record %d", i)
	}
	require.Equal(t, []int{2}, h.metrics.splits)
}

func TestRetryFanOutAccounting(t *testing.T) {
	h := newHarness(map[int][]string{
		0: {"A", "B"},
		1: {"A", "C"},
		2: {"A", "D"},
	})
	keys := testKeys(t, 3)
	rec := &resultRecorder[[]bool]{}
	e := newExecutor(h.env, testPolicy(), keys, &existsVariant{keys: keys, exists: make([]bool, 3), done: rec.done})

	e.start()
	subs := h.submitter.take()
	require.Len(t, subs, 1)
	require.Equal(t, 1, e.outstanding)

	subs[0].onError(ErrNodeDown)
	retries := h.submitter.take()
	require.Len(t, retries, 3)
	require.Equal(t, 3, e.outstanding, "three replacements for one command add two")

	retries[2].respondFound(t)
	retries[0].respondFound(t)
	require.Empty(t, rec.results)
	require.Equal(t, 1, e.outstanding)

	retries[1].respondFound(t)
	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Equal(t, []bool{true, true, true}, res.Value)
}

func TestRetrySplitsAgainWhenReplacementFails(t *testing.T) {
	h := newHarness(map[int][]string{
		0: {"A", "B"},
		1: {"A", "C", "D"},
		2: {"A", "C", "E"},
		3: {"A", "B"},
	})
	keys := testKeys(t, 4)
	rec := &resultRecorder[[]bool]{}
	e := newExecutor(h.env, testPolicy(), keys, &existsVariant{keys: keys, exists: make([]bool, 4), done: rec.done})

	e.start()
	first := h.submitter.take()
	require.Len(t, first, 1)
	require.Equal(t, "A", first[0].node.Name())
	require.Equal(t, 1, e.outstanding)

	first[0].onError(ErrConnection)
	second := h.submitter.take()
	require.Len(t, second, 2)
	require.Equal(t, "B", second[0].node.Name())
	require.Equal(t, []int{0, 3}, second[0].indices())
	require.Equal(t, "C", second[1].node.Name())
	require.Equal(t, []int{1, 2}, second[1].indices())
	require.Equal(t, 2, e.outstanding)
	require.Equal(t, 1, e.sequence)

	second[1].onError(ErrNodeTimeout)
	third := h.submitter.take()
	require.Len(t, third, 2)
	require.Equal(t, "D", third[0].node.Name())
	require.Equal(t, []int{1}, third[0].indices())
	require.Equal(t, "E", third[1].node.Name())
	require.Equal(t, []int{2}, third[1].indices())
	require.Equal(t, 3, e.outstanding)
	require.Equal(t, 2, e.sequence)
	require.Empty(t, e.pendingWork())

	retry := h.partitioner.calls[2]
	require.Equal(t, []int{1, 2}, retry.indices)
	require.Equal(t, 2, retry.sequence)
	require.Equal(t, "C", retry.exclude)

	third[1].respondFound(t)
	second[0].respondFound(t)
	require.Empty(t, rec.results)
	require.Equal(t, 1, e.outstanding)

	third[0].respondFound(t)
	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Equal(t, []bool{true, true, true, true}, res.Value)
	require.Equal(t, []int{2, 2}, h.metrics.splits)
	require.Equal(t, []bool{true}, h.metrics.completed)
}

func TestRetryOnSameNodeResends(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}})
	keys := testKeys(t, 2)
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), keys, rec.done)
	first := h.submitter.take()
	require.Len(t, first, 1)

	first[0].onError(ErrNodeTimeout)
	require.Empty(t, h.submitter.submissions, "single assignment on the failed node is not a split")
	require.Empty(t, h.metrics.splits)
	require.Equal(t, []time.Duration{10 * time.Millisecond}, h.loop.delays)

	h.loop.runScheduled()
	second := h.submitter.take()
	require.Len(t, second, 1)
	require.Equal(t, "A", second[0].node.Name())
	require.Equal(t, []int{0, 1}, second[0].indices())

	second[0].respondFound(t, 1)
	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Equal(t, []bool{true, false}, res.Value)
}

func TestMasterModeNeverRepartitions(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A", "B"}})
	policy := testPolicy()
	policy.Replica = ReplicaMaster
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, policy, testKeys(t, 1), rec.done)
	h.submitter.take()[0].onError(ErrConnection)

	require.Len(t, h.partitioner.calls, 1)
	h.loop.runScheduled()
	resend := h.submitter.take()
	require.Len(t, resend, 1)
	require.Equal(t, "A", resend[0].node.Name())
}

func TestRetryPartitionErrorFallsBackToResend(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A", "B"}})
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 1), rec.done)
	h.partitioner.err = ErrNoNodes
	h.submitter.take()[0].onError(ErrConnection)
	h.loop.runScheduled()

	resend := h.submitter.take()
	require.Len(t, resend, 1)
	require.Equal(t, "A", resend[0].node.Name())
	require.Empty(t, rec.results)
}

func TestRetriesExhausted(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	policy := testPolicy()
	policy.MaxRetries = 1
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, policy, testKeys(t, 1), rec.done)
	h.submitter.take()[0].onError(ErrConnection)
	h.loop.runScheduled()
	h.submitter.take()[0].onError(ErrConnection)

	res := rec.single(t)
	require.ErrorIs(t, res.Err, ErrConnection)
	require.Nil(t, res.Value)
	require.Empty(t, h.loop.scheduled)
}

func TestReplacementsInheritIteration(t *testing.T) {
	h := newHarness(map[int][]string{
		0: {"A", "B", "C"},
		1: {"A", "C", "B"},
	})
	policy := testPolicy()
	policy.MaxRetries = 1
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, policy, testKeys(t, 2), rec.done)
	h.submitter.take()[0].onError(ErrConnection)
	retries := h.submitter.take()
	require.Len(t, retries, 2)

	retries[0].onError(ErrConnection)
	res := rec.single(t)
	require.ErrorIs(t, res.Err, ErrConnection)
}

func TestNonRetryableErrorFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A", "B"}, 1: {"C", "B"}})
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 2), rec.done)
	subs := h.submitter.take()
	require.Len(t, subs, 2)

	queuesFull := &Error{Code: ResultBatchQueuesFull, Msg: "queues full", Node: "A"}
	subs[0].onError(queuesFull)

	res := rec.single(t)
	require.ErrorIs(t, res.Err, queuesFull)
	require.Len(t, h.partitioner.calls, 1)
	require.Empty(t, h.loop.scheduled)

	// the other node answering late must not produce a second callback
	subs[1].respondFound(t)
	require.Len(t, rec.results, 1)
	require.Equal(t, []bool{false}, h.metrics.completed)
}

func TestResponseLevelRetryableCode(t *testing.T) {
	require.True(t, IsRetryable(&Error{Code: ResultTimeout}))
	require.True(t, IsRetryable(&Error{Code: ResultServerNotAvailable}))
	require.False(t, IsRetryable(&Error{Code: ResultBatchMaxRequests}))
	require.False(t, IsRetryable(&Error{Code: ResultNotAuthenticated}))
}

func TestTotalTimeoutDuringRetry(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	policy := testPolicy()
	policy.MaxRetries = 10
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, policy, testKeys(t, 1), rec.done)
	h.advance(2 * time.Second)
	h.submitter.take()[0].onError(ErrNodeTimeout)

	res := rec.single(t)
	require.ErrorIs(t, res.Err, ErrTotalTimeout)
	require.False(t, IsRetryable(res.Err))
}

func TestTotalTimeoutBeforeResend(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 1), rec.done)
	h.submitter.take()[0].onError(ErrNodeTimeout)
	h.advance(time.Second)
	h.loop.runScheduled()

	require.Empty(t, h.submitter.submissions)
	require.ErrorIs(t, rec.single(t).Err, ErrTotalTimeout)
}

// --------------------------------------------------------------------------
// Response Parsing
// --------------------------------------------------------------------------

func TestDigestMismatchFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}, 2: {"B"}})
	keys := testKeys(t, 3)
	rec := &resultRecorder[[]*Record]{}

	GetArray(h.env, testPolicy(), keys, nil, 0, rec.done)
	subs := h.submitter.take()
	require.Len(t, subs, 2)

	subs[0].respondRows(t, []Row{
		{Namespace: "test", Digest: keys[0].Digest, ResultCode: ResultOK},
		{Namespace: "test", Digest: keys[2].Digest, ResultCode: ResultOK},
	})

	res := rec.single(t)
	var unexpected *UnexpectedKeyError
	require.ErrorAs(t, res.Err, &unexpected)
	require.Equal(t, 1, unexpected.Index)
	require.Equal(t, "test", unexpected.Namespace)
	require.Equal(t, keys[2].Digest, unexpected.Digest)
	require.Nil(t, res.Value, "partial results are discarded")
	require.Len(t, h.partitioner.calls, 1, "desync is never retried")

	subs[1].respondFound(t)
	require.Len(t, rec.results, 1)
}

func TestExistsRowWithBinsFailsCall(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}})
	keys := testKeys(t, 1)
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), keys, rec.done)
	h.submitter.take()[0].respondRows(t, []Row{{
		Namespace:  "test",
		Digest:     keys[0].Digest,
		ResultCode: ResultOK,
		OpCount:    2,
		Bins:       map[string][]byte{"a": nil, "b": nil},
	}})

	var unrequested *UnrequestedDataError
	require.ErrorAs(t, rec.single(t).Err, &unrequested)
	require.Equal(t, 0, unrequested.Index)
	require.Equal(t, 2, unrequested.OpCount)
}

func TestRowCountMismatch(t *testing.T) {
	for _, tc := range []struct {
		name string
		rows func(keys []*Key) []Row
	}{
		{
			name: "missing row",
			rows: func(keys []*Key) []Row {
				return []Row{{Digest: keys[0].Digest}}
			},
		},
		{
			name: "extra row",
			rows: func(keys []*Key) []Row {
				return []Row{{Digest: keys[0].Digest}, {Digest: keys[1].Digest}, {Digest: keys[1].Digest}}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}})
			keys := testKeys(t, 2)
			rec := &resultRecorder[[]bool]{}

			ExistsArray(h.env, testPolicy(), keys, rec.done)
			h.submitter.take()[0].respondRows(t, tc.rows(keys))

			var parseErr *ParseError
			require.ErrorAs(t, rec.single(t).Err, &parseErr)
		})
	}
}

func TestUndecodableResponseIsNotRetried(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A", "B"}})
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 1), rec.done)
	h.submitter.take()[0].onResponse([]byte("not json"))

	var parseErr *ParseError
	require.ErrorAs(t, rec.single(t).Err, &parseErr)
	require.Len(t, h.partitioner.calls, 1)
}

func TestLateCallbacksAreDropped(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"B"}, 2: {"C"}})
	rec := &resultRecorder[[]bool]{}

	ExistsArray(h.env, testPolicy(), testKeys(t, 3), rec.done)
	subs := h.submitter.take()
	require.Len(t, subs, 3)

	subs[0].onError(errBoom)
	subs[1].onError(ErrConnection)
	subs[2].respondFound(t)

	require.ErrorIs(t, rec.single(t).Err, errBoom)
	require.Empty(t, h.submitter.submissions)
	require.Empty(t, h.loop.scheduled)
}

// --------------------------------------------------------------------------
// Streaming
// --------------------------------------------------------------------------

func TestGetStreamDeliversRows(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"B"}, 2: {"A"}})
	keys := testKeys(t, 3)
	rec := &streamRecorder[string]{}

	GetStream(h.env, testPolicy(), keys, nil, 0, func(k *Key, r *Record) {
		rec.items = append(rec.items, fmt.Sprintf("%s=%v", k.UserKey, r != nil))
	}, rec.end)

	subs := h.submitter.take()
	require.Len(t, subs, 2)
	subs[1].respondFound(t)
	require.Equal(t, []string{"user-1=true"}, rec.items)
	require.Empty(t, rec.ends)

	subs[0].respondFound(t, 2)
	require.Equal(t, []string{"user-1=true", "user-0=true", "user-2=false"}, rec.items)
	require.Equal(t, []error{nil}, rec.ends)
}

func TestStreamDropsRowsAfterFailure(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"B"}})
	keys := testKeys(t, 2)
	rec := &streamRecorder[bool]{}

	ExistsStream(h.env, testPolicy(), keys, func(_ *Key, ok bool) {
		rec.items = append(rec.items, ok)
	}, rec.end)

	subs := h.submitter.take()
	subs[0].onError(errBoom)
	subs[1].respondFound(t)

	require.Empty(t, rec.items)
	require.Len(t, rec.ends, 1)
	require.True(t, errors.Is(rec.ends[0], errBoom))
}

func TestReadListFillsRecords(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"B"}, 2: {"A"}})
	keys := testKeys(t, 3)
	reads := []*BatchRead{
		NewBatchRead(keys[0]),
		NewBatchRead(keys[1], "v"),
		{Key: keys[2]},
	}
	rec := &resultRecorder[[]*BatchRead]{}

	ReadList(h.env, testPolicy(), reads, rec.done)
	subs := h.submitter.take()
	require.Len(t, subs, 2)

	a := subs[0].request.Entries
	require.Equal(t, ReadAttrRead|ReadAttrGetAll, a[0].ReadAttr)
	require.Equal(t, ReadAttrRead|ReadAttrNoBinData, a[1].ReadAttr)
	require.Equal(t, ReadAttrRead, subs[1].request.Entries[0].ReadAttr)
	require.Equal(t, []string{"v"}, subs[1].request.Entries[0].BinNames)

	subs[0].respondFound(t)
	subs[1].respondFound(t, 1)

	res := rec.single(t)
	require.NoError(t, res.Err)
	require.Same(t, reads[0], res.Value[0])
	require.NotNil(t, reads[0].Record)
	require.Nil(t, reads[1].Record)
	require.NotNil(t, reads[2].Record)
	require.Equal(t, uint32(1), reads[2].Record.Generation)
}

func TestReadListStream(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"A"}})
	keys := testKeys(t, 2)
	reads := []*BatchRead{NewBatchRead(keys[0]), NewBatchRead(keys[1])}
	rec := &streamRecorder[*BatchRead]{}

	ReadListStream(h.env, testPolicy(), reads, func(r *BatchRead) {
		rec.items = append(rec.items, r)
	}, rec.end)
	h.submitter.take()[0].respondFound(t)

	require.Len(t, rec.items, 2)
	for i, item := range rec.items {
		require.Same(t, reads[i].Key, item.Key)
		require.NotNil(t, item.Record)
		require.Nil(t, reads[i].Record, "stream items are copies, the requests stay untouched")
	}
	require.Equal(t, []error{nil}, rec.ends)
}

func TestReadListFailureLeavesRequestsUntouched(t *testing.T) {
	h := newHarness(map[int][]string{0: {"A"}, 1: {"B"}})
	keys := testKeys(t, 2)
	previous := &Record{Generation: 7}
	reads := []*BatchRead{NewBatchRead(keys[0]), {Key: keys[1], Record: previous}}
	rec := &resultRecorder[[]*BatchRead]{}

	ReadList(h.env, testPolicy(), reads, rec.done)
	subs := h.submitter.take()
	require.Len(t, subs, 2)

	subs[0].respondFound(t)
	require.Nil(t, reads[0].Record, "rows are not written before the call succeeds")

	subs[1].onError(errBoom)
	require.ErrorIs(t, rec.single(t).Err, errBoom)
	require.Nil(t, reads[0].Record)
	require.Same(t, previous, reads[1].Record)
}
