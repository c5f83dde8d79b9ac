package batch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("batch")

// --------------------------------------------------------------------------
// Variant Contract
// --------------------------------------------------------------------------

// variant is the row handling and delivery policy of one call type. All
// methods run on the call's event loop.
type variant interface {
	// name is used for metrics and logs
	name() string
	// entry describes how the key at index idx is requested
	entry(idx int) Entry
	// checkRow validates a row before its digest is compared
	checkRow(idx int, row *Row) error
	// handleRow stores or delivers the row of the key at index idx
	handleRow(idx int, key *Key, row *Row)
	// succeed delivers the terminal success
	succeed()
	// fail delivers the terminal failure
	fail(err error)
}

// --------------------------------------------------------------------------
// Executor
// --------------------------------------------------------------------------

// workItem is an assignment waiting to be turned into a command.
type workItem struct {
	assignment *Assignment
	sequence   int
	iteration  int
}

// executor owns the commands of one logical batch call. Its state is only
// touched on env.Loop, so it needs no locking.
type executor struct {
	id      string
	env     *Env
	policy  *Policy
	keys    []*Key
	variant variant

	// state, changed only through the methods below
	outstanding int
	done        bool
	sequence    int
	started     time.Time
	deadline    time.Time

	// assignments not yet submitted, drained iteratively
	work     []workItem
	draining bool
}

func newExecutor(env *Env, policy *Policy, keys []*Key, v variant) *executor {
	return &executor{
		id:      uuid.NewString(),
		env:     env,
		policy:  policy,
		keys:    keys,
		variant: v,
	}
}

// execute validates the call and starts the executor on its loop. It never
// blocks the caller.
func execute(env *Env, policy *Policy, keys []*Key, v variant) {
	if err := env.validate(); err != nil {
		v.fail(err)
		return
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	e := newExecutor(env, policy, keys, v)
	env.Loop.Execute(e.start)
}

// start partitions all keys once and submits one command per assignment.
func (e *executor) start() {
	e.started = e.env.now()
	if e.policy.TotalTimeout > 0 {
		e.deadline = e.started.Add(e.policy.TotalTimeout)
	}

	if len(e.keys) == 0 {
		e.done = true
		e.finish(nil)
		return
	}

	indices := make([]int, len(e.keys))
	for i, key := range e.keys {
		if key == nil || len(key.Digest) == 0 {
			e.commandFailed(NewError(ResultClientInvalidArgument, fmt.Sprintf("key at index %d is nil or has no digest", i)))
			return
		}
		indices[i] = i
	}

	assignments, err := e.env.Partitioner.Assign(e.keys, indices, e.policy, 0, nil)
	if err != nil {
		e.commandFailed(fmt.Errorf("failed to partition batch keys: %w", err))
		return
	}
	if len(assignments) == 0 {
		e.commandFailed(&ParseError{Msg: "partitioner returned no assignments"})
		return
	}

	Logger.Debugf("call %s (%s): %d keys on %d nodes", e.id, e.variant.name(), len(e.keys), len(assignments))

	e.outstanding = len(assignments)
	for _, a := range assignments {
		e.work = append(e.work, workItem{assignment: a})
	}
	e.drain()
}

// drain turns pending work into commands. All commands of one round are
// built before the first is submitted. A drain triggered from inside a
// submission only enqueues, the running drain picks the work up.
func (e *executor) drain() {
	if e.draining {
		return
	}
	e.draining = true
	defer func() { e.draining = false }()

	for len(e.work) > 0 && !e.done {
		round := e.work
		e.work = nil

		cmds := make([]*command, len(round))
		for i, w := range round {
			cmds[i] = newCommand(e, w)
		}
		for _, c := range cmds {
			c.submit()
		}
	}
}

// --------------------------------------------------------------------------
// State Transitions (used by commands)
// --------------------------------------------------------------------------

func (e *executor) isDone() bool {
	return e.done
}

// commandSucceeded retires one command and completes the call when it was the last.
func (e *executor) commandSucceeded() {
	if e.done {
		return
	}
	e.outstanding--
	if e.outstanding == 0 {
		e.done = true
		e.finish(nil)
	}
}

// commandFailed ends the call with err unless it already ended.
func (e *executor) commandFailed(err error) {
	if e.done {
		Logger.Debugf("call %s: dropping late failure: %v", e.id, err)
		return
	}
	e.done = true
	e.finish(err)
}

// nextSequence returns the attempt sequence following from and records it.
func (e *executor) nextSequence(from int) int {
	next := from + 1
	if next > e.sequence {
		e.sequence = next
	}
	return next
}

// replaceWithRetry swaps failed for one command per assignment. The
// outstanding count is adjusted before anything is submitted, so it never
// reaches zero while the retry is in flight.
func (e *executor) replaceWithRetry(failed *command, assignments []*Assignment, sequence, iteration int) {
	e.outstanding += len(assignments) - 1
	for _, a := range assignments {
		e.work = append(e.work, workItem{assignment: a, sequence: sequence, iteration: iteration})
	}
	e.env.metrics().RetrySplit(failed.node().Name(), len(assignments))
	Logger.Debugf("call %s: keys of node %s split into %d commands (sequence %d)",
		e.id, failed.node().Name(), len(assignments), sequence)
	e.drain()
}

// attemptTimeout returns the timeout of the next node request, or false if
// the total timeout has already passed.
func (e *executor) attemptTimeout() (time.Duration, bool) {
	timeout := e.policy.SocketTimeout
	if e.deadline.IsZero() {
		return timeout, true
	}
	remaining := e.deadline.Sub(e.env.now())
	if remaining <= 0 {
		return 0, false
	}
	if timeout <= 0 || remaining < timeout {
		timeout = remaining
	}
	return timeout, true
}

func (e *executor) deadlineExceeded() bool {
	return !e.deadline.IsZero() && !e.env.now().Before(e.deadline)
}

// finish delivers the terminal outcome, exactly once per call.
func (e *executor) finish(err error) {
	e.env.metrics().CallCompleted(e.variant.name(), err == nil, e.env.now().Sub(e.started))
	if err != nil {
		Logger.Debugf("call %s (%s) failed: %v", e.id, e.variant.name(), err)
		e.variant.fail(err)
		return
	}
	e.variant.succeed()
}

// pendingWork returns a copy of the assignments waiting for submission.
func (e *executor) pendingWork() []workItem {
	out := make([]workItem, len(e.work))
	copy(out, e.work)
	return out
}
