package batch

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// command is the request for one assignment against one node. A command may
// be resent to the same node, or replaced by commands for other nodes.
type command struct {
	exec       *executor
	assignment *Assignment
	sequence   int
	iteration  int
}

func newCommand(e *executor, w workItem) *command {
	return &command{
		exec:       e,
		assignment: w.assignment,
		sequence:   w.sequence,
		iteration:  w.iteration,
	}
}

func (c *command) node() Node {
	return c.assignment.Node
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// submit encodes the request for the assigned keys and hands it to the
// submitter. The response arrives later on the executor's loop.
func (c *command) submit() {
	e := c.exec
	if e.isDone() {
		return
	}

	timeout, ok := e.attemptTimeout()
	if !ok {
		e.commandFailed(fmt.Errorf("%w before request to node %s", ErrTotalTimeout, c.node().Name()))
		return
	}

	buf, err := e.env.Encoder.EncodeBatchRead(c.request(timeout))
	if err != nil {
		e.commandFailed(fmt.Errorf("failed to encode batch request for node %s: %w", c.node().Name(), err))
		return
	}

	e.env.metrics().CommandSubmitted(c.node().Name())
	e.env.Submitter.Submit(e.env.Loop, c.node(), buf, timeout, c.onResponse, c.onError)
}

// request lists the entries in the order rows are expected back.
func (c *command) request(timeout time.Duration) *Request {
	entries := make([]Entry, len(c.assignment.KeyIndices))
	for i, idx := range c.assignment.KeyIndices {
		entries[i] = c.exec.variant.entry(idx)
	}
	return &Request{
		Policy:  c.exec.policy,
		Timeout: timeout,
		Entries: entries,
	}
}

// --------------------------------------------------------------------------
// Response Handling
// --------------------------------------------------------------------------

func (c *command) onResponse(buf []byte) {
	e := c.exec
	if e.isDone() {
		return
	}

	rows, err := e.env.Decoder.DecodeBatchRead(buf)
	if err != nil {
		var batchErr *Error
		if errors.As(err, &batchErr) && batchErr.Node == "" {
			batchErr.Node = c.node().Name()
		}
		c.onError(err)
		return
	}

	if err := c.parseRows(rows); err != nil {
		e.env.metrics().CommandFailed(c.node().Name(), false)
		e.commandFailed(err)
		return
	}
	e.commandSucceeded()
}

// parseRows matches row i with the key at KeyIndices[i]. The first mismatch
// stops parsing, nothing after it can be trusted.
func (c *command) parseRows(rows []Row) error {
	e := c.exec
	indices := c.assignment.KeyIndices

	for i := range rows {
		if i >= len(indices) {
			return &ParseError{Msg: fmt.Sprintf("node %s returned %d rows for %d keys", c.node().Name(), len(rows), len(indices))}
		}
		row := &rows[i]
		idx := indices[i]
		key := e.keys[idx]

		if err := e.variant.checkRow(idx, row); err != nil {
			return err
		}
		if !bytes.Equal(row.Digest, key.Digest) {
			return &UnexpectedKeyError{
				Namespace: row.Namespace,
				Digest:    row.Digest,
				Index:     idx,
			}
		}
		e.variant.handleRow(idx, key, row)
	}

	if len(rows) != len(indices) {
		return &ParseError{Msg: fmt.Sprintf("node %s returned %d rows for %d keys", c.node().Name(), len(rows), len(indices))}
	}
	return nil
}

// --------------------------------------------------------------------------
// Failure Handling
// --------------------------------------------------------------------------

// onError decides between failing the call, re-partitioning the keys over
// other nodes and resending to the same node.
func (c *command) onError(err error) {
	e := c.exec
	if e.isDone() {
		return
	}

	retryable := IsRetryable(err)
	e.env.metrics().CommandFailed(c.node().Name(), retryable)

	if !retryable {
		e.commandFailed(err)
		return
	}
	if e.deadlineExceeded() {
		e.commandFailed(fmt.Errorf("%w after %d attempts on node %s: %v", ErrTotalTimeout, c.iteration+1, c.node().Name(), err))
		return
	}
	if c.iteration >= e.policy.MaxRetries {
		e.commandFailed(fmt.Errorf("batch request to node %s failed after %d attempts: %w", c.node().Name(), c.iteration+1, err))
		return
	}

	c.iteration++
	c.sequence = e.nextSequence(c.sequence)
	Logger.Debugf("call %s: retrying keys of node %s (attempt %d, sequence %d): %v",
		e.id, c.node().Name(), c.iteration+1, c.sequence, err)

	if c.retryBatch() {
		return
	}

	// same node resend
	e.env.Loop.Schedule(e.policy.SleepBetweenRetries, func() {
		if e.isDone() {
			return
		}
		c.submit()
	})
}

// retryBatch re-partitions the keys of this command with the next sequence,
// excluding the failed node. It returns false if nothing can be gained, in
// which case the caller resends to the same node.
func (c *command) retryBatch() bool {
	e := c.exec
	if e.isDone() || !e.policy.AllowsRepartition() {
		return false
	}

	assignments, err := e.env.Partitioner.Assign(e.keys, c.assignment.KeyIndices, e.policy, c.sequence, c.node())
	if err != nil {
		Logger.Warningf("call %s: re-partitioning keys of node %s failed: %v", e.id, c.node().Name(), err)
		return false
	}
	if len(assignments) == 0 {
		return false
	}
	if len(assignments) == 1 && sameNode(assignments[0].Node, c.node()) {
		return false
	}

	e.replaceWithRetry(c, assignments, c.sequence, c.iteration)
	return true
}

func sameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name() == b.Name()
}
