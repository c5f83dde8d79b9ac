package eventloop

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbatch/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("eventloop")

// task is one callback queued on a loop.
type task struct {
	fn func()
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// Loop runs callbacks one after another on a single worker goroutine. It
// implements batch.EventLoop. Execute and Schedule never block.
type Loop struct {
	id     int
	queue  *util.LockFreeMPSC[task]
	worker sync.WaitGroup
	closed atomic.Bool

	// executed counts finished tasks, used by tests and stats
	executed atomic.Uint64
}

// NewLoop creates a loop and starts its worker.
func NewLoop(id int) *Loop {
	l := &Loop{
		id:    id,
		queue: util.NewLockFreeMPSC[task](),
	}
	l.worker.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.worker.Done()
	for t := range l.queue.Recv() {
		l.runTask(t)
	}
}

// runTask executes one task. A panicking task is logged and does not stop
// the loop.
func (l *Loop) runTask(t *task) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("loop %d: task panicked: %v\n%s", l.id, r, debug.Stack())
		}
		l.executed.Add(1)
	}()
	t.fn()
}

// Execute queues fn on the loop. Tasks queued after Close are dropped.
func (l *Loop) Execute(fn func()) {
	if fn == nil {
		return
	}
	if !l.queue.Push(&task{fn: fn}) {
		Logger.Warningf("loop %d is closed, dropping task", l.id)
	}
}

// Schedule queues fn on the loop once delay has passed.
func (l *Loop) Schedule(delay time.Duration, fn func()) {
	if delay <= 0 {
		l.Execute(fn)
		return
	}
	time.AfterFunc(delay, func() {
		if l.closed.Load() {
			return
		}
		l.Execute(fn)
	})
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Executed returns the number of tasks run so far.
func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}

// Close stops accepting tasks, runs the tasks already queued and waits for
// the worker to exit.
func (l *Loop) Close() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	l.queue.Close()
	l.worker.Wait()
}

func (l *Loop) String() string {
	return fmt.Sprintf("loop-%d", l.id)
}

// --------------------------------------------------------------------------
// Group
// --------------------------------------------------------------------------

// Group is a fixed set of loops. Independent calls are spread over the
// loops round robin; all callbacks of one call stay on the loop it got.
type Group struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewGroup starts size loops (at least one).
func NewGroup(size int) *Group {
	if size < 1 {
		size = 1
	}
	g := &Group{loops: make([]*Loop, size)}
	for i := range g.loops {
		g.loops[i] = NewLoop(i)
	}
	return g
}

// Next returns the next loop in round robin order.
func (g *Group) Next() *Loop {
	n := g.next.Add(1) - 1
	return g.loops[n%uint64(len(g.loops))]
}

// Size returns the number of loops.
func (g *Group) Size() int {
	return len(g.loops)
}

// Close closes all loops.
func (g *Group) Close() {
	for _, l := range g.loops {
		l.Close()
	}
}
