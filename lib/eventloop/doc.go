// Package eventloop provides single worker loops that serialize the callbacks
// of batch calls.
//
// Every batch call is bound to one Loop. Its start, all node responses, all
// node errors and all delayed retries run as tasks on that loop, so the call
// state needs no locks. Tasks are queued on a util.LockFreeMPSC, which means
// producers (transport goroutines and timers) never block on a busy loop.
//
// A Group spreads independent calls over several loops.
package eventloop
