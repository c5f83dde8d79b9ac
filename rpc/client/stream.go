package client

import (
	"sync"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/lib/util"
)

// KeyRecord is one item of a get stream. Record is nil if the key was not found.
type KeyRecord struct {
	Key    *batch.Key
	Record *batch.Record
}

// KeyExists is one item of an exists stream.
type KeyExists struct {
	Key    *batch.Key
	Exists bool
}

// Stream delivers the items of a streaming batch call. Items are queued
// without bound, so the event loop never waits for the consumer.
//
//	stream := c.GetStream(ctx, keys)
//	defer stream.Close()
//	for item := range stream.Items() {
//		...
//	}
//	if err := stream.Err(); err != nil {
//		...
//	}
type Stream[T any] struct {
	queue *util.LockFreeMPSC[T]

	mu       sync.Mutex
	err      error
	finished bool
	stop     func() bool
}

func newStream[T any]() *Stream[T] {
	return &Stream[T]{queue: util.NewLockFreeMPSC[T]()}
}

// Items returns the channel items are delivered on. It is closed after the
// last item, once the call ended.
func (s *Stream[T]) Items() <-chan *T {
	return s.queue.Recv()
}

// Err returns the error that ended the call. It is only meaningful after
// Items was closed, nil means every key was delivered.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops delivery and discards undelivered items. It is safe to call
// Close after the stream ended.
func (s *Stream[T]) Close() {
	s.finish(errStreamClosed)
	go func() {
		for range s.queue.Recv() {
		}
	}()
}

// push queues one item, items after the end are dropped
func (s *Stream[T]) push(item *T) {
	s.queue.Push(item)
}

// finish records the terminal error and closes the queue. Only the first
// call has an effect.
func (s *Stream[T]) finish(err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.err = err
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.queue.Close()
}
