// Package util holds small concurrency helpers shared by the client and the
// node server.
//
// The main type is LockFreeMPSC, an unbounded multi-producer single-consumer
// queue. It is the task queue of every event loop (see package eventloop) and
// the buffer behind streaming batch results, where the producer is an event
// loop that must never block on a slow consumer.
//
// Features and Guarantees:
//
//   - Lock-Free Push: producers append with CAS on the tail, no mutex on the hot path
//   - Unbounded Size: a producer is never blocked by the consumer
//   - Per-Producer FIFO: items pushed by one goroutine are received in push order
//   - Drain on Close: items pushed before Close are still delivered, then Recv is closed
package util
