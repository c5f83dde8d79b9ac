// Package lstore implements a local, in-memory record store based on the
// store.IStore interface. Data is not persisted between process restarts.
//
// Key Features:
//   - One skip list per namespace, ordered by digest bytes
//   - Lock-free reads, writes are serialized to keep generations monotonic
//   - Time-to-live per record, expired records are invisible to reads
//
// Usage Example:
//
//	s := lstore.NewLocalStore("test")
//	digest, _ := batch.ComputeDigest("users", "alice")
//	_, err := s.Put("test", digest, "users", map[string][]byte{"name": []byte("Alice")}, 0)
//
//	rec, exists, err := s.Get("test", digest)
package lstore
