// Package serializer converts the batch messages of the common package to and
// from bytes. Client and server must use the same implementation.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format with a size computed up front,
//     so every message is written with a single allocation. Optional fields are
//     marked by flag bits and only written when present.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Each
//     message carries its type description, which makes it the largest format
//     for small batches.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.SerializeRequest(common.NewBatchReadRequest(1000, entries))
//	// ... send data, receive reply ...
//	var resp common.BatchResponse
//	err = s.DeserializeResponse(reply, &resp)
package serializer
