// Package store defines the record store a node serves batch reads from.
//
// Records are addressed by namespace and digest (see batch.ComputeDigest) and
// carry named bins, a generation counter and an optional expiration. The
// store is the server side of the system: it is filled from a YAML seed file
// (see LoadSeed) and read by the rpc server when answering batch requests.
//
// Key Components:
//
//   - IStore Interface: the operations the rpc server and the seed loader use.
//     Invalid input is reported as *Error with a RetCode.
//
//   - Seed Files: YAML documents listing records per namespace, used to
//     start nodes with known data for tests and benchmarks.
//
// Implementations:
//
//	- Local Store (lstore): an in-memory store built on ordered skip lists.
//	  Available in the "github.com/ValentinKolb/dbatch/lib/store/lstore" package.
package store
