// Package cluster maps keys to the nodes that serve them.
//
// A Topology lists nodes, namespaces, the partition count and the replication
// factor. Every record digest belongs to one partition (the little endian
// uint32 of the first four digest bytes modulo the partition count), and every
// partition has a fixed replica list computed by rendezvous hashing. The first
// replica is the master, the others are proles.
//
// Cluster implements batch.Partitioner. Which replica serves a read depends
// on the replica mode of the batch policy and the attempt sequence:
//
//   - master: always the master, fails if it is not active
//   - master-proles: rotates over all replicas by partition and sequence
//   - sequence: starts at replica (sequence mod n) and skips inactive nodes
//     and the node that just failed
//   - prefer-rack: like sequence, but replicas on the client's rack first
//
// The excluded node is only chosen again if it is the last active replica.
// Topologies are loaded from YAML files and can be replaced at runtime with
// Update; every Assign call works on a single snapshot.
package cluster
