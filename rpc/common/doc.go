// Package common provides the data structures shared by the batch client and
// the node server. It defines the wire messages, configuration structures and
// the logger format used by every package of the module.
//
// Key Components:
//
//   - BatchRequest / BatchResponse: the messages exchanged with a node. A
//     request lists entries (namespace, digest, bin selection, read flags),
//     the response carries one row per entry in the same order, or a
//     response level result code if the node rejected the whole request.
//
//   - OpCode: enumeration of the supported operations, encoded as a string
//     in JSON.
//
//   - ServerConfig / ClientConfig: configuration of node servers and batch
//     clients, including the transport settings and the batch policy.
//
//   - Logger: custom formatting for the dragonboat logger package, which all
//     packages use through logger.GetLogger.
package common
