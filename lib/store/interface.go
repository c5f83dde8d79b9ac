package store

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Record is one stored record. Bins must not be modified after Put.
type Record struct {
	SetName string
	Bins    map[string][]byte
	// Generation counts the writes of the record, starting at 1
	Generation uint32
	// Expiration is the unix second the record expires at, 0 means never
	Expiration uint32
}

// IStore is the record store a node serves batch reads from. Records are
// addressed by namespace and 20 byte digest.
// All methods return a *Error (nil on success) for invalid input.
type IStore interface {
	// Put inserts or replaces a record. A ttl of zero means the record never
	// expires. The stored record (with its new generation) is returned.
	Put(namespace string, digest []byte, setName string, bins map[string][]byte, ttl uint32) (*Record, error)
	// Get returns the record of digest. The boolean is false if the record
	// does not exist or is expired.
	Get(namespace string, digest []byte) (rec *Record, loaded bool, err error)
	// Has reports whether a record exists and is not expired.
	Has(namespace string, digest []byte) (loaded bool, err error)
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(namespace string, digest []byte) error
	// HasNamespace reports whether the namespace is served by this store.
	HasNamespace(namespace string) bool
	// Range calls fn for every live record of namespace in digest order
	// until fn returns false.
	Range(namespace string, fn func(digest []byte, rec *Record) bool) error
	// GetInfo returns record counts per namespace.
	GetInfo() Info
}

// Info is a snapshot of the store contents.
type Info struct {
	Namespaces map[string]int
	Writes     uint64
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCNamespaceNotFound:
		errorCode = "NamespaceNotFound"
	case RetCInvalidArgument:
		errorCode = "InvalidArgument"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("StoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Command executed successfully.
	RetCInternalError                    // 1: Command failed due to an internal error.
	RetCNamespaceNotFound                // 2: Namespace is not served by the store.
	RetCInvalidArgument                  // 3: Invalid digest or record.
)
