package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// BatchEntry is one key of a batch request. Rows of the response follow the
// order of the entries.
type BatchEntry struct {
	Namespace string   `json:"ns"`
	SetName   string   `json:"set,omitempty"`
	Digest    []byte   `json:"digest"`
	BinNames  []string `json:"bins,omitempty"` // Used if ReadAttr has no GetAll or NoBinData flag
	ReadAttr  uint8    `json:"read_attr"`      // ReadAttr flags
}

// BatchRequest is the request a client sends to one node.
type BatchRequest struct {
	OpCode    OpCode       `json:"op"`
	TimeoutMs uint32       `json:"timeout_ms,omitempty"` // Zero means no node side timeout
	Entries   []BatchEntry `json:"entries"`
}

// Bin is one named value of a record.
type Bin struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// BatchRow is the result for one entry.
type BatchRow struct {
	Namespace  string `json:"ns"`
	Digest     []byte `json:"digest"`
	ResultCode int32  `json:"code"`
	Generation uint32 `json:"gen,omitempty"`
	Expiration uint32 `json:"exp,omitempty"`
	Bins       []Bin  `json:"bins,omitempty"`
}

// BatchResponse is the answer of a node. A ResultCode other than zero means
// the whole request failed and Rows is empty.
type BatchResponse struct {
	OpCode     OpCode     `json:"op"`
	ResultCode int32      `json:"code"`
	Err        string     `json:"err,omitempty"` // Empty if no error, otherwise contains the error message
	Rows       []BatchRow `json:"rows,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewBatchReadRequest creates a new batch read request
func NewBatchReadRequest(timeoutMs uint32, entries []BatchEntry) *BatchRequest {
	return &BatchRequest{
		OpCode:    OpBatchRead,
		TimeoutMs: timeoutMs,
		Entries:   entries,
	}
}

// NewBatchReadResponse creates a successful batch read response
func NewBatchReadResponse(rows []BatchRow) *BatchResponse {
	return &BatchResponse{
		OpCode: OpBatchRead,
		Rows:   rows,
	}
}

// NewErrorResponse creates a response that fails the whole request
func NewErrorResponse(op OpCode, code int32, err error) *BatchResponse {
	resp := &BatchResponse{
		OpCode:     op,
		ResultCode: code,
	}
	if err != nil {
		resp.Err = err.Error()
	}
	return resp
}

// --------------------------------------------------------------------------
// Result Codes and Read Flags
// --------------------------------------------------------------------------

// Result codes of BatchResponse.ResultCode and BatchRow.ResultCode
const (
	ResultOK                 int32 = 0   // Success
	ResultServerError        int32 = 1   // Unknown server failure
	ResultKeyNotFound        int32 = 2   // Record does not exist
	ResultParameterError     int32 = 4   // Bad request parameter
	ResultTimeout            int32 = 9   // Node timed out the request
	ResultServerNotAvailable int32 = 11  // Node is shutting down or not ready
	ResultDeviceOverload     int32 = 18  // Node storage is overloaded
	ResultNamespaceNotFound  int32 = 20  // Namespace unknown to the node
	ResultNotAuthenticated   int32 = 80  // Client is not authenticated
	ResultBatchDisabled      int32 = 150 // Batch requests are disabled
	ResultBatchMaxRequests   int32 = 151 // Batch key count exceeds the node limit
	ResultBatchQueuesFull    int32 = 152 // All batch queues are full
)

// Flags of BatchEntry.ReadAttr
const (
	ReadAttrRead      uint8 = 1 << 0 // Read the record
	ReadAttrGetAll    uint8 = 1 << 1 // Return all bins
	ReadAttrNoBinData uint8 = 1 << 5 // Return no bin data, header or existence only
)

// --------------------------------------------------------------------------
// Operation Codes
// --------------------------------------------------------------------------

type OpCode uint8

const (
	OpUnknown   OpCode = iota
	OpBatchRead        // Read a list of records by digest
)

// String returns the string representation of an OpCode
func (o OpCode) String() string {
	switch o {
	case OpBatchRead:
		return "BatchRead"
	default:
		return "Unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for OpCode.
// This allows OpCode to be serialized as a string in JSON.
func (o OpCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for OpCode.
func (o *OpCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("op code should be a string, got %s", data)
	}
	switch s {
	case "BatchRead":
		*o = OpBatchRead
	case "Unknown":
		*o = OpUnknown
	default:
		return fmt.Errorf("unknown op code: %s", s)
	}
	return nil
}
