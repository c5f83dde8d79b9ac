package batch

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
)

// --------------------------------------------------------------------------
// Result Codes
// --------------------------------------------------------------------------

// ResultCode is the numeric status a node returns for a whole request or for
// a single row.
type ResultCode int

const (
	ResultOK                    ResultCode = 0   // Success
	ResultServerError           ResultCode = 1   // Unknown server failure
	ResultKeyNotFound           ResultCode = 2   // Record does not exist
	ResultParameterError        ResultCode = 4   // Bad request parameter
	ResultTimeout               ResultCode = 9   // Node timed out the request
	ResultServerNotAvailable    ResultCode = 11  // Node is shutting down or not ready
	ResultDeviceOverload        ResultCode = 18  // Node storage is overloaded
	ResultNamespaceNotFound     ResultCode = 20  // Namespace unknown to the node
	ResultNotAuthenticated      ResultCode = 80  // Client is not authenticated
	ResultBatchDisabled         ResultCode = 150 // Batch requests are disabled
	ResultBatchMaxRequests      ResultCode = 151 // Batch key count exceeds the node limit
	ResultBatchQueuesFull       ResultCode = 152 // All batch queues are full
	ResultClientParseError      ResultCode = -2  // Response could not be parsed
	ResultClientInvalidNode     ResultCode = -3  // No usable node for a key
	ResultClientInvalidArgument ResultCode = -4  // Invalid call argument
)

// String returns the name of the result code.
func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultServerError:
		return "ServerError"
	case ResultKeyNotFound:
		return "KeyNotFound"
	case ResultParameterError:
		return "ParameterError"
	case ResultTimeout:
		return "Timeout"
	case ResultServerNotAvailable:
		return "ServerNotAvailable"
	case ResultDeviceOverload:
		return "DeviceOverload"
	case ResultNamespaceNotFound:
		return "NamespaceNotFound"
	case ResultNotAuthenticated:
		return "NotAuthenticated"
	case ResultBatchDisabled:
		return "BatchDisabled"
	case ResultBatchMaxRequests:
		return "BatchMaxRequestsExceeded"
	case ResultBatchQueuesFull:
		return "BatchQueuesFull"
	case ResultClientParseError:
		return "ParseError"
	case ResultClientInvalidNode:
		return "InvalidNode"
	case ResultClientInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// retryable reports whether a request failing with this code may succeed
// when sent again (possibly to another node).
func (c ResultCode) retryable() bool {
	switch c {
	case ResultTimeout, ResultServerNotAvailable:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// Error wraps a result code and a message. Node is set if the error was
// reported by a specific node.
type Error struct {
	Code ResultCode
	Msg  string
	Node string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("BatchError (code %s, node %s): %s", e.Code, e.Node, e.Msg)
	}
	return fmt.Sprintf("BatchError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code ResultCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// UnexpectedKeyError is returned when a row's digest does not match the key
// at that position. The response stream is desynchronized from that point on.
type UnexpectedKeyError struct {
	Namespace string
	Digest    []byte
	Index     int
}

func (e *UnexpectedKeyError) Error() string {
	return fmt.Sprintf("unexpected batch key returned: %s,%s,%d", e.Namespace, hex.EncodeToString(e.Digest), e.Index)
}

// UnrequestedDataError is returned when an existence row carries bin data.
type UnrequestedDataError struct {
	Index   int
	OpCount int
}

func (e *UnrequestedDataError) Error() string {
	return fmt.Sprintf("received %d bins that were not requested for key index %d", e.OpCount, e.Index)
}

// ParseError is returned for malformed or incomplete responses.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "batch parse error: " + e.Msg
}

var (
	// Transport errors, all retryable
	ErrConnection  = errors.New("node connection failed")
	ErrNodeTimeout = errors.New("node request timed out")
	ErrNodeDown    = errors.New("node is not active")

	// Call errors, fatal
	ErrTotalTimeout     = errors.New("batch total timeout exceeded")
	ErrNoNodes          = errors.New("no active node for partition")
	ErrInvalidNamespace = errors.New("namespace not found in cluster")
	ErrInvalidEnv       = errors.New("batch environment is incomplete")
)

// --------------------------------------------------------------------------
// Classification
// --------------------------------------------------------------------------

// IsRetryable reports whether err is scoped to one node attempt and may
// succeed on a retry. Connection and timeout failures are retryable;
// desync, authentication, protocol and resource exhaustion errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var unexpectedKey *UnexpectedKeyError
	var unrequested *UnrequestedDataError
	var parseErr *ParseError
	if errors.As(err, &unexpectedKey) || errors.As(err, &unrequested) || errors.As(err, &parseErr) {
		return false
	}
	if errors.Is(err, ErrTotalTimeout) {
		return false
	}

	if errors.Is(err, ErrConnection) || errors.Is(err, ErrNodeTimeout) || errors.Is(err, ErrNodeDown) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var batchErr *Error
	if errors.As(err, &batchErr) {
		return batchErr.Code.retryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
