package serializer

import "github.com/ValentinKolb/dbatch/rpc/common"

// IRPCSerializer is the interface for all message serializers
type IRPCSerializer interface {
	// SerializeRequest serializes a BatchRequest into a byte array
	SerializeRequest(req *common.BatchRequest) ([]byte, error)
	// DeserializeRequest deserializes a byte array into the given BatchRequest
	DeserializeRequest(b []byte, req *common.BatchRequest) error
	// SerializeResponse serializes a BatchResponse into a byte array
	SerializeResponse(resp *common.BatchResponse) ([]byte, error)
	// DeserializeResponse deserializes a byte array into the given BatchResponse
	DeserializeResponse(b []byte, resp *common.BatchResponse) error
}
