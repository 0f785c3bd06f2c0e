package hub

import "encoding/json"

// jsonCodec is a grpc/encoding.Codec that marshals request/response
// structs as JSON instead of protobuf, so the structs in types.go can
// stand in for the hub's schema while the adapter keeps gRPC's connection
// management and status codes.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
