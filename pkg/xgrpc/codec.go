// Package xgrpc serves the matching engines over gRPC.
//
// Messages are plain Go structs carried by a JSON codec registered under the
// "json" content subtype, so no generated stubs are needed. Clients must call
// with grpc.CallContentSubtype(Codec), which Dial sets by default.
package xgrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return Codec
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
