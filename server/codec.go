package server

import (
	"encoding/json"

	"github.com/chazu/jiki/trace"
)

// The messages are not protobufs, so both codecs replace Connect's
// defaults. jsonCodec takes over the "json" name and serves
// application/json; cborCodec adds application/cbor.

type jsonCodec struct{}

func (jsonCodec) Name() string                    { return "json" }
func (jsonCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }
func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

type cborCodec struct{}

func (cborCodec) Name() string                    { return "cbor" }
func (cborCodec) Marshal(msg any) ([]byte, error) { return trace.Encode(msg) }
func (cborCodec) Unmarshal(data []byte, msg any) error {
	return trace.Decode(data, msg)
}
