package service

import "encoding/json"

// jsonCodec lets Connect carry the plain Go request and response structs of
// this package. It replaces Connect's built-in "json" codec, which only
// accepts protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
