package gateway

import (
	"github.com/goccy/go-json"
	"github.com/oxyl/shardgate/pkg/etf"
)

// Codec serializes packets for one gateway encoding.
type Codec interface {
	Name() string
	// Binary reports whether encoded packets go out as binary frames.
	Binary() bool
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Decode(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func codecFor(encoding string) (Codec, bool) {
	switch encoding {
	case "etf":
		return etf.Codec{}, true
	case "json":
		return jsonCodec{}, true
	}
	return nil, false
}
