package state

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goliatone/go-layerdoc"
)

// Codec turns document chunks into stored bytes.
type Codec interface {
	Name() string
	Marshal(chunk layerdoc.Chunk) ([]byte, error)
	Unmarshal(data []byte) (layerdoc.Chunk, error)
}

// JSONCodec stores chunks as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(chunk layerdoc.Chunk) ([]byte, error) {
	data, err := json.Marshal(map[string]any(chunk))
	if err != nil {
		return nil, fmt.Errorf("state: json encode: %w", err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte) (layerdoc.Chunk, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("state: json decode: %w", err)
	}
	return layerdoc.Chunk(raw), nil
}

// CBORCodec stores chunks as CBOR. Maps decode as map[string]any so the
// result reads like a JSON decoded chunk.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec builds a CBOR codec with canonical encoding.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("state: cbor enc mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("state: cbor dec mode: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Name() string { return "cbor" }

func (c *CBORCodec) Marshal(chunk layerdoc.Chunk) ([]byte, error) {
	data, err := c.enc.Marshal(map[string]any(chunk))
	if err != nil {
		return nil, fmt.Errorf("state: cbor encode: %w", err)
	}
	return data, nil
}

func (c *CBORCodec) Unmarshal(data []byte) (layerdoc.Chunk, error) {
	var raw map[string]any
	if err := c.dec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("state: cbor decode: %w", err)
	}
	return layerdoc.Chunk(raw), nil
}

func codecOrDefault(c Codec) Codec {
	if c == nil {
		return JSONCodec{}
	}
	return c
}
