package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	formatJSON byte = 'j'
	formatZstd byte = 'z'
)

// DefaultCompressMinBytes is the encoded size above which envelopes are compressed.
const DefaultCompressMinBytes = 4096

// codec turns envelopes into store values: one format byte followed by
// plain JSON or a zstd frame of it.
type codec struct {
	minBytes int
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func newCodec(minBytes int) (*codec, error) {
	if minBytes <= 0 {
		minBytes = DefaultCompressMinBytes
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{minBytes: minBytes, enc: enc, dec: dec}, nil
}

func (c *codec) encode(env *Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if len(raw) < c.minBytes {
		return append([]byte{formatJSON}, raw...), nil
	}
	return c.enc.EncodeAll(raw, []byte{formatZstd}), nil
}

func (c *codec) decode(value []byte) (*Envelope, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty cache value")
	}
	raw := value[1:]
	switch value[0] {
	case formatJSON:
	case formatZstd:
		var err error
		raw, err = c.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown cache value format %q", value[0])
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}
