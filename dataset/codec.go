package dataset

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/glimpsy/internal/msgpack"
	"github.com/hugr-lab/glimpsy/internal/serialize"
)

// ErrCorruptRecord indicates a stored row record could not be decoded.
var ErrCorruptRecord = errors.New("corrupt row record")

// Codec serializes rows into the opaque per-row records kept by a Store.
//
// A record is one header byte naming the compression followed by the
// MessagePack encoding of the row, compressed accordingly. Decoding honors
// the header, so records written with another compression setting stay
// readable. Codec is safe for concurrent use.
type Codec struct {
	compression  serialize.Compression
	compressor   *serialize.Compressor
	decompressor *serialize.Decompressor
}

// NewCodec creates a codec that writes records with the given compression.
// Caller must call Close() when done.
func NewCodec(compression serialize.Compression) (*Codec, error) {
	switch compression {
	case serialize.CompressionNone, serialize.CompressionZstd, serialize.CompressionLZ4:
	default:
		return nil, fmt.Errorf("%w: unsupported compression %s", ErrInvalid, compression)
	}

	c := &Codec{compression: compression}

	var err error
	if c.compressor, err = serialize.NewCompressor(); err != nil {
		return nil, err
	}
	if c.decompressor, err = serialize.NewDecompressor(); err != nil {
		c.compressor.Close()
		return nil, err
	}
	return c, nil
}

// Compression returns the compression used for new records.
func (c *Codec) Compression() serialize.Compression {
	return c.compression
}

// Encode serializes one row.
func (c *Codec) Encode(row Row) ([]byte, error) {
	data, err := msgpack.Encode(map[string]any(row))
	if err != nil {
		return nil, err
	}

	switch c.compression {
	case serialize.CompressionZstd:
		data, err = c.compressor.Compress(data)
	case serialize.CompressionLZ4:
		data, err = serialize.CompressLZ4(data)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, byte(c.compression))
	return append(out, data...), nil
}

// Decode deserializes one record produced by Encode.
func (c *Codec) Decode(record []byte) (Row, error) {
	if len(record) < 2 {
		return nil, fmt.Errorf("%w: record too short", ErrCorruptRecord)
	}

	payload := record[1:]
	var err error
	switch serialize.Compression(record[0]) {
	case serialize.CompressionNone:
	case serialize.CompressionZstd:
		payload, err = c.decompressor.Decompress(payload)
	case serialize.CompressionLZ4:
		payload, err = serialize.DecompressLZ4(payload)
	default:
		return nil, fmt.Errorf("%w: unknown compression byte %d", ErrCorruptRecord, record[0])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	m, err := msgpack.DecodeMap(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Row(m), nil
}

// Close releases compression resources.
func (c *Codec) Close() error {
	c.decompressor.Close()
	return c.compressor.Close()
}
