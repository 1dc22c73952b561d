// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// ErrCorruptChunk is returned when encoded chunk data fails validation.
var ErrCorruptChunk = errors.New("corrupt chunk data")

// Encoded layout, all integers little endian:
//
//	offset  size  field
//	0       4     magic "CFCK"
//	4       1     format version
//	5       3     reserved, zero
//	8       4     band count
//	12      12    size t, y, x
//	24      8     compressed payload length
//	32      n     zstd payload: float64 values in [band][t][y][x] order
//	32+n    8     xxhash64 of header and uncompressed payload
const (
	codecVersion = 1
	headerSize   = 32

	// maxDecodedBytes bounds allocations for hostile headers (4 GiB).
	maxDecodedBytes = 1 << 32
)

var magic = [4]byte{'C', 'F', 'C', 'K'}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codecs returns the shared zstd encoder and decoder. EncodeAll and
// DecodeAll are safe for concurrent use.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecodedBytes))
	})
	return encoder, decoder, codecErr
}

// Marshal encodes a buffer.
func Marshal(b *Buffer) ([]byte, error) {
	var out bytes.Buffer
	if err := Encode(&out, b); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Unmarshal decodes a buffer produced by Marshal or Encode.
func Unmarshal(data []byte) (*Buffer, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes b to w.
func Encode(w io.Writer, b *Buffer) error {
	enc, _, err := codecs()
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}

	raw := make([]byte, len(b.data)*8)
	for i, v := range b.data {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	var payload []byte
	if len(raw) > 0 {
		payload = enc.EncodeAll(raw, nil)
	}

	header := make([]byte, headerSize)
	copy(header[0:4], magic[:])
	header[4] = codecVersion
	binary.LittleEndian.PutUint32(header[8:], uint32(b.nbands))
	binary.LittleEndian.PutUint32(header[12:], b.size[T])
	binary.LittleEndian.PutUint32(header[16:], b.size[Y])
	binary.LittleEndian.PutUint32(header[20:], b.size[X])
	binary.LittleEndian.PutUint64(header[24:], uint64(len(payload)))

	h := xxhash.New()
	_, _ = h.Write(header)
	_, _ = h.Write(raw)
	trailer := make([]byte, 8)
	binary.LittleEndian.PutUint64(trailer, h.Sum64())

	for _, part := range [][]byte{header, payload, trailer} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}
	}
	return nil
}

// Decode reads one buffer from r. Any structural problem, including a
// checksum mismatch, yields an error wrapping ErrCorruptChunk.
func Decode(r io.Reader) (*Buffer, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptChunk, err)
	}
	if !bytes.Equal(header[0:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptChunk, header[0:4])
	}
	if header[4] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptChunk, header[4])
	}

	nbands := binary.LittleEndian.Uint32(header[8:])
	size := Size{
		binary.LittleEndian.Uint32(header[12:]),
		binary.LittleEndian.Uint32(header[16:]),
		binary.LittleEndian.Uint32(header[20:]),
	}
	payloadLen := binary.LittleEndian.Uint64(header[24:])
	values := uint64(nbands) * size.Volume()
	if values > maxDecodedBytes/8 || payloadLen > maxDecodedBytes {
		return nil, fmt.Errorf("%w: implausible shape %d x %s", ErrCorruptChunk, nbands, size)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorruptChunk, err)
	}
	trailer := make([]byte, 8)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return nil, fmt.Errorf("%w: checksum: %v", ErrCorruptChunk, err)
	}

	var raw []byte
	if payloadLen > 0 {
		raw, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
		}
	}
	if uint64(len(raw)) != values*8 {
		return nil, fmt.Errorf("%w: %d payload bytes, want %d", ErrCorruptChunk, len(raw), values*8)
	}

	h := xxhash.New()
	_, _ = h.Write(header)
	_, _ = h.Write(raw)
	if h.Sum64() != binary.LittleEndian.Uint64(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptChunk)
	}

	data := make([]float64, values)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return &Buffer{nbands: int(nbands), size: size, data: data}, nil
}
