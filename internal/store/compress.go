// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Compression codec bytes stored alongside a compressed entry, mirroring
// the teacher's one-byte CompressionMode wire field. CodecNone means the
// entry's data is stored exactly as given to Set.
const (
	CodecNone byte = 0x00
	CodecGzip byte = 0x01
	CodecZstd byte = 0x02
)

// Mode names the store-wide compression policy, set once from config.
type Mode int

const (
	ModeNone Mode = iota
	ModeGzip
	ModeZstd
)

// ParseMode maps a config string ("none"|"gzip"|"zstd") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return ModeNone, nil
	case "gzip":
		return ModeGzip, nil
	case "zstd":
		return ModeZstd, nil
	default:
		return ModeNone, fmt.Errorf("store: unknown compression mode %q", s)
	}
}

// Compressor decides, per Set call, whether a value should be compressed
// before it enters the map, and transparently reverses that on Get. Wire
// semantics are unaffected: the Bulk bytes returned to a client are always
// the original, uncompressed value.
type Compressor struct {
	mode    Mode
	minSize int
}

// NewCompressor builds a Compressor. minSize is the smallest value, in
// bytes, eligible for compression; smaller values are always stored as-is
// since compression overhead would dominate.
func NewCompressor(mode Mode, minSize int) *Compressor {
	return &Compressor{mode: mode, minSize: minSize}
}

// Encode returns the bytes to store and the codec tag to remember alongside
// them.
func (c *Compressor) Encode(value []byte) ([]byte, byte, error) {
	if c == nil || c.mode == ModeNone || len(value) < c.minSize {
		return value, CodecNone, nil
	}

	var buf bytes.Buffer
	switch c.mode {
	case ModeGzip:
		w := pgzip.NewWriter(&buf)
		if _, err := w.Write(value); err != nil {
			return nil, CodecNone, fmt.Errorf("compressing value with pgzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, CodecNone, fmt.Errorf("closing pgzip writer: %w", err)
		}
		return buf.Bytes(), CodecGzip, nil

	case ModeZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, CodecNone, fmt.Errorf("creating zstd writer: %w", err)
		}
		if _, err := w.Write(value); err != nil {
			return nil, CodecNone, fmt.Errorf("compressing value with zstd: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, CodecNone, fmt.Errorf("closing zstd writer: %w", err)
		}
		return buf.Bytes(), CodecZstd, nil

	default:
		return value, CodecNone, nil
	}
}

// decompress reverses Encode given the codec tag an entry was stored with.
func decompress(data []byte, codec byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil

	case CodecGzip:
		r, err := pgzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening pgzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading pgzip stream: %w", err)
		}
		return out, nil

	case CodecZstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening zstd reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading zstd stream: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("store: unknown compression codec %d", codec)
	}
}
