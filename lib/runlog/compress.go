// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Archive compression codecs. Zstd gets better ratios on the CBOR
// snapshots; lz4 is available where decode speed matters more than
// size.
const (
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// archiveSuffix maps a codec name to the archive filename suffix.
func archiveSuffix(compression string) (string, error) {
	switch compression {
	case CompressionZstd:
		return "zst", nil
	case CompressionLZ4:
		return "lz4", nil
	default:
		return "", fmt.Errorf("unknown compression %q", compression)
	}
}

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("runlog: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("runlog: zstd decoder initialization failed: " + err.Error())
	}
}

// compressArchive compresses an archive payload with the named codec.
// Both codecs produce self-contained framed output, so decompression
// needs no size bookkeeping.
func compressArchive(data []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil

	case CompressionLZ4:
		var framed bytes.Buffer
		writer := lz4.NewWriter(&framed)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return framed.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

// decompressArchive reverses compressArchive given the archive's
// filename suffix.
func decompressArchive(data []byte, suffix string) ([]byte, error) {
	switch suffix {
	case "zst":
		plain, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return plain, nil

	case "lz4":
		plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return plain, nil

	default:
		return nil, fmt.Errorf("unknown archive suffix %q", suffix)
	}
}
