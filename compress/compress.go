// Package compress provides the optional payload transform applied by the
// partitioned store before insertion and reversed on read.
//
// The transform is lossless by contract: Decompress(Compress(b)) == b for
// every input. Payloads that do not shrink are stored raw behind the same
// header, so incompressible data costs eight bytes, not a failed decode.
package compress

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor transforms stored payloads. Implementations must be safe for
// concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// ByName returns a built-in compressor by its stable name.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "none":
		return None{}, true
	case "lz4":
		return LZ4{}, true
	case "zstd":
		return Zstd{}, true
	default:
		return nil, false
	}
}

// None is the identity transform.
type None struct{}

// Compress returns data unchanged.
func (None) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data unchanged.
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }

// Name returns "none".
func (None) Name() string { return "none" }

// Block header: [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize == 0 means the payload is stored raw.
const headerSize = 8

// If compression saves less than 10% the raw bytes are kept; a marginal
// win is not worth the decode on every read.
const minGainRatio = 0.9

var errTruncated = errors.New("compress: payload truncated")

func frameRaw(data []byte) []byte {
	out := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], 0)
	copy(out[headerSize:], data)
	return out
}

func frameCompressed(rawLen int, compressed []byte) []byte {
	out := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(rawLen))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[headerSize:], compressed)
	return out
}

func readHeader(data []byte) (rawLen, compLen uint32, body []byte, err error) {
	if len(data) < headerSize {
		return 0, 0, nil, errTruncated
	}
	rawLen = binary.LittleEndian.Uint32(data[0:])
	compLen = binary.LittleEndian.Uint32(data[4:])
	body = data[headerSize:]
	if compLen == 0 {
		if uint32(len(body)) < rawLen {
			return 0, 0, nil, errTruncated
		}
		return rawLen, 0, body[:rawLen], nil
	}
	if uint32(len(body)) < compLen {
		return 0, 0, nil, errTruncated
	}
	return rawLen, compLen, body[:compLen], nil
}

// LZ4 compresses payloads with LZ4 block compression (fast, hot data).
type LZ4 struct{}

// Compress frames data as an LZ4 block, falling back to a raw frame when
// compression does not pay.
func (LZ4) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return frameRaw(data), nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || float64(n) > float64(len(data))*minGainRatio {
		return frameRaw(data), nil
	}
	return frameCompressed(len(data), buf[:n]), nil
}

// Decompress reverses Compress.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	rawLen, compLen, body, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if compLen == 0 {
		return body, nil
	}
	out := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, err
	}
	if uint32(n) != rawLen {
		return nil, errors.New("compress: lz4 size mismatch")
	}
	return out, nil
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// Zstd compresses payloads with zstd (better ratio, cold data).
type Zstd struct{}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress frames data as a zstd block, falling back to a raw frame when
// compression does not pay.
func (Zstd) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return frameRaw(data), nil
	}
	enc := getZstdEncoder()
	compressed := enc.EncodeAll(data, nil)
	zstdEncoderPool.Put(enc)

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*minGainRatio {
		return frameRaw(data), nil
	}
	return frameCompressed(len(data), compressed), nil
}

// Decompress reverses Compress.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	rawLen, compLen, body, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if compLen == 0 {
		return body, nil
	}
	dec := getZstdDecoder()
	out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
	zstdDecoderPool.Put(dec)
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != rawLen {
		return nil, errors.New("compress: zstd size mismatch")
	}
	return out, nil
}

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }
