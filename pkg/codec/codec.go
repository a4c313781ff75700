// Package codec provides the reversible text encoding used for stored turns.
//
// Encoded payloads are printable ASCII so they can be persisted in plain text
// columns. The binary frame underneath is:
//
//	tag (1 byte) | uvarint plaintext length | body
//
// where tag identifies the compression applied to body. Encode always
// produces the same payload for the same input.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm used for a payload body.
// These values are part of the stored format and must not change.
type Tag uint8

const (
	// TagNone stores the plaintext bytes as-is. Used for empty and
	// incompressible text.
	TagNone Tag = 0

	// TagLZ4 is an LZ4 block.
	TagLZ4 Tag = 1

	// TagZstd is a single zstd frame with content checksum.
	TagZstd Tag = 2
)

// String returns the human-readable name of a tag.
func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagLZ4:
		return "lz4"
	case TagZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

var encoding = base64.StdEncoding

// zstd encoders and decoders are safe for concurrent use. A single
// encoder goroutine keeps EncodeAll output byte-for-byte reproducible.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderCRC(true),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxTextSize),
		zstd.WithDecodeAllCapLimit(true),
	)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode compresses text and returns a base64 payload.
func Encode(text string) string {
	data := []byte(text)
	tag, body := compress(data)

	frame := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	frame = append(frame, byte(tag))
	frame = binary.AppendUvarint(frame, uint64(len(data)))
	frame = append(frame, body...)

	return encoding.EncodeToString(frame)
}

// Decode reverses Encode. Any payload that is not a product of Encode
// yields a *DecodeError.
func Decode(payload string) (string, error) {
	frame, err := encoding.DecodeString(payload)
	if err != nil {
		return "", &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(frame) < 2 {
		return "", &DecodeError{Reason: "truncated frame"}
	}

	tag := Tag(frame[0])
	size, n := binary.Uvarint(frame[1:])
	if n <= 0 {
		return "", &DecodeError{Reason: "invalid length header"}
	}
	if size > MaxTextSize {
		return "", &DecodeError{Reason: fmt.Sprintf("declared length %d exceeds limit %d", size, MaxTextSize)}
	}
	body := frame[1+n:]

	var data []byte
	switch tag {
	case TagNone:
		data = body
	case TagLZ4:
		// An lz4 block expands at most ~255x; reject absurd headers
		// before allocating the destination.
		if size > uint64(len(body))*lz4MaxRatio {
			return "", &DecodeError{Reason: fmt.Sprintf("declared length %d exceeds lz4 bound", size)}
		}
		data, err = decompressLZ4(body, int(size))
	case TagZstd:
		data, err = decompressZstd(body, size)
	default:
		return "", &DecodeError{Reason: "unknown compression tag " + tag.String()}
	}
	if err != nil {
		return "", &DecodeError{Reason: tag.String() + " decompress", Err: err}
	}

	if uint64(len(data)) != size {
		return "", &DecodeError{Reason: fmt.Sprintf("length mismatch: got %d, expected %d", len(data), size)}
	}
	if !utf8.Valid(data) {
		return "", &DecodeError{Reason: "decoded text is not valid UTF-8"}
	}

	return string(data), nil
}

// Inspect returns the compression tag of a payload without decompressing it.
func Inspect(payload string) (Tag, error) {
	frame, err := encoding.DecodeString(payload)
	if err != nil {
		return 0, &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(frame) == 0 {
		return 0, &DecodeError{Reason: "truncated frame"}
	}
	return Tag(frame[0]), nil
}

// Ratio reports plaintext bytes per payload byte. Values above 1 mean the
// payload is smaller than the text.
func Ratio(text, payload string) float64 {
	if len(payload) == 0 {
		return 1
	}
	return float64(len(text)) / float64(len(payload))
}

// compress picks zstd when it shrinks the data, then lz4, then falls back
// to storing the bytes unchanged.
func compress(data []byte) (Tag, []byte) {
	if len(data) == 0 {
		return TagNone, nil
	}

	if compressed := zstdEncoder.EncodeAll(data, nil); len(compressed) < len(data) {
		return TagZstd, compressed
	}

	if compressed, err := compressLZ4(data); err == nil {
		return TagLZ4, compressed
	}

	return TagNone, data
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}

	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, err
	}
	return destination[:read], nil
}

// decompressZstd never produces more than size bytes: the frame must agree
// with the declared length, and DecodeAll is capped at the buffer capacity.
func decompressZstd(compressed []byte, size uint64) ([]byte, error) {
	var header zstd.Header
	if err := header.Decode(compressed); err != nil {
		return nil, err
	}
	if header.HasFCS && header.FrameContentSize != size {
		return nil, fmt.Errorf("frame content size %d, declared %d", header.FrameContentSize, size)
	}
	return zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
}

// MaxTextSize is the largest plaintext Decode accepts. Longer texts still
// encode but cannot be read back, so callers reject them before storing.
const MaxTextSize = 64 << 20

const lz4MaxRatio = 255

var errIncompressible = errors.New("data is incompressible")
