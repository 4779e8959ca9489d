// Package pickle decodes the length-prefixed, 4-byte-aligned serialization
// container Chromium uses for session artifacts (base::Pickle).
//
// The container has no self-description beyond lengths: every fixed-width
// field occupies a 4-byte-aligned slot (16- and 32-bit values consume four
// bytes, 64-bit values eight), and variable-length fields are an int32 length
// followed by the payload and padding up to the next 4-byte boundary. Padding
// bytes are skipped, never validated: real captures show nondeterministic
// padding.
package pickle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrTruncated reports that fewer bytes remain than the field requires.
	// The cursor is left where it was, so the caller can decide whether to
	// abort or degrade.
	ErrTruncated = errors.New("pickle: truncated data")

	// ErrInvalidLength reports a declared length that exceeds the remaining
	// buffer. Corrupt and adversarial captures routinely carry garbage
	// lengths; the reader refuses them before allocating or reading past
	// the end.
	ErrInvalidLength = errors.New("pickle: invalid length")
)

// chromeEpochOffsetMicro is the microsecond distance between the Windows
// epoch (1601-01-01) Chromium timestamps count from and the Unix epoch.
const chromeEpochOffsetMicro = 11644473600000000

var utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Reader is a cursor over a pickle payload. The cursor only moves forward,
// and only when a read succeeds in full.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps a raw byte slice with no pickle header. Used for command
// payloads that are plain field sequences rather than full pickles.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// NewPickle wraps a full pickle: the first int32 declares the payload length,
// which must match the bytes that follow (original PickleReader contract).
func NewPickle(buf []byte) (*Reader, error) {
	r := &Reader{buf: buf}
	declared, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("pickle header: %w", err)
	}
	if int(declared) != len(buf)-4 {
		return nil, fmt.Errorf("%w: pickle declares %d payload bytes, have %d",
			ErrInvalidLength, declared, len(buf)-4)
	}
	return r, nil
}

// Offset returns the current cursor position within the buffer.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// align advances the cursor to the next 4-byte boundary, clamped to the
// buffer end. Trailing padding at the very end of a pickle may be absent.
func (r *Reader) align() {
	if rem := r.off % 4; rem != 0 {
		r.off += 4 - rem
		if r.off > len(r.buf) {
			r.off = len(r.buf)
		}
	}
}

// readFixed consumes a fixed-width aligned slot and returns the raw bytes of
// the value. size is the value width, slot the aligned footprint.
func (r *Reader) readFixed(size, slot int) ([]byte, error) {
	if r.Remaining() < slot {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+size]
	r.off += slot
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.readFixed(1, 4)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.readFixed(2, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.readFixed(4, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.readFixed(8, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadBool decodes a bool stored as an int32; any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadInt32()
	return v != 0, err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadTime decodes a Chromium timestamp: int64 microseconds since
// 1601-01-01 UTC. Zero decodes to the zero time.
func (r *Reader) ReadTime() (time.Time, error) {
	us, err := r.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	if us == 0 {
		return time.Time{}, nil
	}
	return time.UnixMicro(us - chromeEpochOffsetMicro).UTC(), nil
}

// ReadBytes decodes a length-prefixed blob. A declared length of -1 is the
// absent-value sentinel and yields (nil, nil). The returned slice aliases
// the underlying buffer.
func (r *Reader) ReadBytes() ([]byte, error) {
	return r.readSized(1)
}

// readSized reads an int32 count, multiplies it by elemSize and consumes that
// many payload bytes plus alignment padding. The cursor is unmoved on error,
// including when only the count itself was readable.
func (r *Reader) readSized(elemSize int) ([]byte, error) {
	start := r.off
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count == -1 {
		return nil, nil
	}
	if count < 0 {
		r.off = start
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidLength, count)
	}
	length := int(count) * elemSize
	if length > r.Remaining() {
		r.off = start
		return nil, fmt.Errorf("%w: declared %d bytes, %d remain",
			ErrInvalidLength, length, len(r.buf)-r.off-4)
	}
	b := r.buf[r.off : r.off+length]
	r.off += length
	r.align()
	return b, nil
}

// ReadString decodes a length-prefixed UTF-8 string. The -1 sentinel yields
// the empty string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadString16 decodes a UTF-16LE string whose length prefix counts
// characters (the base::Pickle string16 convention).
func (r *Reader) ReadString16() (string, error) {
	b, err := r.readSized(2)
	if err != nil {
		return "", err
	}
	return decodeUTF16(b)
}

// ReadString16ByteCount decodes a UTF-16LE string whose length prefix counts
// bytes rather than characters (the blink PageState convention).
func (r *Reader) ReadString16ByteCount() (string, error) {
	b, err := r.readSized(1)
	if err != nil {
		return "", err
	}
	return decodeUTF16(b)
}

// ReadPickle decodes a nested pickle: an int32 length followed by that many
// payload bytes, returned as a new Reader positioned past its own header.
func (r *Reader) ReadPickle() (*Reader, error) {
	start := r.off
	b, err := r.readSized(1)
	if err != nil {
		return nil, err
	}
	if b == nil {
		r.off = start
		return nil, fmt.Errorf("%w: nested pickle with absent payload", ErrInvalidLength)
	}
	// Reconstitute the header so the nested reader validates its own length.
	nested := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(nested, uint32(len(b)))
	copy(nested[4:], b)
	inner, err := NewPickle(nested)
	if err != nil {
		r.off = start
		return nil, err
	}
	return inner, nil
}

func decodeUTF16(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: utf-16 payload of %d bytes", ErrInvalidLength, len(b))
	}
	out, err := utf16Decoder.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("pickle: utf-16 decode: %w", err)
	}
	return string(out), nil
}
