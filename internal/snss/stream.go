// Package snss iterates the top-level record container of Chromium SNSS
// session artifacts (Current Session, Last Session, Current Tabs, Last Tabs).
//
// The container is an 8-byte header ("SNSS" magic plus an int32 format
// version) followed by records of the form [size:uint32][payload]. Offsets
// are the only structural anchor: once a declared size overruns the file the
// stream ends, with no attempt to resynchronize by scanning, since a
// best-effort resync would risk decoding garbage as valid commands.
package snss

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic is the 4-byte signature every SNSS artifact opens with.
const Magic = "SNSS"

const headerSize = 8

// readChunk caps the bytes allocated per read step. A corrupt size prefix
// claiming gigabytes still surfaces as a TruncatedRecordError once the source
// runs dry, without the buffer ever outgrowing the bytes actually present.
const readChunk = 1 << 20

// ErrBadMagic reports a file that does not open with the SNSS signature.
var ErrBadMagic = errors.New("snss: bad magic")

// TruncatedRecordError reports a record whose declared size exceeds the bytes
// actually available. It is terminal: the stream yields nothing further.
type TruncatedRecordError struct {
	Offset   int64  // file offset of the record's size prefix
	Declared uint32 // payload size the record claims
	Actual   int    // payload bytes actually present
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("snss: truncated record at offset %d: declared %d bytes, read %d",
		e.Offset, e.Declared, e.Actual)
}

// Record is one raw unit of the container. Payload is only valid until the
// next call to Next, which reuses the underlying buffer.
type Record struct {
	Offset  int64 // file offset of the size prefix
	Payload []byte
}

// Stream reads records in file order, buffering at most one payload.
// Restartable only by reopening the byte source.
type Stream struct {
	r       io.Reader
	version int32
	off     int64
	buf     []byte
	done    bool
}

// Open validates the header and positions the stream at the first record.
func Open(r io.Reader) (*Stream, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file shorter than header", ErrBadMagic)
		}
		return nil, fmt.Errorf("snss: read header: %w", err)
	}
	if string(header[:4]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, header[:4])
	}
	version := int32(binary.LittleEndian.Uint32(header[4:]))
	return &Stream{r: r, version: version, off: headerSize}, nil
}

// Version returns the format version declared in the file header.
func (s *Stream) Version() int32 { return s.version }

// Next returns the next record, io.EOF at a clean end of stream, or a
// *TruncatedRecordError when the container is cut short. Both end the stream.
func (s *Stream) Next() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}

	start := s.off
	var prefix [4]byte
	n, err := io.ReadFull(s.r, prefix[:])
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) && n == 0 {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// A partial size prefix is indistinguishable from a cut record.
			return Record{}, &TruncatedRecordError{Offset: start, Actual: n}
		}
		return Record{}, fmt.Errorf("snss: read record size at offset %d: %w", start, err)
	}
	s.off += 4

	size := binary.LittleEndian.Uint32(prefix[:])
	payload := s.buf[:0]
	for remaining := int64(size); remaining > 0; {
		step := int(min(remaining, readChunk))
		if cap(payload) < len(payload)+step {
			grown := make([]byte, len(payload), max(2*cap(payload), len(payload)+step))
			copy(grown, payload)
			payload = grown
		}
		n, err := io.ReadFull(s.r, payload[len(payload):len(payload)+step])
		payload = payload[:len(payload)+n]
		if err != nil {
			s.done = true
			s.buf = payload[:0]
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Record{}, &TruncatedRecordError{Offset: start, Declared: size, Actual: len(payload)}
			}
			return Record{}, fmt.Errorf("snss: read record payload at offset %d: %w", start, err)
		}
		remaining -= int64(step)
	}
	s.buf = payload
	s.off += int64(size)

	return Record{Offset: start, Payload: payload}, nil
}
