// Package pagestate decodes the serialized blink PageState blob carried by
// navigation entries: per-frame URLs, scroll state, document (form) state and
// HTTP body descriptions, nested recursively for subframes.
//
// The layout is versioned and historically inconsistent; this decoder covers
// versions 11 through 23 the way the browser wrote them, and treats anything
// outside that range as undecodable rather than guessing.
package pagestate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tabstone-dev/tabstone/internal/pickle"
)

const (
	minVersion = 11
	maxVersion = 23

	// maxFrameDepth bounds FrameState recursion; corrupt child counts must
	// not recurse unboundedly.
	maxFrameDepth = 32

	// maxChildFrames bounds a single frame's declared child count.
	maxChildFrames = 4096
)

// ErrUnsupportedVersion reports a PageState version outside the decodable
// range.
var ErrUnsupportedVersion = errors.New("pagestate: unsupported version")

// PageState is the decoded top of the blob. A version of -1 marks the
// URL-only degenerate form some entries carry; Frame is nil in that case.
type PageState struct {
	Version         int32
	URL             string // only set for the URL-only form
	ReferencedFiles []string
	Frame           *FrameState
}

// FrameState is one frame's serialized state. Children hold subframes in
// serialization order.
type FrameState struct {
	URL                    string
	Target                 string
	ScrollX, ScrollY       int32
	Referrer               string
	DocumentState          []string
	PageScaleFactor        float64
	ItemSequenceNumber     int64
	DocumentSequenceNumber int64
	ReferrerPolicy         int32 // -1 when the version predates it
	PinchViewportX         float64
	PinchViewportY         float64
	ScrollRestorationType  int32 // -1 when the version predates it
	StateObject            string
	HTTPBody               *HTTPBody
	Children               []*FrameState
}

// Frames flattens the frame tree in depth-first order, root first.
func (p *PageState) Frames() []*FrameState {
	if p.Frame == nil {
		return nil
	}
	var out []*FrameState
	var walk func(f *FrameState)
	walk = func(f *FrameState) {
		out = append(out, f)
		for _, c := range f.Children {
			walk(c)
		}
	}
	walk(p.Frame)
	return out
}

// FileRange is one file-backed element of an HTTP body.
type FileRange struct {
	Path             string
	Start            int64
	Length           int64
	ModificationTime float64
}

// HTTPBody describes a serialized request body (form posts).
type HTTPBody struct {
	Data              [][]byte
	FileRanges        []FileRange
	BlobUUIDs         []string
	Identifier        int64
	ContainsPasswords bool
	ContentType       string
}

// Decoder carries platform quirks that change the layout. Android builds
// serialize two extra fields at version 11.
type Decoder struct {
	Android bool
}

// Decode parses a PageState blob with desktop layout assumptions.
func Decode(blob []byte) (*PageState, error) {
	return Decoder{}.Decode(blob)
}

// Decode parses a PageState blob.
func (d Decoder) Decode(blob []byte) (*PageState, error) {
	r, err := pickle.NewPickle(blob)
	if err != nil {
		return nil, fmt.Errorf("pagestate: %w", err)
	}

	version, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("pagestate: version: %w", err)
	}

	if version == -1 {
		url, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("pagestate: url-only form: %w", err)
		}
		return &PageState{Version: -1, URL: url}, nil
	}
	if version < minVersion || version > maxVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	state := &PageState{Version: version}
	if version >= 14 {
		if state.ReferencedFiles, err = readStringVector(r); err != nil {
			return nil, fmt.Errorf("pagestate: referenced files: %w", err)
		}
	}

	if state.Frame, err = d.readFrame(r, version, true, 0); err != nil {
		return nil, err
	}
	return state, nil
}

func (d Decoder) readFrame(r *pickle.Reader, version int32, top bool, depth int) (*FrameState, error) {
	if depth > maxFrameDepth {
		return nil, fmt.Errorf("pagestate: frame tree deeper than %d", maxFrameDepth)
	}

	f := &FrameState{ReferrerPolicy: -1, PinchViewportX: -1, PinchViewportY: -1, ScrollRestorationType: -1}
	var err error

	if version < 14 && !top {
		if _, err = r.ReadInt32(); err != nil { // redundant field
			return nil, fmt.Errorf("pagestate: frame preamble: %w", err)
		}
	}

	if f.URL, err = r.ReadString16ByteCount(); err != nil {
		return nil, fmt.Errorf("pagestate: frame url: %w", err)
	}
	if version < 19 {
		if _, err = r.ReadString16ByteCount(); err != nil { // redundant original url
			return nil, fmt.Errorf("pagestate: frame original url: %w", err)
		}
	}
	if f.Target, err = r.ReadString16ByteCount(); err != nil {
		return nil, fmt.Errorf("pagestate: frame target: %w", err)
	}

	if version < 15 {
		for i := 0; i < 3; i++ { // parent, title, alt title: dropped upstream
			if _, err = r.ReadString16ByteCount(); err != nil {
				return nil, fmt.Errorf("pagestate: legacy frame strings: %w", err)
			}
		}
		if _, err = readBlobDouble(r); err != nil { // visited time
			return nil, fmt.Errorf("pagestate: legacy visit time: %w", err)
		}
	}

	if f.ScrollX, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("pagestate: scroll x: %w", err)
	}
	if f.ScrollY, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("pagestate: scroll y: %w", err)
	}

	if version < 15 {
		if _, err = r.ReadBool(); err != nil { // is target item
			return nil, fmt.Errorf("pagestate: legacy target flag: %w", err)
		}
		if _, err = r.ReadInt32(); err != nil { // visit count
			return nil, fmt.Errorf("pagestate: legacy visit count: %w", err)
		}
	}

	if f.Referrer, err = r.ReadString16ByteCount(); err != nil {
		return nil, fmt.Errorf("pagestate: referrer: %w", err)
	}
	if f.DocumentState, err = readStringVector(r); err != nil {
		return nil, fmt.Errorf("pagestate: document state: %w", err)
	}
	if f.PageScaleFactor, err = readBlobDouble(r); err != nil {
		return nil, fmt.Errorf("pagestate: page scale: %w", err)
	}
	if f.ItemSequenceNumber, err = r.ReadInt64(); err != nil {
		return nil, fmt.Errorf("pagestate: item sequence: %w", err)
	}
	if f.DocumentSequenceNumber, err = r.ReadInt64(); err != nil {
		return nil, fmt.Errorf("pagestate: document sequence: %w", err)
	}

	if version >= 21 && version < 23 {
		if _, err = r.ReadInt64(); err != nil { // frame sequence number
			return nil, fmt.Errorf("pagestate: frame sequence: %w", err)
		}
	}
	if version >= 17 && version < 19 {
		if _, err = r.ReadInt64(); err != nil { // target frame id
			return nil, fmt.Errorf("pagestate: target frame id: %w", err)
		}
	}
	if version >= 18 {
		if f.ReferrerPolicy, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("pagestate: referrer policy: %w", err)
		}
	}
	if version >= 20 {
		if f.PinchViewportX, err = readBlobDouble(r); err != nil {
			return nil, fmt.Errorf("pagestate: pinch viewport x: %w", err)
		}
		if f.PinchViewportY, err = readBlobDouble(r); err != nil {
			return nil, fmt.Errorf("pagestate: pinch viewport y: %w", err)
		}
	}
	if version >= 22 {
		if f.ScrollRestorationType, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("pagestate: scroll restoration: %w", err)
		}
	}

	hasStateObject, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("pagestate: state object flag: %w", err)
	}
	if hasStateObject {
		if f.StateObject, err = r.ReadString16ByteCount(); err != nil {
			return nil, fmt.Errorf("pagestate: state object: %w", err)
		}
	}

	if f.HTTPBody, err = readHTTPBody(r, version); err != nil {
		return nil, err
	}
	contentType, err := r.ReadString16ByteCount()
	if err != nil {
		return nil, fmt.Errorf("pagestate: content type: %w", err)
	}
	if f.HTTPBody != nil {
		f.HTTPBody.ContentType = contentType
	}

	if version < 14 {
		if _, err = r.ReadString16ByteCount(); err != nil { // legacy content type copy
			return nil, fmt.Errorf("pagestate: legacy content type: %w", err)
		}
	}
	if d.Android && version == 11 {
		if _, err = readBlobDouble(r); err != nil {
			return nil, fmt.Errorf("pagestate: android extra: %w", err)
		}
		if _, err = r.ReadBool(); err != nil {
			return nil, fmt.Errorf("pagestate: android extra flag: %w", err)
		}
	}

	childCount, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("pagestate: child count: %w", err)
	}
	if childCount < 0 || childCount > maxChildFrames {
		return nil, fmt.Errorf("pagestate: implausible child count %d", childCount)
	}
	for i := int32(0); i < childCount; i++ {
		child, err := d.readFrame(r, version, false, depth+1)
		if err != nil {
			return nil, err
		}
		f.Children = append(f.Children, child)
	}
	return f, nil
}

// readHTTPBody decodes the optional request body. Returns nil when the
// presence flag is false.
func readHTTPBody(r *pickle.Reader, version int32) (*HTTPBody, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("pagestate: http body flag: %w", err)
	}
	if !present {
		return nil, nil
	}

	body := &HTTPBody{}
	count, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("pagestate: http body element count: %w", err)
	}
	for i := int32(0); i < count; i++ {
		elemType, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("pagestate: http body element type: %w", err)
		}
		switch elemType {
		case 0: // data
			data, err := r.ReadBytes()
			if err != nil {
				return nil, fmt.Errorf("pagestate: http body data: %w", err)
			}
			if data != nil {
				body.Data = append(body.Data, append([]byte(nil), data...))
			}
		case 1, 3: // file or filesystem URL
			var path string
			if elemType == 1 {
				path, err = r.ReadString16ByteCount()
			} else {
				path, err = r.ReadString()
			}
			if err != nil {
				return nil, fmt.Errorf("pagestate: http body file path: %w", err)
			}
			fr := FileRange{Path: path}
			if fr.Start, err = r.ReadInt64(); err != nil {
				return nil, fmt.Errorf("pagestate: http body file start: %w", err)
			}
			if fr.Length, err = r.ReadInt64(); err != nil {
				return nil, fmt.Errorf("pagestate: http body file length: %w", err)
			}
			if fr.ModificationTime, err = readBlobDouble(r); err != nil {
				return nil, fmt.Errorf("pagestate: http body file mtime: %w", err)
			}
			body.FileRanges = append(body.FileRanges, fr)
		case 2: // blob reference
			uuid, err := r.ReadString()
			if err != nil {
				return nil, fmt.Errorf("pagestate: http body blob: %w", err)
			}
			if version >= 16 {
				body.BlobUUIDs = append(body.BlobUUIDs, uuid)
			}
		default:
			return nil, fmt.Errorf("pagestate: invalid http body element type %d", elemType)
		}
	}

	if body.Identifier, err = r.ReadInt64(); err != nil {
		return nil, fmt.Errorf("pagestate: http body identifier: %w", err)
	}
	if version >= 12 {
		if body.ContainsPasswords, err = r.ReadBool(); err != nil {
			return nil, fmt.Errorf("pagestate: contains passwords: %w", err)
		}
	} else {
		body.ContainsPasswords = true
	}
	return body, nil
}

// readStringVector reads a count-prefixed vector of byte-count UTF-16
// strings, the PageState collection convention.
func readStringVector(r *pickle.Reader) ([]string, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: vector of %d strings", pickle.ErrInvalidLength, count)
	}
	out := make([]string, 0, min(int(count), 1024))
	for i := int32(0); i < count; i++ {
		s, err := r.ReadString16ByteCount()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// readBlobDouble reads a float64 serialized as an 8-byte blob, the PageState
// quirk for doubles.
func readBlobDouble(r *pickle.Reader) (float64, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: double blob of %d bytes", pickle.ErrInvalidLength, len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
