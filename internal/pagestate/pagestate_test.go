package pagestate

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// pb builds PageState pickle payloads for tests.
type pb struct {
	b []byte
}

func (p *pb) align() *pb {
	for len(p.b)%4 != 0 {
		p.b = append(p.b, 0)
	}
	return p
}

func (p *pb) i32(v int32) *pb {
	p.b = binary.LittleEndian.AppendUint32(p.b, uint32(v))
	return p
}

func (p *pb) i64(v int64) *pb {
	p.b = binary.LittleEndian.AppendUint64(p.b, uint64(v))
	return p
}

func (p *pb) boolean(v bool) *pb {
	if v {
		return p.i32(1)
	}
	return p.i32(0)
}

func (p *pb) str(v string) *pb {
	p.i32(int32(len(v)))
	p.b = append(p.b, v...)
	return p.align()
}

// str16bc writes a UTF-16LE string with a byte-count prefix.
func (p *pb) str16bc(v string) *pb {
	runes := []rune(v)
	p.i32(int32(len(runes) * 2))
	for _, r := range runes {
		p.b = binary.LittleEndian.AppendUint16(p.b, uint16(r))
	}
	return p.align()
}

func (p *pb) vector(vs ...string) *pb {
	p.i32(int32(len(vs)))
	for _, v := range vs {
		p.str16bc(v)
	}
	return p
}

// blobDouble writes a float64 as an 8-byte blob, the PageState double quirk.
func (p *pb) blobDouble(v float64) *pb {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
	p.i32(8)
	p.b = append(p.b, raw[:]...)
	return p
}

// pickled prepends the pickle header.
func (p *pb) pickled() []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(p.b)))
	return append(out, p.b...)
}

// frame23 appends one version-23 frame with the given children count trailer.
func frame23(p *pb, url string, children int32) *pb {
	p.str16bc(url)                // url
	p.str16bc("")                 // target
	p.i32(0).i32(120)             // scroll offsets
	p.str16bc("")                 // referrer
	p.vector()                    // document state
	p.blobDouble(1.5)             // page scale factor
	p.i64(111).i64(222)           // item/document sequence numbers
	p.i32(2)                      // referrer policy (v>=18)
	p.blobDouble(3).blobDouble(4) // pinch viewport (v>=20)
	p.i32(1)                      // scroll restoration type (v>=22)
	p.boolean(false)              // no state object
	p.boolean(false)              // no http body
	p.str16bc("")                 // content type
	p.i32(children)
	return p
}

func TestDecodeVersion23Frame(t *testing.T) {
	p := (&pb{}).i32(23).vector("upload.dat")
	frame23(p, "http://example.com/app", 1)
	frame23(p, "http://example.com/iframe", 0)

	state, err := Decode(p.pickled())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if state.Version != 23 {
		t.Fatalf("version: %d", state.Version)
	}
	if len(state.ReferencedFiles) != 1 || state.ReferencedFiles[0] != "upload.dat" {
		t.Fatalf("referenced files: %v", state.ReferencedFiles)
	}

	frames := state.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected root + child frame, got %d", len(frames))
	}
	root := frames[0]
	if root.URL != "http://example.com/app" {
		t.Fatalf("root url: %q", root.URL)
	}
	if root.ScrollY != 120 {
		t.Fatalf("scroll y: %d", root.ScrollY)
	}
	if root.PageScaleFactor != 1.5 {
		t.Fatalf("page scale: %v", root.PageScaleFactor)
	}
	if root.ItemSequenceNumber != 111 || root.DocumentSequenceNumber != 222 {
		t.Fatalf("sequence numbers: %d, %d", root.ItemSequenceNumber, root.DocumentSequenceNumber)
	}
	if root.ReferrerPolicy != 2 || root.ScrollRestorationType != 1 {
		t.Fatalf("versioned fields: policy=%d restoration=%d", root.ReferrerPolicy, root.ScrollRestorationType)
	}
	if frames[1].URL != "http://example.com/iframe" {
		t.Fatalf("child url: %q", frames[1].URL)
	}
}

func TestDecodeURLOnlyForm(t *testing.T) {
	p := (&pb{}).i32(-1).str("http://bare.example/")
	state, err := Decode(p.pickled())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if state.Version != -1 || state.URL != "http://bare.example/" {
		t.Fatalf("unexpected state %#v", state)
	}
	if state.Frame != nil || state.Frames() != nil {
		t.Fatalf("url-only form must carry no frames")
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	for _, version := range []int32{0, 10, 24, 99} {
		p := (&pb{}).i32(version)
		if _, err := Decode(p.pickled()); !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("version %d: expected ErrUnsupportedVersion, got %v", version, err)
		}
	}
}

func TestDecodeHTTPBody(t *testing.T) {
	p := (&pb{}).i32(23).vector()
	p.str16bc("http://example.com/post") // url
	p.str16bc("")                        // target
	p.i32(0).i32(0)                      // scroll
	p.str16bc("")                        // referrer
	p.vector()                           // document state
	p.blobDouble(1)                      // page scale
	p.i64(1).i64(2)                      // sequence numbers
	p.i32(0)                             // referrer policy
	p.blobDouble(0).blobDouble(0)        // pinch viewport
	p.i32(0)                             // scroll restoration
	p.boolean(false)                     // no state object
	p.boolean(true)                      // http body present
	p.i32(2)                             // two elements
	p.i32(0).str("name=value")           // data element
	p.i32(2).str("blob-uuid-1")          // blob element
	p.i64(77)                            // identifier
	p.boolean(true)                      // contains passwords
	p.str16bc("application/x-www-form-urlencoded")
	p.i32(0) // no children

	state, err := Decode(p.pickled())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body := state.Frame.HTTPBody
	if body == nil {
		t.Fatal("expected http body")
	}
	if len(body.Data) != 1 || string(body.Data[0]) != "name=value" {
		t.Fatalf("body data: %q", body.Data)
	}
	if len(body.BlobUUIDs) != 1 || body.BlobUUIDs[0] != "blob-uuid-1" {
		t.Fatalf("blob uuids: %v", body.BlobUUIDs)
	}
	if body.Identifier != 77 || !body.ContainsPasswords {
		t.Fatalf("body metadata: %#v", body)
	}
	if body.ContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("content type: %q", body.ContentType)
	}
}

func TestDecodeImplausibleChildCount(t *testing.T) {
	p := (&pb{}).i32(23).vector()
	frame23(p, "http://example.com/", 1<<20)

	if _, err := Decode(p.pickled()); err == nil {
		t.Fatal("corrupt child count must not decode")
	}
}

func TestParseFormState(t *testing.T) {
	tokens := []string{
		formStateMagic,
		"form-key-1", "2",
		"username", "text", "1", "alice",
		"remember", "checkbox", "1", "on",
	}
	state, err := ParseFormState(tokens)
	if err != nil {
		t.Fatalf("ParseFormState: %v", err)
	}
	fields := state["form-key-1"]
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Name != "username" || fields[0].Type != "text" || fields[0].Values[0] != "alice" {
		t.Fatalf("field 0: %#v", fields[0])
	}
}

func TestParseFormStateRejectsOtherVectors(t *testing.T) {
	if _, err := ParseFormState([]string{"not-a-form-state"}); !errors.Is(err, ErrNotFormState) {
		t.Fatalf("expected ErrNotFormState, got %v", err)
	}
	if _, err := ParseFormState(nil); !errors.Is(err, ErrNotFormState) {
		t.Fatalf("expected ErrNotFormState for empty vector, got %v", err)
	}
}

func TestParseFormStateTruncatedTokens(t *testing.T) {
	tokens := []string{formStateMagic, "form-key-1", "2", "username", "text"}
	if _, err := ParseFormState(tokens); err == nil {
		t.Fatal("mid-structure exhaustion must error")
	}
}
