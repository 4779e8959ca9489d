package command

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// enc builds command payloads (the bytes after the record size prefix).
type enc struct {
	b []byte
}

func (p *enc) align() *enc {
	for len(p.b)%4 != 0 {
		p.b = append(p.b, 0)
	}
	return p
}

func (p *enc) i32(v int32) *enc {
	p.b = binary.LittleEndian.AppendUint32(p.b, uint32(v))
	return p
}

func (p *enc) i64(v int64) *enc {
	p.b = binary.LittleEndian.AppendUint64(p.b, uint64(v))
	return p
}

func (p *enc) str(v string) *enc {
	p.i32(int32(len(v)))
	p.b = append(p.b, v...)
	return p.align()
}

func (p *enc) str16(v string) *enc {
	runes := []rune(v)
	p.i32(int32(len(runes)))
	for _, r := range runes {
		p.b = binary.LittleEndian.AppendUint16(p.b, uint16(r))
	}
	return p.align()
}

// command assembles [id][raw fields].
func rawCommand(id ID, fields *enc) []byte {
	return append([]byte{byte(id)}, fields.b...)
}

// pickledCommand assembles [id][declared length][fields].
func pickledCommand(id ID, fields *enc) []byte {
	out := []byte{byte(id)}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fields.b)))
	return append(out, fields.b...)
}

func chromeMicros(t time.Time) int64 {
	return t.UnixMicro() + 11644473600000000
}

func TestDecodeStructCommands(t *testing.T) {
	dec := NewDecoder(1, ArtifactSession)

	cases := []struct {
		name    string
		payload []byte
		want    Command
	}{
		{
			"set_tab_window",
			rawCommand(IDSetTabWindow, (&enc{}).i32(1).i32(10)),
			SetTabWindow{WindowID: 1, TabID: 10},
		},
		{
			"set_tab_index",
			rawCommand(IDSetTabIndexInWindow, (&enc{}).i32(10).i32(2)),
			SetTabIndexInWindow{TabID: 10, Index: 2},
		},
		{
			"selected_navigation",
			rawCommand(IDSetSelectedNavigationIndex, (&enc{}).i32(10).i32(3)),
			SetSelectedNavigationIndex{TabID: 10, Index: 3},
		},
		{
			"pinned",
			rawCommand(IDSetPinnedState, (&enc{}).i32(10).i32(1)),
			SetPinnedState{TabID: 10, Pinned: true},
		},
		{
			"pruned_front",
			rawCommand(IDTabNavigationPathPrunedFront, (&enc{}).i32(10).i32(2)),
			NavigationPathPruned{TabID: 10, Count: 2, FromFront: true},
		},
		{
			"active_window",
			rawCommand(IDSetActiveWindow, (&enc{}).i32(4)),
			SetActiveWindow{WindowID: 4},
		},
		{
			"bounds3",
			rawCommand(IDSetWindowBounds3, (&enc{}).i32(1).i32(5).i32(6).i32(800).i32(600).i32(3)),
			SetWindowBounds{WindowID: 1, X: 5, Y: 6, Width: 800, Height: 600, ShowState: 3},
		},
		{
			"bounds_obsolete_no_show_state",
			rawCommand(IDSetWindowBounds, (&enc{}).i32(1).i32(5).i32(6).i32(800).i32(600)),
			SetWindowBounds{WindowID: 1, X: 5, Y: 6, Width: 800, Height: 600, ShowState: -1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dec.Decode(tc.payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("decoded %#v, expected %#v", got, tc.want)
			}
		})
	}
}

func TestDecodePickledStringCommands(t *testing.T) {
	dec := NewDecoder(1, ArtifactSession)

	got, err := dec.Decode(pickledCommand(IDSessionStorageAssociated, (&enc{}).i32(10).str("persist-ns-1")))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != (SessionStorageAssociated{TabID: 10, NamespaceID: "persist-ns-1"}) {
		t.Fatalf("unexpected command %#v", got)
	}

	got, err = dec.Decode(pickledCommand(IDSetTabUserAgentOverride, (&enc{}).i32(10).str("Mozilla/5.0 custom")))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != (SetTabUserAgentOverride{TabID: 10, UserAgent: "Mozilla/5.0 custom"}) {
		t.Fatalf("unexpected command %#v", got)
	}
}

func TestDecodeUpdateTabNavigation(t *testing.T) {
	ts := time.Date(2023, 5, 4, 9, 30, 0, 0, time.UTC)
	fields := (&enc{}).
		i32(10).                         // tab id
		i32(0).                          // navigation index
		str("http://example.com/").      // url
		str16("Example Domain").         // title
		i32(-1).                         // absent page state blob
		i32(0x10000001).                 // transition: Typed | ChainStart
		i32(1).                          // type mask
		str("http://referrer.example/"). // referrer url
		i32(1).                          // referrer policy
		str("http://example.com/").      // original request url
		i32(0).                          // user agent override flag
		i64(chromeMicros(ts)).           // timestamp
		str16("example search").         // search terms
		i32(200).                        // http status
		i32(2)                           // extended referrer policy

	got, err := NewDecoder(1, ArtifactSession).Decode(pickledCommand(IDUpdateTabNavigation, fields))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nav, ok := got.(UpdateTabNavigation)
	if !ok {
		t.Fatalf("expected UpdateTabNavigation, got %#v", got)
	}
	if nav.TabID != 10 {
		t.Fatalf("tab id: %d", nav.TabID)
	}
	e := nav.Entry
	if e.Index != 0 || e.URL != "http://example.com/" || e.Title != "Example Domain" {
		t.Fatalf("core fields wrong: %#v", e)
	}
	if e.Transition.Core() != "Typed" {
		t.Fatalf("transition core: %q", e.Transition.Core())
	}
	if quals := e.Transition.Qualifiers(); len(quals) != 1 || quals[0] != "ChainStart" {
		t.Fatalf("transition qualifiers: %v", quals)
	}
	if !e.Timestamp.Equal(ts) {
		t.Fatalf("timestamp: %v", e.Timestamp)
	}
	if e.SearchTerms != "example search" || e.HTTPStatusCode != 200 {
		t.Fatalf("tail fields wrong: %#v", e)
	}
	if e.ReferrerPolicy != 2 {
		t.Fatalf("extended referrer policy must supersede: %d", e.ReferrerPolicy)
	}
}

func TestDecodeShortNavigationEntryIsLegal(t *testing.T) {
	// A capture from an old build: only index, url and title.
	fields := (&enc{}).i32(10).i32(4).str("http://old.example/").str16("Old")
	got, err := NewDecoder(1, ArtifactSession).Decode(pickledCommand(IDUpdateTabNavigation, fields))
	if err != nil {
		t.Fatalf("short entries predate the newer fields and must decode: %v", err)
	}
	nav := got.(UpdateTabNavigation)
	if nav.Entry.Index != 4 || nav.Entry.URL != "http://old.example/" || nav.Entry.Title != "Old" {
		t.Fatalf("unexpected entry %#v", nav.Entry)
	}
	if nav.Entry.HTTPStatusCode != 0 {
		t.Fatalf("absent tail fields must stay zero, got %d", nav.Entry.HTTPStatusCode)
	}
}

func TestDecodeMalformed(t *testing.T) {
	dec := NewDecoder(1, ArtifactSession)

	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty_record", nil},
		{"struct_too_short", rawCommand(IDSetTabWindow, (&enc{}).i32(1))},
		{"corrupt_pickle_length", func() []byte {
			p := pickledCommand(IDUpdateTabNavigation, (&enc{}).i32(10).i32(0))
			binary.LittleEndian.PutUint32(p[1:], 0xFFFFFF) // declared length overruns
			return p
		}()},
		{"corrupt_string_length", func() []byte {
			// url length field claims far more than the pickle holds
			fields := (&enc{}).i32(10).i32(0).i32(1 << 20)
			return pickledCommand(IDUpdateTabNavigation, fields)
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dec.Decode(tc.payload)
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedError, got %v", err)
			}
		})
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	dec := NewDecoder(1, ArtifactSession)

	got, err := dec.Decode([]byte{250, 0xDE, 0xAD})
	if err != nil {
		t.Fatalf("unknown ids must not error: %v", err)
	}
	unk, ok := got.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %#v", got)
	}
	if unk.ID != 250 || len(unk.Payload) != 2 {
		t.Fatalf("unexpected unknown command %#v", unk)
	}
}

func TestSchemaVersionRanges(t *testing.T) {
	payload := rawCommand(IDSetLastActiveTime, (&enc{}).i32(10).i64(chromeMicros(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	// Known under version 3.
	got, err := NewDecoder(3, ArtifactSession).Decode(payload)
	if err != nil {
		t.Fatalf("Decode v3: %v", err)
	}
	if _, ok := got.(SetLastActiveTime); !ok {
		t.Fatalf("expected SetLastActiveTime, got %#v", got)
	}

	// Outside the version range the id has no schema.
	got, err = NewDecoder(1, ArtifactSession).Decode(payload)
	if err != nil {
		t.Fatalf("Decode v1: %v", err)
	}
	if _, ok := got.(Unknown); !ok {
		t.Fatalf("expected Unknown outside version range, got %#v", got)
	}
}

func TestTabRestoreDialect(t *testing.T) {
	fields := (&enc{}).i32(42).i32(0).str("http://restored.example/").str16("Restored")
	payload := pickledCommand(IDRestoreUpdateTabNavigation, fields)

	got, err := NewDecoder(1, ArtifactTabRestore).Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nav, ok := got.(UpdateTabNavigation)
	if !ok {
		t.Fatalf("expected UpdateTabNavigation, got %#v", got)
	}
	if nav.TabID != 42 || nav.Entry.URL != "http://restored.example/" {
		t.Fatalf("unexpected command %#v", nav)
	}

	// In the session dialect id 1 decodes as window bounds, not a navigation.
	sessionCmd, err := NewDecoder(1, ArtifactSession).Decode(
		rawCommand(IDSetWindowBounds, (&enc{}).i32(1).i32(0).i32(0).i32(100).i32(100)))
	if err != nil {
		t.Fatalf("session dialect decode: %v", err)
	}
	if _, ok := sessionCmd.(SetWindowBounds); !ok {
		t.Fatalf("expected SetWindowBounds in session dialect, got %#v", sessionCmd)
	}
}

func TestDecodeTrailingBytesIgnored(t *testing.T) {
	payload := rawCommand(IDSetTabWindow, (&enc{}).i32(1).i32(10).i32(999).i32(999))
	got, err := NewDecoder(1, ArtifactSession).Decode(payload)
	if err != nil {
		t.Fatalf("trailing bytes are legal: %v", err)
	}
	if got != (SetTabWindow{WindowID: 1, TabID: 10}) {
		t.Fatalf("unexpected command %#v", got)
	}
}
