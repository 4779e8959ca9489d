package command

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tabstone-dev/tabstone/internal/pickle"
)

// decodeFunc decodes the bytes following the command id. Implementations
// stop at their schema's field count; trailing payload bytes are legal and
// ignored.
type decodeFunc func(payload []byte, version int32) (Command, error)

// schema is one row of the static command table: an id, the format-version
// range it applies to, and the field decoder. maxVersion 0 means open-ended.
//
// Layouts for the less common commands are best-effort, validated against
// captures rather than upstream documentation.
type schema struct {
	id         ID
	minVersion int32
	maxVersion int32
	name       string
	decode     decodeFunc
}

var sessionSchemas = []schema{
	{id: IDSetTabWindow, minVersion: 1, name: "SetTabWindow", decode: decodeSetTabWindow},
	{id: IDSetWindowBounds, minVersion: 1, name: "SetWindowBounds", decode: decodeSetWindowBounds},
	{id: IDSetTabIndexInWindow, minVersion: 1, name: "SetTabIndexInWindow", decode: decodeSetTabIndexInWindow},
	{id: IDTabClosedObsolete, minVersion: 1, name: "TabClosed", decode: decodeTabClosed},
	{id: IDWindowClosedObsolete, minVersion: 1, name: "WindowClosed", decode: decodeWindowClosed},
	{id: IDTabNavigationPathPrunedBack, minVersion: 1, name: "TabNavigationPathPrunedFromBack", decode: decodePrunedFromBack},
	{id: IDUpdateTabNavigation, minVersion: 1, name: "UpdateTabNavigation", decode: decodeUpdateTabNavigation},
	{id: IDSetSelectedNavigationIndex, minVersion: 1, name: "SetSelectedNavigationIndex", decode: decodeSetSelectedNavigationIndex},
	{id: IDSetSelectedTabInIndex, minVersion: 1, name: "SetSelectedTabInIndex", decode: decodeSetSelectedTabInIndex},
	{id: IDSetWindowType, minVersion: 1, name: "SetWindowType", decode: decodeSetWindowType},
	{id: IDSetWindowBounds2, minVersion: 1, name: "SetWindowBounds2", decode: decodeSetWindowBounds2},
	{id: IDTabNavigationPathPrunedFront, minVersion: 1, name: "TabNavigationPathPrunedFromFront", decode: decodePrunedFromFront},
	{id: IDSetPinnedState, minVersion: 1, name: "SetPinnedState", decode: decodeSetPinnedState},
	{id: IDSetExtensionAppID, minVersion: 1, name: "SetExtensionAppID", decode: decodeSetExtensionAppID},
	{id: IDSetWindowBounds3, minVersion: 1, name: "SetWindowBounds3", decode: decodeSetWindowBounds3},
	{id: IDSetWindowAppName, minVersion: 1, name: "SetWindowAppName", decode: decodeSetWindowAppName},
	{id: IDTabClosed, minVersion: 1, name: "TabClosed", decode: decodeTabClosed},
	{id: IDWindowClosed, minVersion: 1, name: "WindowClosed", decode: decodeWindowClosed},
	{id: IDSetTabUserAgentOverride, minVersion: 1, name: "SetTabUserAgentOverride", decode: decodeSetTabUserAgentOverride},
	{id: IDSessionStorageAssociated, minVersion: 1, name: "SessionStorageAssociated", decode: decodeSessionStorageAssociated},
	{id: IDSetActiveWindow, minVersion: 1, name: "SetActiveWindow", decode: decodeSetActiveWindow},
	{id: IDSetLastActiveTime, minVersion: 3, name: "SetLastActiveTime", decode: decodeSetLastActiveTime},
}

// Tab-restore artifacts carry serialized navigations under two historical
// ids; both decode as UpdateTabNavigation with a leading tab id.
var tabRestoreSchemas = []schema{
	{id: IDRestoreUpdateTabNavigation, minVersion: 1, name: "UpdateTabNavigation", decode: decodeUpdateTabNavigation},
	{id: IDUpdateTabNavigation, minVersion: 1, name: "UpdateTabNavigation", decode: decodeUpdateTabNavigation},
}

func lookupSchema(artifact Artifact, id ID, version int32) *schema {
	table := sessionSchemas
	if artifact == ArtifactTabRestore {
		table = tabRestoreSchemas
	}
	for i := range table {
		row := &table[i]
		if row.id != id {
			continue
		}
		if version < row.minVersion {
			continue
		}
		if row.maxVersion != 0 && version > row.maxVersion {
			continue
		}
		return row
	}
	return nil
}

// commandPickle opens the payload of a pickled command. Chromium writes the
// pickle header followed by exactly the declared bytes, but damaged captures
// carry slack; anything past the declared length is ignored.
func commandPickle(payload []byte) (*pickle.Reader, error) {
	if len(payload) < 4 {
		return nil, pickle.ErrTruncated
	}
	declared := int32(binary.LittleEndian.Uint32(payload))
	if declared < 0 || int(declared) > len(payload)-4 {
		return nil, fmt.Errorf("%w: pickled command declares %d payload bytes, have %d",
			pickle.ErrInvalidLength, declared, len(payload)-4)
	}
	return pickle.NewPickle(payload[:4+declared])
}

func decodeSetTabWindow(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetTabWindow
	var err error
	if c.WindowID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	return c, nil
}

func decodeSetTabIndexInWindow(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetTabIndexInWindow
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Index, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return c, nil
}

func decodeTabClosed(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c TabClosed
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	// Close time is absent in the obsolete variant.
	if t, err := r.ReadTime(); err == nil {
		c.Time = t
	}
	return c, nil
}

func decodeWindowClosed(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c WindowClosed
	var err error
	if c.WindowID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	if t, err := r.ReadTime(); err == nil {
		c.Time = t
	}
	return c, nil
}

func decodePrunedFromBack(payload []byte, _ int32) (Command, error) {
	return decodePruned(payload, false)
}

func decodePrunedFromFront(payload []byte, _ int32) (Command, error) {
	return decodePruned(payload, true)
}

func decodePruned(payload []byte, fromFront bool) (Command, error) {
	r := pickle.NewReader(payload)
	c := NavigationPathPruned{FromFront: fromFront}
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Count, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	if c.Count < 0 {
		return nil, fmt.Errorf("negative prune count %d", c.Count)
	}
	return c, nil
}

func decodeSetSelectedNavigationIndex(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetSelectedNavigationIndex
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Index, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return c, nil
}

func decodeSetSelectedTabInIndex(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetSelectedTabInIndex
	var err error
	if c.WindowID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	if c.Index, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return c, nil
}

func decodeSetWindowType(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetWindowType
	var err error
	if c.WindowID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	if c.Type, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	return c, nil
}

func decodeSetPinnedState(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetPinnedState
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Pinned, err = r.ReadBool(); err != nil {
		return nil, fmt.Errorf("pinned: %w", err)
	}
	return c, nil
}

func decodeSetWindowBounds(payload []byte, _ int32) (Command, error) {
	return decodeBounds(payload, false, false)
}

func decodeSetWindowBounds2(payload []byte, _ int32) (Command, error) {
	return decodeBounds(payload, true, false)
}

func decodeSetWindowBounds3(payload []byte, _ int32) (Command, error) {
	return decodeBounds(payload, false, true)
}

func decodeBounds(payload []byte, hasMaximized, hasShowState bool) (Command, error) {
	r := pickle.NewReader(payload)
	c := SetWindowBounds{ShowState: -1}
	for _, f := range []struct {
		name string
		dst  *int32
	}{
		{"window id", &c.WindowID},
		{"x", &c.X},
		{"y", &c.Y},
		{"width", &c.Width},
		{"height", &c.Height},
	} {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	switch {
	case hasMaximized:
		maximized, err := r.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("maximized: %w", err)
		}
		if maximized {
			c.ShowState = showStateMaximized
		} else {
			c.ShowState = showStateNormal
		}
	case hasShowState:
		v, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("show state: %w", err)
		}
		c.ShowState = v
	}
	return c, nil
}

// Chromium ui::WindowShowState values carried by SetWindowBounds3.
const (
	showStateNormal    = 1
	showStateMaximized = 3
)

func decodeSetExtensionAppID(payload []byte, _ int32) (Command, error) {
	id, s, err := decodeIDStringPickle(payload)
	if err != nil {
		return nil, err
	}
	return SetExtensionAppID{TabID: id, AppID: s}, nil
}

func decodeSetWindowAppName(payload []byte, _ int32) (Command, error) {
	id, s, err := decodeIDStringPickle(payload)
	if err != nil {
		return nil, err
	}
	return SetWindowAppName{WindowID: id, AppName: s}, nil
}

func decodeSetTabUserAgentOverride(payload []byte, _ int32) (Command, error) {
	id, s, err := decodeIDStringPickle(payload)
	if err != nil {
		return nil, err
	}
	return SetTabUserAgentOverride{TabID: id, UserAgent: s}, nil
}

func decodeSessionStorageAssociated(payload []byte, _ int32) (Command, error) {
	id, s, err := decodeIDStringPickle(payload)
	if err != nil {
		return nil, err
	}
	return SessionStorageAssociated{TabID: id, NamespaceID: s}, nil
}

// decodeIDStringPickle handles the family of pickled commands shaped
// {entity id, utf-8 string}.
func decodeIDStringPickle(payload []byte) (int32, string, error) {
	r, err := commandPickle(payload)
	if err != nil {
		return 0, "", err
	}
	id, err := r.ReadInt32()
	if err != nil {
		return 0, "", fmt.Errorf("entity id: %w", err)
	}
	s, err := r.ReadString()
	if err != nil {
		return 0, "", fmt.Errorf("string payload: %w", err)
	}
	return id, s, nil
}

func decodeSetActiveWindow(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetActiveWindow
	var err error
	if c.WindowID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	return c, nil
}

func decodeSetLastActiveTime(payload []byte, _ int32) (Command, error) {
	r := pickle.NewReader(payload)
	var c SetLastActiveTime
	var err error
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Time, err = r.ReadTime(); err != nil {
		return nil, fmt.Errorf("last active time: %w", err)
	}
	return c, nil
}

func decodeUpdateTabNavigation(payload []byte, version int32) (Command, error) {
	r, err := commandPickle(payload)
	if err != nil {
		return nil, err
	}
	var c UpdateTabNavigation
	if c.TabID, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("tab id: %w", err)
	}
	if c.Entry, err = decodeNavigationEntry(r, version); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeNavigationEntry reads the serialized navigation fields in their
// historical order. Index and URL are required; everything after is
// best-effort because captures written by older builds simply end earlier.
// Running out of bytes in the optional tail is a legal short entry, but a
// corrupt declared length is still an error.
func decodeNavigationEntry(r *pickle.Reader, _ int32) (NavigationEntry, error) {
	var e NavigationEntry
	var err error
	if e.Index, err = r.ReadInt32(); err != nil {
		return e, fmt.Errorf("navigation index: %w", err)
	}
	if e.URL, err = r.ReadString(); err != nil {
		return e, fmt.Errorf("url: %w", err)
	}

	optional := []struct {
		name string
		read func() error
	}{
		{"title", func() (err error) { e.Title, err = r.ReadString16(); return }},
		{"page state", func() error {
			// Copied: the record buffer is reused for the next record,
			// but the blob lives on in the model.
			b, err := r.ReadBytes()
			if b != nil {
				e.PageStateBlob = append([]byte(nil), b...)
			}
			return err
		}},
		{"transition", func() (err error) {
			v, err := r.ReadInt32()
			e.Transition = Transition(v)
			return
		}},
		{"type mask", func() (err error) { e.TypeMask, err = r.ReadInt32(); return }},
		{"referrer url", func() (err error) { e.ReferrerURL, err = r.ReadString(); return }},
		{"referrer policy", func() (err error) { e.ReferrerPolicy, err = r.ReadInt32(); return }},
		{"original request url", func() (err error) { e.OriginalRequestURL, err = r.ReadString(); return }},
		{"user agent override", func() (err error) { e.OverrodeUserAgent, err = r.ReadBool(); return }},
		{"timestamp", func() (err error) { e.Timestamp, err = r.ReadTime(); return }},
		{"search terms", func() (err error) { e.SearchTerms, err = r.ReadString16(); return }},
		{"http status code", func() (err error) { e.HTTPStatusCode, err = r.ReadInt32(); return }},
		// Newer builds re-serialize the referrer policy after the status
		// code; when present it supersedes the earlier value.
		{"extended referrer policy", func() (err error) { e.ReferrerPolicy, err = r.ReadInt32(); return }},
	}
	for _, f := range optional {
		if err := f.read(); err != nil {
			if errors.Is(err, pickle.ErrTruncated) {
				return e, nil
			}
			return e, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return e, nil
}
