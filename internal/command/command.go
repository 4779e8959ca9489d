// Package command interprets SNSS record payloads as typed session commands.
//
// A record payload is [command_id:uint8][command-specific fields]. Field
// layouts come from a static schema table keyed by command id and format
// version range; unknown ids decode to Unknown rather than failing, because
// partial understanding beats total refusal on forensic input.
package command

import (
	"time"
)

// ID is the one-byte command identifier leading every record payload.
type ID uint8

// Session-service command ids. Numbering follows Chromium's session service;
// obsolete variants still appear in old captures and decode the same way.
const (
	IDSetTabWindow                 ID = 0
	IDSetWindowBounds              ID = 1 // obsolete, doubles as window creation
	IDSetTabIndexInWindow          ID = 2
	IDTabClosedObsolete            ID = 3
	IDWindowClosedObsolete         ID = 4
	IDTabNavigationPathPrunedBack  ID = 5
	IDUpdateTabNavigation          ID = 6
	IDSetSelectedNavigationIndex   ID = 7
	IDSetSelectedTabInIndex        ID = 8
	IDSetWindowType                ID = 9
	IDSetWindowBounds2             ID = 10 // obsolete
	IDTabNavigationPathPrunedFront ID = 11
	IDSetPinnedState               ID = 12
	IDSetExtensionAppID            ID = 13
	IDSetWindowBounds3             ID = 14
	IDSetWindowAppName             ID = 15
	IDTabClosed                    ID = 16
	IDWindowClosed                 ID = 17
	IDSetTabUserAgentOverride      ID = 18
	IDSessionStorageAssociated     ID = 19
	IDSetActiveWindow              ID = 20
	IDSetLastActiveTime            ID = 21
)

// Tab-restore artifacts (Current Tabs / Last Tabs) reuse id 1 for navigation
// updates; see the tabRestoreSchemas table.
const IDRestoreUpdateTabNavigation ID = 1

// Command is the closed set of decoded instructions a record can carry.
// Each variant is consumed exactly once by the model builder.
type Command interface {
	CommandID() ID
}

// SetTabWindow attaches a tab to a window.
type SetTabWindow struct {
	WindowID int32
	TabID    int32
}

// SetWindowBounds creates or repositions a window. Decoded from ids 1, 10
// and 14; only the newest variant carries an explicit show state.
type SetWindowBounds struct {
	WindowID  int32
	X, Y      int32
	Width     int32
	Height    int32
	ShowState int32 // -1 when the command variant predates show states
}

// SetTabIndexInWindow records a tab's position within its window.
type SetTabIndexInWindow struct {
	TabID int32
	Index int32
}

// TabClosed tombstones a tab.
type TabClosed struct {
	TabID int32
	Time  time.Time
}

// WindowClosed tombstones a window.
type WindowClosed struct {
	WindowID int32
	Time     time.Time
}

// NavigationPathPruned drops navigation entries from one end of a tab's
// history list. Count carries the number of positions dropped when pruning
// from the front, and the first pruned index when pruning from the back.
type NavigationPathPruned struct {
	TabID     int32
	Count     int32
	FromFront bool
}

// UpdateTabNavigation creates or clobbers one navigation entry of a tab.
type UpdateTabNavigation struct {
	TabID int32
	Entry NavigationEntry
}

// SetSelectedNavigationIndex records which navigation entry is active.
type SetSelectedNavigationIndex struct {
	TabID int32
	Index int32
}

// SetSelectedTabInIndex records which tab position is selected in a window.
type SetSelectedTabInIndex struct {
	WindowID int32
	Index    int32
}

// SetWindowType records the window kind (normal, popup, app).
type SetWindowType struct {
	WindowID int32
	Type     int32
}

// SetPinnedState marks a tab pinned or unpinned.
type SetPinnedState struct {
	TabID  int32
	Pinned bool
}

// SetExtensionAppID associates a tab with an extension application.
type SetExtensionAppID struct {
	TabID int32
	AppID string
}

// SetWindowAppName records the app name of an application window.
type SetWindowAppName struct {
	WindowID int32
	AppName  string
}

// SetTabUserAgentOverride records a per-tab user agent override.
type SetTabUserAgentOverride struct {
	TabID     int32
	UserAgent string
}

// SessionStorageAssociated links a tab to its session-storage namespace.
type SessionStorageAssociated struct {
	TabID       int32
	NamespaceID string
}

// SetActiveWindow records the most recently active window.
type SetActiveWindow struct {
	WindowID int32
}

// SetLastActiveTime records when a tab was last in the foreground.
type SetLastActiveTime struct {
	TabID int32
	Time  time.Time
}

// Unknown carries a record whose (id, version) pair has no schema. Payload
// is a copy of the raw bytes after the id, retained for diagnostics.
type Unknown struct {
	ID      ID
	Payload []byte
}

func (SetTabWindow) CommandID() ID        { return IDSetTabWindow }
func (SetWindowBounds) CommandID() ID     { return IDSetWindowBounds3 }
func (SetTabIndexInWindow) CommandID() ID { return IDSetTabIndexInWindow }
func (TabClosed) CommandID() ID           { return IDTabClosed }
func (WindowClosed) CommandID() ID        { return IDWindowClosed }
func (c NavigationPathPruned) CommandID() ID {
	if c.FromFront {
		return IDTabNavigationPathPrunedFront
	}
	return IDTabNavigationPathPrunedBack
}
func (UpdateTabNavigation) CommandID() ID        { return IDUpdateTabNavigation }
func (SetSelectedNavigationIndex) CommandID() ID { return IDSetSelectedNavigationIndex }
func (SetSelectedTabInIndex) CommandID() ID      { return IDSetSelectedTabInIndex }
func (SetWindowType) CommandID() ID              { return IDSetWindowType }
func (SetPinnedState) CommandID() ID             { return IDSetPinnedState }
func (SetExtensionAppID) CommandID() ID          { return IDSetExtensionAppID }
func (SetWindowAppName) CommandID() ID           { return IDSetWindowAppName }
func (SetTabUserAgentOverride) CommandID() ID    { return IDSetTabUserAgentOverride }
func (SessionStorageAssociated) CommandID() ID   { return IDSessionStorageAssociated }
func (SetActiveWindow) CommandID() ID            { return IDSetActiveWindow }
func (SetLastActiveTime) CommandID() ID          { return IDSetLastActiveTime }
func (u Unknown) CommandID() ID                  { return u.ID }

// NavigationEntry is one decoded navigation record. Fields past the core
// set are best-effort: old captures simply end earlier.
type NavigationEntry struct {
	Index              int32
	URL                string
	Title              string
	PageStateBlob      []byte // versioned blink PageState, decoded on demand
	Transition         Transition
	TypeMask           int32
	ReferrerURL        string
	ReferrerPolicy     int32
	OriginalRequestURL string
	OverrodeUserAgent  bool
	Timestamp          time.Time
	SearchTerms        string
	HTTPStatusCode     int32
}
