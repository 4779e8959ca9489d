package session

import (
	"fmt"

	"github.com/tabstone-dev/tabstone/internal/command"
)

// Builder folds decoded commands into a Model in strict stream order. Later
// commands clobber fields written by earlier ones; there is no field-level
// merge and no concurrency at this layer.
type Builder struct {
	model     *Model
	tolerance int // malformed commands accepted before early finalization; <0 = unbounded
	malformed int
}

// NewBuilder returns a builder over a fresh model. tolerance bounds how many
// malformed commands are recorded before the fold finalizes early; negative
// means unbounded.
func NewBuilder(tolerance int) *Builder {
	return &Builder{model: NewModel(), tolerance: tolerance}
}

// Model exposes the model being built. Valid at any point: an abandoned
// decode leaves everything folded so far intact.
func (b *Builder) Model() *Model { return b.model }

// Apply folds one command. offset is the record's position in the artifact,
// used for diagnostics. Returns false when the fold is finished and the
// caller should stop feeding commands.
func (b *Builder) Apply(cmd command.Command, offset int64) bool {
	if b.model.state == StateFinalized {
		return false
	}
	b.model.state = StateBuilding

	switch c := cmd.(type) {
	case command.SetTabWindow:
		b.attachTab(WindowID(c.WindowID), TabID(c.TabID))
	case command.SetWindowBounds:
		w := b.model.window(WindowID(c.WindowID))
		w.Bounds = Bounds{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height, ShowState: c.ShowState}
	case command.SetTabIndexInWindow:
		b.model.tab(TabID(c.TabID)).IndexInWindow = c.Index
	case command.TabClosed:
		t := b.model.tab(TabID(c.TabID))
		t.Closed = true
		t.ClosedAt = c.Time
	case command.WindowClosed:
		w := b.model.window(WindowID(c.WindowID))
		w.Closed = true
		w.ClosedAt = c.Time
	case command.NavigationPathPruned:
		b.prune(TabID(c.TabID), c.Count, c.FromFront)
	case command.UpdateTabNavigation:
		t := b.model.tab(TabID(c.TabID))
		entry := c.Entry
		t.navigations[entry.Index] = &entry
	case command.SetSelectedNavigationIndex:
		b.model.tab(TabID(c.TabID)).ActiveNavigation = c.Index
	case command.SetSelectedTabInIndex:
		w := b.model.window(WindowID(c.WindowID))
		w.SelectedIndex = c.Index
		b.resolveSelectedTab(w)
	case command.SetWindowType:
		b.model.window(WindowID(c.WindowID)).Type = c.Type
	case command.SetPinnedState:
		b.model.tab(TabID(c.TabID)).Pinned = c.Pinned
	case command.SetExtensionAppID:
		b.model.tab(TabID(c.TabID)).ExtensionAppID = c.AppID
	case command.SetWindowAppName:
		b.model.window(WindowID(c.WindowID)).AppName = c.AppName
	case command.SetTabUserAgentOverride:
		b.model.tab(TabID(c.TabID)).UserAgentOverride = c.UserAgent
	case command.SessionStorageAssociated:
		b.model.tab(TabID(c.TabID)).StorageNamespace = c.NamespaceID
	case command.SetActiveWindow:
		for _, w := range b.model.windows {
			w.Active = false
		}
		b.model.window(WindowID(c.WindowID)).Active = true
	case command.SetLastActiveTime:
		b.model.tab(TabID(c.TabID)).LastActiveAt = c.Time
	case command.Unknown:
		b.model.addDiagnostic(Diagnostic{
			Kind:      DiagUnknownCommand,
			Offset:    offset,
			CommandID: c.ID,
			Detail:    fmt.Sprintf("no schema for command id %d (%d payload bytes)", c.ID, len(c.Payload)),
		})
	}
	return true
}

// ApplyMalformed records a command that failed field decoding. Returns false
// once the configured tolerance is exhausted, which finalizes the model.
func (b *Builder) ApplyMalformed(err *command.MalformedError, offset int64) bool {
	if b.model.state == StateFinalized {
		return false
	}
	b.model.state = StateBuilding
	b.model.addDiagnostic(Diagnostic{
		Kind:      DiagMalformedCommand,
		Offset:    offset,
		CommandID: err.ID,
		Detail:    err.Err.Error(),
	})
	b.malformed++
	if b.tolerance >= 0 && b.malformed > b.tolerance {
		b.Finalize()
		return false
	}
	return true
}

// ApplyTruncated records the container-level truncation that ended the
// stream and finalizes the model.
func (b *Builder) ApplyTruncated(offset int64, detail string) {
	if b.model.state == StateFinalized {
		return
	}
	b.model.addDiagnostic(Diagnostic{
		Kind:   DiagTruncatedRecord,
		Offset: offset,
		Detail: detail,
	})
	b.Finalize()
}

// Finalize seals the model. Always succeeds: a partial reconstruction still
// has forensic value, so there is no failure path here.
func (b *Builder) Finalize() *Model {
	b.model.state = StateFinalized
	return b.model
}

// attachTab wires tab membership both ways: the window's ordered reference
// list and the tab's back-reference.
func (b *Builder) attachTab(winID WindowID, tabID TabID) {
	w := b.model.window(winID)
	t := b.model.tab(tabID)

	if prev, ok := b.model.windows[t.WindowID]; ok && t.WindowID != winID {
		prev.TabIDs = removeTabID(prev.TabIDs, tabID)
	}
	t.WindowID = winID
	for _, id := range w.TabIDs {
		if id == tabID {
			return
		}
	}
	w.TabIDs = append(w.TabIDs, tabID)
	b.resolveSelectedTab(w)
}

// resolveSelectedTab maps a window's selected index onto a concrete tab id
// when the membership list reaches that far.
func (b *Builder) resolveSelectedTab(w *Window) {
	if w.SelectedIndex < 0 {
		return
	}
	for _, id := range w.TabIDs {
		t := b.model.tabs[id]
		if t != nil && t.IndexInWindow == w.SelectedIndex {
			w.SelectedTabID = id
			return
		}
	}
	if int(w.SelectedIndex) < len(w.TabIDs) {
		w.SelectedTabID = w.TabIDs[w.SelectedIndex]
	}
}

// prune applies a navigation-path prune, keyed off navigation indices so
// that entries the stream never recorded stay absent. A front prune carries
// the number of positions dropped: every index shifts down by that amount
// and anything that would go negative is discarded, as the browser renumbers
// on restore. A back prune carries the first pruned index: entries recorded
// at or above it are discarded, and indices below it are untouched.
func (b *Builder) prune(tabID TabID, count int32, fromFront bool) {
	t := b.model.tab(tabID)

	if !fromFront {
		for idx := range t.navigations {
			if idx >= count {
				delete(t.navigations, idx)
			}
		}
		return
	}

	shifted := make(map[int32]*command.NavigationEntry, len(t.navigations))
	for idx, e := range t.navigations {
		if idx < count {
			continue
		}
		e.Index = idx - count
		shifted[e.Index] = e
	}
	t.navigations = shifted
	t.ActiveNavigation = max(t.ActiveNavigation-count, -1)
}

func removeTabID(ids []TabID, id TabID) []TabID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
