package command

import (
	"errors"
	"fmt"
)

// Artifact selects the schema dialect. Session files (Current/Last Session)
// and tab-restore files (Current/Last Tabs) share the container but number
// their commands differently.
type Artifact int

const (
	ArtifactSession Artifact = iota
	ArtifactTabRestore
)

// ErrEmptyRecord reports a record with no room for a command id.
var ErrEmptyRecord = errors.New("command: empty record payload")

// MalformedError reports a record whose schema is known but whose fields
// failed to decode. Recoverable: the builder records it and moves on.
type MalformedError struct {
	ID  ID
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("command %d malformed: %v", e.ID, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Decoder maps raw record payloads to typed commands using the schema table
// for one (artifact kind, format version) pair.
type Decoder struct {
	version  int32
	artifact Artifact
}

func NewDecoder(version int32, artifact Artifact) *Decoder {
	return &Decoder{version: version, artifact: artifact}
}

// Decode interprets one record payload. Unknown ids yield an Unknown command,
// never an error; a known schema whose fields fail yields *MalformedError.
func (d *Decoder) Decode(payload []byte) (Command, error) {
	if len(payload) == 0 {
		return nil, &MalformedError{Err: ErrEmptyRecord}
	}
	id := ID(payload[0])
	row := lookupSchema(d.artifact, id, d.version)
	if row == nil {
		raw := make([]byte, len(payload)-1)
		copy(raw, payload[1:])
		return Unknown{ID: id, Payload: raw}, nil
	}
	cmd, err := row.decode(payload[1:], d.version)
	if err != nil {
		return nil, &MalformedError{ID: id, Err: err}
	}
	return cmd, nil
}

// CommandName returns the schema name for an id under this decoder's dialect,
// or "unknown" when no schema row matches.
func (d *Decoder) CommandName(id ID) string {
	if row := lookupSchema(d.artifact, id, d.version); row != nil {
		return row.name
	}
	return "unknown"
}
