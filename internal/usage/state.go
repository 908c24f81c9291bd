package usage

import "encoding/json"

// StateKind tags which variant a State holds.
type StateKind string

const (
	StateKindUnknown StateKind = "unknown"
	StateKindOK      StateKind = "ok"
	StateKindErr     StateKind = "error"
)

// State is the current usage: unknown before the first poll completes,
// otherwise the last record or the last error, never both.
type State struct {
	kind   StateKind
	record Record
	err    *Error
}

func StateUnknown() State {
	return State{kind: StateKindUnknown}
}

func StateOK(r Record) State {
	return State{kind: StateKindOK, record: r}
}

// StateErr wraps e. A nil e yields the unknown state.
func StateErr(e *Error) State {
	if e == nil {
		return StateUnknown()
	}
	return State{kind: StateKindErr, err: e}
}

func (s State) Kind() StateKind {
	if s.kind == "" {
		return StateKindUnknown
	}
	return s.kind
}

// Record returns the record and true only for the ok variant.
func (s State) Record() (Record, bool) {
	return s.record, s.Kind() == StateKindOK
}

// Err returns the error for the error variant, nil otherwise.
func (s State) Err() *Error {
	if s.Kind() != StateKindErr {
		return nil
	}
	return s.err
}

type stateJSON struct {
	Kind   StateKind `json:"kind"`
	Record *Record   `json:"record,omitempty"`
	Error  *Error    `json:"error,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{Kind: s.Kind()}
	switch out.Kind {
	case StateKindOK:
		r := s.record
		out.Record = &r
	case StateKindErr:
		out.Error = s.err
	}
	return json.Marshal(out)
}
