package pipeline

import (
	"sort"

	"code-analysis-api/internal/codeanalysis"
)

type valueKind int

const (
	kindText valueKind = iota + 1
	kindList
	kindStatus
)

// Value is the content written to one field: text, a list of strings or a
// status, depending on the field.
type Value struct {
	kind   valueKind
	text   string
	list   []string
	status codeanalysis.Status
}

// Text wraps a free-text value.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// List wraps a list value. A nil list is stored as empty.
func List(v []string) Value { return Value{kind: kindList, list: append([]string{}, v...)} }

// StatusValue wraps a status value.
func StatusValue(s codeanalysis.Status) Value { return Value{kind: kindStatus, status: s} }

func (v Value) clone() Value {
	if v.list != nil {
		v.list = append([]string{}, v.list...)
	}
	return v
}

// Entry is a field value stamped with the state sequence at which it was written.
type Entry struct {
	Value Value
	Seq   uint64
}

// State is the transient per-run pipeline state. It is treated as immutable:
// Apply and Merge return new values and never modify their inputs.
type State struct {
	AnalysisID    string
	RepositoryURL string

	fields map[codeanalysis.Field]Entry
	seq    uint64
}

// NewState returns an empty state for one run.
func NewState(analysisID, repositoryURL string) State {
	return State{AnalysisID: analysisID, RepositoryURL: repositoryURL}
}

// Seq is the highest write sequence in the state.
func (s State) Seq() uint64 { return s.seq }

// Entry returns the stamped entry of a field.
func (s State) Entry(f codeanalysis.Field) (Entry, bool) {
	e, ok := s.fields[f]
	return e, ok
}

// Text returns a text field.
func (s State) Text(f codeanalysis.Field) (string, bool) {
	e, ok := s.fields[f]
	if !ok || e.Value.kind != kindText {
		return "", false
	}
	return e.Value.text, true
}

// List returns a copy of a list field.
func (s State) List(f codeanalysis.Field) ([]string, bool) {
	e, ok := s.fields[f]
	if !ok || e.Value.kind != kindList {
		return nil, false
	}
	return append([]string{}, e.Value.list...), true
}

// Status returns the last status written, if any.
func (s State) Status() (codeanalysis.Status, bool) {
	e, ok := s.fields[codeanalysis.FieldStatus]
	if !ok || e.Value.kind != kindStatus {
		return "", false
	}
	return e.Value.status, true
}

// Fields lists the fields present in the state.
func (s State) Fields() []codeanalysis.Field {
	return sortedFields(s.fields)
}

func (s State) clone() State {
	out := s
	out.fields = make(map[codeanalysis.Field]Entry, len(s.fields))
	for f, e := range s.fields {
		out.fields[f] = Entry{Value: e.Value.clone(), Seq: e.Seq}
	}
	return out
}

func sortedFields[V any](m map[codeanalysis.Field]V) []codeanalysis.Field {
	out := make([]codeanalysis.Field, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
