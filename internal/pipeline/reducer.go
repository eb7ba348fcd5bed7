package pipeline

import (
	"code-analysis-api/internal/codeanalysis"
)

// Partial is the sparse set of fields a node produced.
type Partial map[codeanalysis.Field]Value

// Failure is the partial a node emits when it cannot produce its output.
func Failure(msg string) Partial {
	return Partial{
		codeanalysis.FieldError:  Text(msg),
		codeanalysis.FieldStatus: StatusValue(codeanalysis.StatusError),
	}
}

// Failed reports whether the partial records a failure, returning its message.
func (p Partial) Failed() (string, bool) {
	v, ok := p[codeanalysis.FieldError]
	if !ok {
		return "", false
	}
	return v.text, true
}

// Apply returns s with every field of p written and stamped with the next
// sequence number. Fields are stamped in declaration order.
func Apply(s State, p Partial) State {
	out := s.clone()
	for _, f := range sortedFields(p) {
		out.seq++
		out.fields[f] = Entry{Value: p[f].clone(), Seq: out.seq}
	}
	return out
}

// Merge combines two states field by field. The entry with the higher
// sequence wins and b wins ties. Identity fields come from a unless empty.
func Merge(a, b State) State {
	out := a.clone()
	if out.AnalysisID == "" {
		out.AnalysisID = b.AnalysisID
	}
	if out.RepositoryURL == "" {
		out.RepositoryURL = b.RepositoryURL
	}
	for f, eb := range b.fields {
		if ea, ok := out.fields[f]; ok && ea.Seq > eb.Seq {
			continue
		}
		out.fields[f] = Entry{Value: eb.Value.clone(), Seq: eb.Seq}
	}
	if b.seq > out.seq {
		out.seq = b.seq
	}
	return out
}

// Update projects the partial onto a store update through the typed setters.
func (p Partial) Update() *codeanalysis.Update {
	u := codeanalysis.NewUpdate()
	for _, f := range sortedFields(p) {
		v := p[f]
		switch f {
		case codeanalysis.FieldStatus:
			u.SetStatus(v.status)
		case codeanalysis.FieldError:
			u.SetError(v.text)
		case codeanalysis.FieldIngestedRepository:
			u.SetIngestedRepository(v.text)
		case codeanalysis.FieldTechnologies:
			u.SetTechnologies(v.list)
		case codeanalysis.FieldProductRequirements:
			u.SetProductRequirements(v.text)
		case codeanalysis.FieldArchitectureDocumentation:
			u.SetArchitectureDocumentation(v.text)
		default:
			for _, c := range codeanalysis.Concerns() {
				switch f {
				case c.FilesField():
					u.SetFiles(c, v.list)
				case c.AnalysisField():
					u.SetAnalysis(c, v.text)
				}
			}
		}
	}
	return u
}
