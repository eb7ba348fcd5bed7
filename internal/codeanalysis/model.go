package codeanalysis

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of an analysis record.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusInProgress:
		return StatusInProgress, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusError:
		return StatusError, true
	}
	return "", false
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Record is the persisted state of one repository analysis.
// A nil slice or pointer means the stage has not produced the field yet; an
// empty non-nil slice means the stage ran and found nothing.
type Record struct {
	ID                        string    `json:"_id"`
	RepositoryURL             string    `json:"repository_url"`
	Status                    Status    `json:"status"`
	Error                     *string   `json:"error"`
	IngestedRepository        *string   `json:"ingested_repository"`
	Technologies              []string  `json:"technologies"`
	DataModelFiles            []string  `json:"data_model_files"`
	DataModelAnalysis         *string   `json:"data_model_analysis"`
	RoutesInterfacesFiles     []string  `json:"routes_interfaces_files"`
	RoutesInterfacesAnalysis  *string   `json:"routes_interfaces_analysis"`
	BusinessLogicFiles        []string  `json:"business_logic_files"`
	BusinessLogicAnalysis     *string   `json:"business_logic_analysis"`
	ProductRequirements       *string   `json:"product_requirements"`
	ArchitectureDocumentation *string   `json:"architecture_documentation"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Text returns a text field's value, or false when it is absent or f is not a text field.
func (r Record) Text(f Field) (string, bool) {
	slot := r.textSlot(f)
	if slot == nil || *slot == nil {
		return "", false
	}
	return **slot, true
}

// List returns a list field's value, or false when it is absent or f is not a list field.
func (r Record) List(f Field) ([]string, bool) {
	slot := r.listSlot(f)
	if slot == nil || *slot == nil {
		return nil, false
	}
	return *slot, true
}

func (r *Record) textSlot(f Field) **string {
	switch f {
	case FieldError:
		return &r.Error
	case FieldIngestedRepository:
		return &r.IngestedRepository
	case FieldDataModelAnalysis:
		return &r.DataModelAnalysis
	case FieldRoutesInterfacesAnalysis:
		return &r.RoutesInterfacesAnalysis
	case FieldBusinessLogicAnalysis:
		return &r.BusinessLogicAnalysis
	case FieldProductRequirements:
		return &r.ProductRequirements
	case FieldArchitectureDocumentation:
		return &r.ArchitectureDocumentation
	}
	return nil
}

func (r *Record) listSlot(f Field) *[]string {
	switch f {
	case FieldTechnologies:
		return &r.Technologies
	case FieldDataModelFiles:
		return &r.DataModelFiles
	case FieldRoutesInterfacesFiles:
		return &r.RoutesInterfacesFiles
	case FieldBusinessLogicFiles:
		return &r.BusinessLogicFiles
	}
	return nil
}

// Field enumerates the updatable fields of a Record.
type Field int

const (
	FieldStatus Field = iota + 1
	FieldError
	FieldIngestedRepository
	FieldTechnologies
	FieldDataModelFiles
	FieldDataModelAnalysis
	FieldRoutesInterfacesFiles
	FieldRoutesInterfacesAnalysis
	FieldBusinessLogicFiles
	FieldBusinessLogicAnalysis
	FieldProductRequirements
	FieldArchitectureDocumentation
)

var fieldNames = map[Field]string{
	FieldStatus:                    "status",
	FieldError:                     "error",
	FieldIngestedRepository:        "ingested_repository",
	FieldTechnologies:              "technologies",
	FieldDataModelFiles:            "data_model_files",
	FieldDataModelAnalysis:         "data_model_analysis",
	FieldRoutesInterfacesFiles:     "routes_interfaces_files",
	FieldRoutesInterfacesAnalysis:  "routes_interfaces_analysis",
	FieldBusinessLogicFiles:        "business_logic_files",
	FieldBusinessLogicAnalysis:     "business_logic_analysis",
	FieldProductRequirements:       "product_requirements",
	FieldArchitectureDocumentation: "architecture_documentation",
}

// String returns the field's column and JSON name.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// IsList reports whether the field holds a list of strings.
func (f Field) IsList() bool {
	switch f {
	case FieldTechnologies, FieldDataModelFiles, FieldRoutesInterfacesFiles, FieldBusinessLogicFiles:
		return true
	}
	return false
}

// IsText reports whether the field holds free text.
func (f Field) IsText() bool {
	return f != FieldStatus && !f.IsList() && fieldNames[f] != ""
}

// IsReport reports whether the field is a markdown report served as plain text.
func (f Field) IsReport() bool {
	switch f {
	case FieldDataModelAnalysis, FieldRoutesInterfacesAnalysis, FieldBusinessLogicAnalysis,
		FieldProductRequirements, FieldArchitectureDocumentation:
		return true
	}
	return false
}

// ReportFields lists the report fields in a stable order.
func ReportFields() []Field {
	return []Field{
		FieldDataModelAnalysis,
		FieldRoutesInterfacesAnalysis,
		FieldBusinessLogicAnalysis,
		FieldProductRequirements,
		FieldArchitectureDocumentation,
	}
}

// Concern is one of the three code concerns analyzed per repository.
type Concern int

const (
	ConcernDataModel Concern = iota + 1
	ConcernRoutesInterfaces
	ConcernBusinessLogic
)

// Concerns lists every concern in pipeline order.
func Concerns() []Concern {
	return []Concern{ConcernDataModel, ConcernRoutesInterfaces, ConcernBusinessLogic}
}

// Key is the snake_case concern name used in field and stage names.
func (c Concern) Key() string {
	switch c {
	case ConcernDataModel:
		return "data_model"
	case ConcernRoutesInterfaces:
		return "routes_interfaces"
	case ConcernBusinessLogic:
		return "business_logic"
	}
	return "unknown"
}

// Title is the human-readable concern name used in error messages.
func (c Concern) Title() string {
	switch c {
	case ConcernDataModel:
		return "Data Model"
	case ConcernRoutesInterfaces:
		return "Routes and Interfaces"
	case ConcernBusinessLogic:
		return "Business Logic"
	}
	return "Unknown"
}

// FilesField is the field holding the concern's relevant file paths.
func (c Concern) FilesField() Field {
	switch c {
	case ConcernDataModel:
		return FieldDataModelFiles
	case ConcernRoutesInterfaces:
		return FieldRoutesInterfacesFiles
	case ConcernBusinessLogic:
		return FieldBusinessLogicFiles
	}
	return 0
}

// AnalysisField is the field holding the concern's markdown report.
func (c Concern) AnalysisField() Field {
	switch c {
	case ConcernDataModel:
		return FieldDataModelAnalysis
	case ConcernRoutesInterfaces:
		return FieldRoutesInterfacesAnalysis
	case ConcernBusinessLogic:
		return FieldBusinessLogicAnalysis
	}
	return 0
}

// Update is a field-scoped change to a Record. Only fields set through the
// setters are written; everything else is left untouched.
type Update struct {
	status *Status
	texts  map[Field]string
	lists  map[Field][]string
}

// NewUpdate returns an empty update.
func NewUpdate() *Update {
	return &Update{}
}

// SetStatus sets the record status.
func (u *Update) SetStatus(s Status) *Update {
	u.status = &s
	return u
}

// SetError sets the failure message.
func (u *Update) SetError(msg string) *Update {
	return u.setText(FieldError, msg)
}

// SetIngestedRepository sets the ingested repository text.
func (u *Update) SetIngestedRepository(text string) *Update {
	return u.setText(FieldIngestedRepository, text)
}

// SetTechnologies sets the detected technologies.
func (u *Update) SetTechnologies(techs []string) *Update {
	return u.setList(FieldTechnologies, techs)
}

// SetFiles sets the relevant files for a concern.
func (u *Update) SetFiles(c Concern, files []string) *Update {
	return u.setList(c.FilesField(), files)
}

// SetAnalysis sets the markdown report for a concern.
func (u *Update) SetAnalysis(c Concern, report string) *Update {
	return u.setText(c.AnalysisField(), report)
}

// SetProductRequirements sets the synthesized product requirements document.
func (u *Update) SetProductRequirements(doc string) *Update {
	return u.setText(FieldProductRequirements, doc)
}

// SetArchitectureDocumentation sets the architecture document.
func (u *Update) SetArchitectureDocumentation(doc string) *Update {
	return u.setText(FieldArchitectureDocumentation, doc)
}

func (u *Update) setText(f Field, v string) *Update {
	if !f.IsText() {
		return u
	}
	if u.texts == nil {
		u.texts = make(map[Field]string)
	}
	u.texts[f] = v
	return u
}

func (u *Update) setList(f Field, v []string) *Update {
	if !f.IsList() {
		return u
	}
	if u.lists == nil {
		u.lists = make(map[Field][]string)
	}
	u.lists[f] = append([]string{}, v...)
	return u
}

// Status returns the status slot.
func (u *Update) Status() (Status, bool) {
	if u == nil || u.status == nil {
		return "", false
	}
	return *u.status, true
}

// Text returns a text slot.
func (u *Update) Text(f Field) (string, bool) {
	if u == nil {
		return "", false
	}
	v, ok := u.texts[f]
	return v, ok
}

// List returns a list slot.
func (u *Update) List(f Field) ([]string, bool) {
	if u == nil {
		return nil, false
	}
	v, ok := u.lists[f]
	return v, ok
}

// Fields lists the fields this update writes, in declaration order.
func (u *Update) Fields() []Field {
	if u == nil {
		return nil
	}
	out := make([]Field, 0, len(u.texts)+len(u.lists)+1)
	if u.status != nil {
		out = append(out, FieldStatus)
	}
	for f := range u.texts {
		out = append(out, f)
	}
	for f := range u.lists {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsEmpty reports whether the update writes nothing.
func (u *Update) IsEmpty() bool {
	return u == nil || (u.status == nil && len(u.texts) == 0 && len(u.lists) == 0)
}

// ApplyTo returns rec with the update applied. Status and error are only
// written while rec is IN_PROGRESS, so terminal states and the first recorded
// failure are never overwritten.
func (u *Update) ApplyTo(rec Record) Record {
	if u.IsEmpty() {
		return rec
	}
	open := rec.Status == StatusInProgress
	if s, ok := u.Status(); ok && open {
		rec.Status = s
	}
	for f, v := range u.texts {
		if f == FieldError && !open {
			continue
		}
		v := v
		*rec.textSlot(f) = &v
	}
	for f, v := range u.lists {
		*rec.listSlot(f) = append([]string{}, v...)
	}
	return rec
}
