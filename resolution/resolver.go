package resolution

import (
	"fmt"
	"strings"
)

// Candidate is a dictionary row as seen by the resolver.
// Names holds the canonical name first, then any secondary canonical fields.
// Aliases is the raw comma-separated alias column.
type Candidate struct {
	ID      uint
	Names   []string
	Aliases string
}

// Canonical returns the display name of the row.
func (c Candidate) Canonical() string {
	if len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

// Matches reports whether value equals one of the row's names or aliases.
// Comparison is exact and case-sensitive; aliases are trimmed.
func (c Candidate) Matches(value string) bool {
	for _, n := range c.Names {
		if n != "" && n == value {
			return true
		}
	}
	if c.Aliases == "" {
		return false
	}
	for _, alias := range strings.Split(c.Aliases, ",") {
		alias = strings.TrimSpace(alias)
		if alias != "" && alias == value {
			return true
		}
	}
	return false
}

// Snapshot is an immutable view of the three dictionaries, in stable id order.
type Snapshot struct {
	Departments []Candidate
	Operations  []Candidate
	Crops       []Candidate
}

// Dictionary returns the rows of one dimension.
func (s Snapshot) Dictionary(dim Dimension) []Candidate {
	switch dim {
	case DimensionDepartment:
		return s.Departments
	case DimensionOperation:
		return s.Operations
	default:
		return s.Crops
	}
}

// Lookup returns the first row that matches value. Dictionary order decides ties.
func Lookup(value string, dict []Candidate) (Candidate, bool) {
	if value == "" {
		return Candidate{}, false
	}
	for _, c := range dict {
		if c.Matches(value) {
			return c, true
		}
	}
	return Candidate{}, false
}

// Resolve maps one extracted label of dimension dim onto dict.
//
// Bare labels and labels tagged valid must be found by lookup, otherwise they are
// demoted to Predicted with an explanation. Labels tagged predict or raw keep their tag.
// Resolve never fails.
func Resolve(dim Dimension, label Label, dict []Candidate) Resolution {
	switch label.Status {
	case LabelPredict:
		return Predicted{Text: label.Value, Reason: reasonOr(label.Explanation, "inferred by extractor")}
	case LabelRaw:
		return Raw{Text: label.Value, Reason: reasonOr(label.Explanation, "copied from message text")}
	}

	if c, ok := Lookup(label.Value, dict); ok {
		return Valid{ID: c.ID}
	}

	var reason string
	switch {
	case label.Value == "":
		reason = "no value extracted"
	case label.Status == LabelValid:
		reason = fmt.Sprintf("%q was tagged valid but is not in the %s dictionary", label.Value, dim)
	default:
		reason = fmt.Sprintf("%q is not in the %s dictionary", label.Value, dim)
	}
	return Predicted{Text: label.Value, Reason: reason, Demoted: true}
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}

// Resolved is an entry after all three labels went through Resolve.
// The id fields are what gets stored in the foreign key columns; they may hold
// placeholder ids, so use Resolution to decide whether a dimension really resolved.
type Resolved struct {
	Department Resolution
	Operation  Resolution
	Crop       Resolution

	DepartmentID *uint
	OperationID  *uint
	CropID       *uint

	Placeholder bool
	Note        *string
}

// Get returns the resolution of dim.
func (r Resolved) Get(dim Dimension) Resolution {
	switch dim {
	case DimensionDepartment:
		return r.Department
	case DimensionOperation:
		return r.Operation
	default:
		return r.Crop
	}
}

// ResolveEntry resolves every dimension of e, builds the note and applies PlaceholderPolicy.
func ResolveEntry(e ExtractedEntry, snap Snapshot) Resolved {
	out := Resolved{
		Department: Resolve(DimensionDepartment, e.Department, snap.Departments),
		Operation:  Resolve(DimensionOperation, e.Operation, snap.Operations),
		Crop:       Resolve(DimensionCrop, e.Crop, snap.Crops),
	}
	out.DepartmentID = validID(out.Department)
	out.OperationID = validID(out.Operation)
	out.CropID = validID(out.Crop)
	out.Note = BuildNote(out)
	PlaceholderPolicy(&out, snap)
	return out
}

func validID(r Resolution) *uint {
	if v, ok := r.(Valid); ok {
		id := v.ID
		return &id
	}
	return nil
}

// BuildNote joins the explanation of every unresolved dimension with "; ",
// department first, then operation, then crop. It returns nil when all resolved.
func BuildNote(r Resolved) *string {
	var parts []string
	for _, dim := range Dimensions {
		res := r.Get(dim)
		if IsValid(res) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", dim, Reason(res)))
	}
	if len(parts) == 0 {
		return nil
	}
	note := strings.Join(parts, "; ")
	return &note
}
