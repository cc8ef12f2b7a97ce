// Package resolution maps extracted labels onto dictionary rows and
// normalizes the numeric fields of an extracted field-work entry.
//
// Nothing in this package performs I/O. Dictionaries arrive as Snapshot
// values and results are plain structs the caller persists.
package resolution

// Dimension names one of the three organizational references of an entry.
type Dimension string

const (
	DimensionDepartment Dimension = "department"
	DimensionOperation  Dimension = "operation"
	DimensionCrop       Dimension = "crop"
)

// Dimensions in the order their explanations are joined into a note.
var Dimensions = []Dimension{DimensionDepartment, DimensionOperation, DimensionCrop}

// LabelStatus is the tag an annotating extractor puts on a label.
// An empty status means the label is bare and is validated by lookup alone.
type LabelStatus string

const (
	LabelBare    LabelStatus = ""
	LabelValid   LabelStatus = "valid"
	LabelPredict LabelStatus = "predict"
	LabelRaw     LabelStatus = "raw"
)

// Label is one extracted reference as produced by the extractor.
type Label struct {
	Value       string      `json:"value"`
	Status      LabelStatus `json:"status,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
}

// ExtractedEntry is one field-work record as returned by the extractor.
// Yields are in kilograms.
type ExtractedEntry struct {
	Date         *string  `json:"date,omitempty"`
	Department   Label    `json:"department"`
	Operation    Label    `json:"operation"`
	Crop         Label    `json:"crop"`
	AreaDay      *float64 `json:"processed_area_day,omitempty"`
	AreaTotal    *float64 `json:"processed_area_total,omitempty"`
	YieldKgDay   *float64 `json:"yield_kg_day,omitempty"`
	YieldKgTotal *float64 `json:"yield_kg_total,omitempty"`
}

// Label returns the label of the given dimension.
func (e ExtractedEntry) Label(dim Dimension) Label {
	switch dim {
	case DimensionDepartment:
		return e.Department
	case DimensionOperation:
		return e.Operation
	default:
		return e.Crop
	}
}

// Resolution is the outcome of resolving one label. It is exactly one of
// Valid, Predicted or Raw.
type Resolution interface {
	isResolution()
}

// Valid is a label that matched a dictionary row.
type Valid struct {
	ID uint
}

// Predicted carries a label the extractor inferred but the dictionary does not confirm.
// Demoted is set when the label was bare or tagged valid and failed lookup, in which
// case Text is also the literal value written by the submitter.
type Predicted struct {
	Text    string
	Reason  string
	Demoted bool
}

// Raw carries a label copied verbatim from the message text.
type Raw struct {
	Text   string
	Reason string
}

func (Valid) isResolution()     {}
func (Predicted) isResolution() {}
func (Raw) isResolution()       {}

// IsValid reports whether r resolved to a dictionary row.
func IsValid(r Resolution) bool {
	_, ok := r.(Valid)
	return ok
}

// Reason returns the explanation carried by an unresolved label, or "".
func Reason(r Resolution) string {
	switch v := r.(type) {
	case Predicted:
		return v.Reason
	case Raw:
		return v.Reason
	default:
		return ""
	}
}
