package spreadsheet

import "time"

// Label is one dictionary reference as it will be printed.
type Label struct {
	Canonical string
	Predicted string
	Raw       string
	Resolved  bool
}

// Text picks the canonical name when resolved, then the predicted text, then the raw text.
func (l Label) Text() string {
	if l.Resolved && l.Canonical != "" {
		return l.Canonical
	}
	if l.Predicted != "" {
		return l.Predicted
	}
	return l.Raw
}

// Entry is one report row.
type Entry struct {
	WorkedOn time.Time

	Department Label
	Operation  Label
	Crop       Label

	DayArea         float64
	CumulativeArea  *float64
	DayYield        *float64
	CumulativeYield *float64
}

func (e Entry) labels() [3]Label {
	return [3]Label{e.Department, e.Operation, e.Crop}
}
