package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"bitbucket.org/mmdatafocus/agromate_backend/spreadsheet"
)

// sheetEntries turns persisted reports into spreadsheet rows, looking up the
// canonical names of resolved ids in snap.
func sheetEntries(reports []*models.Report, snap *models.DictionarySnapshot) []spreadsheet.Entry {
	out := make([]spreadsheet.Entry, 0, len(reports))
	for _, r := range reports {
		out = append(out, spreadsheet.Entry{
			WorkedOn:        r.WorkedOn,
			Department:      sheetLabel(r, resolution.DimensionDepartment, snap),
			Operation:       sheetLabel(r, resolution.DimensionOperation, snap),
			Crop:            sheetLabel(r, resolution.DimensionCrop, snap),
			DayArea:         r.DayArea,
			CumulativeArea:  r.CumulativeArea,
			DayYield:        r.DayYield,
			CumulativeYield: r.CumulativeYield,
		})
	}
	return out
}

func sheetLabel(r *models.Report, dim resolution.Dimension, snap *models.DictionarySnapshot) spreadsheet.Label {
	id, raw, predicted := r.LabelColumns(dim)
	label := spreadsheet.Label{Resolved: r.Resolved(dim)}
	if raw != nil {
		label.Raw = *raw
	}
	if predicted != nil {
		label.Predicted = *predicted
	}
	if !label.Resolved || id == nil {
		return label
	}
	if snap != nil {
		if name, ok := snap.Name(dim, *id); ok {
			label.Canonical = name
			return label
		}
	}
	// the row is gone from the dictionary; print the id and highlight it
	label.Resolved = false
	if label.Raw == "" && label.Predicted == "" {
		label.Raw = fmt.Sprintf("#%d", *id)
	}
	return label
}
