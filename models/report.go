package models

import (
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
)

// Report is one field-work entry extracted from a chat message. Rows are
// written once by the pipeline and never updated.
type Report struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	WorkedOn      time.Time `gorm:"type:date;not null;index" json:"worked_on"`
	ChatMessageID uint      `gorm:"not null;index" json:"chat_message_id"`

	DepartmentID        *uint   `json:"department_id"`
	DepartmentRaw       *string `gorm:"size:255" json:"department_raw"`
	DepartmentPredicted *string `gorm:"size:255" json:"department_predicted"`
	OperationID         *uint   `json:"operation_id"`
	OperationRaw        *string `gorm:"size:255" json:"operation_raw"`
	OperationPredicted  *string `gorm:"size:255" json:"operation_predicted"`
	CropID              *uint   `json:"crop_id"`
	CropRaw             *string `gorm:"size:255" json:"crop_raw"`
	CropPredicted       *string `gorm:"size:255" json:"crop_predicted"`

	// IsPlaceholder marks ids that were filled in only to keep the row storable.
	IsPlaceholder bool    `gorm:"not null;default:false" json:"is_placeholder"`
	Note          *string `gorm:"type:text" json:"note"`

	DayArea         float64  `gorm:"not null" json:"day_area"`
	CumulativeArea  *float64 `json:"cumulative_area"`
	DayYield        *float64 `json:"day_yield"`
	CumulativeYield *float64 `json:"cumulative_yield"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	ChatMessage *ChatMessage `gorm:"foreignKey:ChatMessageID" json:"-"`
	Department  *Department  `gorm:"foreignKey:DepartmentID" json:"-"`
	Operation   *Operation   `gorm:"foreignKey:OperationID" json:"-"`
	Crop        *Crop        `gorm:"foreignKey:CropID" json:"-"`
}

// NewReport assembles a row from a resolved entry and its normalized measures.
func NewReport(messageID uint, r resolution.Resolved, m resolution.Measures) *Report {
	rep := &Report{
		WorkedOn:        m.WorkedOn,
		ChatMessageID:   messageID,
		DepartmentID:    r.DepartmentID,
		OperationID:     r.OperationID,
		CropID:          r.CropID,
		IsPlaceholder:   r.Placeholder,
		Note:            r.Note,
		DayArea:         m.DayArea,
		CumulativeArea:  m.CumulativeArea,
		DayYield:        m.DayYield,
		CumulativeYield: m.CumulativeYield,
	}
	rep.DepartmentRaw, rep.DepartmentPredicted = labelColumns(r.Department)
	rep.OperationRaw, rep.OperationPredicted = labelColumns(r.Operation)
	rep.CropRaw, rep.CropPredicted = labelColumns(r.Crop)
	return rep
}

// labelColumns maps a resolution onto the raw/predicted column pair.
// A demoted label is the submitter's own text, so it lands in both.
func labelColumns(res resolution.Resolution) (raw *string, predicted *string) {
	switch v := res.(type) {
	case resolution.Predicted:
		text := v.Text
		predicted = &text
		if v.Demoted {
			rawText := v.Text
			raw = &rawText
		}
	case resolution.Raw:
		text := v.Text
		raw = &text
	}
	return raw, predicted
}

// Resolved reports whether dim matched a dictionary row, as opposed to being
// unresolved or carrying a placeholder id.
func (r *Report) Resolved(dim resolution.Dimension) bool {
	if r.IsPlaceholder {
		return false
	}
	switch dim {
	case resolution.DimensionDepartment:
		return r.DepartmentID != nil
	case resolution.DimensionOperation:
		return r.OperationID != nil
	default:
		return r.CropID != nil
	}
}

// LabelColumns returns the stored id and texts of dim.
func (r *Report) LabelColumns(dim resolution.Dimension) (id *uint, raw *string, predicted *string) {
	switch dim {
	case resolution.DimensionDepartment:
		return r.DepartmentID, r.DepartmentRaw, r.DepartmentPredicted
	case resolution.DimensionOperation:
		return r.OperationID, r.OperationRaw, r.OperationPredicted
	default:
		return r.CropID, r.CropRaw, r.CropPredicted
	}
}
