package models

import (
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
)

type Department struct {
	ID               uint   `gorm:"primary_key" json:"id"`
	Subdivision      string `gorm:"size:255;not null" json:"subdivision" binding:"required"`
	ProductionUnit   string `gorm:"size:255" json:"production_unit"`
	DepartmentNumber string `gorm:"size:64" json:"department_number"`
	Aliases          string `gorm:"type:text" json:"aliases"`
}

type Operation struct {
	ID            uint   `gorm:"primary_key" json:"id"`
	OperationName string `gorm:"size:255;not null" json:"operation_name" binding:"required"`
	Note          string `gorm:"type:text" json:"note"`
	Aliases       string `gorm:"type:text" json:"aliases"`
}

type Crop struct {
	ID       uint   `gorm:"primary_key" json:"id"`
	CropName string `gorm:"size:255;not null" json:"crop_name" binding:"required"`
	Aliases  string `gorm:"type:text" json:"aliases"`
}

func (d Department) Candidate() resolution.Candidate {
	return resolution.Candidate{
		ID:      d.ID,
		Names:   []string{d.Subdivision, d.ProductionUnit, d.DepartmentNumber},
		Aliases: d.Aliases,
	}
}

func (o Operation) Candidate() resolution.Candidate {
	return resolution.Candidate{ID: o.ID, Names: []string{o.OperationName}, Aliases: o.Aliases}
}

func (c Crop) Candidate() resolution.Candidate {
	return resolution.Candidate{ID: c.ID, Names: []string{c.CropName}, Aliases: c.Aliases}
}

// DictionarySnapshot is the full set of dictionaries in id order.
type DictionarySnapshot struct {
	Departments []Department `json:"departments"`
	Operations  []Operation  `json:"operations"`
	Crops       []Crop       `json:"crops"`
}

func (s *DictionarySnapshot) Resolution() resolution.Snapshot {
	out := resolution.Snapshot{
		Departments: make([]resolution.Candidate, 0, len(s.Departments)),
		Operations:  make([]resolution.Candidate, 0, len(s.Operations)),
		Crops:       make([]resolution.Candidate, 0, len(s.Crops)),
	}
	for _, d := range s.Departments {
		out.Departments = append(out.Departments, d.Candidate())
	}
	for _, o := range s.Operations {
		out.Operations = append(out.Operations, o.Candidate())
	}
	for _, c := range s.Crops {
		out.Crops = append(out.Crops, c.Candidate())
	}
	return out
}

// Name returns the canonical name of the row with id in dimension dim.
func (s *DictionarySnapshot) Name(dim resolution.Dimension, id uint) (string, bool) {
	switch dim {
	case resolution.DimensionDepartment:
		for _, d := range s.Departments {
			if d.ID == id {
				return d.Subdivision, true
			}
		}
	case resolution.DimensionOperation:
		for _, o := range s.Operations {
			if o.ID == id {
				return o.OperationName, true
			}
		}
	case resolution.DimensionCrop:
		for _, c := range s.Crops {
			if c.ID == id {
				return c.CropName, true
			}
		}
	}
	return "", false
}
