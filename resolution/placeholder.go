package resolution

// PlaceholderPolicy fills the foreign keys of an entry whose three dimensions all
// failed to resolve, using the first row of each dictionary. The row stays storable
// and its note already records why every dimension is unresolved. Entries with at
// least one resolved dimension are left untouched, as are dimensions whose
// dictionary is empty.
func PlaceholderPolicy(r *Resolved, snap Snapshot) {
	if r.DepartmentID != nil || r.OperationID != nil || r.CropID != nil {
		return
	}
	r.DepartmentID = firstID(snap.Departments)
	r.OperationID = firstID(snap.Operations)
	r.CropID = firstID(snap.Crops)
	r.Placeholder = r.DepartmentID != nil || r.OperationID != nil || r.CropID != nil
}

func firstID(dict []Candidate) *uint {
	if len(dict) == 0 {
		return nil
	}
	id := dict[0].ID
	return &id
}
