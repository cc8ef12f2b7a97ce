package models

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

// SeedResult counts the rows inserted per dictionary. A table that already had
// rows is skipped and reports zero.
type SeedResult struct {
	Departments int
	Operations  int
	Crops       int
}

// csvRows reads a headed CSV into one map per row keyed by trimmed column name.
func csvRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
}

func ParseDepartmentsCSV(r io.Reader) ([]Department, error) {
	rows, err := csvRows(r)
	if err != nil {
		return nil, err
	}
	out := make([]Department, 0, len(rows))
	for i, row := range rows {
		if row["subdivision"] == "" {
			return nil, fmt.Errorf("departments row %d: subdivision is required", i+2)
		}
		out = append(out, Department{
			Subdivision:      row["subdivision"],
			ProductionUnit:   row["production_unit"],
			DepartmentNumber: row["department_number"],
			Aliases:          row["aliases"],
		})
	}
	return out, nil
}

func ParseOperationsCSV(r io.Reader) ([]Operation, error) {
	rows, err := csvRows(r)
	if err != nil {
		return nil, err
	}
	out := make([]Operation, 0, len(rows))
	for i, row := range rows {
		if row["operation_name"] == "" {
			return nil, fmt.Errorf("operations row %d: operation_name is required", i+2)
		}
		out = append(out, Operation{OperationName: row["operation_name"], Note: row["note"], Aliases: row["aliases"]})
	}
	return out, nil
}

func ParseCropsCSV(r io.Reader) ([]Crop, error) {
	rows, err := csvRows(r)
	if err != nil {
		return nil, err
	}
	out := make([]Crop, 0, len(rows))
	for i, row := range rows {
		if row["crop_name"] == "" {
			return nil, fmt.Errorf("crops row %d: crop_name is required", i+2)
		}
		out = append(out, Crop{CropName: row["crop_name"], Aliases: row["aliases"]})
	}
	return out, nil
}

// SeedDictionaries fills empty dictionary tables from departments.csv,
// operations.csv and crops.csv in dir. A missing file leaves its table alone.
func SeedDictionaries(ctx context.Context, db *gorm.DB, dir string) (SeedResult, error) {
	var result SeedResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if result.Departments, err = seedTable(tx, filepath.Join(dir, "departments.csv"), &Department{}, ParseDepartmentsCSV); err != nil {
			return err
		}
		if result.Operations, err = seedTable(tx, filepath.Join(dir, "operations.csv"), &Operation{}, ParseOperationsCSV); err != nil {
			return err
		}
		result.Crops, err = seedTable(tx, filepath.Join(dir, "crops.csv"), &Crop{}, ParseCropsCSV)
		return err
	})
	return result, err
}

func seedTable[T any](tx *gorm.DB, path string, model *T, parse func(io.Reader) ([]T, error)) (int, error) {
	var count int64
	if err := tx.Model(model).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	rows, err := parse(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := tx.CreateInBatches(rows, 100).Error; err != nil {
		return 0, fmt.Errorf("insert %s: %w", filepath.Base(path), err)
	}
	return len(rows), nil
}
