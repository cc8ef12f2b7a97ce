package spreadsheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/xuri/excelize/v2"
)

var defaultHeaders = []string{
	"Дата", "Подразделение", "Операция", "Культура",
	"За день, га", "С начала, га", "Вал за день, ц", "Вал с начала, ц",
}

// LoadTemplate reads the report template at path. A missing file falls back to
// DefaultTemplate so a fresh checkout can still produce reports.
func LoadTemplate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultTemplate()
	}
	if err != nil {
		return nil, fmt.Errorf("read report template: %w", err)
	}
	return data, nil
}

// DefaultTemplate builds a plain template: a bold header row and a bordered
// style row for the data.
func DefaultTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Отчет " + titlePlaceholder
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Family: "Arial", Size: 10},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}
	data, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Family: "Arial", Size: 10},
		Border: border,
	})
	if err != nil {
		return nil, err
	}

	for i, h := range defaultHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(columnCount, 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, templateRow)
	last, _ = excelize.CoordinatesToCellName(columnCount, templateRow)
	if err := f.SetCellStyle(sheet, first, last, data); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "D", 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
