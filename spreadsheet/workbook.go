package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// first data row; also the row whose cell styles every written row copies
	templateRow = 2
	columnCount = 8

	highlightColor   = "FFFF00"
	titlePlaceholder = "{report_on}"
	titleDateLayout  = "02.01.2006"
)

// workbook is an open copy of the template with its column styles resolved.
type workbook struct {
	file      *excelize.File
	sheet     string
	styles    [columnCount]int
	highlight map[int]int
	rowHeight float64
}

func openWorkbook(template []byte, date time.Time) (*workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	sheet := f.GetSheetName(0)
	if sheet == "" {
		_ = f.Close()
		return nil, fmt.Errorf("template has no sheets")
	}
	title := sheetTitle(sheet, date)
	if title != sheet {
		if err := f.SetSheetName(sheet, title); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	w := &workbook{file: f, sheet: title, highlight: map[int]int{}}
	for col := 1; col <= columnCount; col++ {
		cell, _ := excelize.CoordinatesToCellName(col, templateRow)
		style, err := f.GetCellStyle(title, cell)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("read template style %s: %w", cell, err)
		}
		w.styles[col-1] = style
	}
	if h, err := f.GetRowHeight(title, templateRow); err == nil {
		w.rowHeight = h
	}
	return w, nil
}

func sheetTitle(templateTitle string, date time.Time) string {
	formatted := date.Format(titleDateLayout)
	if strings.Contains(templateTitle, titlePlaceholder) {
		return strings.ReplaceAll(templateTitle, titlePlaceholder, formatted)
	}
	return formatted
}

// writeRows writes entries starting at row and returns the next free row.
func (w *workbook) writeRows(row int, entries []Entry) (int, error) {
	for _, e := range entries {
		if err := w.writeRow(row, e); err != nil {
			return row, err
		}
		row++
	}
	return row, nil
}

func (w *workbook) writeRow(row int, e Entry) error {
	labels := e.labels()
	values := [columnCount]interface{}{
		e.WorkedOn,
		labels[0].Text(),
		labels[1].Text(),
		labels[2].Text(),
		e.DayArea,
		floatOrNil(e.CumulativeArea),
		floatOrNil(e.DayYield),
		floatOrNil(e.CumulativeYield),
	}

	if row != templateRow && w.rowHeight > 0 {
		if err := w.file.SetRowHeight(w.sheet, row, w.rowHeight); err != nil {
			return err
		}
	}
	for col := 1; col <= columnCount; col++ {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		style := w.styles[col-1]
		if col >= 2 && col <= 4 && !labels[col-2].Resolved {
			if style, err = w.highlightStyle(style); err != nil {
				return err
			}
		}
		// style first: excelize only applies its own date format to unstyled cells
		if err := w.file.SetCellStyle(w.sheet, cell, cell, style); err != nil {
			return err
		}
		v := values[col-1]
		if s, ok := v.(string); ok && s == "" {
			v = nil
		}
		if v == nil {
			continue
		}
		if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// highlightStyle derives a copy of base with a solid highlight fill.
func (w *workbook) highlightStyle(base int) (int, error) {
	if id, ok := w.highlight[base]; ok {
		return id, nil
	}
	st, err := w.file.GetStyle(base)
	if err != nil {
		return 0, fmt.Errorf("read style %d: %w", base, err)
	}
	derived := *st
	derived.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{highlightColor}}
	id, err := w.file.NewStyle(&derived)
	if err != nil {
		return 0, fmt.Errorf("create highlight style: %w", err)
	}
	w.highlight[base] = id
	return id, nil
}

func (w *workbook) bytes() ([]byte, error) {
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *workbook) close() {
	_ = w.file.Close()
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
