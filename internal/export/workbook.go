package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetSpec — один лист книги: заголовок колонок и строки значений.
// Значения пишутся через SetCellValue, поэтому числа остаются числами.
type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]any
}

type Workbook struct {
	File *excelize.File
}

func NewWorkbook(sheets []SheetSpec) (*Workbook, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	for i, s := range sheets {
		name := sanitizeSheetName(s.Title)
		if i == 0 {
			// стандартный Sheet1 переименовываем: книга без листов невалидна
			if err := f.SetSheetName("Sheet1", name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("new sheet %q: %w", name, err)
		}

		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", columnName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", columnName(c+1), r+2)
				if err := f.SetCellValue(name, cell, val); err != nil {
					_ = f.Close()
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		if err := ApplyDefaultExcelFormatting(f, name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("format sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return &Workbook{File: f}, nil
}

// WriteTo пишет xlsx в поток, например в тело HTTP-ответа.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.File.WriteTo(out)
}

func (w *Workbook) Close() error { return w.File.Close() }
