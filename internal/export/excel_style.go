package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ApplyDefaultExcelFormatting оформляет лист: жирный заголовок в первой строке,
// автофильтр по нему, закреплённая шапка и примерная ширина колонок по содержимому.
func ApplyDefaultExcelFormatting(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return nil
	}
	last := columnName(cols)

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last+"1", style)
	}
	_ = f.AutoFilter(sheet, "A1:"+last+"1", nil)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	widths := make([]float64, cols)
	for c := range widths {
		widths[c] = 10
	}
	for rIdx, row := range rows {
		for cIdx := 0; cIdx < cols && cIdx < len(row); cIdx++ {
			w := float64(visualLen(row[cIdx])) * 1.1
			if rIdx == 0 {
				w += 1.5 // место под кнопку фильтра
			}
			if w > 60 {
				w = 60
			}
			if w > widths[cIdx] {
				widths[cIdx] = w
			}
		}
	}
	for i, w := range widths {
		col := columnName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return nil
}

// BuildHistoryFilename — имя файла выгрузки реестра сертификатов за период.
func BuildHistoryFilename(from, to *time.Time, loc *time.Location) string {
	period := "all time"
	switch {
	case from != nil && to != nil:
		period = from.In(loc).Format("2006-01-02") + " - " + to.In(loc).Format("2006-01-02")
	case from != nil:
		period = "since " + from.In(loc).Format("2006-01-02")
	case to != nil:
		period = "until " + to.In(loc).Format("2006-01-02")
	}
	return sanitizeFileName(fmt.Sprintf("Certificates — %s.xlsx", period))
}

// BuildSummaryFilename — имя файла сводки по сессии мероприятия.
func BuildSummaryFilename(eventTitle string, eventDate time.Time) string {
	return sanitizeFileName(fmt.Sprintf("Session summary — %s — %s.xlsx",
		cleanName(eventTitle), eventDate.Format("2006-01-02")))
}

func columnName(n int) string {
	// 1 -> A; 27 -> AA
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

// visualLen — ширина текста в символах, табуляция считается за 4.
func visualLen(s string) int {
	n := 0
	for _, r := range s {
		if r == '\t' {
			n += 4
		} else {
			n++
		}
	}
	return n
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

func sanitizeFileName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return invalidFileRe.ReplaceAllString(s, "_")
}

// Excel запрещает в имени листа []:*?/\ и ограничивает его 31 символом.
var invalidSheetRe = regexp.MustCompile(`[\[\]:*?/\\]+`)

func sanitizeSheetName(s string) string {
	s = invalidSheetRe.ReplaceAllString(strings.TrimSpace(s), "_")
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	if s == "" {
		s = "Sheet"
	}
	return s
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "—"
	}
	return s
}
