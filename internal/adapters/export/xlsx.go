package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/services"
)

const logSheet = "Activity Logs"

type workbook struct {
	f      *excelize.File
	header int
}

// WriteXLSX writes the log to an "Activity Logs" sheet. With withStats the
// aggregates go on a Summary sheet.
func WriteXLSX(w io.Writer, exp *services.ActivityExport, withStats bool) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4E73DF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	wb := &workbook{f: f, header: header}

	if err := f.SetSheetName("Sheet1", logSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := wb.writeLogs(exp.Entries); err != nil {
		return err
	}
	if withStats && exp.Stats != nil {
		if err := wb.writeSummary(exp); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func (wb *workbook) writeLogs(entries []*services.ActivityEntry) error {
	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, Columns)
	for _, e := range entries {
		rows = append(rows, Row(e))
	}
	if err := wb.writeTable(logSheet, 1, rows); err != nil {
		return err
	}
	if err := wb.f.SetColWidth(logSheet, "A", "E", 20); err != nil {
		return err
	}
	return wb.f.SetColWidth(logSheet, "F", "F", 60)
}

func (wb *workbook) writeSummary(exp *services.ActivityExport) error {
	const sheet = "Summary"
	if _, err := wb.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	s := exp.Stats
	totals := [][]string{
		{"Metric", "Value"},
		{"Generated At", exp.GeneratedAt.Format(timestampLayout)},
		{"Generated By", exp.GeneratedBy},
		{"Total Activities", fmt.Sprint(s.TotalActivities)},
		{"Unique Users", fmt.Sprint(s.UniqueUsers)},
		{"Unique Applications", fmt.Sprint(s.UniqueApplications)},
	}
	if err := wb.writeTable(sheet, 1, totals); err != nil {
		return err
	}

	row := len(totals) + 2
	for _, g := range []struct {
		title  string
		counts []repositories.GroupCount
	}{
		{"Action", s.ByAction},
		{"Role", s.ByRole},
		{"Day", s.ByDay},
		{"Hour", s.ByHour},
		{"Weekday", s.ByWeekday},
	} {
		table := [][]string{{g.title, "Count"}}
		for _, c := range g.counts {
			table = append(table, []string{c.Label, fmt.Sprint(c.Total)})
		}
		if err := wb.writeTable(sheet, row, table); err != nil {
			return err
		}
		row += len(table) + 1
	}
	return wb.f.SetColWidth(sheet, "A", "B", 24)
}

// writeTable writes rows starting at firstRow and styles the first as a header
func (wb *workbook) writeTable(sheet string, firstRow int, rows [][]string) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, firstRow+i)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := wb.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, firstRow+i, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	from, _ := excelize.CoordinatesToCellName(1, firstRow)
	to, _ := excelize.CoordinatesToCellName(len(rows[0]), firstRow)
	return wb.f.SetCellStyle(sheet, from, to, wb.header)
}
