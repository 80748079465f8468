// Package export renders report tables as CSV or XLSX documents.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/report"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Filename builds a download name such as "dues-2025-01-05.csv".
func Filename(table report.Table, date string, format string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(table.Name)), " ", "-")
	return fmt.Sprintf("%s-%s.%s", slug, date, format)
}

func Write(w io.Writer, table report.Table, format string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, table)
	case FormatXLSX:
		return WriteXLSX(w, table)
	default:
		return domain.Validationf("unsupported export format %q", format)
	}
}

// WriteCSV emits a header row and one line per row. Cells containing a comma
// are wrapped in double quotes; embedded quotes are written as-is.
func WriteCSV(w io.Writer, table report.Table) error {
	bw := bufio.NewWriter(w)
	headers := make([]string, 0, len(table.Columns))
	for _, column := range table.Columns {
		headers = append(headers, csvCell(column.Header))
	}
	if _, err := bw.WriteString(strings.Join(headers, ",") + "\n"); err != nil {
		return err
	}

	for _, row := range table.Rows {
		cells := make([]string, 0, len(row))
		for i, value := range row {
			cells = append(cells, csvCell(plainValue(table.Columns[i].Kind, value)))
		}
		if _, err := bw.WriteString(strings.Join(cells, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func csvCell(value string) string {
	if strings.Contains(value, ",") {
		return `"` + value + `"`
	}
	return value
}

func plainValue(kind report.ColumnKind, value any) string {
	switch v := value.(type) {
	case decimal.Decimal:
		return domain.Round2(v).StringFixed(2)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	case nil:
		return ""
	default:
		if kind == report.Money {
			return decimal.Zero.StringFixed(2)
		}
		return fmt.Sprint(v)
	}
}

// WriteXLSX writes the table to a single-sheet workbook. Money cells use the
// display currency format.
func WriteXLSX(w io.Writer, table report.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(table.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, column := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, column.Header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range table.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, xlsxValue(table.Columns[c].Kind, value)); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func xlsxValue(kind report.ColumnKind, value any) any {
	switch kind {
	case report.Money:
		return domain.FormatCurrency(report.MoneyCell(value))
	case report.Integer:
		if v, ok := value.(int); ok {
			return v
		}
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// sheetName trims to Excel's 31 character limit.
func sheetName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Report"
	}
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
