package report

import (
	"strconv"

	"github.com/shopspring/decimal"
)

type ColumnKind int

const (
	Text ColumnKind = iota
	Integer
	Money
)

type Column struct {
	Header string
	Kind   ColumnKind
}

// Table is the flat form of a report used by exporters.
// Cells are string, int or decimal.Decimal according to the column kind.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

func (r CustomerBottlesReport) Table() Table {
	return bottleTable("Customer Bottles", r.Rows)
}

func (r OutstandingBottlesReport) Table() Table {
	return bottleTable("Outstanding Bottles", r.Rows)
}

func bottleTable(name string, rows []CustomerBottlesRow) Table {
	t := Table{
		Name: name,
		Columns: []Column{
			{"Customer", Text}, {"Phone", Text}, {"Issued", Integer}, {"Returned", Integer}, {"Outstanding", Integer},
		},
		Rows: make([][]any, 0, len(rows)),
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, []any{row.Name, row.Phone, row.Issued, row.Returned, row.Outstanding})
	}
	return t
}

func (r DuesReport) Table() Table {
	t := Table{
		Name: "Dues",
		Columns: []Column{
			{"Customer", Text}, {"Phone", Text}, {"Opening Balance", Money},
			{"Total Orders", Money}, {"Total Payments", Money}, {"Due Amount", Money},
		},
		Rows: make([][]any, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []any{row.Name, row.Phone, row.OpeningBalance, row.TotalOrders, row.TotalPayments, row.DueAmount})
	}
	return t
}

func (r CashFlowReport) Table() Table {
	t := Table{
		Name: "Cash Flow",
		Columns: []Column{
			{"Date", Text}, {"Income", Money}, {"Expenses", Money}, {"Net Cash", Money}, {"Balance", Money},
		},
		Rows: make([][]any, 0, len(r.Entries)),
	}
	for _, entry := range r.Entries {
		t.Rows = append(t.Rows, []any{entry.Date, entry.Income, entry.Expenses, entry.NetCash, entry.Balance})
	}
	return t
}

func (r ActivityReport) Table() Table {
	t := Table{
		Name: "Customer Activity",
		Columns: []Column{
			{"Customer", Text}, {"Phone", Text}, {"Orders", Integer}, {"Days Since Last Order", Text},
			{"Last Order", Text}, {"Average Quantity", Text}, {"Most Frequent Product", Text}, {"Status", Text},
		},
		Rows: make([][]any, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		days := ""
		if row.DaysSinceLastOrder != nil {
			days = strconv.Itoa(*row.DaysSinceLastOrder)
		}
		t.Rows = append(t.Rows, []any{
			row.Name, row.Phone, row.TotalOrders, days, row.LastOrderDate,
			row.AverageOrderQuantity.StringFixed(2), row.MostFrequentProduct, row.Bucket,
		})
	}
	return t
}

// MoneyCell reads a Money column cell.
func MoneyCell(v any) decimal.Decimal {
	if d, ok := v.(decimal.Decimal); ok {
		return d
	}
	return decimal.Zero
}
