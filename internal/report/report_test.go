package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqualedger/backend/internal/domain"
)

func day(date string, hour int) time.Time {
	t, _ := time.Parse("2006-01-02", date)
	return t.Add(time.Duration(hour) * time.Hour)
}

func boolPtr(v bool) *bool { return &v }

func sampleLedgers() Ledgers {
	return Ledgers{
		Customers: []domain.Customer{
			{ID: "c1", Name: "Bilal", OpeningBalance: domain.Money(100)},
			{ID: "c2", Name: "Ayesha"},
			{ID: "c3", Name: "Zara"},
			{ID: "c4", Name: "Kamran"},
		},
		Products: []domain.Product{
			{ID: "p19", Name: "19L Bottle", Size: "19L"},
			{ID: "p6", Name: "6L Bottle", Size: "6L", IsReturnable: boolPtr(false)},
		},
		Orders: []domain.Order{
			{ID: "o1", CustomerID: "c1", ProductID: "p19", Quantity: 3, TotalAmount: domain.Money(600), CreatedAt: day("2025-01-05", 9)},
			{ID: "o2", CustomerID: "c1", ProductID: "p6", Quantity: 2, TotalAmount: domain.Money(400), AmountPaid: domain.Money(400), CreatedAt: day("2025-01-05", 15)},
			{ID: "o3", CustomerID: "c2", ProductID: "p19", Quantity: 1, TotalAmount: domain.Money(200), CreatedAt: day("2024-10-01", 10)},
		},
		Payments: []domain.Payment{
			{CustomerID: "c1", Amount: domain.Money(400), OrderID: "o2"},
			{CustomerID: "c2", Amount: domain.Money(200)},
		},
		Expenses: []domain.Expense{
			{Amount: domain.Money(300), Date: "2025-01-06", CreatedAt: day("2025-01-06", 11)},
			{Amount: domain.Money(50), Date: "2024-12-31", CreatedAt: day("2024-12-31", 11)},
		},
		BottleTransactions: []domain.BottleTransaction{
			{CustomerID: "c1", Type: domain.BottleIssued, Quantity: 3, OrderID: "o1"},
			{CustomerID: "c1", Type: domain.BottleIssued, Quantity: 2, OrderID: "o2"},
			{CustomerID: "c1", Type: domain.BottleReturned, Quantity: 1},
			{CustomerID: "c2", Type: domain.BottleIssued, Quantity: 1, OrderID: "o3"},
			{CustomerID: "c2", Type: domain.BottleReturned, Quantity: 1},
			{CustomerID: "c3", Type: domain.BottleIssued, Quantity: 4},
		},
	}
}

func TestCashFlowGroupsByDateWithRunningBalance(t *testing.T) {
	report := CashFlow(sampleLedgers(), "2025-01-05", "2025-01-06")

	require.Len(t, report.Entries, 2)
	first, second := report.Entries[0], report.Entries[1]
	assert.Equal(t, "2025-01-05", first.Date)
	assert.Equal(t, "1000", first.Income.String())
	assert.Equal(t, "0", first.Expenses.String())
	assert.Equal(t, "1000", first.NetCash.String())
	assert.Equal(t, "1000", first.Balance.String())
	assert.Equal(t, "2025-01-06", second.Date)
	assert.Equal(t, "0", second.Income.String())
	assert.Equal(t, "300", second.Expenses.String())
	assert.Equal(t, "-300", second.NetCash.String())
	assert.Equal(t, "700", second.Balance.String())

	assert.Equal(t, "1000", report.Totals.Income.String())
	assert.Equal(t, "300", report.Totals.Expenses.String())
	assert.Equal(t, "700", report.Totals.NetCashFlow.String())
}

func TestCustomerBottlesUsesReturnableOutstanding(t *testing.T) {
	report := CustomerBottles(sampleLedgers())

	require.Len(t, report.Rows, 3)
	assert.Equal(t, "c3", report.Rows[0].CustomerID)
	assert.Equal(t, 4, report.Rows[0].Outstanding)
	assert.Equal(t, "c1", report.Rows[1].CustomerID)
	assert.Equal(t, 5, report.Rows[1].Issued)
	assert.Equal(t, 2, report.Rows[1].Outstanding)
	assert.Equal(t, "c2", report.Rows[2].CustomerID)
	assert.Equal(t, 0, report.Rows[2].Outstanding)
}

func TestOutstandingBottlesTotals(t *testing.T) {
	report := OutstandingBottles(sampleLedgers())

	require.Len(t, report.Rows, 2)
	assert.Equal(t, 6, report.TotalOutstanding)
}

func TestDuesFiltersAndSorts(t *testing.T) {
	report := Dues(sampleLedgers())

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, "c1", row.CustomerID)
	assert.Equal(t, "100", row.OpeningBalance.String())
	assert.Equal(t, "1000", row.TotalOrders.String())
	assert.Equal(t, "400", row.TotalPayments.String())
	assert.Equal(t, "700", row.DueAmount.String())
	assert.Equal(t, "700", report.TotalDue.String())
}

func TestCustomerActivityBuckets(t *testing.T) {
	now := day("2025-01-20", 8)
	report := CustomerActivity(sampleLedgers(), now, nil)

	require.Len(t, report.Rows, 4)
	assert.Equal(t, BucketNoOrders, report.Rows[0].Bucket)
	assert.Equal(t, "Kamran", report.Rows[0].Name)
	assert.Equal(t, BucketNoOrders, report.Rows[1].Bucket)
	assert.Equal(t, "Zara", report.Rows[1].Name)

	ayesha := report.Rows[2]
	assert.Equal(t, "c2", ayesha.CustomerID)
	require.NotNil(t, ayesha.DaysSinceLastOrder)
	assert.Equal(t, 111, *ayesha.DaysSinceLastOrder)
	assert.Equal(t, Bucket90Days, ayesha.Bucket)

	bilal := report.Rows[3]
	assert.Equal(t, 15, *bilal.DaysSinceLastOrder)
	assert.Equal(t, "2025-01-05", bilal.LastOrderDate)
	assert.Equal(t, "2.5", bilal.AverageOrderQuantity.String())
	assert.Equal(t, "19L Bottle", bilal.MostFrequentProduct)
	assert.Equal(t, BucketActive, bilal.Bucket)
}

func TestCustomerActivityFilterKeepsNoOrderCustomers(t *testing.T) {
	minDays := 30
	report := CustomerActivity(sampleLedgers(), day("2025-01-20", 8), &minDays)

	ids := make([]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		ids = append(ids, row.CustomerID)
	}
	assert.Equal(t, []string{"c4", "c3", "c2"}, ids)
}

func TestDashboard(t *testing.T) {
	water := []domain.WaterQualityEntry{
		{Date: "2025-01-05", Time: "08:00", Status: domain.QualityNormal},
		{Date: "2025-01-05", Time: "17:30", Status: domain.QualityWarning},
		{Date: "2025-01-04", Time: "23:00", Status: domain.QualityCritical},
	}
	d := BuildDashboard(sampleLedgers(), "2025-01-05", domain.Money(1234.5), water)

	assert.Equal(t, 2, d.OrdersToday)
	assert.Equal(t, "1000", d.SalesToday.String())
	assert.Equal(t, 6, d.OutstandingBottles)
	assert.Equal(t, "700", d.TotalDues.String())
	assert.Equal(t, domain.QualityWarning, d.WaterStatus)
	assert.Equal(t, "2025-01-05 17:30", d.WaterCheckedAt)
}

func TestDuesTableColumns(t *testing.T) {
	table := Dues(sampleLedgers()).Table()

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Due Amount", table.Columns[5].Header)
	assert.Equal(t, "700", MoneyCell(table.Rows[0][5]).String())
}
