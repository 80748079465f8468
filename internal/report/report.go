// Package report builds read-only projections over the ledgers.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/ledger"
)

const (
	BucketNoOrders = "no_orders"
	Bucket90Days   = "90_days"
	Bucket60Days   = "60_days"
	Bucket30Days   = "30_days"
	BucketActive   = "active"
)

// Ledgers is the state every report is computed from.
type Ledgers struct {
	Customers          []domain.Customer
	Products           []domain.Product
	Orders             []domain.Order
	Payments           []domain.Payment
	Expenses           []domain.Expense
	BottleTransactions []domain.BottleTransaction
}

type CustomerBottlesRow struct {
	CustomerID  string `json:"customerId"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Issued      int    `json:"issued"`
	Returned    int    `json:"returned"`
	Outstanding int    `json:"outstanding"`
}

type CustomerBottlesReport struct {
	Rows []CustomerBottlesRow `json:"rows"`
}

type OutstandingBottlesReport struct {
	Rows             []CustomerBottlesRow `json:"rows"`
	TotalOutstanding int                  `json:"totalOutstanding"`
}

type DueRow struct {
	CustomerID     string          `json:"customerId"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	TotalOrders    decimal.Decimal `json:"totalOrders"`
	TotalPayments  decimal.Decimal `json:"totalPayments"`
	DueAmount      decimal.Decimal `json:"dueAmount"`
}

type DuesReport struct {
	Rows     []DueRow        `json:"rows"`
	TotalDue decimal.Decimal `json:"totalDue"`
}

type CashFlowEntry struct {
	Date     string          `json:"date"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	NetCash  decimal.Decimal `json:"netCash"`
	Balance  decimal.Decimal `json:"balance"`
}

type CashFlowTotals struct {
	Income      decimal.Decimal `json:"income"`
	Expenses    decimal.Decimal `json:"expenses"`
	NetCashFlow decimal.Decimal `json:"netCashFlow"`
}

type CashFlowReport struct {
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Entries   []CashFlowEntry `json:"entries"`
	Totals    CashFlowTotals  `json:"totals"`
}

type ActivityRow struct {
	CustomerID           string          `json:"customerId"`
	Name                 string          `json:"name"`
	Phone                string          `json:"phone"`
	TotalOrders          int             `json:"totalOrders"`
	DaysSinceLastOrder   *int            `json:"daysSinceLastOrder"`
	LastOrderDate        string          `json:"lastOrderDate"`
	AverageOrderQuantity decimal.Decimal `json:"averageOrderQuantity"`
	MostFrequentProduct  string          `json:"mostFrequentProduct"`
	Bucket               string          `json:"bucket"`
}

type ActivityReport struct {
	MinDaysInactive *int          `json:"minDaysInactive"`
	Rows            []ActivityRow `json:"rows"`
}

func customerBottleRows(l Ledgers) []CustomerBottlesRow {
	balances := ledger.AllCustomerBottles(l.BottleTransactions, ledger.NewReturnability(l.Orders, l.Products))
	rows := make([]CustomerBottlesRow, 0, len(l.Customers))
	for _, customer := range l.Customers {
		balance := balances[customer.ID]
		rows = append(rows, CustomerBottlesRow{
			CustomerID:  customer.ID,
			Name:        customer.Name,
			Phone:       customer.Phone,
			Issued:      balance.Issued,
			Returned:    balance.Returned,
			Outstanding: balance.ReturnableOutstanding,
		})
	}
	return rows
}

func sortByOutstanding(rows []CustomerBottlesRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Outstanding != rows[j].Outstanding {
			return rows[i].Outstanding > rows[j].Outstanding
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
}

// CustomerBottles lists customers that were ever issued bottles or still hold some.
func CustomerBottles(l Ledgers) CustomerBottlesReport {
	rows := make([]CustomerBottlesRow, 0)
	for _, row := range customerBottleRows(l) {
		if row.Issued > 0 || row.Outstanding > 0 {
			rows = append(rows, row)
		}
	}
	sortByOutstanding(rows)
	return CustomerBottlesReport{Rows: rows}
}

// OutstandingBottles lists customers holding returnable bottles.
func OutstandingBottles(l Ledgers) OutstandingBottlesReport {
	report := OutstandingBottlesReport{Rows: make([]CustomerBottlesRow, 0)}
	for _, row := range customerBottleRows(l) {
		if row.Outstanding > 0 {
			report.Rows = append(report.Rows, row)
			report.TotalOutstanding += row.Outstanding
		}
	}
	sortByOutstanding(report.Rows)
	return report
}

// Dues lists customers with a positive account balance, largest first.
func Dues(l Ledgers) DuesReport {
	report := DuesReport{Rows: make([]DueRow, 0), TotalDue: decimal.Zero}
	for _, customer := range l.Customers {
		balance := ledger.Account(customer, l.Orders, l.Payments)
		if !balance.Balance.IsPositive() {
			continue
		}
		report.Rows = append(report.Rows, DueRow{
			CustomerID:     customer.ID,
			Name:           customer.Name,
			Phone:          customer.Phone,
			OpeningBalance: balance.OpeningBalance,
			TotalOrders:    balance.TotalOrders,
			TotalPayments:  balance.TotalPayments,
			DueAmount:      balance.Balance,
		})
		report.TotalDue = report.TotalDue.Add(balance.Balance)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		if !report.Rows[i].DueAmount.Equal(report.Rows[j].DueAmount) {
			return report.Rows[i].DueAmount.GreaterThan(report.Rows[j].DueAmount)
		}
		return strings.ToLower(report.Rows[i].Name) < strings.ToLower(report.Rows[j].Name)
	})
	report.TotalDue = domain.Round2(report.TotalDue)
	return report
}

func inRange(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && date > end {
		return false
	}
	return true
}

// CashFlow groups order income and expenses by UTC creation date within [start, end].
// The running balance starts at zero on the first listed date.
func CashFlow(l Ledgers, start, end string) CashFlowReport {
	income := make(map[string]decimal.Decimal)
	expenses := make(map[string]decimal.Decimal)
	for _, order := range l.Orders {
		date := clock.FormatDate(order.CreatedAt)
		if inRange(date, start, end) {
			income[date] = income[date].Add(order.TotalAmount)
		}
	}
	for _, expense := range l.Expenses {
		date := clock.FormatDate(expense.CreatedAt)
		if inRange(date, start, end) {
			expenses[date] = expenses[date].Add(expense.Amount)
		}
	}

	dates := make([]string, 0, len(income)+len(expenses))
	seen := make(map[string]struct{})
	for _, group := range []map[string]decimal.Decimal{income, expenses} {
		for date := range group {
			if _, ok := seen[date]; !ok {
				seen[date] = struct{}{}
				dates = append(dates, date)
			}
		}
	}
	sort.Strings(dates)

	report := CashFlowReport{
		StartDate: start,
		EndDate:   end,
		Entries:   make([]CashFlowEntry, 0, len(dates)),
		Totals:    CashFlowTotals{Income: decimal.Zero, Expenses: decimal.Zero, NetCashFlow: decimal.Zero},
	}
	balance := decimal.Zero
	for _, date := range dates {
		in := domain.Round2(income[date])
		out := domain.Round2(expenses[date])
		net := in.Sub(out)
		balance = balance.Add(net)
		report.Entries = append(report.Entries, CashFlowEntry{
			Date:     date,
			Income:   in,
			Expenses: out,
			NetCash:  net,
			Balance:  balance,
		})
		report.Totals.Income = report.Totals.Income.Add(in)
		report.Totals.Expenses = report.Totals.Expenses.Add(out)
	}
	report.Totals.NetCashFlow = report.Totals.Income.Sub(report.Totals.Expenses)
	return report
}

func bucketFor(days int) string {
	switch {
	case days >= 90:
		return Bucket90Days
	case days >= 60:
		return Bucket60Days
	case days >= 30:
		return Bucket30Days
	default:
		return BucketActive
	}
}

// CustomerActivity measures how long each customer has gone without ordering.
// Customers with no orders are always listed; others are kept when at least
// minDaysInactive days have passed.
func CustomerActivity(l Ledgers, now time.Time, minDaysInactive *int) ActivityReport {
	productNames := make(map[string]string, len(l.Products))
	for _, product := range l.Products {
		productNames[product.ID] = product.Name
	}
	ordersByCustomer := make(map[string][]domain.Order)
	for _, order := range l.Orders {
		ordersByCustomer[order.CustomerID] = append(ordersByCustomer[order.CustomerID], order)
	}

	rows := make([]ActivityRow, 0, len(l.Customers))
	for _, customer := range l.Customers {
		orders := ordersByCustomer[customer.ID]
		row := ActivityRow{
			CustomerID:           customer.ID,
			Name:                 customer.Name,
			Phone:                customer.Phone,
			TotalOrders:          len(orders),
			AverageOrderQuantity: decimal.Zero,
			Bucket:               BucketNoOrders,
		}
		if len(orders) == 0 {
			rows = append(rows, row)
			continue
		}

		last := orders[0].CreatedAt
		quantity := 0
		counts := make(map[string]int)
		for _, order := range orders {
			if order.CreatedAt.After(last) {
				last = order.CreatedAt
			}
			quantity += order.Quantity
			counts[order.ProductID]++
		}
		days := clock.DaysBetween(last, now)
		if minDaysInactive != nil && days < *minDaysInactive {
			continue
		}
		row.DaysSinceLastOrder = &days
		row.LastOrderDate = clock.FormatDate(last)
		row.AverageOrderQuantity = domain.Round2(decimal.NewFromInt(int64(quantity)).Div(decimal.NewFromInt(int64(len(orders)))))
		row.MostFrequentProduct = mostFrequent(counts, productNames)
		row.Bucket = bucketFor(days)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.DaysSinceLastOrder == nil) != (b.DaysSinceLastOrder == nil) {
			return a.DaysSinceLastOrder == nil
		}
		if a.DaysSinceLastOrder != nil && *a.DaysSinceLastOrder != *b.DaysSinceLastOrder {
			return *a.DaysSinceLastOrder > *b.DaysSinceLastOrder
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return ActivityReport{MinDaysInactive: minDaysInactive, Rows: rows}
}

// mostFrequent picks the product with the most orders; ties go to the
// alphabetically first name, then id.
func mostFrequent(counts map[string]int, names map[string]string) string {
	bestID, bestCount := "", 0
	label := func(id string) string {
		if name, ok := names[id]; ok && name != "" {
			return name
		}
		return id
	}
	for id, count := range counts {
		switch {
		case count > bestCount:
			bestID, bestCount = id, count
		case count == bestCount:
			if label(id) < label(bestID) || (label(id) == label(bestID) && id < bestID) {
				bestID = id
			}
		}
	}
	if bestID == "" {
		return ""
	}
	return label(bestID)
}
