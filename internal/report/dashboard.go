package report

import (
	"github.com/shopspring/decimal"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
)

type Dashboard struct {
	Date               string          `json:"date"`
	OrdersToday        int             `json:"ordersToday"`
	SalesToday         decimal.Decimal `json:"salesToday"`
	CollectedToday     decimal.Decimal `json:"collectedToday"`
	ExpensesToday      decimal.Decimal `json:"expensesToday"`
	CashOnHand         decimal.Decimal `json:"cashOnHand"`
	Customers          int             `json:"customers"`
	OutstandingBottles int             `json:"outstandingBottles"`
	TotalDues          decimal.Decimal `json:"totalDues"`
	WaterStatus        string          `json:"waterStatus,omitempty"`
	WaterCheckedAt     string          `json:"waterCheckedAt,omitempty"`
}

// BuildDashboard summarises today's activity and the standing balances.
func BuildDashboard(l Ledgers, today string, cash decimal.Decimal, water []domain.WaterQualityEntry) Dashboard {
	d := Dashboard{
		Date:           today,
		SalesToday:     decimal.Zero,
		CollectedToday: decimal.Zero,
		ExpensesToday:  decimal.Zero,
		CashOnHand:     cash,
		Customers:      len(l.Customers),
	}
	for _, order := range l.Orders {
		if clock.FormatDate(order.CreatedAt) == today {
			d.OrdersToday++
			d.SalesToday = d.SalesToday.Add(order.TotalAmount)
		}
	}
	for _, payment := range l.Payments {
		if clock.FormatDate(payment.CreatedAt) == today {
			d.CollectedToday = d.CollectedToday.Add(payment.Amount)
		}
	}
	for _, expense := range l.Expenses {
		if expense.Date == today {
			d.ExpensesToday = d.ExpensesToday.Add(expense.Amount)
		}
	}
	d.OutstandingBottles = OutstandingBottles(l).TotalOutstanding
	d.TotalDues = Dues(l).TotalDue

	if latest, ok := LatestWaterEntry(water); ok {
		d.WaterStatus = latest.Status
		d.WaterCheckedAt = latest.Date + " " + latest.Time
	}
	d.SalesToday = domain.Round2(d.SalesToday)
	d.CollectedToday = domain.Round2(d.CollectedToday)
	d.ExpensesToday = domain.Round2(d.ExpensesToday)
	return d
}

// LatestWaterEntry returns the most recent reading by date, time, then creation instant.
func LatestWaterEntry(entries []domain.WaterQualityEntry) (domain.WaterQualityEntry, bool) {
	if len(entries) == 0 {
		return domain.WaterQualityEntry{}, false
	}
	latest := entries[0]
	for _, entry := range entries[1:] {
		switch {
		case entry.Date != latest.Date:
			if entry.Date > latest.Date {
				latest = entry
			}
		case entry.Time != latest.Time:
			if entry.Time > latest.Time {
				latest = entry
			}
		case entry.CreatedAt.After(latest.CreatedAt):
			latest = entry
		}
	}
	return latest, true
}
