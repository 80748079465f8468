package service

import (
	"context"
	"strings"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/report"
)

var activityThresholds = map[int]bool{30: true, 60: true, 90: true}

func (s *Service) loadLedgers(ctx context.Context) (report.Ledgers, error) {
	var l report.Ledgers
	var err error
	if l.Customers, err = s.cols.Customers.FetchAll(ctx); err != nil {
		return l, err
	}
	if l.Products, err = s.cols.Products.FetchAll(ctx); err != nil {
		return l, err
	}
	if l.Orders, err = s.cols.Orders.FetchAll(ctx); err != nil {
		return l, err
	}
	if l.Payments, err = s.cols.Payments.FetchAll(ctx); err != nil {
		return l, err
	}
	if l.Expenses, err = s.cols.Expenses.FetchAll(ctx); err != nil {
		return l, err
	}
	if l.BottleTransactions, err = s.cols.BottleTransactions.FetchAll(ctx); err != nil {
		return l, err
	}
	return l, nil
}

func (s *Service) adminLedgers(ctx context.Context) (report.Ledgers, error) {
	if err := requireAdmin(ctx); err != nil {
		return report.Ledgers{}, err
	}
	return s.loadLedgers(ctx)
}

func (s *Service) CustomerBottlesReport(ctx context.Context) (report.CustomerBottlesReport, error) {
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.CustomerBottlesReport{}, err
	}
	return report.CustomerBottles(l), nil
}

func (s *Service) OutstandingBottlesReport(ctx context.Context) (report.OutstandingBottlesReport, error) {
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.OutstandingBottlesReport{}, err
	}
	return report.OutstandingBottles(l), nil
}

func (s *Service) DuesReport(ctx context.Context) (report.DuesReport, error) {
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.DuesReport{}, err
	}
	return report.Dues(l), nil
}

func (s *Service) CashFlowReport(ctx context.Context, start, end string) (report.CashFlowReport, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" || end == "" {
		return report.CashFlowReport{}, domain.Validationf("startDate and endDate are required")
	}
	if err := checkDateRange(start, end); err != nil {
		return report.CashFlowReport{}, err
	}
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.CashFlowReport{}, err
	}
	return report.CashFlow(l, start, end), nil
}

// CustomerActivityReport accepts a nil threshold or one of 30, 60 and 90 days.
func (s *Service) CustomerActivityReport(ctx context.Context, minDaysInactive *int) (report.ActivityReport, error) {
	if minDaysInactive != nil && !activityThresholds[*minDaysInactive] {
		return report.ActivityReport{}, domain.Validationf("minDaysInactive must be 30, 60 or 90")
	}
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.ActivityReport{}, err
	}
	return report.CustomerActivity(l, s.clock.Now(), minDaysInactive), nil
}

func (s *Service) Dashboard(ctx context.Context) (report.Dashboard, error) {
	l, err := s.adminLedgers(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	cash, err := s.loadCash(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	water, err := s.cols.WaterQuality.FetchAll(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.BuildDashboard(l, clock.Today(s.clock), cash.Amount, water), nil
}
