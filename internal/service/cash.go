package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/ledger"
	"aqualedger/backend/internal/xid"
)

// loadCash reads the materialised balance, falling back to the legacy key.
func (s *Service) loadCash(ctx context.Context) (domain.CashBalance, error) {
	balance, ok, err := s.cols.CashBalance.Fetch(ctx)
	if err != nil {
		return domain.CashBalance{}, err
	}
	if ok {
		balance.Amount = domain.Round2(balance.Amount)
		return balance, nil
	}
	legacy, ok, err := s.cols.CashCurrentBalance.Fetch(ctx)
	if err != nil {
		return domain.CashBalance{}, err
	}
	if ok {
		return domain.CashBalance{Amount: domain.Round2(legacy)}, nil
	}
	return domain.CashBalance{Amount: decimal.Zero}, nil
}

// saveCash writes the materialised balance. Callers write it after every ledger event.
func (s *Service) saveCash(ctx context.Context, amount decimal.Decimal) (domain.CashBalance, error) {
	balance := domain.CashBalance{Amount: domain.Round2(amount), LastUpdated: s.clock.Now()}
	if err := s.cols.CashBalance.Put(ctx, balance); err != nil {
		return domain.CashBalance{}, err
	}
	return balance, nil
}

func (s *Service) CashOnHand(ctx context.Context) (domain.CashBalance, error) {
	return s.loadCash(ctx)
}

// AdjustCash records an ad-hoc signed movement such as an owner top-up or a float correction.
func (s *Service) AdjustCash(ctx context.Context, req domain.CashAdjustmentRequest) (domain.CashAdjustment, domain.CashBalance, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.check(&req); err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	amount := domain.Round2(req.Amount)
	if amount.IsZero() {
		return domain.CashAdjustment{}, domain.CashBalance{}, domain.Validationf("amount must not be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	next := cash.Amount.Add(amount)
	if amount.IsNegative() && next.IsNegative() {
		return domain.CashAdjustment{}, domain.CashBalance{}, domain.Policyf("adjustment exceeds cash on hand of %s", domain.FormatCurrency(cash.Amount))
	}

	adjustments, err := s.cols.CashAdjustments.FetchAll(ctx)
	if err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	adjustment := domain.CashAdjustment{
		ID:        xid.New("adj"),
		Amount:    amount,
		Reason:    req.Reason,
		CreatedAt: s.clock.Now(),
		CreatedBy: domain.ActorName(ctx),
	}
	if err := s.cols.CashAdjustments.Put(ctx, append(adjustments, adjustment)); err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	balance, err := s.saveCash(ctx, next)
	if err != nil {
		return domain.CashAdjustment{}, domain.CashBalance{}, err
	}
	s.logAudit(ctx, "adjust", "cash", adjustment.ID, zap.String("amount", amount.StringFixed(2)))
	return adjustment, balance, nil
}

func (s *Service) ListCashAdjustments(ctx context.Context) ([]domain.CashAdjustment, error) {
	return s.cols.CashAdjustments.FetchAll(ctx)
}

type cashEvents struct {
	orders      []domain.Order
	payments    []domain.Payment
	expenses    []domain.Expense
	adjustments []domain.CashAdjustment
}

func (s *Service) loadCashEvents(ctx context.Context) (cashEvents, error) {
	var ev cashEvents
	var err error
	if ev.orders, err = s.cols.Orders.FetchAll(ctx); err != nil {
		return ev, err
	}
	if ev.payments, err = s.cols.Payments.FetchAll(ctx); err != nil {
		return ev, err
	}
	if ev.expenses, err = s.cols.Expenses.FetchAll(ctx); err != nil {
		return ev, err
	}
	if ev.adjustments, err = s.cols.CashAdjustments.FetchAll(ctx); err != nil {
		return ev, err
	}
	return ev, nil
}

// filter keeps events whose creation date satisfies keep.
func (ev cashEvents) filter(keep func(date string) bool) cashEvents {
	var out cashEvents
	for _, o := range ev.orders {
		if keep(clock.FormatDate(o.CreatedAt)) {
			out.orders = append(out.orders, o)
		}
	}
	for _, p := range ev.payments {
		if keep(clock.FormatDate(p.CreatedAt)) {
			out.payments = append(out.payments, p)
		}
	}
	for _, e := range ev.expenses {
		if keep(clock.FormatDate(e.CreatedAt)) {
			out.expenses = append(out.expenses, e)
		}
	}
	for _, a := range ev.adjustments {
		if keep(clock.FormatDate(a.CreatedAt)) {
			out.adjustments = append(out.adjustments, a)
		}
	}
	return out
}

func (ev cashEvents) cash() decimal.Decimal {
	return ledger.Cash(ev.orders, ev.payments, ev.expenses, ev.adjustments)
}

// RecomputeCashFromEvents derives cash on hand from the ledgers alone.
func (s *Service) RecomputeCashFromEvents(ctx context.Context) (decimal.Decimal, error) {
	ev, err := s.loadCashEvents(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return ev.cash(), nil
}

// ReconcileCash compares the materialised balance with the event-derived one
// and, when apply is set, overwrites the former.
func (s *Service) ReconcileCash(ctx context.Context, apply bool) (domain.CashReconciliation, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CashReconciliation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.CashReconciliation{}, err
	}
	recomputed, err := s.RecomputeCashFromEvents(ctx)
	if err != nil {
		return domain.CashReconciliation{}, err
	}
	result := domain.CashReconciliation{
		Materialized: cash.Amount,
		Recomputed:   recomputed,
		Difference:   domain.Round2(cash.Amount.Sub(recomputed)),
	}
	if apply && !result.Difference.IsZero() {
		if _, err := s.saveCash(ctx, recomputed); err != nil {
			return domain.CashReconciliation{}, err
		}
		result.Applied = true
		s.logAudit(ctx, "reconcile", "cash", "cash_balance",
			zap.String("from", cash.Amount.StringFixed(2)), zap.String("to", recomputed.StringFixed(2)))
	}
	return result, nil
}

// CloseDay snapshots one calendar day of cash movements. Opening is the
// event-derived balance before the day; closing adds the day's net movement.
func (s *Service) CloseDay(ctx context.Context, req domain.CloseDayRequest) (domain.DailyCashRecord, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = clock.Today(s.clock)
	}
	if _, err := clock.ParseDate(date); err != nil {
		return domain.DailyCashRecord{}, domain.Validationf("%s", err.Error())
	}
	if date > clock.Today(s.clock) {
		return domain.DailyCashRecord{}, domain.Validationf("cannot close a future day")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.cols.CashDailyRecords.FetchAll(ctx)
	if err != nil {
		return domain.DailyCashRecord{}, err
	}
	for _, record := range records {
		if record.Date == date {
			return domain.DailyCashRecord{}, domain.Conflictf("day %s is already closed", date)
		}
	}

	ev, err := s.loadCashEvents(ctx)
	if err != nil {
		return domain.DailyCashRecord{}, err
	}
	opening := ev.filter(func(d string) bool { return d < date }).cash()
	day := ev.filter(func(d string) bool { return d == date })

	income := ledger.Cash(day.orders, day.payments, nil, nil)
	expenses := decimal.Zero
	for _, expense := range day.expenses {
		expenses = expenses.Add(expense.Amount)
	}
	adjustments := ledger.Cash(nil, nil, nil, day.adjustments)

	record := domain.DailyCashRecord{
		ID:             xid.New("day"),
		Date:           date,
		OpeningBalance: opening,
		Income:         income,
		Expenses:       domain.Round2(expenses),
		Adjustments:    adjustments,
		ClosingBalance: domain.Round2(opening.Add(income).Sub(expenses).Add(adjustments)),
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      s.clock.Now(),
		CreatedBy:      domain.ActorName(ctx),
	}
	if err := s.cols.CashDailyRecords.Put(ctx, append(records, record)); err != nil {
		return domain.DailyCashRecord{}, err
	}
	s.logAudit(ctx, "close", "cash_day", record.ID, zap.String("date", date),
		zap.String("closing", record.ClosingBalance.StringFixed(2)))
	return record, nil
}

// ListDailyCashRecords returns closed days, most recent first.
func (s *Service) ListDailyCashRecords(ctx context.Context) ([]domain.DailyCashRecord, error) {
	records, err := s.cols.CashDailyRecords.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	return records, nil
}
