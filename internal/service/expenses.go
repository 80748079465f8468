package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/xid"
)

var defaultExpenseCategories = []struct{ name, description string }{
	{"Fuel", "Delivery vehicle fuel"},
	{"Salaries", "Staff wages"},
	{"Maintenance", "Plant and vehicle upkeep"},
	{"Utilities", "Electricity, water and gas bills"},
	{"Miscellaneous", "Everything else"},
}

func expenseIDOf(e domain.Expense) string          { return e.ID }
func categoryIDOf(c domain.ExpenseCategory) string { return c.ID }

// CreateExpense pays an expense out of cash on hand.
func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.ExpenseResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	req.Date = strings.TrimSpace(req.Date)
	if req.Title == "" && req.Category == "" {
		return domain.ExpenseResult{}, domain.Validationf("title is required")
	}
	amount := domain.Round2(req.Amount)
	if !amount.IsPositive() {
		return domain.ExpenseResult{}, domain.Validationf("amount must be greater than zero")
	}
	if req.Date == "" {
		req.Date = clock.Today(s.clock)
	}
	if _, err := clock.ParseDate(req.Date); err != nil {
		return domain.ExpenseResult{}, domain.Validationf("%s", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Title == "" {
		categories, err := s.categories(ctx)
		if err != nil {
			return domain.ExpenseResult{}, err
		}
		if indexByID(categories, req.Category, categoryIDOf) < 0 {
			return domain.ExpenseResult{}, domain.NotFoundf("expense category not found")
		}
	}

	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.ExpenseResult{}, err
	}
	if amount.GreaterThan(cash.Amount) {
		return domain.ExpenseResult{}, domain.Policyf("expense of %s exceeds cash on hand of %s",
			domain.FormatCurrency(amount), domain.FormatCurrency(cash.Amount))
	}
	expenses, err := s.cols.Expenses.FetchAll(ctx)
	if err != nil {
		return domain.ExpenseResult{}, err
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		Title:       req.Title,
		Description: req.Description,
		Amount:      amount,
		Date:        req.Date,
		CreatedAt:   s.clock.Now(),
		CreatedBy:   domain.ActorName(ctx),
	}
	if req.Title == "" {
		expense.Category = req.Category
	}
	if err := s.cols.Expenses.Put(ctx, append(expenses, expense)); err != nil {
		return domain.ExpenseResult{}, err
	}
	balance, err := s.saveCash(ctx, cash.Amount.Sub(amount))
	if err != nil {
		return domain.ExpenseResult{}, err
	}
	s.logAudit(ctx, "create", "expense", expense.ID,
		zap.String("title", expense.DisplayTitle()), zap.String("amount", amount.StringFixed(2)))
	return domain.ExpenseResult{Expense: expense, CashBalance: balance.Amount}, nil
}

// DeleteExpense removes a recorded expense and returns its amount to cash.
func (s *Service) DeleteExpense(ctx context.Context, id string) (domain.ExpenseResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ExpenseResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expenses, err := s.cols.Expenses.FetchAll(ctx)
	if err != nil {
		return domain.ExpenseResult{}, err
	}
	idx := indexByID(expenses, id, expenseIDOf)
	if idx < 0 {
		return domain.ExpenseResult{}, domain.NotFoundf("expense not found")
	}
	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.ExpenseResult{}, err
	}
	removed := expenses[idx]
	if err := s.cols.Expenses.Put(ctx, removeAt(expenses, idx)); err != nil {
		return domain.ExpenseResult{}, err
	}
	balance, err := s.saveCash(ctx, cash.Amount.Add(removed.Amount))
	if err != nil {
		return domain.ExpenseResult{}, err
	}
	s.logAudit(ctx, "delete", "expense", removed.ID, zap.String("amount", removed.Amount.StringFixed(2)))
	return domain.ExpenseResult{Expense: removed, CashBalance: balance.Amount}, nil
}

// ListExpenses filters by the expense date, both bounds inclusive and optional.
func (s *Service) ListExpenses(ctx context.Context, from, to string) ([]domain.Expense, error) {
	if err := checkDateRange(from, to); err != nil {
		return nil, err
	}
	expenses, err := s.cols.Expenses.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.Expense, 0, len(expenses))
	for _, expense := range expenses {
		if (from == "" || expense.Date >= from) && (to == "" || expense.Date <= to) {
			filtered = append(filtered, expense)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date > filtered[j].Date
	})
	return filtered, nil
}

func checkDateRange(from, to string) error {
	for _, value := range []string{from, to} {
		if value == "" {
			continue
		}
		if _, err := clock.ParseDate(value); err != nil {
			return domain.Validationf("%s", err.Error())
		}
	}
	if from != "" && to != "" && from > to {
		return domain.Validationf("start date must not be after end date")
	}
	return nil
}

// categories returns the stored categories, seeding the defaults the first
// time the key is read. Callers hold mu.
func (s *Service) categories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	categories, exists, err := s.cols.ExpenseCategories.Fetch(ctx)
	if err != nil || exists {
		return categories, err
	}
	now := s.clock.Now()
	categories = make([]domain.ExpenseCategory, 0, len(defaultExpenseCategories))
	for _, seed := range defaultExpenseCategories {
		categories = append(categories, domain.ExpenseCategory{
			ID:          xid.New("cat"),
			Name:        seed.name,
			Description: seed.description,
			CreatedAt:   now,
			CreatedBy:   "system",
		})
	}
	if err := s.cols.ExpenseCategories.Put(ctx, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Service) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories(ctx)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, req domain.ExpenseCategoryRequest) (domain.ExpenseCategory, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(&req); err != nil {
		return domain.ExpenseCategory{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.categories(ctx)
	if err != nil {
		return domain.ExpenseCategory{}, err
	}
	for _, category := range categories {
		if foldKey(category.Name) == foldKey(req.Name) {
			return domain.ExpenseCategory{}, domain.Conflictf("expense category %q already exists", category.Name)
		}
	}
	category := domain.ExpenseCategory{
		ID:          xid.New("cat"),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.clock.Now(),
		CreatedBy:   domain.ActorName(ctx),
	}
	if err := s.cols.ExpenseCategories.Put(ctx, append(categories, category)); err != nil {
		return domain.ExpenseCategory{}, err
	}
	s.logAudit(ctx, "create", "expense_category", category.ID, zap.String("name", category.Name))
	return category, nil
}

func (s *Service) DeleteExpenseCategory(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.categories(ctx)
	if err != nil {
		return err
	}
	idx := indexByID(categories, id, categoryIDOf)
	if idx < 0 {
		return domain.NotFoundf("expense category not found")
	}
	expenses, err := s.cols.Expenses.FetchAll(ctx)
	if err != nil {
		return err
	}
	for _, expense := range expenses {
		if expense.Category == id {
			return domain.Policyf("expense category %s is used by recorded expenses", categories[idx].Name)
		}
	}
	if err := s.cols.ExpenseCategories.Put(ctx, removeAt(categories, idx)); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "expense_category", id)
	return nil
}
