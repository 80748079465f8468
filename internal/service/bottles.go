package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/ledger"
	"aqualedger/backend/internal/xid"
)

func bottleIDOf(b domain.BottleTransaction) string { return b.ID }

// RecordBottleTransaction appends a manual issue or a return. Returns are
// capped by the customer's returnable outstanding bottles.
func (s *Service) RecordBottleTransaction(ctx context.Context, req domain.BottleTransactionRequest) (domain.BottleTransaction, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Type = strings.TrimSpace(req.Type)
	if err := s.check(&req); err != nil {
		return domain.BottleTransaction{}, err
	}
	if req.Quantity <= 0 {
		return domain.BottleTransaction{}, domain.Validationf("quantity must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.BottleTransaction{}, err
	}
	if indexByID(customers, req.CustomerID, customerIDOf) < 0 {
		return domain.BottleTransaction{}, domain.NotFoundf("customer not found")
	}

	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return domain.BottleTransaction{}, err
	}
	if req.Type == domain.BottleReturned {
		balance, err := s.bottleBalance(ctx, req.CustomerID, txs)
		if err != nil {
			return domain.BottleTransaction{}, err
		}
		ceiling := max(balance.ReturnableOutstanding, 0)
		if req.Quantity > ceiling {
			return domain.BottleTransaction{}, domain.Policyf("cannot return %d bottles; only %d returnable bottles are outstanding", req.Quantity, ceiling)
		}
	}

	tx := domain.BottleTransaction{
		ID:         xid.New("btl"),
		CustomerID: req.CustomerID,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  s.clock.Now(),
		CreatedBy:  domain.ActorName(ctx),
	}
	if err := s.cols.BottleTransactions.Put(ctx, append(txs, tx)); err != nil {
		return domain.BottleTransaction{}, err
	}
	s.logAudit(ctx, "record", "bottle_transaction", tx.ID,
		zap.String("type", tx.Type), zap.Int("quantity", tx.Quantity), zap.String("customer", tx.CustomerID))
	return tx, nil
}

func (s *Service) ListBottleTransactions(ctx context.Context, customerID string) ([]domain.BottleTransaction, error) {
	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return txs, nil
	}
	filtered := make([]domain.BottleTransaction, 0)
	for _, tx := range txs {
		if tx.CustomerID == customerID {
			filtered = append(filtered, tx)
		}
	}
	return filtered, nil
}

// DeleteBottleTransaction removes an event. Deleting an order's companion
// issue leaves the order without its bottle trail.
func (s *Service) DeleteBottleTransaction(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return err
	}
	idx := indexByID(txs, id, bottleIDOf)
	if idx < 0 {
		return domain.NotFoundf("bottle transaction not found")
	}
	if orderID := txs[idx].LinkedOrderID(); orderID != "" {
		s.logger.Warn("deleting order bottle issue", zap.String("id", id), zap.String("order", orderID))
	}
	if err := s.cols.BottleTransactions.Put(ctx, removeAt(txs, idx)); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "bottle_transaction", id)
	return nil
}

func (s *Service) bottleBalance(ctx context.Context, customerID string, txs []domain.BottleTransaction) (domain.BottleBalance, error) {
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return domain.BottleBalance{}, err
	}
	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.BottleBalance{}, err
	}
	return ledger.CustomerBottles(customerID, txs, ledger.NewReturnability(orders, products)), nil
}

func (s *Service) CustomerBottleBalance(ctx context.Context, customerID string) (domain.BottleBalance, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return domain.BottleBalance{}, err
	}
	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return domain.BottleBalance{}, err
	}
	return s.bottleBalance(ctx, customerID, txs)
}

func (s *Service) BottleSummary(ctx context.Context) (domain.BottleSummary, error) {
	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return domain.BottleSummary{}, err
	}
	return ledger.Summary(txs), nil
}
