package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/ledger"
	"aqualedger/backend/internal/xid"
)

func orderIDOf(o domain.Order) string { return o.ID }

// PlaceOrder sells bottles to a customer. It appends, in order, the order,
// its bottle issue, a payment when anything was paid, and finally the cash
// balance, so that a failure part-way leaves the events authoritative for
// RecomputeCashFromEvents.
func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := s.check(&req); err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if req.Quantity <= 0 {
		return domain.PlaceOrderResult{}, domain.Validationf("quantity must be greater than zero")
	}
	// the unit price is kept as given; only the line total is rounded
	price := req.Price
	if !price.IsPositive() {
		return domain.PlaceOrderResult{}, domain.Validationf("price must be greater than zero")
	}
	total := domain.LineTotal(req.Quantity, price)
	paid := domain.Round2(req.AmountPaid)
	if paid.IsNegative() {
		return domain.PlaceOrderResult{}, domain.Validationf("amountPaid must not be negative")
	}
	if paid.GreaterThan(total) {
		return domain.PlaceOrderResult{}, domain.Validationf("amountPaid cannot exceed the order total of %s", domain.FormatCurrency(total))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if indexByID(customers, req.CustomerID, customerIDOf) < 0 {
		return domain.PlaceOrderResult{}, domain.NotFoundf("customer not found")
	}
	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	pidx := indexByID(products, req.ProductID, productIDOf)
	if pidx < 0 {
		return domain.PlaceOrderResult{}, domain.NotFoundf("product not found")
	}
	if !products[pidx].IsActive {
		return domain.PlaceOrderResult{}, domain.Policyf("product %s is no longer sold", products[pidx].Name)
	}

	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	txs, err := s.cols.BottleTransactions.FetchAll(ctx)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	var payments []domain.Payment
	if paid.IsPositive() {
		if payments, err = s.cols.Payments.FetchAll(ctx); err != nil {
			return domain.PlaceOrderResult{}, err
		}
	}

	now := s.clock.Now()
	actor := domain.ActorName(ctx)
	order := newOrder(req, price, total, paid)
	order.ID = xid.New("ord")
	order.CreatedAt = now
	order.CreatedBy = actor
	if err := s.cols.Orders.Put(ctx, append(orders, order)); err != nil {
		return domain.PlaceOrderResult{}, err
	}

	issue := domain.BottleTransaction{
		ID:         xid.New("btl"),
		CustomerID: order.CustomerID,
		Type:       domain.BottleIssued,
		Quantity:   order.Quantity,
		Notes:      domain.OrderNote(order.ID),
		OrderID:    order.ID,
		CreatedAt:  now,
		CreatedBy:  actor,
	}
	if err := s.cols.BottleTransactions.Put(ctx, append(txs, issue)); err != nil {
		return domain.PlaceOrderResult{}, err
	}

	result := domain.PlaceOrderResult{Order: order, BottleTransaction: issue}
	if paid.IsPositive() {
		payment := domain.Payment{
			ID:            xid.New("pay"),
			CustomerID:    order.CustomerID,
			Amount:        paid,
			PaymentMethod: domain.PaymentCash,
			OrderID:       order.ID,
			Notes:         "Payment for " + domain.OrderNote(order.ID),
			CreatedAt:     now,
			CreatedBy:     actor,
		}
		if err := s.cols.Payments.Put(ctx, append(payments, payment)); err != nil {
			return domain.PlaceOrderResult{}, err
		}
		result.Payment = &payment
	}

	balance, err := s.saveCash(ctx, cash.Amount.Add(paid))
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	result.CashBalance = balance.Amount

	s.logAudit(ctx, "place", "order", order.ID,
		zap.String("customer", order.CustomerID),
		zap.Int("quantity", order.Quantity),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("paid", order.AmountPaid.StringFixed(2)))
	return result, nil
}

func newOrder(req domain.PlaceOrderRequest, price, total, paid decimal.Decimal) domain.Order {
	outstanding := domain.Round2(total.Sub(paid))
	method := domain.OrderPaymentCredit
	if paid.GreaterThanOrEqual(total) {
		method = domain.OrderPaymentCash
	}
	status := domain.OrderStatusCompleted
	if outstanding.IsPositive() {
		status = domain.OrderStatusPending
	}
	return domain.Order{
		CustomerID:        req.CustomerID,
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		Price:             price,
		TotalAmount:       total,
		AmountPaid:        paid,
		OutstandingAmount: outstanding,
		PaymentMethod:     method,
		Status:            status,
		Notes:             strings.TrimSpace(req.Notes),
	}
}

func (s *Service) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return orders, nil
	}
	filtered := make([]domain.Order, 0)
	for _, order := range orders {
		if order.CustomerID == customerID {
			filtered = append(filtered, order)
		}
	}
	return filtered, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	idx := indexByID(orders, id, orderIDOf)
	if idx < 0 {
		return domain.Order{}, domain.NotFoundf("order not found")
	}
	return orders[idx], nil
}

// RecordPayment stores a payment not tied to an order. Cash payments raise
// cash on hand. With LimitToBalance the amount may not exceed what the customer owes.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.RecordPaymentResult, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if err := s.check(&req); err != nil {
		return domain.RecordPaymentResult{}, err
	}
	amount := domain.Round2(req.Amount)
	if !amount.IsPositive() {
		return domain.RecordPaymentResult{}, domain.Validationf("amount must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.RecordPaymentResult{}, err
	}
	cidx := indexByID(customers, req.CustomerID, customerIDOf)
	if cidx < 0 {
		return domain.RecordPaymentResult{}, domain.NotFoundf("customer not found")
	}
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return domain.RecordPaymentResult{}, err
	}
	payments, err := s.cols.Payments.FetchAll(ctx)
	if err != nil {
		return domain.RecordPaymentResult{}, err
	}
	if req.LimitToBalance {
		balance := ledger.Account(customers[cidx], orders, payments)
		if amount.GreaterThan(balance.Balance) {
			return domain.RecordPaymentResult{}, domain.Policyf("payment of %s exceeds the outstanding balance of %s",
				domain.FormatCurrency(amount), domain.FormatCurrency(balance.Balance))
		}
	}
	cash, err := s.loadCash(ctx)
	if err != nil {
		return domain.RecordPaymentResult{}, err
	}

	payment := domain.Payment{
		ID:            xid.New("pay"),
		CustomerID:    req.CustomerID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     s.clock.Now(),
		CreatedBy:     domain.ActorName(ctx),
	}
	if err := s.cols.Payments.Put(ctx, append(payments, payment)); err != nil {
		return domain.RecordPaymentResult{}, err
	}

	result := domain.RecordPaymentResult{Payment: payment, CashBalance: cash.Amount}
	if payment.PaymentMethod == domain.PaymentCash {
		balance, err := s.saveCash(ctx, cash.Amount.Add(amount))
		if err != nil {
			return domain.RecordPaymentResult{}, err
		}
		result.CashBalance = balance.Amount
	}
	s.logAudit(ctx, "record", "payment", payment.ID,
		zap.String("customer", payment.CustomerID),
		zap.String("method", payment.PaymentMethod),
		zap.String("amount", amount.StringFixed(2)))
	return result, nil
}

func (s *Service) ListPayments(ctx context.Context, customerID string) ([]domain.Payment, error) {
	payments, err := s.cols.Payments.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return payments, nil
	}
	filtered := make([]domain.Payment, 0)
	for _, payment := range payments {
		if payment.CustomerID == customerID {
			filtered = append(filtered, payment)
		}
	}
	return filtered, nil
}

// CustomerAccountBalance is openingBalance + Σ order totals − Σ payments.
func (s *Service) CustomerAccountBalance(ctx context.Context, customerID string) (domain.AccountBalance, error) {
	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.AccountBalance{}, err
	}
	orders, err := s.cols.Orders.FetchAll(ctx)
	if err != nil {
		return domain.AccountBalance{}, err
	}
	payments, err := s.cols.Payments.FetchAll(ctx)
	if err != nil {
		return domain.AccountBalance{}, err
	}
	return ledger.Account(customer, orders, payments), nil
}
