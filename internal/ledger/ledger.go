// Package ledger holds the pure balance math shared by the service and reports.
package ledger

import (
	"github.com/shopspring/decimal"

	"aqualedger/backend/internal/domain"
)

// Returnability resolves whether an issue event counts toward returnable outstanding.
type Returnability struct {
	orderProduct map[string]string
	returnable   map[string]bool
}

func NewReturnability(orders []domain.Order, products []domain.Product) Returnability {
	r := Returnability{
		orderProduct: make(map[string]string, len(orders)),
		returnable:   make(map[string]bool, len(products)),
	}
	for _, order := range orders {
		r.orderProduct[order.ID] = order.ProductID
	}
	for _, product := range products {
		r.returnable[product.ID] = product.Returnable()
	}
	return r
}

// Counts reports whether an issued event is a returnable issue. Events with no
// resolvable companion order or product are manual issues and count.
func (r Returnability) Counts(tx domain.BottleTransaction) bool {
	orderID := tx.LinkedOrderID()
	if orderID == "" {
		return true
	}
	productID, ok := r.orderProduct[orderID]
	if !ok {
		return true
	}
	returnable, ok := r.returnable[productID]
	if !ok {
		return true
	}
	return returnable
}

// CustomerBottles computes issued, returned and both outstanding figures for one customer.
func CustomerBottles(customerID string, txs []domain.BottleTransaction, r Returnability) domain.BottleBalance {
	balance := domain.BottleBalance{CustomerID: customerID}
	returnableIssued := 0
	for _, tx := range txs {
		if tx.CustomerID != customerID {
			continue
		}
		switch tx.Type {
		case domain.BottleIssued:
			balance.Issued += tx.Quantity
			if r.Counts(tx) {
				returnableIssued += tx.Quantity
			}
		case domain.BottleReturned:
			balance.Returned += tx.Quantity
		}
	}
	balance.Outstanding = balance.Issued - balance.Returned
	balance.ReturnableOutstanding = returnableIssued - balance.Returned
	return balance
}

// AllCustomerBottles computes balances for every customer seen in txs in one pass.
func AllCustomerBottles(txs []domain.BottleTransaction, r Returnability) map[string]domain.BottleBalance {
	out := make(map[string]domain.BottleBalance)
	returnableIssued := make(map[string]int)
	for _, tx := range txs {
		balance := out[tx.CustomerID]
		balance.CustomerID = tx.CustomerID
		switch tx.Type {
		case domain.BottleIssued:
			balance.Issued += tx.Quantity
			if r.Counts(tx) {
				returnableIssued[tx.CustomerID] += tx.Quantity
			}
		case domain.BottleReturned:
			balance.Returned += tx.Quantity
		}
		out[tx.CustomerID] = balance
	}
	for id, balance := range out {
		balance.Outstanding = balance.Issued - balance.Returned
		balance.ReturnableOutstanding = returnableIssued[id] - balance.Returned
		out[id] = balance
	}
	return out
}

func Summary(txs []domain.BottleTransaction) domain.BottleSummary {
	var summary domain.BottleSummary
	customers := make(map[string]struct{})
	for _, tx := range txs {
		customers[tx.CustomerID] = struct{}{}
		switch tx.Type {
		case domain.BottleIssued:
			summary.TotalIssued += tx.Quantity
		case domain.BottleReturned:
			summary.TotalReturned += tx.Quantity
		}
	}
	summary.TotalOutstanding = summary.TotalIssued - summary.TotalReturned
	summary.Customers = len(customers)
	return summary
}

// Account is openingBalance + Σ order totals − Σ payments for one customer.
func Account(customer domain.Customer, orders []domain.Order, payments []domain.Payment) domain.AccountBalance {
	totalOrders := decimal.Zero
	for _, order := range orders {
		if order.CustomerID == customer.ID {
			totalOrders = totalOrders.Add(order.TotalAmount)
		}
	}
	totalPayments := decimal.Zero
	for _, payment := range payments {
		if payment.CustomerID == customer.ID {
			totalPayments = totalPayments.Add(payment.Amount)
		}
	}
	return domain.AccountBalance{
		CustomerID:     customer.ID,
		OpeningBalance: domain.Round2(customer.OpeningBalance),
		TotalOrders:    domain.Round2(totalOrders),
		TotalPayments:  domain.Round2(totalPayments),
		Balance:        domain.Round2(customer.OpeningBalance.Add(totalOrders).Sub(totalPayments)),
	}
}

// Cash rebuilds cash-on-hand from events: order receipts, standalone cash
// payments and adjustments, minus expenses.
func Cash(orders []domain.Order, payments []domain.Payment, expenses []domain.Expense, adjustments []domain.CashAdjustment) decimal.Decimal {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.AmountPaid)
	}
	for _, payment := range payments {
		if payment.OrderID == "" && payment.PaymentMethod == domain.PaymentCash {
			total = total.Add(payment.Amount)
		}
	}
	for _, adjustment := range adjustments {
		total = total.Add(adjustment.Amount)
	}
	for _, expense := range expenses {
		total = total.Sub(expense.Amount)
	}
	return domain.Round2(total)
}
