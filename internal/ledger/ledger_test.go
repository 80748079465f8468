package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aqualedger/backend/internal/domain"
)

func boolPtr(v bool) *bool { return &v }

func fixture() ([]domain.Order, []domain.Product, []domain.BottleTransaction) {
	products := []domain.Product{
		{ID: "p19", Size: "19L", Price: domain.Money(200)},
		{ID: "p500", Size: "500ml", Price: domain.Money(30), IsReturnable: boolPtr(false)},
	}
	orders := []domain.Order{
		{ID: "o1", CustomerID: "c1", ProductID: "p19", Quantity: 3, TotalAmount: domain.Money(600)},
		{ID: "o2", CustomerID: "c1", ProductID: "p500", Quantity: 4, TotalAmount: domain.Money(120), AmountPaid: domain.Money(120)},
	}
	txs := []domain.BottleTransaction{
		{ID: "b1", CustomerID: "c1", Type: domain.BottleIssued, Quantity: 3, OrderID: "o1", Notes: domain.OrderNote("o1")},
		{ID: "b2", CustomerID: "c1", Type: domain.BottleIssued, Quantity: 4, Notes: domain.OrderNote("o2")},
		{ID: "b3", CustomerID: "c1", Type: domain.BottleReturned, Quantity: 1},
		{ID: "b4", CustomerID: "c2", Type: domain.BottleIssued, Quantity: 2},
	}
	return orders, products, txs
}

func TestCustomerBottlesExcludesNonReturnableIssues(t *testing.T) {
	orders, products, txs := fixture()

	balance := CustomerBottles("c1", txs, NewReturnability(orders, products))
	assert.Equal(t, 7, balance.Issued)
	assert.Equal(t, 1, balance.Returned)
	assert.Equal(t, 6, balance.Outstanding)
	assert.Equal(t, 2, balance.ReturnableOutstanding)
}

func TestManualIssueCountsAsReturnable(t *testing.T) {
	orders, products, txs := fixture()

	balance := CustomerBottles("c2", txs, NewReturnability(orders, products))
	assert.Equal(t, 2, balance.ReturnableOutstanding)
}

func TestAllCustomerBottlesMatchesPerCustomer(t *testing.T) {
	orders, products, txs := fixture()
	r := NewReturnability(orders, products)

	all := AllCustomerBottles(txs, r)
	for _, id := range []string{"c1", "c2"} {
		assert.Equal(t, CustomerBottles(id, txs, r), all[id])
	}
}

func TestSummary(t *testing.T) {
	_, _, txs := fixture()

	summary := Summary(txs)
	assert.Equal(t, domain.BottleSummary{TotalIssued: 9, TotalReturned: 1, TotalOutstanding: 8, Customers: 2}, summary)
}

func TestAccount(t *testing.T) {
	orders, _, _ := fixture()
	customer := domain.Customer{ID: "c1", OpeningBalance: domain.Money(50)}
	payments := []domain.Payment{
		{CustomerID: "c1", Amount: domain.Money(120), OrderID: "o2"},
		{CustomerID: "c1", Amount: domain.Money(100.25)},
		{CustomerID: "c2", Amount: domain.Money(999)},
	}

	balance := Account(customer, orders, payments)
	assert.Equal(t, "720", balance.TotalOrders.String())
	assert.Equal(t, "220.25", balance.TotalPayments.String())
	assert.Equal(t, "549.75", balance.Balance.String())
}

func TestCashCountsOrderReceiptsOnce(t *testing.T) {
	orders, _, _ := fixture()
	payments := []domain.Payment{
		{Amount: domain.Money(120), PaymentMethod: domain.PaymentCash, OrderID: "o2"},
		{Amount: domain.Money(250), PaymentMethod: domain.PaymentCash},
		{Amount: domain.Money(80), PaymentMethod: domain.PaymentBank},
	}
	expenses := []domain.Expense{{Amount: domain.Money(100)}}
	adjustments := []domain.CashAdjustment{{Amount: domain.Money(-20)}}

	assert.Equal(t, "250", Cash(orders, payments, expenses, adjustments).String())
}
