package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/xid"
)

func customerIDOf(c domain.Customer) string { return c.ID }

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
	return customers, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	idx := indexByID(customers, id, customerIDOf)
	if idx < 0 {
		return domain.Customer{}, domain.NotFoundf("customer not found")
	}
	return customers[idx], nil
}

// SearchCustomers matches name case-insensitively or phone by substring.
// A blank query returns every customer.
func (s *Service) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	customers, err := s.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return customers, nil
	}
	needle := strings.ToLower(query)
	matches := make([]domain.Customer, 0)
	for _, customer := range customers {
		if strings.Contains(strings.ToLower(customer.Name), needle) || strings.Contains(customer.Phone, query) {
			matches = append(matches, customer)
		}
	}
	return matches, nil
}

func (s *Service) normalizeCustomerRequest(req *domain.CustomerRequest, products []domain.Product) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	req.PreferredLanguage = strings.TrimSpace(req.PreferredLanguage)
	if err := s.check(req); err != nil {
		return err
	}
	language, ok := domain.NormalizeLanguage(req.PreferredLanguage)
	if !ok {
		return domain.Validationf("preferredLanguage must be en or ur")
	}
	req.PreferredLanguage = language

	prices := make(map[string]decimal.Decimal, len(req.ProductPrices))
	for id, price := range req.ProductPrices {
		if indexByID(products, id, productIDOf) < 0 {
			return domain.Validationf("productPrices references unknown product %s", id)
		}
		if price.IsNegative() {
			return domain.Validationf("product prices must not be negative")
		}
		prices[id] = domain.Round2(price)
	}
	req.ProductPrices = prices
	return nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	if err := s.normalizeCustomerRequest(&req, products); err != nil {
		return domain.Customer{}, err
	}
	opening := decimal.Zero
	if req.OpeningBalance != nil {
		if req.OpeningBalance.IsNegative() {
			return domain.Customer{}, domain.Validationf("openingBalance must not be negative")
		}
		opening = domain.Round2(*req.OpeningBalance)
	}

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer := domain.Customer{
		ID:                xid.New("cus"),
		Name:              req.Name,
		Phone:             req.Phone,
		Address:           req.Address,
		PreferredLanguage: req.PreferredLanguage,
		ProductPrices:     req.ProductPrices,
		OpeningBalance:    opening,
		CreatedAt:         s.clock.Now(),
		CreatedBy:         domain.ActorName(ctx),
	}
	if err := s.cols.Customers.Put(ctx, append(customers, customer)); err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "create", "customer", customer.ID)
	return customer, nil
}

// UpdateCustomer overwrites contact details and price overrides. The opening
// balance and legacy bottle prices are carried over unchanged.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerRequest) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	if err := s.normalizeCustomerRequest(&req, products); err != nil {
		return domain.Customer{}, err
	}

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	idx := indexByID(customers, id, customerIDOf)
	if idx < 0 {
		return domain.Customer{}, domain.NotFoundf("customer not found")
	}

	customer := customers[idx]
	if req.OpeningBalance != nil && !domain.Round2(*req.OpeningBalance).Equal(domain.Round2(customer.OpeningBalance)) {
		return domain.Customer{}, domain.Policyf("opening balance cannot be changed after creation")
	}
	customer.Name = req.Name
	customer.Phone = req.Phone
	customer.Address = req.Address
	customer.PreferredLanguage = req.PreferredLanguage
	customer.ProductPrices = req.ProductPrices
	now := s.clock.Now()
	customer.UpdatedAt = &now

	customers[idx] = customer
	if err := s.cols.Customers.Put(ctx, customers); err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "update", "customer", id)
	return customer, nil
}

// DeleteCustomer removes the customer record. Ledger events that reference it are kept.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.cols.Customers.FetchAll(ctx)
	if err != nil {
		return err
	}
	idx := indexByID(customers, id, customerIDOf)
	if idx < 0 {
		return domain.NotFoundf("customer not found")
	}
	if err := s.cols.Customers.Put(ctx, removeAt(customers, idx)); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "customer", id)
	return nil
}

// QuotePrice resolves the unit price a customer pays for a product.
func (s *Service) QuotePrice(ctx context.Context, customerID string, productID string) (domain.PriceQuote, error) {
	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	_, override := customer.ProductPrices[product.ID]
	return domain.PriceQuote{
		CustomerID: customer.ID,
		ProductID:  product.ID,
		Price:      domain.Round2(customer.PriceFor(product)),
		Override:   override,
	}, nil
}
