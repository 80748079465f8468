package service

import (
	"context"
	"strings"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/xid"
)

func productIDOf(p domain.Product) string { return p.ID }

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return products, nil
	}
	active := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if product.IsActive {
			active = append(active, product)
		}
	}
	return active, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	idx := indexByID(products, id, productIDOf)
	if idx < 0 {
		return domain.Product{}, domain.NotFoundf("product not found")
	}
	return products[idx], nil
}

func normalizeProductRequest(req *domain.ProductRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Size = strings.TrimSpace(req.Size)
	if req.Name == "" {
		return domain.Validationf("name is required")
	}
	if req.Size == "" {
		return domain.Validationf("size is required")
	}
	if req.Price.IsNegative() {
		return domain.Validationf("price must not be negative")
	}
	req.Price = domain.Round2(req.Price)
	return nil
}

// sizeTaken reports whether another active product already uses size.
func sizeTaken(products []domain.Product, size string, exceptID string) bool {
	key := foldKey(size)
	for _, product := range products {
		if product.ID != exceptID && product.IsActive && foldKey(product.Size) == key {
			return true
		}
	}
	return false
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := normalizeProductRequest(&req); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	active := req.IsActive == nil || *req.IsActive
	if active && sizeTaken(products, req.Size, "") {
		return domain.Product{}, domain.Conflictf("an active product with size %s already exists", req.Size)
	}

	product := domain.Product{
		ID:           xid.New("prd"),
		Name:         req.Name,
		Size:         req.Size,
		Price:        req.Price,
		IsActive:     active,
		IsReturnable: req.IsReturnable,
		CreatedAt:    s.clock.Now(),
		CreatedBy:    domain.ActorName(ctx),
	}
	if err := s.cols.Products.Put(ctx, append(products, product)); err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "create", "product", product.ID)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := normalizeProductRequest(&req); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	idx := indexByID(products, id, productIDOf)
	if idx < 0 {
		return domain.Product{}, domain.NotFoundf("product not found")
	}

	product := products[idx]
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsReturnable != nil {
		product.IsReturnable = req.IsReturnable
	}
	if product.IsActive && sizeTaken(products, req.Size, id) {
		return domain.Product{}, domain.Conflictf("an active product with size %s already exists", req.Size)
	}
	product.Name = req.Name
	product.Size = req.Size
	product.Price = req.Price
	now := s.clock.Now()
	product.UpdatedAt = &now

	products[idx] = product
	if err := s.cols.Products.Put(ctx, products); err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "update", "product", id)
	return product, nil
}

// DeleteProduct deactivates the product. Historical orders keep referencing it.
func (s *Service) DeleteProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.cols.Products.FetchAll(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	idx := indexByID(products, id, productIDOf)
	if idx < 0 {
		return domain.Product{}, domain.NotFoundf("product not found")
	}
	now := s.clock.Now()
	products[idx].IsActive = false
	products[idx].UpdatedAt = &now
	if err := s.cols.Products.Put(ctx, products); err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "deactivate", "product", id)
	return products[idx], nil
}
