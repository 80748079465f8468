package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"aqualedger/backend/internal/domain"
)

func (s *Service) Settings(ctx context.Context) (domain.AppSettings, error) {
	settings, ok, err := s.cols.Settings.Fetch(ctx)
	if err != nil {
		return domain.AppSettings{}, err
	}
	if !ok {
		return domain.DefaultAppSettings(), nil
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.AppSettings) (domain.AppSettings, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.AppSettings{}, err
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.CompanyAddress = strings.TrimSpace(req.CompanyAddress)
	req.CompanyPhone = strings.TrimSpace(req.CompanyPhone)
	req.CurrencySymbol = strings.TrimSpace(req.CurrencySymbol)
	if req.CompanyName == "" {
		return domain.AppSettings{}, domain.Validationf("companyName is required")
	}
	if req.CompanyPhone != "" && !phonePattern.MatchString(req.CompanyPhone) {
		return domain.AppSettings{}, domain.Validationf("companyPhone may only contain digits, spaces, +, - and parentheses")
	}
	lang, ok := domain.NormalizeLanguage(req.DefaultLanguage)
	if !ok {
		return domain.AppSettings{}, domain.Validationf("defaultLanguage must be en or ur")
	}
	req.DefaultLanguage = lang
	if req.CurrencySymbol == "" {
		req.CurrencySymbol = domain.DefaultAppSettings().CurrencySymbol
	}
	now := s.clock.Now()
	req.UpdatedAt = &now

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cols.Settings.Put(ctx, req); err != nil {
		return domain.AppSettings{}, err
	}
	s.logAudit(ctx, "update", "settings", s.cols.Settings.Key(), zap.String("company", req.CompanyName))
	return req, nil
}

// Language is the UI language, falling back to the settings default.
func (s *Service) Language(ctx context.Context) (string, error) {
	lang, ok, err := s.cols.Language.Fetch(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		if normalized, valid := domain.NormalizeLanguage(lang); valid {
			return normalized, nil
		}
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return "", err
	}
	return settings.DefaultLanguage, nil
}

func (s *Service) SetLanguage(ctx context.Context, lang string) (string, error) {
	normalized, ok := domain.NormalizeLanguage(lang)
	if !ok {
		return "", domain.Validationf("language must be en or ur")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cols.Language.Put(ctx, normalized); err != nil {
		return "", err
	}
	s.logAudit(ctx, "set", "language", s.cols.Language.Key(), zap.String("language", normalized))
	return normalized, nil
}
