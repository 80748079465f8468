package service

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"aqualedger/backend/internal/backup"
	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/store"
)

// Service is the transactional domain engine. Mutations are serialised by mu
// so that one process never races on the materialised cash balance.
type Service struct {
	mu       sync.Mutex
	cols     *store.Collections
	clock    clock.Clock
	logger   *zap.Logger
	validate *validator.Validate
	uploader backup.Uploader
}

func New(cols *store.Collections, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cols:     cols,
		clock:    clk,
		logger:   logger,
		validate: newValidator(),
	}
}

// SetBackupUploader enables snapshot uploads.
func (s *Service) SetBackupUploader(uploader backup.Uploader) {
	s.uploader = uploader
}

func (s *Service) logAudit(ctx context.Context, action string, entity string, id string, fields ...zap.Field) {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	s.logger.Info(entity+" "+action, append([]zap.Field{
		zap.String("action", action),
		zap.String("entity", entity),
		zap.String("id", id),
		zap.String("actor", actor.Username),
	}, fields...)...)
}

func requireAdmin(ctx context.Context) error {
	_, err := domain.RequireRole(ctx, domain.RoleAdmin)
	return err
}

func foldKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func indexByID[T any](items []T, id string, idOf func(T) string) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

func removeAt[T any](items []T, idx int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
