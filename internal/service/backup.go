package service

import (
	"context"

	"go.uber.org/zap"

	"aqualedger/backend/internal/backup"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/store"
)

// Snapshot collects every shared document. Session-only keys are never included.
func (s *Service) Snapshot(ctx context.Context) (backup.Snapshot, error) {
	if err := requireAdmin(ctx); err != nil {
		return backup.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := store.Snapshot(ctx, s.cols.Port)
	if err != nil {
		return backup.Snapshot{}, err
	}
	return backup.Snapshot{TakenAt: s.clock.Now(), Documents: docs}, nil
}

// Backup uploads a snapshot to the configured object storage.
func (s *Service) Backup(ctx context.Context) (backup.Result, error) {
	if err := requireAdmin(ctx); err != nil {
		return backup.Result{}, err
	}
	if s.uploader == nil {
		return backup.Result{}, domain.Policyf("backup storage is not configured")
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return backup.Result{}, err
	}
	result, err := backup.Upload(ctx, s.uploader, snapshot)
	if err != nil {
		s.logger.Error("backup upload failed", zap.Error(err))
		return backup.Result{}, domain.Persistence("upload backup", err)
	}
	s.logAudit(ctx, "create", "backup", result.Key,
		zap.Int("documents", result.Documents), zap.Int("bytes", result.Bytes))
	return result, nil
}
