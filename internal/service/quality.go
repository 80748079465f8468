package service

import (
	"context"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/quality"
	"aqualedger/backend/internal/xid"
)

func waterEntryIDOf(e domain.WaterQualityEntry) string { return e.ID }

func (s *Service) loadRanges(ctx context.Context) (domain.WaterQualityRanges, error) {
	ranges, ok, err := s.cols.WaterQualityRanges.Fetch(ctx)
	if err != nil {
		return domain.WaterQualityRanges{}, err
	}
	if !ok {
		return domain.DefaultWaterQualityRanges(), nil
	}
	return ranges, nil
}

func (s *Service) QualityRanges(ctx context.Context) (domain.WaterQualityRanges, error) {
	return s.loadRanges(ctx)
}

// UpdateQualityRanges stores new thresholds and reclassifies every logged
// entry against them, so stored statuses always reflect the current ranges.
func (s *Service) UpdateQualityRanges(ctx context.Context, ranges domain.WaterQualityRanges) (domain.WaterQualityRanges, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.WaterQualityRanges{}, err
	}
	if err := quality.ValidateRanges(ranges); err != nil {
		return domain.WaterQualityRanges{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cols.WaterQualityRanges.Put(ctx, ranges); err != nil {
		return domain.WaterQualityRanges{}, err
	}
	entries, err := s.cols.WaterQuality.FetchAll(ctx)
	if err != nil {
		return domain.WaterQualityRanges{}, err
	}
	engine := quality.NewEngine(ranges)
	changed := 0
	for i := range entries {
		status, alerts := engine.Classify(entries[i].PH, entries[i].TDS, entries[i].Chlorine)
		if status != entries[i].Status || !slices.Equal(alerts, entries[i].Alerts) {
			entries[i].Status = status
			entries[i].Alerts = alerts
			changed++
		}
	}
	if changed > 0 {
		if err := s.cols.WaterQuality.Put(ctx, entries); err != nil {
			return domain.WaterQualityRanges{}, err
		}
	}
	s.logAudit(ctx, "update", "water_quality_ranges", s.cols.WaterQualityRanges.Key(),
		zap.Int("reclassified", changed))
	return ranges, nil
}

// RecordWaterQuality logs one reading. Several readings per day are allowed.
func (s *Service) RecordWaterQuality(ctx context.Context, req domain.WaterQualityRequest) (domain.WaterQualityEntry, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.Date == "" {
		req.Date = clock.Today(s.clock)
	}
	if _, err := clock.ParseDate(req.Date); err != nil {
		return domain.WaterQualityEntry{}, domain.Validationf("%s", err.Error())
	}
	if req.Time == "" {
		req.Time = clock.LocalTime(s.clock)
	}
	if !clock.ValidTime(req.Time) {
		return domain.WaterQualityEntry{}, domain.Validationf("time must be HH:MM")
	}
	if err := quality.ValidateReading(req.PH, req.TDS, req.Chlorine); err != nil {
		return domain.WaterQualityEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ranges, err := s.loadRanges(ctx)
	if err != nil {
		return domain.WaterQualityEntry{}, err
	}
	entries, err := s.cols.WaterQuality.FetchAll(ctx)
	if err != nil {
		return domain.WaterQualityEntry{}, err
	}
	status, alerts := quality.NewEngine(ranges).Classify(req.PH, req.TDS, req.Chlorine)
	entry := domain.WaterQualityEntry{
		ID:        xid.New("wq"),
		Date:      req.Date,
		Time:      req.Time,
		PH:        req.PH,
		TDS:       req.TDS,
		Chlorine:  req.Chlorine,
		Status:    status,
		Alerts:    alerts,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: s.clock.Now(),
		CreatedBy: domain.ActorName(ctx),
	}
	if err := s.cols.WaterQuality.Put(ctx, append(entries, entry)); err != nil {
		return domain.WaterQualityEntry{}, err
	}
	if status != domain.QualityNormal {
		s.logger.Warn("water quality out of range",
			zap.String("id", entry.ID), zap.String("status", status), zap.Strings("alerts", alerts))
	}
	s.logAudit(ctx, "record", "water_quality", entry.ID, zap.String("status", status))
	return entry, nil
}

// ListWaterQuality returns readings in [from, to], newest first.
func (s *Service) ListWaterQuality(ctx context.Context, from, to string) ([]domain.WaterQualityEntry, error) {
	if err := checkDateRange(from, to); err != nil {
		return nil, err
	}
	entries, err := s.cols.WaterQuality.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.WaterQualityEntry, 0, len(entries))
	for _, entry := range entries {
		if (from == "" || entry.Date >= from) && (to == "" || entry.Date <= to) {
			filtered = append(filtered, entry)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Date != filtered[j].Date {
			return filtered[i].Date > filtered[j].Date
		}
		return filtered[i].Time > filtered[j].Time
	})
	return filtered, nil
}

func (s *Service) DeleteWaterQuality(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.cols.WaterQuality.FetchAll(ctx)
	if err != nil {
		return err
	}
	idx := indexByID(entries, id, waterEntryIDOf)
	if idx < 0 {
		return domain.NotFoundf("water quality entry not found")
	}
	if err := s.cols.WaterQuality.Put(ctx, removeAt(entries, idx)); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "water_quality", id)
	return nil
}
