package quality

import (
	"fmt"
	"math"

	"aqualedger/backend/internal/domain"
)

const (
	levelWarning  = "WARNING"
	levelCritical = "CRITICAL"
)

// Engine classifies water-quality readings against a set of safe ranges.
type Engine struct {
	ranges domain.WaterQualityRanges
}

func NewEngine(ranges domain.WaterQualityRanges) *Engine {
	return &Engine{ranges: ranges}
}

func (e *Engine) Ranges() domain.WaterQualityRanges {
	return e.ranges
}

type metric struct {
	name string
	unit string
	lo   float64
	hi   float64
}

// Classify returns the entry status and its alerts in pH, TDS, chlorine order.
func (e *Engine) Classify(pH float64, tds float64, chlorine float64) (string, []string) {
	r := e.ranges
	readings := []struct {
		metric
		value float64
	}{
		{metric{name: "pH", lo: r.PHMin, hi: r.PHMax}, pH},
		{metric{name: "TDS", unit: " ppm", lo: 0, hi: r.TDSMax}, tds},
		{metric{name: "Chlorine", unit: " mg/L", lo: r.ChlorineMin, hi: r.ChlorineMax}, chlorine},
	}

	alerts := make([]string, 0, len(readings))
	status := domain.QualityNormal
	for _, reading := range readings {
		level, message := e.check(reading.metric, reading.value)
		if level == "" {
			continue
		}
		alerts = append(alerts, message)
		switch {
		case level == levelCritical:
			status = domain.QualityCritical
		case status == domain.QualityNormal:
			status = domain.QualityWarning
		}
	}
	return status, alerts
}

func (e *Engine) check(m metric, value float64) (string, string) {
	if value >= m.lo && value <= m.hi {
		return "", ""
	}

	var deviation float64
	var bound string
	if value < m.lo {
		deviation = percentOff(m.lo-value, m.lo)
		bound = fmt.Sprintf("below minimum %g%s", m.lo, m.unit)
	} else {
		deviation = percentOff(value-m.hi, m.hi)
		bound = fmt.Sprintf("above maximum %g%s", m.hi, m.unit)
	}

	level := levelWarning
	if deviation > e.ranges.WarningTolerance {
		level = levelCritical
	}
	return level, fmt.Sprintf("%s: %s %g%s is %s (%s deviation)", level, m.name, value, m.unit, bound, formatDeviation(deviation))
}

// percentOff is diff/base as a percentage. A zero base is infinitely off.
func percentOff(diff float64, base float64) float64 {
	if base == 0 {
		return math.Inf(1)
	}
	return diff * 100 / math.Abs(base)
}

func formatDeviation(deviation float64) string {
	if math.IsInf(deviation, 1) {
		return "unbounded"
	}
	return fmt.Sprintf("%.1f%%", deviation)
}

// ValidateRanges checks that every interval is ordered and the tolerance non-negative.
func ValidateRanges(r domain.WaterQualityRanges) error {
	for _, v := range []float64{r.PHMin, r.PHMax, r.TDSMax, r.ChlorineMin, r.ChlorineMax, r.WarningTolerance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Validationf("ranges must be finite numbers")
		}
	}
	if r.PHMin < 0 || r.PHMin > r.PHMax {
		return domain.Validationf("pH minimum must be between 0 and the pH maximum")
	}
	if r.TDSMax <= 0 {
		return domain.Validationf("TDS maximum must be positive")
	}
	if r.ChlorineMin < 0 || r.ChlorineMin > r.ChlorineMax {
		return domain.Validationf("chlorine minimum must be between 0 and the chlorine maximum")
	}
	if r.WarningTolerance < 0 {
		return domain.Validationf("warning tolerance must not be negative")
	}
	return nil
}

// ValidateReading rejects negative or non-finite metrics.
func ValidateReading(pH float64, tds float64, chlorine float64) error {
	for _, v := range []struct {
		name  string
		value float64
	}{{"pH", pH}, {"TDS", tds}, {"chlorine", chlorine}} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) || v.value < 0 {
			return domain.Validationf("%s must be a non-negative number", v.name)
		}
	}
	if pH > 14 {
		return domain.Validationf("pH must be between 0 and 14")
	}
	return nil
}
