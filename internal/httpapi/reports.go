package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/export"
	"aqualedger/backend/internal/report"
)

type tabular interface {
	Table() report.Table
}

// writeReport renders JSON by default, or a download when ?format=csv|xlsx.
func (a *API) writeReport(w http.ResponseWriter, r *http.Request, payload tabular) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	table := payload.Table()
	var buf bytes.Buffer
	if err := export.Write(&buf, table, format); err != nil {
		a.fail(w, err)
		return
	}
	filename := export.Filename(table, time.Now().UTC().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleCustomerBottlesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	result, err := a.service.CustomerBottlesReport(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeReport(w, r, result)
}

func (a *API) handleOutstandingBottlesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	result, err := a.service.OutstandingBottlesReport(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeReport(w, r, result)
}

func (a *API) handleDuesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	result, err := a.service.DuesReport(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeReport(w, r, result)
}

func (a *API) handleCashFlowReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	result, err := a.service.CashFlowReport(r.Context(), query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeReport(w, r, result)
}

func (a *API) handleActivityReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	var minDays *int
	if raw := strings.TrimSpace(r.URL.Query().Get("minDaysInactive")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			a.fail(w, domain.Validationf("minDaysInactive must be a number"))
			return
		}
		minDays = &parsed
	}
	result, err := a.service.CustomerActivityReport(r.Context(), minDays)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeReport(w, r, result)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
