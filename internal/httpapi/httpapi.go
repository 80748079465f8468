package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"aqualedger/backend/internal/auth"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *auth.Manager
	logger        *zap.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, authManager *auth.Manager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		logger.Fatal("generate csrf secret", zap.Error(err))
	}
	return &API{
		service:       svc,
		auth:          authManager,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour is a hex HMAC-SHA256 over the hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	staff := domain.RoleStaff
	admin := domain.RoleAdmin

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/api/v1/auth/logout", a.requireAuth(a.handleLogout, staff))
	mux.HandleFunc("/api/v1/auth/me", a.requireAuth(a.handleMe, staff))

	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, admin))
	mux.HandleFunc("/api/v1/users/{id}", a.requireAuth(a.handleUser, admin))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, staff))
	mux.HandleFunc("/api/v1/products/{id}", a.requireAuth(a.handleProduct, staff))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, staff))
	mux.HandleFunc("/api/v1/customers/{id}", a.requireAuth(a.handleCustomer, staff))
	mux.HandleFunc("/api/v1/customers/{id}/balance", a.requireAuth(a.handleCustomerBalance, staff))
	mux.HandleFunc("/api/v1/customers/{id}/bottles", a.requireAuth(a.handleCustomerBottles, staff))
	mux.HandleFunc("/api/v1/customers/{id}/prices/{productId}", a.requireAuth(a.handlePriceQuote, staff))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, staff))
	mux.HandleFunc("/api/v1/orders/{id}", a.requireAuth(a.handleOrder, staff))
	mux.HandleFunc("/api/v1/payments", a.requireAuth(a.handlePayments, staff))

	mux.HandleFunc("/api/v1/bottles", a.requireAuth(a.handleBottles, staff))
	mux.HandleFunc("/api/v1/bottles/summary", a.requireAuth(a.handleBottleSummary, staff))
	mux.HandleFunc("/api/v1/bottles/{id}", a.requireAuth(a.handleBottle, admin))

	mux.HandleFunc("/api/v1/expenses", a.requireAuth(a.handleExpenses, staff))
	mux.HandleFunc("/api/v1/expenses/{id}", a.requireAuth(a.handleExpense, admin))
	mux.HandleFunc("/api/v1/expense-categories", a.requireAuth(a.handleExpenseCategories, staff))
	mux.HandleFunc("/api/v1/expense-categories/{id}", a.requireAuth(a.handleExpenseCategory, admin))

	mux.HandleFunc("/api/v1/cash", a.requireAuth(a.handleCash, staff))
	mux.HandleFunc("/api/v1/cash/adjustments", a.requireAuth(a.handleCashAdjustments, admin))
	mux.HandleFunc("/api/v1/cash/reconcile", a.requireAuth(a.handleCashReconcile, admin))
	mux.HandleFunc("/api/v1/cash/daily-records", a.requireAuth(a.handleDailyCashRecords, staff))

	mux.HandleFunc("/api/v1/water-quality", a.requireAuth(a.handleWaterQuality, staff))
	mux.HandleFunc("/api/v1/water-quality/ranges", a.requireAuth(a.handleQualityRanges, staff))
	mux.HandleFunc("/api/v1/water-quality/{id}", a.requireAuth(a.handleWaterQualityEntry, admin))

	mux.HandleFunc("/api/v1/reports/customer-bottles", a.requireAuth(a.handleCustomerBottlesReport, admin))
	mux.HandleFunc("/api/v1/reports/outstanding-bottles", a.requireAuth(a.handleOutstandingBottlesReport, admin))
	mux.HandleFunc("/api/v1/reports/dues", a.requireAuth(a.handleDuesReport, admin))
	mux.HandleFunc("/api/v1/reports/cash-flow", a.requireAuth(a.handleCashFlowReport, admin))
	mux.HandleFunc("/api/v1/reports/customer-activity", a.requireAuth(a.handleActivityReport, admin))
	mux.HandleFunc("/api/v1/reports/dashboard", a.requireAuth(a.handleDashboard, admin))

	mux.HandleFunc("/api/v1/settings", a.requireAuth(a.handleSettings, staff))
	mux.HandleFunc("/api/v1/settings/language", a.requireAuth(a.handleLanguage, staff))
	mux.HandleFunc("/api/v1/backups", a.requireAuth(a.handleBackups, admin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.Resolve(r.Context(), token)
		if err != nil {
			a.fail(w, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(domain.WithActor(r.Context(), actor)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authorization[len("Bearer "):])
	return token, token != ""
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if domain.RoleSatisfies(role, allow) {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before a client can fetch a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the X-CSRF-Token header on state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(startedAt)))
	})
}

// statusFor maps a domain error kind onto an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrPolicy:
		return http.StatusUnprocessableEntity
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx responses; 4xx messages are user-facing.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
