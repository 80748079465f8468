package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aqualedger/backend/internal/auth"
	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/service"
	"aqualedger/backend/internal/store"
	"aqualedger/backend/internal/store/memory"
)

const testSecret = "test-secret-key-with-at-least-32-chars"

// newTestAPI wires a real auth manager and service over the in-memory
// driver so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	cols := store.NewCollections(memory.New())
	clk := clock.System(nil)
	manager := auth.NewManager(cols.Users, nil, testSecret, time.Hour, clk, nil)
	if _, err := manager.SeedAdmin(context.Background(), "admin", "admin123"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	adminCtx := domain.WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
	if _, err := manager.CreateUser(adminCtx, domain.UserCreateRequest{
		Username: "driver", Password: "driver123", Role: domain.RoleStaff, DisplayName: "Delivery Driver",
	}); err != nil {
		t.Fatalf("create staff user: %v", err)
	}

	svc := service.New(cols, clk, nil)
	return New(svc, manager, "*", nil)
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.AuthResult
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		t.Fatalf("expected token in login response")
	}
	return payload.Token
}

func loginAsAdmin(t *testing.T, api *API) string {
	return login(t, api, "admin", "admin123")
}

func loginAsStaff(t *testing.T, api *API) string {
	return login(t, api, "driver", "driver123")
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	tok := payload["csrf_token"]
	if strings.TrimSpace(tok) == "" {
		t.Fatalf("expected non-empty csrf_token in response")
	}
	return tok
}

// call sends an authenticated request with a CSRF token and returns the recorder.
func call(t *testing.T, api *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeInto(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestStaffCannotReachAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsStaff(t, api)

	for _, path := range []string{"/api/v1/users", "/api/v1/reports/dues", "/api/v1/cash/adjustments"} {
		res := call(t, api, http.MethodGet, path, token, nil)
		if res.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for staff, got %d", path, res.Code)
		}
	}

	res := call(t, api, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Jar", "size": "19L", "price": "200",
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when staff creates a product, got %d", res.Code)
	}
}

func TestOrderFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)
	staff := loginAsStaff(t, api)

	res := call(t, api, http.MethodPost, "/api/v1/products", admin, map[string]any{
		"name": "Mineral Water 19L", "size": "19L", "price": 200,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var productBody struct {
		Product domain.Product `json:"product"`
	}
	decodeInto(t, res, &productBody)

	res = call(t, api, http.MethodPost, "/api/v1/customers", staff, map[string]any{
		"name": "Ahmed Traders", "phone": "0300-1234567", "address": "Gulshan", "preferredLanguage": "ur",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var customerBody struct {
		Customer domain.Customer `json:"customer"`
	}
	decodeInto(t, res, &customerBody)

	res = call(t, api, http.MethodPost, "/api/v1/orders", staff, map[string]any{
		"customerId": customerBody.Customer.ID,
		"productId":  productBody.Product.ID,
		"quantity":   2,
		"price":      "200",
		"amountPaid": "400",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var order domain.PlaceOrderResult
	decodeInto(t, res, &order)
	if order.Order.Status != domain.OrderStatusCompleted || order.Payment == nil {
		t.Fatalf("unexpected order result %+v", order)
	}
	if order.CashBalance.StringFixed(2) != "400.00" {
		t.Fatalf("expected cash 400, got %s", order.CashBalance)
	}

	res = call(t, api, http.MethodPost, "/api/v1/bottles", staff, map[string]any{
		"customerId": customerBody.Customer.ID, "type": "returned", "quantity": 5,
	})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-return: expected 422, got %d", res.Code)
	}

	res = call(t, api, http.MethodGet, "/api/v1/customers/"+customerBody.Customer.ID+"/bottles", staff, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("bottle balance: expected 200, got %d", res.Code)
	}
	var bottles domain.BottleBalance
	decodeInto(t, res, &bottles)
	if bottles.Outstanding != 2 {
		t.Fatalf("expected 2 outstanding bottles, got %d", bottles.Outstanding)
	}

	res = call(t, api, http.MethodGet, "/api/v1/orders/ord-missing", staff, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("missing order: expected 404, got %d", res.Code)
	}
}

func TestValidationAndConflictStatuses(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	res := call(t, api, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "", "size": "19L", "price": 1})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("empty name: expected 400, got %d", res.Code)
	}
	res = call(t, api, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "A", "size": "19L", "price": 1})
	if res.Code != http.StatusCreated {
		t.Fatalf("first product: expected 201, got %d", res.Code)
	}
	res = call(t, api, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "B", "size": "19l", "price": 1})
	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate size: expected 409, got %d", res.Code)
	}
	res = call(t, api, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "C", "size": "1L", "price": 1, "sku": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", res.Code)
	}
}

func TestReportExportFormats(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	res := call(t, api, http.MethodGet, "/api/v1/reports/dues", admin, nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("json dues: got %d %s", res.Code, res.Header().Get("Content-Type"))
	}

	res = call(t, api, http.MethodGet, "/api/v1/reports/dues?format=csv", admin, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("csv dues: expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv content type, got %s", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), ".csv") {
		t.Fatalf("expected csv attachment, got %s", res.Header().Get("Content-Disposition"))
	}

	res = call(t, api, http.MethodGet, "/api/v1/reports/outstanding-bottles?format=xlsx", admin, nil)
	if res.Code != http.StatusOK || res.Body.Len() == 0 {
		t.Fatalf("xlsx export: got %d with %d bytes", res.Code, res.Body.Len())
	}

	res = call(t, api, http.MethodGet, "/api/v1/reports/dues?format=pdf", admin, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown format: expected 400, got %d", res.Code)
	}

	res = call(t, api, http.MethodGet, "/api/v1/reports/customer-activity?minDaysInactive=45", admin, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad threshold: expected 400, got %d", res.Code)
	}
	res = call(t, api, http.MethodGet, "/api/v1/reports/cash-flow?startDate=2025-01-05&endDate=2025-01-06", admin, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("cash flow: expected 200, got %d", res.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsStaff(t, api)

	res := call(t, api, http.MethodGet, "/api/v1/auth/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", res.Code)
	}

	res = call(t, api, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", res.Code)
	}

	res = call(t, api, http.MethodGet, "/api/v1/auth/me", token, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", res.Code)
	}
}

func TestBackupDisabledWithoutStorage(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	res := call(t, api, http.MethodPost, "/api/v1/backups", admin, nil)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without backup storage, got %d", res.Code)
	}
}
