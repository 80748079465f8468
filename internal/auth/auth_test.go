package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"aqualedger/backend/internal/cache"
	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/store"
	"aqualedger/backend/internal/store/memory"
)

const testSecret = "test-secret-test-secret-test-secret"

func newTestManager(t *testing.T) (*Manager, *store.Collections, *clock.Fixed) {
	t.Helper()
	cols := store.NewCollections(memory.New())
	clk := &clock.Fixed{At: time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)}
	manager := NewManager(cols.Users, cache.NewMemorySessionCache(), testSecret, time.Hour, clk, zap.NewNop())
	if _, err := manager.SeedAdmin(context.Background(), "admin", "admin123"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return manager, cols, clk
}

func adminContext(t *testing.T, manager *Manager) context.Context {
	t.Helper()
	ctx := context.Background()
	res, err := manager.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	actor, err := manager.Resolve(ctx, res.Token)
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	return domain.WithActor(ctx, actor)
}

func TestSeedAdminOnlyOnEmptyUserSet(t *testing.T) {
	manager, cols, _ := newTestManager(t)

	created, err := manager.SeedAdmin(context.Background(), "other", "secret")
	if err != nil {
		t.Fatalf("seed again: %v", err)
	}
	if created {
		t.Fatalf("expected no seeding when users exist")
	}
	users, _ := cols.Users.FetchAll(context.Background())
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if !isPasswordHash(users[0].PasswordHash) {
		t.Fatalf("expected bcrypt hash, got %q", users[0].PasswordHash)
	}
}

func TestAuthenticateIsCaseInsensitiveAndHidesSecret(t *testing.T) {
	manager, _, _ := newTestManager(t)

	res, err := manager.Authenticate(context.Background(), "  ADMIN ", "admin123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.User.Username != "admin" || res.User.Role != domain.RoleAdmin {
		t.Fatalf("unexpected profile %+v", res.User)
	}
	if res.Token == "" || strings.Count(res.Token, ".") != 2 {
		t.Fatalf("expected a signed token, got %q", res.Token)
	}
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	manager, _, _ := newTestManager(t)

	_, err := manager.Authenticate(context.Background(), "admin", "wrong")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestCreateUserValidationAndConflict(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := adminContext(t, manager)

	cases := []domain.UserCreateRequest{
		{Username: "ab", Password: "1234", Role: domain.RoleStaff},
		{Username: "driver", Password: "123", Role: domain.RoleStaff},
		{Username: "driver", Password: "1234", Role: "owner"},
	}
	for _, req := range cases {
		if _, err := manager.CreateUser(ctx, req); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}

	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "Driver", Password: "1234", Role: domain.RoleStaff}); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	_, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "DRIVER", Password: "1234", Role: domain.RoleStaff})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := domain.WithActor(context.Background(), domain.Actor{Username: "driver", Role: domain.RoleStaff})

	_, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "helper", Password: "1234", Role: domain.RoleStaff})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestInactiveUserCannotSignIn(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := adminContext(t, manager)

	staff, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "driver", Password: "1234", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inactive := false
	if _, err := manager.UpdateUser(ctx, staff.ID, domain.UserUpdateRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err = manager.Authenticate(context.Background(), "driver", "1234")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := adminContext(t, manager)
	actor, _ := domain.ActorFromContext(ctx)

	staffRole := domain.RoleStaff
	_, err := manager.UpdateUser(ctx, actor.UserID, domain.UserUpdateRequest{Role: &staffRole})
	if !errors.Is(err, domain.ErrPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	res, err := manager.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := manager.Resolve(ctx, res.Token); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := manager.Logout(ctx, res.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := manager.Resolve(ctx, res.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected revoked session, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	manager, _, clk := newTestManager(t)
	ctx := context.Background()

	res, err := manager.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if _, err := manager.Resolve(ctx, res.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestLegacyEncodedPasswordIsUpgraded(t *testing.T) {
	ctx := context.Background()
	cols := store.NewCollections(memory.New())
	legacy := domain.User{
		ID:           "usr-legacy",
		Username:     "owner",
		PasswordHash: base64.StdEncoding.EncodeToString([]byte("owner123")),
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := cols.Users.Put(ctx, []domain.User{legacy}); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	clk := &clock.Fixed{At: time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)}
	manager := NewManager(cols.Users, nil, testSecret, time.Hour, clk, nil)

	if _, err := manager.Authenticate(ctx, "owner", "owner123"); err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}
	users, _ := cols.Users.FetchAll(ctx)
	if !isPasswordHash(users[0].PasswordHash) {
		t.Fatalf("expected password to be upgraded to bcrypt")
	}
	if _, err := manager.Authenticate(ctx, "owner", "owner123"); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
}

func TestHasRole(t *testing.T) {
	admin := &domain.UserProfile{Role: domain.RoleAdmin, IsActive: true}
	staff := &domain.UserProfile{Role: domain.RoleStaff, IsActive: true}

	if !HasRole(admin, domain.RoleStaff) || !HasRole(admin, domain.RoleAdmin) {
		t.Fatalf("admin should satisfy staff and admin")
	}
	if HasRole(staff, domain.RoleAdmin) {
		t.Fatalf("staff must not satisfy admin")
	}
	if HasRole(nil, domain.RoleStaff) {
		t.Fatalf("nil user must fail closed")
	}
}
