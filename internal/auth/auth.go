package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"aqualedger/backend/internal/cache"
	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/store"
	"aqualedger/backend/internal/xid"
)

const (
	minUsernameLength = 3
	minPasswordLength = 4
	tokenIssuer       = "aqualedger"
)

type Manager struct {
	mu       sync.Mutex
	users    store.Collection[domain.User]
	sessions cache.SessionCache
	secret   []byte
	tokenTTL time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewManager(users store.Collection[domain.User], sessions cache.SessionCache, secret string, tokenTTL time.Duration, clk clock.Clock, logger *zap.Logger) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if sessions == nil {
		sessions = cache.NewMemorySessionCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		clock:    clk,
		logger:   logger,
	}
}

// HasRole reports whether user holds required. A nil or inactive user fails closed.
func HasRole(user *domain.UserProfile, required string) bool {
	if user == nil || !user.IsActive {
		return false
	}
	return domain.RoleSatisfies(user.Role, required)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validRole(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleStaff
}

// SeedAdmin creates the first admin when no users exist. It reports whether a user was created.
func (m *Manager) SeedAdmin(ctx context.Context, username string, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := m.createLocked(ctx, users, domain.UserCreateRequest{
		Username:    username,
		Password:    password,
		Role:        domain.RoleAdmin,
		DisplayName: "Administrator",
	}, "system"); err != nil {
		return false, err
	}
	m.logger.Info("seeded admin user", zap.String("username", normalizeUsername(username)))
	return true, nil
}

func (m *Manager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserProfile, error) {
	actor, err := domain.RequireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.UserProfile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	user, err := m.createLocked(ctx, users, req, actor.Username)
	if err != nil {
		return domain.UserProfile{}, err
	}
	m.logger.Info("user created",
		zap.String("action", "create"), zap.String("entity", "user"),
		zap.String("id", user.ID), zap.String("actor", actor.Username))
	return user.Profile(), nil
}

func (m *Manager) createLocked(ctx context.Context, users []domain.User, req domain.UserCreateRequest, createdBy string) (domain.User, error) {
	username := normalizeUsername(req.Username)
	if len(username) < minUsernameLength {
		return domain.User{}, domain.Validationf("username must be at least %d characters", minUsernameLength)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, domain.Validationf("username must not contain spaces")
	}
	if len(req.Password) < minPasswordLength {
		return domain.User{}, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	role := strings.TrimSpace(req.Role)
	if !validRole(role) {
		return domain.User{}, domain.Validationf("role must be admin or staff")
	}
	for _, existing := range users {
		if normalizeUsername(existing.Username) == username {
			return domain.User{}, domain.Conflictf("username already exists")
		}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.User{}, domain.Persistence("hash password", err)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}
	user := domain.User{
		ID:           xid.New("usr"),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		DisplayName:  displayName,
		Email:        strings.TrimSpace(req.Email),
		IsActive:     true,
		CreatedAt:    m.clock.Now(),
		CreatedBy:    createdBy,
	}
	if err := m.users.Put(ctx, append(users, user)); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (m *Manager) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.UserProfile, error) {
	actor, err := domain.RequireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.UserProfile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	idx := indexOfUser(users, id)
	if idx < 0 {
		return domain.UserProfile{}, domain.NotFoundf("user not found")
	}

	user := users[idx]
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return domain.UserProfile{}, domain.Validationf("password must be at least %d characters", minPasswordLength)
		}
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return domain.UserProfile{}, domain.Persistence("hash password", err)
		}
		user.PasswordHash = hash
	}
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if !validRole(role) {
			return domain.UserProfile{}, domain.Validationf("role must be admin or staff")
		}
		user.Role = role
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	users[idx] = user
	if !hasActiveAdmin(users) {
		return domain.UserProfile{}, domain.Policyf("at least one active admin is required")
	}
	now := m.clock.Now()
	users[idx].UpdatedAt = &now
	if err := m.users.Put(ctx, users); err != nil {
		return domain.UserProfile{}, err
	}
	m.logger.Info("user updated",
		zap.String("action", "update"), zap.String("entity", "user"),
		zap.String("id", id), zap.String("actor", actor.Username))
	return users[idx].Profile(), nil
}

func (m *Manager) DeleteUser(ctx context.Context, id string) error {
	actor, err := domain.RequireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if actor.UserID == id {
		return domain.Policyf("cannot delete the signed-in user")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return err
	}
	idx := indexOfUser(users, id)
	if idx < 0 {
		return domain.NotFoundf("user not found")
	}
	remaining := append(users[:idx:idx], users[idx+1:]...)
	if !hasActiveAdmin(remaining) {
		return domain.Policyf("at least one active admin is required")
	}
	if err := m.users.Put(ctx, remaining); err != nil {
		return err
	}
	m.logger.Info("user deleted",
		zap.String("action", "delete"), zap.String("entity", "user"),
		zap.String("id", id), zap.String("actor", actor.Username))
	return nil
}

func (m *Manager) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	if _, err := domain.RequireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.UserProfile, 0, len(users))
	for _, user := range users {
		result = append(result, user.Profile())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result, nil
}

// Authenticate checks credentials and opens a session.
func (m *Manager) Authenticate(ctx context.Context, username string, password string) (domain.AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return domain.AuthResult{}, err
	}
	wanted := normalizeUsername(username)
	idx := -1
	for i, user := range users {
		if normalizeUsername(user.Username) == wanted {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.AuthResult{}, domain.Unauthenticatedf("invalid credentials")
	}

	user := users[idx]
	ok, legacy := verifyPassword(user.PasswordHash, password)
	if !ok {
		return domain.AuthResult{}, domain.Unauthenticatedf("invalid credentials")
	}
	if !user.IsActive {
		return domain.AuthResult{}, domain.Forbiddenf("account is inactive")
	}
	if legacy {
		if hash, err := hashPassword(password); err == nil {
			users[idx].PasswordHash = hash
			if err := m.users.Put(ctx, users); err != nil {
				m.logger.Warn("password upgrade failed", zap.String("username", user.Username), zap.Error(err))
			}
		}
	}

	now := m.clock.Now()
	expiresAt := now.Add(m.tokenTTL)
	session := domain.Session{
		ID:        xid.Token(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}
	token, err := m.sign(session, now)
	if err != nil {
		return domain.AuthResult{}, domain.Persistence("sign token", err)
	}
	if err := m.sessions.Set(ctx, session, m.tokenTTL); err != nil {
		return domain.AuthResult{}, domain.Persistence("store session", err)
	}

	m.logger.Info("user signed in", zap.String("username", user.Username), zap.String("role", user.Role))
	return domain.AuthResult{
		User:      user.Profile(),
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// Resolve validates a bearer token and returns the actor behind its live session.
func (m *Manager) Resolve(ctx context.Context, token string) (domain.Actor, error) {
	claims, err := m.parse(token)
	if err != nil {
		return domain.Actor{}, err
	}
	session, ok, err := m.sessions.Get(ctx, claims.ID)
	if err != nil {
		return domain.Actor{}, domain.Persistence("load session", err)
	}
	if !ok || !m.clock.Now().Before(session.ExpiresAt) {
		return domain.Actor{}, domain.Unauthenticatedf("session expired")
	}

	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	idx := indexOfUser(users, session.UserID)
	if idx < 0 || !users[idx].IsActive {
		_ = m.sessions.Delete(ctx, session.ID)
		return domain.Actor{}, domain.Unauthenticatedf("session expired")
	}
	user := users[idx]
	return domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Logout revokes the session behind token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if err := m.sessions.Delete(ctx, claims.ID); err != nil {
		return domain.Persistence("revoke session", err)
	}
	return nil
}

// CurrentUser returns the profile of the context actor.
func (m *Manager) CurrentUser(ctx context.Context) (domain.UserProfile, error) {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return domain.UserProfile{}, domain.Unauthenticatedf("authentication required")
	}
	users, err := m.users.FetchAll(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	idx := indexOfUser(users, actor.UserID)
	if idx < 0 {
		return domain.UserProfile{}, domain.NotFoundf("user not found")
	}
	return users[idx].Profile(), nil
}

func (m *Manager) sign(session domain.Session, issuedAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.UserID,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(session.ExpiresAt),
			Issuer:    tokenIssuer,
		},
		Role: session.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) parse(tokenStr string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(m.clock.Now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, domain.Unauthenticatedf("invalid or expired token")
	}
	return claims, nil
}

func indexOfUser(users []domain.User, id string) int {
	for i, user := range users {
		if user.ID == id {
			return i
		}
	}
	return -1
}

func hasActiveAdmin(users []domain.User) bool {
	for _, user := range users {
		if user.IsActive && user.Role == domain.RoleAdmin {
			return true
		}
	}
	return false
}
