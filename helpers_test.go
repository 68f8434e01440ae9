package tokengate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig keeps Argon2 at the cheapest valid parameters so the suite
// stays fast.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("test-signing-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, up UserProvider) (*Engine, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(up).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

type mockUserProvider struct {
	mu      sync.RWMutex
	byID    map[string]UserRecord
	byEmail map[string]string

	updateHashErr error
	getByIDErr    error
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		byID:    map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (p *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.getByIDErr != nil {
		return UserRecord{}, p.getByIDErr
	}

	user, ok := p.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (p *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(input.Email)
	if _, exists := p.byEmail[key]; exists {
		return UserRecord{}, ErrEmailTaken
	}

	user := UserRecord{
		UserID:       uuid.NewString(),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		DisplayName:  input.DisplayName,
		Active:       true,
	}
	p.byID[user.UserID] = user
	p.byEmail[key] = user.UserID

	return user, nil
}

func (p *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.updateHashErr != nil {
		return p.updateHashErr
	}

	user, ok := p.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = newHash
	p.byID[userID] = user
	return nil
}

func (p *mockUserProvider) SetActive(_ context.Context, userID string, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Active = active
	p.byID[userID] = user
	return nil
}

func (p *mockUserProvider) storedHash(t *testing.T, userID string) string {
	t.Helper()

	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.byID[userID]
	if !ok {
		t.Fatalf("user %s not found in provider", userID)
	}
	return user.PasswordHash
}

// registerTestUser creates an account through the engine and returns the
// user plus their first token pair.
func registerTestUser(t *testing.T, engine *Engine, email, pass string) RegisterResult {
	t.Helper()

	result, err := engine.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    pass,
		DisplayName: "Test User",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return result
}

func mustRefresh(t *testing.T, engine *Engine, refreshToken string) TokenPair {
	t.Helper()

	pair, err := engine.Refresh(context.Background(), refreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return pair
}
