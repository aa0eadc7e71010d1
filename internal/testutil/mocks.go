// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the sleep-better application.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"sleep-better/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockStorage        = errors.New("mock: storage unavailable")
)

// MockKVStore implements domain.KVStore for testing. Without overrides it
// behaves like a map with expiry on the injected clock.
type MockKVStore struct {
	mu sync.Mutex

	// Function overrides - set these to customize behavior
	GetFunc    func(ctx context.Context, key string) (domain.KVEntry, error)
	SetFunc    func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time

	Entries map[string]domain.KVEntry

	// Call tracking
	SetCalls    []KVSetCall
	DeleteCalls []string
}

// KVSetCall records a call to Set
type KVSetCall struct {
	Key   string
	Value string
	TTL   time.Duration
}

// NewMockKVStore creates a new MockKVStore with initialized maps
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		Entries: make(map[string]domain.KVEntry),
	}
}

func (m *MockKVStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockKVStore) Get(ctx context.Context, key string) (domain.KVEntry, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.Entries[key]
	if !ok {
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	if !e.ExpiresAt.IsZero() && !m.now().Before(e.ExpiresAt) {
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	return e, nil
}

func (m *MockKVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, KVSetCall{Key: key, Value: value, TTL: ttl})
	m.mu.Unlock()

	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Entries == nil {
		m.Entries = make(map[string]domain.KVEntry)
	}
	e := domain.KVEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}
	m.Entries[key] = e
	return nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, key)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, key)
	return nil
}

// Put stores an entry directly, bypassing call tracking.
func (m *MockKVStore) Put(key, value string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Entries == nil {
		m.Entries = make(map[string]domain.KVEntry)
	}
	m.Entries[key] = domain.KVEntry{Value: value, ExpiresAt: expiresAt}
}

// Has reports whether key is stored, ignoring expiry.
func (m *MockKVStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Entries[key]
	return ok
}

// MockBackend implements the prediction backend interfaces for testing
type MockBackend struct {
	mu sync.Mutex

	// Function overrides
	LoginFunc     func(ctx context.Context, username, password string) (*domain.Credentials, error)
	RegisterFunc  func(ctx context.Context, username, email, password string) (*domain.Credentials, error)
	PredictFunc   func(ctx context.Context, token string, answers domain.SurveyAnswers) (*domain.Prediction, error)
	UserStatsFunc func(ctx context.Context, token string) (*domain.SleepStats, error)
	ChatFunc      func(ctx context.Context, token, username, message string) (string, error)
	PingFunc      func(ctx context.Context) error

	// Call tracking: the bearer token of every authorized call
	Tokens []string
}

// NewMockBackend creates a new MockBackend
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) track(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
}

// SeenTokens returns the bearer tokens recorded so far.
func (m *MockBackend) SeenTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.Tokens...)
}

func (m *MockBackend) Login(ctx context.Context, username, password string) (*domain.Credentials, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return &domain.Credentials{Token: "token-" + username, Username: username}, nil
}

func (m *MockBackend) Register(ctx context.Context, username, email, password string) (*domain.Credentials, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, username, email, password)
	}
	return &domain.Credentials{Token: "token-" + username, Username: username}, nil
}

func (m *MockBackend) Predict(ctx context.Context, token string, answers domain.SurveyAnswers) (*domain.Prediction, error) {
	m.track(token)
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, token, answers)
	}
	return NewTestPrediction(domain.GoodSleep), nil
}

func (m *MockBackend) UserStats(ctx context.Context, token string) (*domain.SleepStats, error) {
	m.track(token)
	if m.UserStatsFunc != nil {
		return m.UserStatsFunc(ctx, token)
	}
	return NewTestStats(), nil
}

func (m *MockBackend) Chat(ctx context.Context, token, username, message string) (string, error) {
	m.track(token)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, token, username, message)
	}
	return "echo: " + message, nil
}

func (m *MockBackend) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockEventPublisher implements domain.SessionEventPublisher for testing
type MockEventPublisher struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, ev domain.SessionEvent) error

	Events []domain.SessionEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, ev)
	}
	return nil
}

// Published returns all recorded events
func (m *MockEventPublisher) Published() []domain.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionEvent{}, m.Events...)
}
