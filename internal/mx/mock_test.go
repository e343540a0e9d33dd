package mx

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/resilience"
)

// --- Lookuper Mock ---

type mockLookuper struct {
	mock.Mock
}

func (m *mockLookuper) LookupMX(ctx context.Context, domain string) ([]string, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Store Fake ---

type memStore struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	setErr  error
	sets    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]string)}
}

func (s *memStore) GetProvider(_ context.Context, domain string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	p, ok := s.entries[domain]
	return p, ok, nil
}

func (s *memStore) SetProvider(_ context.Context, domain, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[domain] = provider
	return nil
}

func (s *memStore) ListProviders(_ context.Context, limit int) ([]model.DomainEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DomainEntry
	for d, p := range s.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, model.DomainEntry{Domain: d, Provider: p})
	}
	return out, nil
}

// --- Helpers ---

// recordingRetry returns the default lookup policy with sleeps recorded
// instead of slept.
func recordingRetry(delays *[]time.Duration) resilience.RetryConfig {
	var mu sync.Mutex
	cfg := resilience.DefaultRetryConfig()
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*delays = append(*delays, d)
		return nil
	}
	return cfg
}

func newTestClassifier(l Lookuper, delays *[]time.Duration, opts ...ClassifierOption) *Classifier {
	r := NewRetryingResolver(l, WithRetryConfig(recordingRetry(delays)))
	return NewClassifier(r, opts...)
}
