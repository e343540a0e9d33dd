package mx

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/contact-mx/internal/resilience"
)

// DefaultLookupTimeout bounds a single MX lookup attempt.
const DefaultLookupTimeout = 5 * time.Second

// Lookuper performs one MX lookup for a domain. doh.Client and NetLookuper
// both satisfy it.
type Lookuper interface {
	LookupMX(ctx context.Context, domain string) ([]string, error)
}

// LookuperFunc adapts a function to Lookuper.
type LookuperFunc func(ctx context.Context, domain string) ([]string, error)

// LookupMX calls f(ctx, domain).
func (f LookuperFunc) LookupMX(ctx context.Context, domain string) ([]string, error) {
	return f(ctx, domain)
}

// ResolverOption configures a RetryingResolver.
type ResolverOption func(*RetryingResolver)

// WithRetryConfig sets the backoff policy.
func WithRetryConfig(cfg resilience.RetryConfig) ResolverOption {
	return func(r *RetryingResolver) {
		r.retry = cfg
	}
}

// WithTimeout sets the per-attempt lookup timeout.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *RetryingResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCircuitBreaker routes every attempt through cb. A nil breaker is ignored.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ResolverOption {
	return func(r *RetryingResolver) {
		r.breaker = cb
	}
}

// RetryingResolver wraps a Lookuper with a per-attempt timeout and
// exponential backoff. Timeouts and cancellations are returned immediately.
type RetryingResolver struct {
	lookuper Lookuper
	retry    resilience.RetryConfig
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

// NewRetryingResolver creates a resolver with the default policy: 5s per
// attempt, 3 attempts, 1s then 2s between attempts.
func NewRetryingResolver(l Lookuper, opts ...ResolverOption) *RetryingResolver {
	r := &RetryingResolver{
		lookuper: l,
		retry:    resilience.DefaultRetryConfig(),
		timeout:  DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.OnRetry == nil {
		r.retry.OnRetry = resilience.RetryLogger("mx", "lookup")
	}
	base := r.retry.ShouldRetry
	if base == nil {
		base = resilience.RetryUnlessAbort
	}
	r.retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, resilience.ErrCircuitOpen) && base(err)
	}
	return r
}

// Resolve returns the MX records for domain and the number of attempts made.
func (r *RetryingResolver) Resolve(ctx context.Context, domain string) ([]string, int, error) {
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if r.breaker == nil {
			return r.lookuper.LookupMX(attemptCtx, domain)
		}
		return resilience.ExecuteVal(attemptCtx, r.breaker, func(ctx context.Context) ([]string, error) {
			return r.lookuper.LookupMX(ctx, domain)
		})
	})
}
