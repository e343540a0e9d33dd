package mx

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/contact"
	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/resilience"
)

// validDomain accepts single-character labels such as x.com.
var validDomain = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*\.[a-zA-Z]{2,}$`)

// DomainStore is a persistent second-tier cache behind the in-memory one.
type DomainStore interface {
	GetProvider(ctx context.Context, domain string) (string, bool, error)
	SetProvider(ctx context.Context, domain, provider string) error
	ListProviders(ctx context.Context, limit int) ([]model.DomainEntry, error)
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithCache shares an existing cache, e.g. across pipeline runs.
func WithCache(c *DomainCache) ClassifierOption {
	return func(cl *Classifier) {
		cl.cache = c
	}
}

// WithSignatures replaces the built-in provider patterns.
func WithSignatures(s Signatures) ClassifierOption {
	return func(cl *Classifier) {
		cl.sigs = s
	}
}

// WithStore adds a persistent cache tier.
func WithStore(s DomainStore) ClassifierOption {
	return func(cl *Classifier) {
		cl.store = s
	}
}

// Classifier maps domains to provider labels. Invalid domains are answered
// without touching any cache. Otherwise the memory cache is consulted, then
// the store, then the network.
type Classifier struct {
	cache    *DomainCache
	resolver *RetryingResolver
	sigs     Signatures
	store    DomainStore
}

// NewClassifier creates a Classifier resolving misses through resolver.
func NewClassifier(resolver *RetryingResolver, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		resolver: resolver,
		sigs:     DefaultSignatures(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewDomainCache(DefaultCacheSize)
	}
	return c
}

// Cache returns the in-memory cache.
func (c *Classifier) Cache() *DomainCache {
	return c.cache
}

// Store returns the persistent tier, or nil.
func (c *Classifier) Store() DomainStore {
	return c.store
}

// Classify returns the provider label for domain. It never fails; anything
// that cannot be resolved is "others".
func (c *Classifier) Classify(ctx context.Context, domain string) string {
	return c.Resolve(ctx, domain).Provider
}

// Resolve classifies domain and reports where the answer came from.
func (c *Classifier) Resolve(ctx context.Context, raw string) model.Classification {
	domain := contact.CleanWebsite(raw)
	out := model.Classification{Domain: domain, Provider: model.ProviderOthers}

	if !validDomain.MatchString(domain) {
		out.Source = model.SourceInvalid
		return out
	}

	if p, ok := c.cache.Get(domain); ok {
		out.Provider = p
		out.Source = model.SourceCache
		return out
	}

	if c.store != nil {
		p, ok, err := c.store.GetProvider(ctx, domain)
		switch {
		case err != nil:
			zap.L().Warn("mx: store read failed", zap.String("domain", domain), zap.Error(err))
		case ok:
			c.cache.Set(domain, p)
			out.Provider = p
			out.Source = model.SourceStore
			return out
		}
	}

	records, attempts, err := c.resolver.Resolve(ctx, domain)
	out.Attempts = attempts
	out.Source = model.SourceLookup
	if err != nil {
		out.Degraded = true
		out.Err = err.Error()
		out.ErrorClass = resilience.ClassifyError(err)

		if errors.Is(err, resilience.ErrCircuitOpen) {
			out.Source = model.SourceCircuitOpen
			zap.L().Debug("mx: circuit open, skipping lookup", zap.String("domain", domain))
			return out
		}
		if ctx.Err() != nil {
			zap.L().Debug("mx: lookup cancelled", zap.String("domain", domain), zap.Error(err))
			return out
		}
		if resilience.IsAbort(err) {
			zap.L().Debug("mx: lookup aborted", zap.String("domain", domain), zap.Error(err))
		} else {
			zap.L().Warn("mx: lookup failed",
				zap.String("domain", domain),
				zap.Int("attempts", attempts),
				zap.String("error_class", out.ErrorClass),
				zap.Error(err),
			)
		}
	} else {
		out.Provider = c.sigs.Match(records)
	}

	out.Persisted = c.remember(ctx, domain, out.Provider)
	return out
}

// remember caches the outcome and reports whether the store accepted it.
func (c *Classifier) remember(ctx context.Context, domain, provider string) bool {
	c.cache.Set(domain, provider)
	if c.store == nil {
		return false
	}
	if err := c.store.SetProvider(ctx, domain, provider); err != nil {
		zap.L().Warn("mx: store write failed", zap.String("domain", domain), zap.Error(err))
		return false
	}
	return true
}
