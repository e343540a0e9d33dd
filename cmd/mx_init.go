package main

import (
	"context"
	"net"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/config"
	"github.com/sells-group/contact-mx/internal/contact"
	"github.com/sells-group/contact-mx/internal/mx"
	"github.com/sells-group/contact-mx/internal/pipeline"
	"github.com/sells-group/contact-mx/internal/resilience"
	"github.com/sells-group/contact-mx/internal/store"
	"github.com/sells-group/contact-mx/pkg/doh"
)

// mxEnv holds the classifier, its optional persistent store, and the
// pipeline built on top of them.
type mxEnv struct {
	Store      store.Store // may be nil
	Classifier *mx.Classifier
	Pipeline   *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *mxEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initLookuper selects the MX transport named by dns.provider.
func initLookuper(c *config.Config) (mx.Lookuper, error) {
	switch c.DNS.Provider {
	case "", "doh":
		return doh.NewClient(
			doh.WithBaseURL(c.DNS.DoHURL),
			doh.WithRateLimit(c.DNS.RateLimitRPS),
		), nil
	case "system":
		return mx.NetLookuper{Resolver: net.DefaultResolver}, nil
	default:
		return nil, eris.Errorf("unsupported dns provider: %s", c.DNS.Provider)
	}
}

// initStore opens the persistent domain cache. It returns nil when no driver
// is configured.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if c.Cache.Store.Driver == "" {
		return nil, nil
	}
	st, err := store.Open(ctx, c.Cache.Store.Driver, c.Cache.Store.DatabaseURL, storePoolConfig(c))
	if err != nil {
		return nil, eris.Wrap(err, "open cache store")
	}
	return st, nil
}

func storePoolConfig(c *config.Config) *store.PoolConfig {
	return &store.PoolConfig{
		MaxConns: c.Cache.Store.MaxConns,
		MinConns: c.Cache.Store.MinConns,
	}
}

// initClassifier builds the resolver chain and classifier from config.
// Callers should defer env.Close().
func initClassifier(ctx context.Context, c *config.Config) (*mxEnv, error) {
	lookuper, err := initLookuper(c)
	if err != nil {
		return nil, err
	}

	retry := resilience.FromRetryConfig(
		c.Retry.MaxAttempts,
		c.Retry.InitialBackoffMs,
		c.Retry.MaxBackoffMs,
		c.Retry.Multiplier,
		c.Retry.JitterFraction,
	)
	resolverOpts := []mx.ResolverOption{
		mx.WithRetryConfig(retry),
		mx.WithTimeout(time.Duration(c.DNS.TimeoutMs) * time.Millisecond),
	}
	if cb := resilience.FromCircuitConfig(c.DNS.CircuitFailureThreshold, c.DNS.CircuitResetSecs); cb != nil {
		resolverOpts = append(resolverOpts, mx.WithCircuitBreaker(cb))
	}
	resolver := mx.NewRetryingResolver(lookuper, resolverOpts...)

	classifierOpts := []mx.ClassifierOption{
		mx.WithCache(mx.NewDomainCache(c.Cache.MaxSize)),
	}
	if c.Signatures.Path != "" {
		sigs, err := mx.LoadSignatures(c.Signatures.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load signatures")
		}
		classifierOpts = append(classifierOpts, mx.WithSignatures(sigs))
	}

	env := &mxEnv{}
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if st != nil {
		env.Store = st
		classifierOpts = append(classifierOpts, mx.WithStore(st))
	}

	env.Classifier = mx.NewClassifier(resolver, classifierOpts...)

	zap.L().Debug("classifier ready",
		zap.String("dns_provider", c.DNS.Provider),
		zap.Int("cache_size", c.Cache.MaxSize),
		zap.Bool("store", st != nil),
	)
	return env, nil
}

// initPipeline builds the classifier environment plus a Pipeline. A positive
// workers overrides pipeline.workers.
func initPipeline(ctx context.Context, c *config.Config, workers int) (*mxEnv, error) {
	env, err := initClassifier(ctx, c)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = c.Pipeline.Workers
	}
	p, err := pipeline.New(env.Classifier, pipeline.Options{
		Workers:    workers,
		ChunkSize:  c.Pipeline.ChunkSize,
		Weights:    c.Pipeline.Weights,
		Normalizer: contact.EmailNormalizer{PreserveLocalCase: c.Pipeline.PreserveLocalCase},
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "build pipeline")
	}
	env.Pipeline = p
	return env, nil
}
