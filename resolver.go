package session

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultFetchTimeout bounds a single backend query attempt.
	DefaultFetchTimeout = 15 * time.Second
	// DefaultMaxRetries bounds the resolution attempt loop.
	DefaultMaxRetries = 3

	networkBackoffStep = 1 * time.Second
	timeoutBackoffStep = 2 * time.Second
)

// SleepFunc suspends for the given duration, honoring context cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolver turns a user id into a best-effort Profile. The only errors it
// returns are the two hard failures, ErrPolicyDenied and ErrProfileNotFound;
// every other outcome degrades to cached or least-privilege data.
type Resolver struct {
	backend      ProfileBackend
	cache        *ProfileCache
	logger       Logger
	provider     LoggerProvider
	sink         ActivitySink
	fetchTimeout time.Duration
	maxRetries   int
	sleep        SleepFunc
	now          func() time.Time
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*Resolver)

// WithFetchTimeout overrides the per-attempt backend timeout.
func WithFetchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithMaxRetries overrides the attempt bound.
func WithMaxRetries(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithResolverLogger overrides the resolver logger.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		r.provider, r.logger = ResolveLogger("session.resolver", r.provider, logger)
	}
}

// WithResolverLoggerProvider overrides the logger provider used by the resolver.
func WithResolverLoggerProvider(provider LoggerProvider) ResolverOption {
	return func(r *Resolver) {
		r.provider, r.logger = ResolveLogger("session.resolver", provider, r.logger)
	}
}

// WithResolverSleep injects the backoff sleeper (useful for tests).
func WithResolverSleep(sleep SleepFunc) ResolverOption {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithResolverActivitySink records an audit event whenever resolution
// degrades to cached or default data.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.sink = normalizeActivitySink(sink)
	}
}

// WithResolverClock injects a custom clock (useful for tests).
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewResolver builds a Resolver over the given backend and cache.
func NewResolver(backend ProfileBackend, cache *ProfileCache, opts ...ResolverOption) *Resolver {
	provider, logger := ResolveLogger("session.resolver", nil, nil)
	r := &Resolver{
		backend:      backend,
		cache:        cache,
		logger:       logger,
		provider:     provider,
		sink:         noopActivitySink{},
		fetchTimeout: DefaultFetchTimeout,
		maxRetries:   DefaultMaxRetries,
		sleep:        defaultSleep,
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve returns a Profile for the user. Fresh backend data is written
// through to the cache. Transient failures are retried with linear backoff;
// once attempts are exhausted the cached profile wins, then the
// least-privilege default. Hard failures return immediately with no retry.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Profile, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		profile, err := r.attempt(ctx, userID)
		if err == nil {
			if profile == nil {
				// Empty success: no record, no error. Treated as exhausted.
				r.logger.Warn("backend returned no profile data", "user_id", userID)
				break
			}

			if verr := profile.Validate(); verr != nil {
				r.logger.Warn("backend returned invalid profile", "user_id", userID, "error", verr)
				break
			}

			r.cache.Put(ctx, profile)
			r.logger.Debug("profile resolved", "user_id", userID, "attempt", attempt)
			return profile, nil
		}

		if IsProfileNotFoundError(err) {
			r.logger.Error("user profile does not exist", "user_id", userID, "error", err)
			return nil, errors.Wrap(err, errors.CategoryNotFound, "user profile not found").
				WithTextCode(textCodeProfileNotFound).
				WithCode(errors.CodeNotFound)
		}

		if IsPolicyDenial(err) {
			r.logger.Error("profile access blocked by policy", "user_id", userID, "error", err)
			return nil, errors.Wrap(err, errors.CategoryAuthz, "profile access denied by policy").
				WithTextCode(textCodePolicyDenied).
				WithCode(errors.CodeForbidden)
		}

		if attempt == r.maxRetries-1 {
			r.logger.Warn("profile resolution retries exhausted", "user_id", userID, "error", err)
			break
		}

		backoff := backoffFor(err, attempt)
		r.logger.Info("retrying profile fetch",
			"user_id", userID,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"backoff", backoff,
			"error", err,
		)

		if serr := r.sleep(ctx, backoff); serr != nil {
			r.logger.Warn("profile resolution interrupted during backoff", "user_id", userID, "error", serr)
			break
		}
	}

	if cached := r.cache.Get(ctx, userID); cached != nil {
		r.logger.Warn("using cached profile after repeated failures", "user_id", userID)
		r.recordDegraded(ctx, userID, "cache")
		return cached, nil
	}

	r.logger.Warn("using default profile, no cache available", "user_id", userID, "role", DefaultRole)
	r.recordDegraded(ctx, userID, "default")
	return DefaultProfile(userID), nil
}

// recordDegraded emits the audit event for resolutions that fell back to
// stale or default data. Best effort, same as the controller's sink.
func (r *Resolver) recordDegraded(ctx context.Context, userID, source string) {
	event := ActivityEvent{
		EventType:  ActivityEventProfileDegraded,
		UserID:     userID,
		Metadata:   map[string]any{"source": source},
		OccurredAt: r.now(),
	}
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn("resolver activity sink error", "error", err)
	}
}

// attempt races one backend query against the fetch timeout. The loser's
// eventual result is discarded; the underlying call is not cancelled.
func (r *Resolver) attempt(ctx context.Context, userID string) (*Profile, error) {
	type outcome struct {
		profile *Profile
		err     error
	}

	results := make(chan outcome, 1)
	go func() {
		profile, err := r.backend.QueryProfile(ctx, userID)
		results <- outcome{profile: profile, err: err}
	}()

	timer := time.NewTimer(r.fetchTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.profile, res.err
	case <-timer.C:
		return nil, ErrFetchTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// backoffFor computes the linear backoff for the given attempt: network
// errors wait a shorter step than timeouts and unknown failures.
func backoffFor(err error, attempt int) time.Duration {
	step := timeoutBackoffStep
	if IsNetworkError(err) {
		step = networkBackoffStep
	}
	return step * time.Duration(attempt+1)
}
