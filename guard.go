package stateguard

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tokenLength is the number of random bytes in a state token. 32 bytes is
// 256 bits of entropy, enough that guessing or colliding a live token is
// infeasible even with a large number of concurrent flows.
const tokenLength = 32

// mintAttempts bounds the defensive regeneration loop on token collision.
const mintAttempts = 3

const (
	// DefaultTTL is how long a minted state stays valid.
	DefaultTTL = 10 * time.Minute

	// DefaultSweepInterval is how often the background sweep runs. It is
	// independent of the TTL.
	DefaultSweepInterval = 5 * time.Minute
)

// Guard mints, stores, and consumes one-time OAuth state tokens.
type Guard struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   Logger
	sink     ActivitySink
	now      Clock
}

// Option configures a Guard.
type Option func(*Guard)

// WithStore sets the backing store. Defaults to a process-local MemoryStore.
func WithStore(store Store) Option {
	return func(g *Guard) {
		if store != nil {
			g.store = store
		}
	}
}

// WithTTL sets the expiry threshold for minted states.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(g *Guard) {
		if interval > 0 {
			g.interval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithActivitySink sets the audit sink for flow lifecycle events.
func WithActivitySink(sink ActivitySink) Option {
	return func(g *Guard) {
		g.sink = sink
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(g *Guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// New creates a Guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.store == nil {
		g.store = NewMemoryStore()
	}

	g.sink = normalizeActivitySink(g.sink)

	return g
}

// TTL returns the configured expiry threshold.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// BeginFlow mints a state token for a sign-in attempt against provider and
// records it together with callbackURL. The returned token is meant to ride
// in the outbound request's "state" parameter so the provider round-trips it
// back on the callback.
//
// callbackURL is opaque to the guard and forwarded unchanged. The only error
// paths are a missing provider and an unavailable secure random source; the
// latter is a process-level condition, not a per-request failure.
func (g *Guard) BeginFlow(ctx context.Context, provider, callbackURL string) (string, error) {
	if provider == "" {
		return "", ErrProviderRequired
	}

	for attempt := 0; attempt < mintAttempts; attempt++ {
		token, err := mintToken()
		if err != nil {
			g.logger.Error("state token mint failed: %v", err)
			return "", fmt.Errorf("%w: %v", ErrTokenMintFailed, err)
		}

		entry := StateEntry{
			Token:       token,
			Provider:    provider,
			CallbackURL: callbackURL,
			CreatedAt:   g.now(),
		}

		inserted, err := g.store.Insert(ctx, entry)
		if err != nil {
			return "", fmt.Errorf("insert state entry: %w", err)
		}
		if !inserted {
			// token collision, mint again
			continue
		}

		g.record(ctx, ActivityEvent{
			EventType: ActivityEventFlowStarted,
			Provider:  provider,
			Metadata:  map[string]any{"callback_url": callbackURL},
		})

		g.logger.Debug("state minted for provider %s", provider)
		return token, nil
	}

	return "", ErrTokenMintFailed
}

// CompleteFlow consumes the state token supplied on an OAuth callback.
//
// A found token is removed as part of the same operation, so it can never
// validate twice: under concurrent duplicate callbacks exactly one caller
// gets the entry and every other caller gets ErrStateNotFound. Rejections
// (ErrMissingState, ErrStateNotFound, ErrStateExpired) are structured
// outcomes for the policy layer, not faults.
func (g *Guard) CompleteFlow(ctx context.Context, token string) (*StateEntry, error) {
	if token == "" {
		g.reject(ctx, "", "missing state")
		return nil, ErrMissingState
	}

	entry, ok, err := g.store.Take(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("take state entry: %w", err)
	}
	if !ok {
		g.reject(ctx, "", "unknown state")
		return nil, ErrStateNotFound
	}

	if g.now().Sub(entry.CreatedAt) > g.ttl {
		g.reject(ctx, entry.Provider, "expired state")
		return nil, ErrStateExpired
	}

	g.record(ctx, ActivityEvent{
		EventType: ActivityEventFlowCompleted,
		Provider:  entry.Provider,
		Metadata:  map[string]any{"callback_url": entry.CallbackURL},
	})

	return &entry, nil
}

// SweepNow runs one expiry pass immediately. The background sweeper calls
// this on its interval; tests and operators can call it directly.
func (g *Guard) SweepNow(ctx context.Context) int {
	removed, err := g.store.SweepExpired(ctx, g.now(), g.ttl)
	if err != nil {
		g.logger.Error("state sweep failed: %v", err)
		return 0
	}

	if removed > 0 {
		g.logger.Debug("state sweep removed %d expired entries", removed)
		g.record(ctx, ActivityEvent{
			EventType: ActivityEventSweepExpired,
			Metadata:  map[string]any{"removed": removed},
		})
	}

	return removed
}

func (g *Guard) reject(ctx context.Context, provider, reason string) {
	g.logger.Info("oauth state rejected: %s", reason)
	g.record(ctx, ActivityEvent{
		EventType: ActivityEventFlowRejected,
		Provider:  provider,
		Metadata:  map[string]any{"reason": reason},
	})
}

func (g *Guard) record(ctx context.Context, event ActivityEvent) {
	event.EventID = uuid.New()
	event.OccurredAt = g.now()
	if err := g.sink.Record(ctx, event); err != nil {
		g.logger.Error("activity sink: %v", err)
	}
}

func mintToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
