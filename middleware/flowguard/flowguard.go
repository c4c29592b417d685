// Package flowguard wires the state guard into a go-router middleware chain
// as the two interception points around an external auth provider pipeline:
// sign-in initiation and the OAuth callback.
//
// The sign-in middleware binds the JSON sign-in body, mints a state token,
// and passes the augmented payload downstream via request locals. The
// callback middleware validates and consumes the state from the callback
// query string. By default a rejected state is logged and the request still
// proceeds, matching deployments where the downstream provider performs its
// own independent validation; set Config.RejectInvalid to make the guard a
// hard gate instead.
package flowguard

import (
	"errors"

	"github.com/goliatone/go-router"
	"github.com/tbeaumont/go-stateguard"
)

// DefaultStateContextKey is the locals key holding the minted state token.
const DefaultStateContextKey = "oauth_state"

// DefaultEntryContextKey is the locals key holding the consumed StateEntry.
const DefaultEntryContextKey = "oauth_state_entry"

// DefaultPayloadContextKey is the locals key holding the augmented sign-in
// payload for the downstream provider handler.
const DefaultPayloadContextKey = "oauth_signin_payload"

// DefaultStateParam is the callback query parameter carrying the state.
const DefaultStateParam = "state"

// Config defines the configuration for the flow guard middleware.
type Config struct {
	// Guard is the state guard. Required.
	Guard *stateguard.Guard

	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// StateContextKey is where the sign-in middleware stores the minted token
	StateContextKey string

	// EntryContextKey is where the callback middleware stores the consumed entry
	EntryContextKey string

	// PayloadContextKey is where the sign-in middleware stores the augmented payload
	PayloadContextKey string

	// StateParam is the callback query parameter to read (default: "state")
	StateParam string

	// RejectInvalid makes the callback middleware short-circuit rejected
	// states instead of passing the request through for the downstream
	// provider to validate on its own
	RejectInvalid bool

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc

	// Logger used for rejection reporting
	Logger stateguard.Logger
}

// SignIn returns middleware for the social sign-in initiation route. It
// expects a JSON body with at least a provider and an optional callbackURL,
// mints a state token bound to them, and forwards the augmented payload via
// locals.
func SignIn(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			payload := new(stateguard.SignInPayload)
			if err := ctx.Bind(payload); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := payload.Validate(); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			token, err := cfg.Guard.BeginFlow(ctx.Context(), payload.Provider, payload.CallbackURL)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.StateContextKey, token)
			ctx.Locals(cfg.PayloadContextKey, stateguard.AugmentedPayload{
				SignInPayload: *payload,
				State:         token,
			})

			return cfg.SuccessHandler(ctx)
		}
	}
}

// Callback returns middleware for the OAuth callback routes. It consumes the
// state parameter from the query string and reports the outcome through
// locals; the policy on rejection is driven by Config.RejectInvalid.
func Callback(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			state := ctx.Query(cfg.StateParam, "")

			entry, err := cfg.Guard.CompleteFlow(ctx.Context(), state)
			if err != nil {
				if !stateguard.IsRejection(err) {
					return cfg.ErrorHandler(ctx, err)
				}

				cfg.Logger.Info("callback state rejected: %v", err)
				if cfg.RejectInvalid {
					return cfg.ErrorHandler(ctx, err)
				}

				// advisory mode: the downstream provider validates on its own
				return cfg.SuccessHandler(ctx)
			}

			ctx.Locals(cfg.EntryContextKey, entry)

			return cfg.SuccessHandler(ctx)
		}
	}
}

// EntryFromContext returns the consumed StateEntry stored by the callback
// middleware, if any.
func EntryFromContext(ctx router.Context, key ...string) (*stateguard.StateEntry, bool) {
	k := DefaultEntryContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	entry, ok := ctx.Locals(k).(*stateguard.StateEntry)
	return entry, ok
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Guard == nil {
		panic("flowguard: Guard is required")
	}

	if cfg.StateContextKey == "" {
		cfg.StateContextKey = DefaultStateContextKey
	}

	if cfg.EntryContextKey == "" {
		cfg.EntryContextKey = DefaultEntryContextKey
	}

	if cfg.PayloadContextKey == "" {
		cfg.PayloadContextKey = DefaultPayloadContextKey
	}

	if cfg.StateParam == "" {
		cfg.StateParam = DefaultStateParam
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = stateguard.DefaultLogger()
	}

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch {
	case errors.Is(err, stateguard.ErrMissingState):
		return ctx.Status(router.StatusBadRequest).SendString("missing oauth state")
	case errors.Is(err, stateguard.ErrStateNotFound), errors.Is(err, stateguard.ErrStateExpired):
		return ctx.Status(router.StatusForbidden).SendString("invalid oauth state")
	case errors.Is(err, stateguard.ErrProviderRequired):
		return ctx.Status(router.StatusBadRequest).SendString("provider is required")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("oauth state error")
	}
}
