// Package httpguard wires the state guard into a plain net/http handler
// chain, for deployments where the guard sits in front of an auth provider
// as a reverse proxy and the downstream handler re-reads the request body.
//
// SignIn literally rewrites the sign-in request: the JSON body is replaced
// with the original fields plus the minted "state" token, so whatever reads
// the body next sees the augmented request. Callback consumes the state from
// the query string and exposes the outcome through the request context; by
// default a rejected state is logged and the request still proceeds (the
// downstream provider validates independently), unless Config.RejectInvalid
// turns the guard into a hard gate.
package httpguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tbeaumont/go-stateguard"
)

// DefaultStateParam is the callback query parameter carrying the state.
const DefaultStateParam = "state"

// maxBodyBytes bounds how much of a sign-in body the guard will buffer.
const maxBodyBytes = 1 << 20

type contextKey string

const (
	entryContextKey contextKey = "stateguard.entry"
	stateContextKey contextKey = "stateguard.state"
)

// Config defines the configuration for both wrappers.
type Config struct {
	// Guard is the state guard. Required.
	Guard *stateguard.Guard

	// StateParam is the callback query parameter to read (default: "state")
	StateParam string

	// RejectInvalid makes Callback short-circuit rejected states with 403
	// instead of forwarding the request downstream
	RejectInvalid bool

	// ErrorHandler renders guard failures. Defaults to plain status codes.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	// Logger used for rejection reporting
	Logger stateguard.Logger
}

func (c Config) withDefaults() Config {
	if c.Guard == nil {
		panic("httpguard: Guard is required")
	}
	if c.StateParam == "" {
		c.StateParam = DefaultStateParam
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = defaultErrorHandler
	}
	if c.Logger == nil {
		c.Logger = stateguard.DefaultLogger()
	}
	return c
}

// SignIn wraps next so that sign-in initiation requests reach it with the
// JSON body augmented by a freshly minted state token. Method, headers, and
// URL are untouched.
func SignIn(cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}
			r.Body.Close()

			var payload stateguard.SignInPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			if err := payload.Validate(); err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			token, err := cfg.Guard.BeginFlow(r.Context(), payload.Provider, payload.CallbackURL)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			augmented, err := augmentBody(body, token)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(augmented))
			r.ContentLength = int64(len(augmented))

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), stateContextKey, token),
			))
		})
	}
}

// Callback wraps next with state validation for OAuth callback requests.
func Callback(cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := r.URL.Query().Get(cfg.StateParam)

			entry, err := cfg.Guard.CompleteFlow(r.Context(), state)
			if err != nil {
				if !stateguard.IsRejection(err) {
					cfg.ErrorHandler(w, r, err)
					return
				}

				cfg.Logger.Info("callback state rejected: %v", err)
				if cfg.RejectInvalid {
					cfg.ErrorHandler(w, r, err)
					return
				}

				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), entryContextKey, entry),
			))
		})
	}
}

// EntryFromContext returns the consumed StateEntry stored by Callback.
func EntryFromContext(ctx context.Context) (*stateguard.StateEntry, bool) {
	entry, ok := ctx.Value(entryContextKey).(*stateguard.StateEntry)
	return entry, ok
}

// StateFromContext returns the token minted by SignIn.
func StateFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(stateContextKey).(string)
	return token, ok
}

// augmentBody re-encodes the original JSON object with the state field set,
// preserving any fields the guard does not know about.
func augmentBody(body []byte, token string) ([]byte, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
	}

	fields["state"] = token
	return json.Marshal(fields)
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stateguard.ErrMissingState), errors.Is(err, stateguard.ErrProviderRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, stateguard.ErrStateNotFound), errors.Is(err, stateguard.ErrStateExpired):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, stateguard.ErrTokenMintFailed):
		http.Error(w, "unable to start sign-in", http.StatusInternalServerError)
	default:
		http.Error(w, "bad request", http.StatusBadRequest)
	}
}
