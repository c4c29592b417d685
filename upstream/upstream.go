// Package upstream holds the edge to the external auth provider
// collaborator: per-provider OAuth2 client configuration and the
// authorization URL construction that carries the guard's state token.
// Protocol details (code exchange, token handling) stay delegated to
// golang.org/x/oauth2; nothing here reimplements them.
package upstream

import (
	"context"
	"fmt"

	"github.com/tbeaumont/go-stateguard"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Registry maps provider names to their OAuth2 client configuration.
type Registry struct {
	providers map[string]*oauth2.Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*oauth2.Config),
	}
}

// Register adds or replaces a provider configuration.
func (r *Registry) Register(name string, cfg *oauth2.Config) {
	if name == "" || cfg == nil {
		return
	}
	r.providers[name] = cfg
}

// RegisterGitHub registers a GitHub provider with the standard endpoint.
func (r *Registry) RegisterGitHub(clientID, clientSecret, redirectURL string, scopes ...string) {
	if len(scopes) == 0 {
		scopes = []string{"user:email", "read:user"}
	}
	r.Register("github", &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     github.Endpoint,
	})
}

// RegisterGoogle registers a Google provider with the standard endpoint.
func (r *Registry) RegisterGoogle(clientID, clientSecret, redirectURL string, scopes ...string) {
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	r.Register("google", &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	})
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Config returns the configuration for a provider.
func (r *Registry) Config(name string) (*oauth2.Config, error) {
	cfg, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stateguard.ErrProviderNotFound, name)
	}
	return cfg, nil
}

// AuthCodeURL builds the provider authorization URL carrying the given state
// token, the outbound half of the round trip the guard validates on the
// callback.
func (r *Registry) AuthCodeURL(provider, state string, opts ...oauth2.AuthCodeOption) (string, error) {
	cfg, err := r.Config(provider)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// Exchange trades an authorization code for a token using the provider's
// configuration.
func (r *Registry) Exchange(ctx context.Context, provider, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	cfg, err := r.Config(provider)
	if err != nil {
		return nil, err
	}
	return cfg.Exchange(ctx, code, opts...)
}
