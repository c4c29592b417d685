package stateguard

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// StateEntry is the server-held record for one in-flight OAuth sign-in
// attempt, keyed by its state token.
type StateEntry struct {
	// Token is the opaque random identifier round-tripped through the
	// provider as the OAuth "state" parameter.
	Token string

	// Provider names the OAuth provider this flow targets, e.g. "github".
	Provider string

	// CallbackURL is where the flow returns the caller after a successful
	// authentication. The guard forwards it unchanged and never validates
	// its shape.
	CallbackURL string

	// CreatedAt is when the flow was initiated.
	CreatedAt time.Time
}

// ExpiresAt returns the instant the entry stops being valid for the given
// threshold.
func (e StateEntry) ExpiresAt(threshold time.Duration) time.Time {
	return e.CreatedAt.Add(threshold)
}

// SignInPayload is the JSON body of a social sign-in initiation request.
type SignInPayload struct {
	Provider    string `json:"provider"`
	CallbackURL string `json:"callbackURL"`
}

// Validate will run validation rules
func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Provider,
			validation.Required,
		),
	)
}

// AugmentedPayload is the sign-in payload rewritten by the interception
// layer: the original body plus the minted state token.
type AugmentedPayload struct {
	SignInPayload
	State string `json:"state"`
}
