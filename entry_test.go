package stateguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignInPayload_Validate(t *testing.T) {
	valid := SignInPayload{Provider: "github", CallbackURL: "https://app.example/"}
	assert.NoError(t, valid.Validate())

	// callback URL is opaque, only the provider is required
	assert.NoError(t, SignInPayload{Provider: "google"}.Validate())

	assert.Error(t, SignInPayload{CallbackURL: "https://app.example/"}.Validate())
}

func TestStateEntry_ExpiresAt(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := StateEntry{CreatedAt: created}

	assert.Equal(t, created.Add(10*time.Minute), entry.ExpiresAt(10*time.Minute))
}
