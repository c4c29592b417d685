package httpguard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbeaumont/go-stateguard"
)

func TestSignIn_RewritesBodyWithState(t *testing.T) {
	guard := stateguard.New()

	var seen map[string]any
	var seenLength int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &seen))
		seenLength = r.ContentLength

		token, ok := StateFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, seen["state"], token)
	})

	handler := SignIn(Config{Guard: guard})(next)

	body := `{"provider":"github","callbackURL":"https://app.example/dashboard","extra":"kept"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in/social", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "github", seen["provider"])
	assert.Equal(t, "https://app.example/dashboard", seen["callbackURL"])
	assert.Equal(t, "kept", seen["extra"], "unknown fields must survive the rewrite")

	state, ok := seen["state"].(string)
	require.True(t, ok)
	require.NotEmpty(t, state)
	assert.Greater(t, seenLength, int64(0))

	entry, err := guard.CompleteFlow(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "github", entry.Provider)
	assert.Equal(t, "https://app.example/dashboard", entry.CallbackURL)
}

func TestSignIn_RejectsInvalidPayload(t *testing.T) {
	guard := stateguard.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	})
	handler := SignIn(Config{Guard: guard})(next)

	for _, body := range []string{`not-json`, `{"callbackURL":"/next"}`} {
		req := httptest.NewRequest(http.MethodPost, "/auth/sign-in/social", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestCallback_ValidState(t *testing.T) {
	guard := stateguard.New()
	token, err := guard.BeginFlow(context.Background(), "google", "/home")
	require.NoError(t, err)

	var entry *stateguard.StateEntry
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry, _ = EntryFromContext(r.Context())
	})

	handler := Callback(Config{Guard: guard})(next)

	req := httptest.NewRequest(http.MethodGet, "/callback/google?code=abc&state="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, entry)
	assert.Equal(t, "google", entry.Provider)
	assert.Equal(t, "/home", entry.CallbackURL)
}

func TestCallback_AdvisoryModeForwardsRejections(t *testing.T) {
	guard := stateguard.New()

	nextRan := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextRan = true
		_, ok := EntryFromContext(r.Context())
		assert.False(t, ok)
	})

	handler := Callback(Config{Guard: guard})(next)

	for _, target := range []string{"/callback/google", "/callback/google?state=bogus"} {
		nextRan = false
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "target %s", target)
		assert.True(t, nextRan, "advisory mode must forward %s", target)
	}
}

func TestCallback_RejectInvalidGates(t *testing.T) {
	guard := stateguard.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	})

	handler := Callback(Config{Guard: guard, RejectInvalid: true})(next)

	req := httptest.NewRequest(http.MethodGet, "/callback/google?state=bogus", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/callback/google", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_SingleUse(t *testing.T) {
	guard := stateguard.New()
	token, err := guard.BeginFlow(context.Background(), "github", "/")
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := Callback(Config{Guard: guard, RejectInvalid: true})(next)

	req := httptest.NewRequest(http.MethodGet, "/callback/github?state="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/callback/github?state="+token, nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConfigRequiresGuard(t *testing.T) {
	assert.Panics(t, func() {
		SignIn(Config{})
	})
}
