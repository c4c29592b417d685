// Package stateguard protects OAuth redirect sign-in flows against CSRF and
// response substitution by binding each outbound authorization request to a
// server-held, single-use, time-limited state token.
//
// Flow lifecycle:
//   - Guard.BeginFlow mints a cryptographically random token and records it
//     together with the target provider and the caller's callback URL. The
//     token is embedded into the outbound request as the standard OAuth
//     "state" parameter.
//   - Guard.CompleteFlow consumes the token returned on the provider
//     callback. A token validates at most once; duplicate, expired, or
//     never-issued tokens are rejected with a typed sentinel the policy
//     layer can act on.
//   - A background sweep reclaims entries from abandoned flows so the store
//     stays bounded and a leaked token's validity window stays short.
//
// Stores:
//   - The default MemoryStore is process-local: a state minted on one
//     instance is invisible to another. Deployments that scale horizontally
//     should plug in the shared store from store/bunstore instead.
//
// HTTP integration lives under middleware/: flowguard for go-router stacks
// and httpguard for plain net/http, both keeping this package free of any
// framework dependency.
package stateguard
