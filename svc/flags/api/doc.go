// Package api exposes flag evaluations to client applications over HTTP.
//
// Clients authenticate with the API key of an environment in the
// X-Environment-Key header and read:
//
//   - GET /api/v1/flags: the default state of every feature in the environment.
//   - GET /api/v1/identities/{identityID}/flags: the effective view of an
//     identity, overrides first, then the defaults it does not override.
//   - GET /api/v1/features/{featureID}/value?identity=: one feature, optionally
//     resolved for an identity.
//
// Responses use a {"data", "meta", "error"} envelope. Domain errors map to
// 404 (not found), 409 (conflict), 422 (invalid association), 400 (validation)
// and 503 (store unavailable); a missing or unknown key is 401.
//
// The API is read-only. Mutations go through flags.Service directly or its
// event handler.
package api
