// Package claims serializes resolved role mappings into identity-token
// custom claims and enforces them on HTTP requests.
//
// # Overview
//
// The engine's output for a user on a project is a small, fixed set of
// resolved values: both role names, both hierarchies, the effective
// hierarchy, the enabled permission names, and the tier. Only these resolved
// values go into the token, never the catalogs or the mapping reasoning;
// identity providers cap custom-claims payload size.
//
// Tokens are HMAC-signed JWTs (HS256). Verification is strict: only HS256 is
// accepted and expiry is always enforced.
//
// # Enforcement
//
// Middleware re-derives authorization decisions from claim fields only.
// Handlers gate on hierarchy thresholds or named permission flags, never on
// raw role-name strings, and never on anything the client supplies outside
// the signed token. The default is deny.
package claims
