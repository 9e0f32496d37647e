// Package auth provides the credentials used by the Sentinel daemon.
//
// It covers two things:
//   - The local unlock PIN, stored as an Argon2id PHC string (OWASP 2025
//     recommendation) and checked in constant time
//   - Inspection of the dashboard bearer token, so an expired JWT is not
//     presented to the dashboard
//
// The bearer token is issued and signed by the dashboard. The daemon never
// holds the signing key, so token inspection reads claims without
// verifying the signature; the dashboard remains the authority.
package auth
