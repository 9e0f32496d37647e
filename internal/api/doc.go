// Package api implements the local diagnostics HTTP API for Gray Logic Sentinel.
//
// This package provides:
//   - Health and security status endpoints
//   - Paginated security event history from the audit store
//   - PIN unlock for the local lock screen
//   - Middleware stack (request ID, logging, recovery, rate limiting)
//
// # Security
//
// The server binds to loopback by default. The unlock endpoint is rate
// limited per client and every wrong PIN counts as a failed attempt, so
// brute forcing the PIN triggers the engine's auto-lock.
//
// # Error Reporting
//
// When Sentry is initialised, panics recovered by the middleware are
// reported through the request's Sentry hub.
package api
