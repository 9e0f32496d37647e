// Package channel implements the persistent command channel to the
// remote dashboard.
//
// A Channel owns one logical connection. It resolves the bearer token and
// device identifier from the settings store (bootstrapping the identifier
// from the dashboard once if it is missing), dials through a Transport,
// and exchanges JSON frames:
//
//	{"event": "device-command", "data": {...}}
//
// Handlers registered with Subscribe live in a registry independent of
// the connection, so they survive reconnects. After every (re)connect the
// channel sends a "subscribe" frame listing the registered events and then
// runs the OnConnect hooks.
//
// Reconnection uses exponential backoff (base 1s, doubling, capped at
// 30s) bounded at 5 attempts; the attempt counter resets on every
// successful connect. While the host is backgrounded a heartbeat frame is
// sent every 30s; returning to the foreground triggers an immediate
// connectivity check.
//
// Send is best-effort: when disconnected it logs a warning and returns
// false. Callers must not assume delivery.
package channel
