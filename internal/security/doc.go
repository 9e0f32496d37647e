// Package security implements the device lock engine.
//
// The Engine owns the lock posture of the device. Every trigger source
// (failed authentication, motion samples, touch events, hardware events,
// remote commands) funnels into a single idempotent lock entry, so the
// same side-effect bundle runs exactly once per transition:
//
//	alarm + photo capture + security-alert + event record
//
// Unlocking requires either a successful AuthenticationPrompt or an
// authorized remote-unlock command.
//
// State mutation happens under the engine mutex before any I/O, so two
// concurrent triggers cannot both observe the Unlocked state. Cooldowns,
// the alarm expiry and the SOS broadcast loop run on cancellable timers
// from the clock package; each timer carries a generation token and
// becomes a no-op once that token is invalidated.
//
// Settings, the failed-attempt counter, the lock state and the recent
// event ring are persisted as one JSON blob in the settings store after
// every mutation.
package security
