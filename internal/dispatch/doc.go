// Package dispatch routes remote command envelopes received over the
// command channel to the security engine and maintenance service, and
// reports each command's progress with acknowledgments.
//
// Every command type is registered in one dispatch table with an owner.
// Types owned by this device's security subsystem are executed and always
// terminate in exactly one completed or failed ack. Types owned by other
// collaborators (media capture, location telemetry) are ignored without an
// ack so that only their owner answers.
//
// Delivery is at-least-once: a redelivered commandId is not executed again;
// the cached terminal ack is re-sent instead.
package dispatch
