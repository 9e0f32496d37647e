// Package platform connects the security engine to the device platform
// bridge over MQTT.
//
// The platform bridge process owns the concrete sensor, camera, speaker
// and GPS APIs. This package adapts its MQTT topics to the engine's
// collaborator interfaces:
//
//   - SensorFeed: motion, touch and hardware topics fanned out to local
//     subscribers
//   - MediaActuator: request/response over media/request/{id} and
//     media/response/{id}, with a timeout
//   - LocationProvider: the retained location topic, cached
//
// Sensor subscriptions are local: closing one removes the handler from
// the fanout without touching the broker subscription, so it is safe to
// close from inside a handler.
package platform
