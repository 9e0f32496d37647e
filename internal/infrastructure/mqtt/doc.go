// Package mqtt provides the MQTT client the Sentinel daemon uses to talk to
// the device platform bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The platform bridge owns the concrete sensor, camera, speaker and GPS
// APIs. It publishes sensor samples and the current location, and answers
// media requests, over a local broker:
//
//	Sentinel ↔ MQTT Broker ↔ Platform Bridge
//
// Sentinel mirrors its own state back the other way: the lock status is
// retained on {prefix}/security/state and each security event goes out on
// {prefix}/security/events. Subscriptions are kept in a route table and
// replayed after every reconnect because sessions are clean.
//
// # Ordering
//
// Message handlers run concurrently (paho OrderMatters is disabled). A
// sensor handler may block on a media request whose response arrives on
// the same client, which would deadlock with ordered delivery.
//
// # Security Considerations
//
//   - TLS should be enabled when the broker is not on the loopback interface
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().SensorMotion(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("motion: %s", payload)
//	        return nil
//	    })
package mqtt
