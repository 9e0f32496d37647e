// Package influxdb provides InfluxDB connectivity for Sentinel security
// telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, point writing, and health monitoring.
//
// # Purpose
//
// This package records time-series data for fleet dashboards:
//   - Security events (lock transitions, failed attempts, SOS)
//   - Motion magnitudes against the configured threshold
//   - Remote command outcomes and latency
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, deviceID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordCommand("remote-lock", "completed", 120*time.Millisecond)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
package influxdb
