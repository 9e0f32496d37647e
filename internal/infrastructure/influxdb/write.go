package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSecurityEvent = "security_events"
	MeasurementMotion        = "motion"
	MeasurementCommand       = "commands"
)

const tagDeviceID = "device_id"

// WriteSecurityEvent records one security engine event.
//
// The event type is a tag. Scalar payload values become fields; nested
// values such as a location are skipped to keep series cardinality
// bounded.
//
//	client.WriteSecurityEvent("auto_lock_triggered", map[string]any{"attempts": 3}, ev.Timestamp)
func (c *Client) WriteSecurityEvent(eventType string, payload map[string]any, timestamp time.Time) {
	fields := map[string]any{"count": 1}
	for key, value := range payload {
		switch v := value.(type) {
		case string, bool, float64, float32, int, int64, int32, uint, uint64:
			fields[key] = v
		}
	}
	c.write(MeasurementSecurityEvent, map[string]string{"type": eventType}, fields, timestamp)
}

// RecordMotion writes one accelerometer magnitude together with the
// threshold it was compared against. It implements
// security.MotionRecorder.
func (c *Client) RecordMotion(magnitude, threshold float64) {
	c.write(MeasurementMotion, nil, map[string]any{
		"magnitude": magnitude,
		"threshold": threshold,
		"exceeded":  magnitude > threshold,
	}, c.now())
}

// RecordCommand writes the terminal outcome of a remote command. It
// implements dispatch.OutcomeRecorder.
func (c *Client) RecordCommand(commandType string, status string, duration time.Duration) {
	c.write(MeasurementCommand,
		map[string]string{"command": commandType, "status": status},
		map[string]any{"duration_ms": float64(duration.Microseconds()) / 1000},
		c.now(),
	)
}

// write tags the point with the device and queues it. It is a no-op
// after Close.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	tagged := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		tagged[k] = v
	}
	if c.deviceID != "" {
		tagged[tagDeviceID] = c.deviceID
	}
	c.writer.WritePoint(write.NewPoint(measurement, tagged, fields, timestamp))
}
