package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Batching used when the configuration leaves a value unset.
	defaultBatchSize    = 100
	defaultFlushSeconds = 10
)

// Client writes security telemetry to an InfluxDB v2 bucket. Every point
// carries a device_id tag so one fleet bucket can be sliced per device.
//
// Writes go through the library's non-blocking batch API and become
// no-ops after Close, so telemetry never delays the security engine.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writer   pointWriter
	deviceID string
	now      func() time.Time

	open atomic.Bool

	hookMu  sync.RWMutex
	onError func(err error)
}

// pointWriter is the part of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Connect pings the server configured in cfg and returns a client whose
// points are tagged with deviceID. It returns ErrDisabled when telemetry
// is switched off.
func Connect(cfg config.InfluxDBConfig, deviceID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := newClient(writeAPI, deviceID)
	c.client = client
	go c.forwardErrors(writeAPI.Errors())
	return c, nil
}

// writeOptions maps the batching settings, defaulting unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushSeconds
	}
	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushSeconds) * 1000)
}

func newClient(w pointWriter, deviceID string) *Client {
	c := &Client{writer: w, deviceID: deviceID, now: time.Now}
	c.open.Store(true)
	return c
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return errors.New("server not healthy")
	}
	return nil
}

// forwardErrors hands asynchronous batch failures to the error hook
// until the write API closes errs.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.hookMu.RLock()
		hook := c.onError
		c.hookMu.RUnlock()
		if hook != nil {
			hook(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes queued points and releases the client. Later writes are
// dropped. Close is idempotent.
func (c *Client) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	if c.writer != nil {
		c.writer.Flush()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client accepts writes.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError sets the hook that receives asynchronous write failures,
// wrapped in ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.hookMu.Lock()
	c.onError = callback
	c.hookMu.Unlock()
}
