package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
)

// Client is the daemon's link to the platform bridge broker.
//
// Subscriptions live in a route table and are replayed on every
// (re)connect, so sensor feeds and media responses survive a broker
// restart without the bridge noticing.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	routes *routeTable

	online atomic.Bool

	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)

	logMu  sync.RWMutex
	logger Logger
}

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. topic is the concrete topic, with
// wildcards expanded. A returned error is logged; the message is
// acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker configured in cfg, registers the offline will
// on {prefix}/system/status and waits for the first connection.
//
// Later reconnects are handled by paho; each one replays the route table
// and republishes the online status.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		routes: newRouteTable(),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.warn("bridge broker unreachable, reconnecting", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler runs asynchronously; callers may subscribe
	// as soon as Connect returns.
	c.online.Store(true)
	return c, nil
}

// await waits for token and wraps a timeout or failure in kind.
func await(token pahomqtt.Token, timeout time.Duration, kind error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

func (c *Client) linkUp() {
	c.online.Store(true)

	failed := c.routes.replay(func(topic string, r route) error {
		return await(c.paho.Subscribe(topic, r.qos, c.wrapHandler(r.handler)), defaultPublishTimeout, ErrSubscribeFailed)
	})
	if len(failed) > 0 {
		c.warn("bridge subscriptions not restored", "topics", failed)
	}

	c.announce(statusPayload{Status: statusOnline, ClientID: c.cfg.Broker.ClientID})

	c.hooksMu.RLock()
	hook := c.onConnect
	c.hooksMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) linkDown(err error) {
	c.online.Store(false)

	c.hooksMu.RLock()
	hook := c.onDisconnect
	c.hooksMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// announce publishes the retained daemon status and returns the token.
func (c *Client) announce(p statusPayload) pahomqtt.Token {
	return c.paho.Publish(c.topics.SystemStatus(), c.QoS(), true, p.encode())
}

// Close publishes a graceful offline status, so the bridge can tell a
// shutdown from a crash, and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce(statusPayload{
			Status:   statusOffline,
			ClientID: c.cfg.Broker.ClientID,
			Reason:   "graceful_shutdown",
		}).WaitTimeout(defaultPublishTimeout)
	}

	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Topics returns the topic builders for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated to 0..2 by config
}

// IsConnected reports the last known link state.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect, once the
// route table has been replayed.
func (c *Client) SetOnConnect(callback func()) {
	c.hooksMu.Lock()
	c.onConnect = callback
	c.hooksMu.Unlock()
}

// SetOnDisconnect sets a callback run when the link is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hooksMu.Lock()
	c.onDisconnect = callback
	c.hooksMu.Unlock()
}

// SetLogger sets the logger for handler failures and link events.
func (c *Client) SetLogger(logger Logger) {
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

// wrapHandler adapts handler to paho, logging returned errors and
// recovering panics so one bad payload cannot stop the sensor feed.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("bridge message handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.warn("bridge message rejected",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
