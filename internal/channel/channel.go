package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/auth"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

// Frame events used by the channel itself.
const (
	EventSubscribe = "subscribe"
	EventHeartbeat = "heartbeat"
)

// Default channel settings.
const (
	DefaultBaseDelay         = time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultMaxAttempts       = 5
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultDialTimeout       = 15 * time.Second
)

// Handler receives the data of one inbound event.
type Handler = func(ctx context.Context, data json.RawMessage)

// ConnectHook runs after every successful (re)connect.
type ConnectHook = func(ctx context.Context)

// State is the connection state.
type State int

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Frame is the wire envelope.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Logger defines the logging interface used by the Channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config contains the channel settings.
type Config struct {
	// URL is the dashboard websocket endpoint.
	URL string

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	DialTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(DefaultMaxDelay, c.BaseDelay)
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return c
}

// Deps are the collaborators of the Channel. Transport and Store are
// required.
type Deps struct {
	Transport    Transport
	Store        store.Store
	Bootstrapper Bootstrapper
	Clock        clock.Clock
	Logger       Logger
}

type registration struct {
	event   string
	handler Handler
}

// Channel is the command channel to the dashboard.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Channel struct {
	cfg       Config
	transport Transport
	store     store.Store
	bootstrap Bootstrapper
	clock     clock.Clock
	logger    Logger

	runCtx    context.Context
	runCancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     Conn
	connGen  uint64
	deviceID string
	closed   bool

	attempts       int
	reconnectGen   uint64
	reconnectTimer *clock.Timer

	background     bool
	heartbeatGen   uint64
	heartbeatTimer *clock.Timer

	handlers map[uint64]registration
	nextID   uint64
	hooks    []ConnectHook

	// writeMu serialises frame writes on the live connection.
	writeMu sync.Mutex
}

// New creates a disconnected channel. Call Connect to dial.
func New(cfg Config, deps Deps) *Channel {
	c := &Channel{
		cfg:       cfg.withDefaults(),
		transport: deps.Transport,
		store:     deps.Store,
		bootstrap: deps.Bootstrapper,
		clock:     deps.Clock,
		logger:    deps.Logger,
		handlers:  make(map[uint64]registration),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	return c
}

// Connect dials the dashboard. It resets the reconnect attempt counter.
//
// Credential errors (ErrNoToken, ErrTokenExpired, ErrNoDeviceID) are
// returned without scheduling a retry; transport errors are returned and
// a backoff reconnect is scheduled.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.attempts = 0
	c.cancelReconnectLocked()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if err := c.dial(dialCtx); err != nil {
		c.setDisconnected()
		if !isCredentialError(err) && !errors.Is(err, ErrClosed) {
			c.scheduleReconnect()
		}
		return err
	}
	return nil
}

// Close disconnects deliberately. No reconnect is scheduled afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = Disconnected
	conn := c.conn
	c.conn = nil
	c.connGen++
	c.cancelReconnectLocked()
	c.stopHeartbeatLocked()
	c.mu.Unlock()

	c.runCancel()
	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("closing connection: %w", err)
		}
	}
	c.logger.Info("channel closed")
	return nil
}

// State returns the connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is connected.
func (c *Channel) IsConnected() bool {
	return c.State() == Connected
}

// Attempts returns the reconnect attempts made since the last successful
// connect.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// DeviceID returns the device identifier used for the last connect.
func (c *Channel) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// Subscribe registers handler for event and returns an id for
// Unsubscribe. Registrations survive reconnects.
func (c *Channel) Subscribe(event string, handler Handler) uint64 {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = registration{event: event, handler: handler}
	connected := c.state == Connected
	c.mu.Unlock()

	if connected {
		c.sendFrame(c.runCtx, EventSubscribe, map[string]any{"events": []string{event}})
	}
	return id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (c *Channel) Unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
}

// OnConnect registers a hook run after every successful (re)connect.
func (c *Channel) OnConnect(hook ConnectHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Send delivers an event best-effort. It returns false, after logging a
// warning, when the channel is not connected or the write fails.
func (c *Channel) Send(ctx context.Context, event string, payload any) bool {
	return c.sendFrame(ctx, event, payload)
}

// SetBackground tells the channel whether the host is backgrounded.
// Backgrounding starts the heartbeat; returning to the foreground stops
// it and checks connectivity immediately.
func (c *Channel) SetBackground(ctx context.Context, background bool) {
	c.mu.Lock()
	if c.closed || c.background == background {
		c.mu.Unlock()
		return
	}
	c.background = background
	if background {
		c.startHeartbeatLocked()
	} else {
		c.stopHeartbeatLocked()
	}
	c.mu.Unlock()

	c.logger.Debug("channel background mode changed", "background", background)
	if !background {
		if err := c.CheckConnectivity(ctx); err != nil {
			c.logger.Warn("connectivity check failed", "error", err)
		}
	}
}

// CheckConnectivity verifies the connection now instead of waiting for
// the next heartbeat or backoff timer. A connected channel sends a
// heartbeat (a failed write triggers the reconnect path); a disconnected
// one reconnects with a fresh attempt budget.
func (c *Channel) CheckConnectivity(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case Connected:
		if !c.sendHeartbeat(ctx) {
			return ErrNotConnected
		}
		return nil
	case Connecting:
		return nil
	default:
		return c.Connect(ctx)
	}
}

// dial resolves credentials, disposes any stale connection and opens a
// new one.
func (c *Channel) dial(ctx context.Context) error {
	token, deviceID, err := c.credentials(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	stale := c.conn
	c.conn = nil
	c.connGen++
	c.mu.Unlock()
	if stale != nil {
		stale.Close() //nolint:errcheck // stale handle, already failed
	}

	target, err := withDeviceID(c.cfg.URL, deviceID)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Device-Id", deviceID)

	conn, err := c.transport.Dial(ctx, target, header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close() //nolint:errcheck // closed while dialling
		return ErrClosed
	}
	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.state = Connected
	c.attempts = 0
	c.deviceID = deviceID
	events := c.eventNamesLocked()
	hooks := append([]ConnectHook(nil), c.hooks...)
	c.mu.Unlock()

	c.logger.Info("channel connected", "device_id", deviceID)

	go c.readLoop(conn, gen)

	c.sendFrame(c.runCtx, EventSubscribe, map[string]any{
		"events":   events,
		"deviceId": deviceID,
	})
	for _, hook := range hooks {
		c.runHook(hook)
	}
	return nil
}

// credentials reads the bearer token and device id from the store,
// bootstrapping the device id once when it is absent.
func (c *Channel) credentials(ctx context.Context) (token, deviceID string, err error) {
	token, err = store.GetString(ctx, c.store, store.KeyAuthToken)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && token == ""):
		return "", "", ErrNoToken
	case err != nil:
		return "", "", fmt.Errorf("reading auth token: %w", err)
	}

	if auth.TokenExpired(token, c.clock.Now()) {
		return "", "", ErrTokenExpired
	}

	deviceID, err = store.GetString(ctx, c.store, store.KeyDeviceID)
	switch {
	case err == nil && deviceID != "":
		return token, deviceID, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", "", fmt.Errorf("reading device id: %w", err)
	}

	if c.bootstrap == nil {
		return "", "", ErrNoDeviceID
	}
	deviceID, err = c.bootstrap.FetchDeviceID(ctx, token)
	if err != nil {
		return "", "", err
	}
	if err := c.store.Set(ctx, store.KeyDeviceID, []byte(deviceID)); err != nil {
		c.logger.Warn("storing bootstrapped device id failed", "error", err)
	}
	c.logger.Info("device id bootstrapped", "device_id", deviceID)
	return token, deviceID, nil
}

// readLoop delivers inbound frames until the connection fails.
func (c *Channel) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.Receive(c.runCtx)
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(frame)
	}
}

// dispatch calls every handler registered for the frame's event.
func (c *Channel) dispatch(frame Frame) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.handlers))
	for id, reg := range c.handlers {
		if reg.event == frame.Event {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.handlers[id].handler)
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("no handler for event", "event", frame.Event)
		return
	}
	for _, handler := range handlers {
		c.runHandler(frame.Event, handler, frame.Data)
	}
}

// runHandler calls a handler with panic recovery.
func (c *Channel) runHandler(event string, handler Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("channel handler panic recovered",
				"event", event,
				"panic", r,
			)
		}
	}()
	handler(c.runCtx, data)
}

// runHook calls an OnConnect hook with panic recovery.
func (c *Channel) runHook(hook ConnectHook) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("channel connect hook panic recovered", "panic", r)
		}
	}()
	hook(c.runCtx)
}

// handleDisconnect tears down the connection identified by gen and
// schedules a reconnect. Stale generations are ignored.
func (c *Channel) handleDisconnect(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.connGen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.connGen++
	c.state = Disconnected
	closed := c.closed
	c.mu.Unlock()

	conn.Close() //nolint:errcheck // connection already failed
	if closed {
		return
	}

	c.logger.Warn("channel disconnected", "error", cause)
	c.scheduleReconnect()
}

// scheduleReconnect arms the next backoff attempt unless one is pending
// or the attempt budget is spent.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil || c.state != Disconnected {
		return
	}
	if c.attempts >= c.cfg.MaxAttempts {
		c.logger.Warn("reconnect attempts exhausted, waiting for foreground or explicit connect",
			"attempts", c.attempts,
		)
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := backoffDelay(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
	c.reconnectGen++
	gen := c.reconnectGen
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.reconnect(gen) })

	c.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// reconnect runs one backoff attempt.
func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.reconnectGen {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	if c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	attempt := c.attempts
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.DialTimeout)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
		c.setDisconnected()
		if !isCredentialError(err) {
			c.scheduleReconnect()
		}
	}
}

// cancelReconnectLocked drops a pending reconnect. Caller holds c.mu.
func (c *Channel) cancelReconnectLocked() {
	c.reconnectGen++
	c.reconnectTimer.Stop()
	c.reconnectTimer = nil
}

func (c *Channel) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.state = Disconnected
	}
}

// startHeartbeatLocked arms the heartbeat. Caller holds c.mu.
func (c *Channel) startHeartbeatLocked() {
	c.heartbeatGen++
	gen := c.heartbeatGen
	c.heartbeatTimer.Stop()
	c.heartbeatTimer = c.clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeat(gen) })
}

// stopHeartbeatLocked cancels the heartbeat. Caller holds c.mu.
func (c *Channel) stopHeartbeatLocked() {
	c.heartbeatGen++
	c.heartbeatTimer.Stop()
	c.heartbeatTimer = nil
}

// heartbeat sends one keep-alive and re-arms itself while backgrounded.
func (c *Channel) heartbeat(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.background || gen != c.heartbeatGen {
		c.mu.Unlock()
		return
	}
	connected := c.state == Connected
	c.mu.Unlock()

	if connected {
		c.sendHeartbeat(c.runCtx)
	} else {
		c.scheduleReconnect()
	}

	c.mu.Lock()
	if gen == c.heartbeatGen && !c.closed {
		c.heartbeatTimer = c.clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeat(gen) })
	}
	c.mu.Unlock()
}

func (c *Channel) sendHeartbeat(ctx context.Context) bool {
	return c.sendFrame(ctx, EventHeartbeat, map[string]any{
		"timestamp": c.clock.Now().UnixMilli(),
	})
}

// sendFrame encodes and writes one frame. A write error tears the
// connection down.
func (c *Channel) sendFrame(ctx context.Context, event string, payload any) bool {
	c.mu.Lock()
	conn, gen, state := c.conn, c.connGen, c.state
	c.mu.Unlock()

	if conn == nil || state != Connected {
		c.logger.Warn("channel not connected, dropping event", "event", event)
		return false
	}

	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.Error("encoding event payload", "event", event, "error", err)
			return false
		}
		frame.Data = data
	}
	encoded, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("encoding frame", "event", event, "error", err)
		return false
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	c.writeMu.Lock()
	err = conn.Send(writeCtx, encoded)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("channel write failed", "event", event, "error", err)
		c.handleDisconnect(gen, err)
		return false
	}
	return true
}

// eventNamesLocked returns the distinct registered event names, sorted.
// Caller holds c.mu.
func (c *Channel) eventNamesLocked() []string {
	seen := make(map[string]bool, len(c.handlers))
	names := make([]string, 0, len(c.handlers))
	for _, reg := range c.handlers {
		if !seen[reg.event] {
			seen[reg.event] = true
			names = append(names, reg.event)
		}
	}
	sort.Strings(names)
	return names
}

// withDeviceID appends the device id as a query parameter.
func withDeviceID(rawURL, deviceID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing channel url: %w", err)
	}
	q := u.Query()
	q.Set("deviceId", deviceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isCredentialError(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNoDeviceID)
}
