package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// Bridge defaults.
const (
	// DefaultMediaTimeout bounds a media request beyond its own duration.
	DefaultMediaTimeout = 10 * time.Second

	defaultQoS = 1
)

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it; tests use a fake.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge. MQTT is required.
type Options struct {
	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte

	// MediaTimeout is added to a request's own duration (video length,
	// alarm length) to get its deadline.
	MediaTimeout time.Duration

	// LocationMaxAge rejects cached locations older than this. Zero
	// accepts any age.
	LocationMaxAge time.Duration

	Clock  clock.Clock
	Logger Logger
}

// Bridge adapts the platform bridge's MQTT topics to the security engine's
// SensorFeed, MediaActuator and LocationProvider interfaces, and mirrors
// the engine's status and events back to the platform.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt           MQTTClient
	topics         mqtt.Topics
	qos            byte
	mediaTimeout   time.Duration
	locationMaxAge time.Duration
	clock          clock.Clock
	logger         Logger

	motion   fanout[security.MotionSample]
	touch    fanout[struct{}]
	hardware fanout[string]

	pendingMu sync.Mutex
	pending   map[string]chan MediaResponse

	locationMu   sync.RWMutex
	location     security.Location
	hasLocation  bool
	locationSeen time.Time

	stateMu sync.Mutex
	running bool
	done    chan struct{}
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) *Bridge {
	b := &Bridge{
		mqtt:           opts.MQTT,
		topics:         opts.Topics,
		qos:            opts.QoS,
		mediaTimeout:   opts.MediaTimeout,
		locationMaxAge: opts.LocationMaxAge,
		clock:          opts.Clock,
		logger:         opts.Logger,
		pending:        make(map[string]chan MediaResponse),
	}
	if b.qos == 0 {
		b.qos = defaultQoS
	}
	if b.mediaTimeout <= 0 {
		b.mediaTimeout = DefaultMediaTimeout
	}
	if b.clock == nil {
		b.clock = clock.Real()
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b
}

// Start subscribes to the sensor, media response and location topics.
func (b *Bridge) Start(_ context.Context) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.running {
		return nil
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.SensorMotion(), b.handleMotion},
		{b.topics.SensorTouch(), b.handleTouch},
		{b.topics.SensorHardware(), b.handleHardware},
		{b.topics.AllMediaResponses(), b.handleMediaResponse},
		{b.topics.Location(), b.handleLocation},
	}
	for i, sub := range subs {
		if err := b.mqtt.Subscribe(sub.topic, b.qos, sub.handler); err != nil {
			for _, done := range subs[:i] {
				b.mqtt.Unsubscribe(done.topic) //nolint:errcheck // rolling back a failed start
			}
			return fmt.Errorf("subscribing to %s: %w", sub.topic, err)
		}
	}

	b.running = true
	b.done = make(chan struct{})
	b.logger.Info("platform bridge started", "prefix", b.topics.Prefix())
	return nil
}

// Stop unsubscribes and fails any outstanding media requests.
func (b *Bridge) Stop() {
	b.stateMu.Lock()
	if !b.running {
		b.stateMu.Unlock()
		return
	}
	b.running = false
	close(b.done)
	b.stateMu.Unlock()

	for _, topic := range []string{
		b.topics.SensorMotion(),
		b.topics.SensorTouch(),
		b.topics.SensorHardware(),
		b.topics.AllMediaResponses(),
		b.topics.Location(),
	} {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	b.logger.Info("platform bridge stopped")
}

// doneChan returns the stop signal, or nil when not running.
func (b *Bridge) doneChan() (<-chan struct{}, bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.done, b.running
}

// =============================================================================
// SensorFeed
// =============================================================================

// SubscribeMotion registers handler for accelerometer samples.
func (b *Bridge) SubscribeMotion(handler func(security.MotionSample)) (security.Subscription, error) {
	return b.motion.add(handler), nil
}

// SubscribeTouch registers handler for touch events.
func (b *Bridge) SubscribeTouch(handler func()) (security.Subscription, error) {
	return b.touch.add(func(struct{}) { handler() }), nil
}

// SubscribeHardware registers handler for hardware triggers.
func (b *Bridge) SubscribeHardware(handler func(kind string)) (security.Subscription, error) {
	return b.hardware.add(handler), nil
}

func (b *Bridge) handleMotion(_ string, payload []byte) error {
	var msg MotionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding motion sample: %w", err)
	}
	b.motion.emit(security.MotionSample{X: msg.X, Y: msg.Y, Z: msg.Z})
	return nil
}

func (b *Bridge) handleTouch(_ string, _ []byte) error {
	b.touch.emit(struct{}{})
	return nil
}

func (b *Bridge) handleHardware(_ string, payload []byte) error {
	var msg HardwareMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding hardware trigger: %w", err)
	}
	if msg.Kind == "" {
		return errors.New("hardware trigger without kind")
	}
	b.hardware.emit(msg.Kind)
	return nil
}

// =============================================================================
// LocationProvider
// =============================================================================

// CurrentLocation returns the last location the platform published.
func (b *Bridge) CurrentLocation(_ context.Context) (security.Location, error) {
	b.locationMu.RLock()
	defer b.locationMu.RUnlock()

	if !b.hasLocation {
		return security.Location{}, ErrNoLocation
	}
	if b.locationMaxAge > 0 && b.clock.Now().Sub(b.locationSeen) > b.locationMaxAge {
		return security.Location{}, ErrStaleLocation
	}
	return b.location, nil
}

func (b *Bridge) handleLocation(_ string, payload []byte) error {
	var msg LocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding location: %w", err)
	}
	if msg.Latitude < -90 || msg.Latitude > 90 || msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("location out of range: %v,%v", msg.Latitude, msg.Longitude)
	}

	b.locationMu.Lock()
	b.location = security.Location{Latitude: msg.Latitude, Longitude: msg.Longitude}
	b.hasLocation = true
	b.locationSeen = b.clock.Now()
	b.locationMu.Unlock()
	return nil
}

// =============================================================================
// MediaActuator
// =============================================================================

// CapturePhoto asks the platform for a photo and returns its reference.
func (b *Bridge) CapturePhoto(ctx context.Context) (string, error) {
	resp, err := b.request(ctx, ActionCapturePhoto, 0)
	if err != nil {
		return "", err
	}
	return resp.Ref, nil
}

// CaptureVideo asks the platform to record for d and returns the clip reference.
func (b *Bridge) CaptureVideo(ctx context.Context, d time.Duration) (string, error) {
	resp, err := b.request(ctx, ActionCaptureVideo, d)
	if err != nil {
		return "", err
	}
	return resp.Ref, nil
}

// StartAlarm sounds the alarm for d. The platform answers once the alarm
// is playing, not when it ends.
func (b *Bridge) StartAlarm(ctx context.Context, d time.Duration) error {
	_, err := b.requestWithin(ctx, ActionStartAlarm, d, b.mediaTimeout)
	return err
}

// StopAlarm silences the alarm.
func (b *Bridge) StopAlarm(ctx context.Context) error {
	_, err := b.request(ctx, ActionStopAlarm, 0)
	return err
}

// request publishes a media request and waits for its response. The
// deadline is the media timeout plus d.
func (b *Bridge) request(ctx context.Context, action string, d time.Duration) (MediaResponse, error) {
	return b.requestWithin(ctx, action, d, b.mediaTimeout+d)
}

func (b *Bridge) requestWithin(ctx context.Context, action string, d, timeout time.Duration) (MediaResponse, error) {
	done, running := b.doneChan()
	if !running {
		return MediaResponse{}, ErrNotStarted
	}

	id := uuid.NewString()
	ch := make(chan MediaResponse, 1)

	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(newMediaRequest(id, action, d, b.clock.Now()))
	if err != nil {
		return MediaResponse{}, fmt.Errorf("encoding media request: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.MediaRequest(id), payload, b.qos, false); err != nil {
		return MediaResponse{}, fmt.Errorf("publishing media request: %w", err)
	}

	var resp MediaResponse
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return MediaResponse{}, ctx.Err()
	case <-b.clock.After(timeout):
		b.logger.Warn("media request timed out", "action", action, "request_id", id)
		return MediaResponse{}, fmt.Errorf("%w: %s", ErrMediaTimeout, action)
	case <-done:
		return MediaResponse{}, ErrNotStarted
	}

	if !resp.Success {
		if resp.Code == errPermissionDenied {
			return resp, fmt.Errorf("%w: %s", security.ErrPermissionDenied, action)
		}
		return resp, fmt.Errorf("%w: %s: %s", ErrMediaFailed, action, resp.Error)
	}
	return resp, nil
}

func (b *Bridge) handleMediaResponse(topic string, payload []byte) error {
	id := b.topics.RequestID(topic)
	if id == "" {
		return fmt.Errorf("unexpected media response topic %q", topic)
	}

	var resp MediaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding media response: %w", err)
	}
	if resp.RequestID == "" {
		resp.RequestID = id
	}

	b.pendingMu.Lock()
	ch, ok := b.pending[id]
	b.pendingMu.Unlock()
	if !ok {
		b.logger.Debug("media response without pending request", "request_id", id)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}

// =============================================================================
// Fanout
// =============================================================================

// fanout delivers values to local handlers. Handlers run outside the lock
// so they may close their own subscription.
type fanout[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]func(T)
}

func (f *fanout[T]) add(handler func(T)) *subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[uint64]func(T))
	}
	f.nextID++
	id := f.nextID
	f.handlers[id] = handler
	return &subscription{remove: func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}}
}

func (f *fanout[T]) emit(v T) {
	f.mu.Lock()
	handlers := make([]func(T), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
}

func (f *fanout[T]) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// subscription is a closable fanout registration.
type subscription struct {
	once   sync.Once
	remove func()
}

// Close removes the handler. It is idempotent.
func (s *subscription) Close() error {
	s.once.Do(s.remove)
	return nil
}
