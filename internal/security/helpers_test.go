package security

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeMedia records actuator calls.
type fakeMedia struct {
	mu          sync.Mutex
	photos      int
	videos      []time.Duration
	alarmStarts []time.Duration
	alarmStops  int
	calls       []string
	photoErr    error
	alarmErr    error
}

func (m *fakeMedia) CapturePhoto(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "photo")
	if m.photoErr != nil {
		return "", m.photoErr
	}
	m.photos++
	return "photo-ref", nil
}

func (m *fakeMedia) CaptureVideo(_ context.Context, d time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "video")
	m.videos = append(m.videos, d)
	return "video-ref", nil
}

func (m *fakeMedia) StartAlarm(_ context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "start_alarm")
	if m.alarmErr != nil {
		return m.alarmErr
	}
	m.alarmStarts = append(m.alarmStarts, d)
	return nil
}

func (m *fakeMedia) StopAlarm(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop_alarm")
	m.alarmStops++
	return nil
}

func (m *fakeMedia) snapshot() (photos, alarmStarts, alarmStops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.photos, len(m.alarmStarts), m.alarmStops
}

// fakeSub is a closable subscription.
type fakeSub struct {
	onClose func()
}

func (s *fakeSub) Close() error {
	s.onClose()
	return nil
}

// fakeSensors keeps the registered handlers so tests can push signals.
type fakeSensors struct {
	mu        sync.Mutex
	motion    func(MotionSample)
	touch     func()
	hardware  func(string)
	motionErr error
}

func (f *fakeSensors) SubscribeMotion(h func(MotionSample)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.motionErr != nil {
		return nil, f.motionErr
	}
	f.motion = h
	return &fakeSub{onClose: func() { f.mu.Lock(); f.motion = nil; f.mu.Unlock() }}, nil
}

func (f *fakeSensors) SubscribeTouch(h func()) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch = h
	return &fakeSub{onClose: func() { f.mu.Lock(); f.touch = nil; f.mu.Unlock() }}, nil
}

func (f *fakeSensors) SubscribeHardware(h func(string)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hardware = h
	return &fakeSub{onClose: func() { f.mu.Lock(); f.hardware = nil; f.mu.Unlock() }}, nil
}

func (f *fakeSensors) pushMotion(s MotionSample) bool {
	f.mu.Lock()
	h := f.motion
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(s)
	return true
}

func (f *fakeSensors) pushTouch() bool {
	f.mu.Lock()
	h := f.touch
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h()
	return true
}

func (f *fakeSensors) subscribed() (motion, touch, hardware bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.motion != nil, f.touch != nil, f.hardware != nil
}

// sentMessage is one Send call.
type sentMessage struct {
	event   string
	payload any
}

// fakeChannel records sends and lets tests deliver inbound events.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	sent      []sentMessage
	handlers  map[uint64]fakeHandler
	nextID    uint64
	onConnect []func(context.Context)
}

type fakeHandler struct {
	event string
	fn    func(context.Context, json.RawMessage)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{connected: true, handlers: make(map[uint64]fakeHandler)}
}

func (c *fakeChannel) Send(_ context.Context, event string, payload any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return false
	}
	c.sent = append(c.sent, sentMessage{event: event, payload: payload})
	return true
}

func (c *fakeChannel) Subscribe(event string, fn func(context.Context, json.RawMessage)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[c.nextID] = fakeHandler{event: event, fn: fn}
	return c.nextID
}

func (c *fakeChannel) Unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
}

func (c *fakeChannel) OnConnect(hook func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, hook)
}

func (c *fakeChannel) deliver(event string, data string) int {
	c.mu.Lock()
	var fns []func(context.Context, json.RawMessage)
	for _, h := range c.handlers {
		if h.event == event {
			fns = append(fns, h.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(context.Background(), json.RawMessage(data))
	}
	return len(fns)
}

func (c *fakeChannel) reconnect() {
	c.mu.Lock()
	c.connected = true
	hooks := append([]func(context.Context){}, c.onConnect...)
	c.mu.Unlock()
	for _, hook := range hooks {
		hook(context.Background())
	}
}

func (c *fakeChannel) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.sent {
		if m.event == event {
			n++
		}
	}
	return n
}

func (c *fakeChannel) last(event string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].event == event {
			return c.sent[i].payload, true
		}
	}
	return nil, false
}

// fakePrompt returns a fixed answer.
type fakePrompt struct {
	allow bool
	calls int
}

func (p *fakePrompt) Authenticate(context.Context, string) bool {
	p.calls++
	return p.allow
}

// fakeLocation returns a fixed fix.
type fakeLocation struct{}

func (fakeLocation) CurrentLocation(context.Context) (Location, error) {
	return Location{Latitude: 51.5, Longitude: -0.12}, nil
}

// fakeSink collects events.
type fakeSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *fakeSink) RecordEvent(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// fakeMirror records mirrored status snapshots.
type fakeMirror struct {
	mu       sync.Mutex
	statuses []Status
	err      error
}

func (m *fakeMirror) PublishSecurityState(_ context.Context, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return m.err
}

func (m *fakeMirror) last() (Status, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return Status{}, 0
	}
	return m.statuses[len(m.statuses)-1], len(m.statuses)
}

// gatedSink blocks the first event of type typ until release is closed.
type gatedSink struct {
	typ     string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSink(typ string) *gatedSink {
	return &gatedSink{typ: typ, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedSink) RecordEvent(_ context.Context, ev Event) error {
	if ev.Type != s.typ {
		return nil
	}
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return nil
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingStore) Set(context.Context, string, []byte) error    { return errors.New("disk gone") }
func (failingStore) Remove(context.Context, string) error         { return errors.New("disk gone") }

// harness bundles an engine with its fakes.
type harness struct {
	engine   *Engine
	clock    *clock.FakeClock
	media    *fakeMedia
	sensors  *fakeSensors
	channel  *fakeChannel
	prompt   *fakePrompt
	sink     *fakeSink
	store    *store.MemoryStore
	settings Settings
}

// newHarness builds and initializes an engine. mutate adjusts the
// default settings before start.
func newHarness(t *testing.T, mutate func(s *Settings)) *harness {
	t.Helper()

	settings := DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}
	cfg := DefaultConfig()
	cfg.Defaults = settings

	return newHarnessWithConfig(t, cfg, store.NewMemoryStore())
}

func newHarnessWithConfig(t *testing.T, cfg Config, st *store.MemoryStore) *harness {
	t.Helper()

	h := &harness{
		clock:    clock.Fake(testEpoch),
		media:    &fakeMedia{},
		sensors:  &fakeSensors{},
		channel:  newFakeChannel(),
		prompt:   &fakePrompt{allow: true},
		sink:     &fakeSink{},
		store:    st,
		settings: cfg.Defaults,
	}
	h.engine = NewEngine(cfg, Deps{
		Store:    h.store,
		Media:    h.media,
		Sensors:  h.sensors,
		Location: fakeLocation{},
		Auth:     h.prompt,
		Channel:  h.channel,
		Sinks:    []EventSink{h.sink},
		Clock:    h.clock,
	})
	if err := h.engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { h.engine.Shutdown(context.Background()) })
	return h
}

// countEvents counts recorded events of the given type.
func countEvents(events []Event, eventType string) int {
	n := 0
	for _, ev := range events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}
