package security

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

// Default engine timings.
const (
	DefaultAlarmDuration    = 30 * time.Second
	DefaultSOSAlarmDuration = 60 * time.Second
	DefaultCooldown         = 5 * time.Second
	DefaultSOSInterval      = 10 * time.Second
	DefaultSOSMaxDuration   = 30 * time.Minute
	DefaultSOSVideoDuration = 15 * time.Second
	DefaultSOSVideoDelay    = 2 * time.Second
	DefaultEventCapacity    = 200
)

// Config holds the engine timings and the default settings.
type Config struct {
	AlarmDuration    time.Duration
	SOSAlarmDuration time.Duration

	// Cooldown suppresses repeated triggers of the same kind.
	Cooldown time.Duration

	// SOSInterval is the location broadcast period while SOS is active.
	// The broadcast loop stops on its own after SOSMaxDuration.
	SOSInterval    time.Duration
	SOSMaxDuration time.Duration

	SOSVideoDuration time.Duration
	SOSVideoDelay    time.Duration

	// EventCapacity bounds the in-memory event ring.
	EventCapacity int

	// Defaults seeds the settings when nothing is persisted.
	Defaults Settings
}

// DefaultConfig returns the standard engine timings.
func DefaultConfig() Config {
	return Config{
		AlarmDuration:    DefaultAlarmDuration,
		SOSAlarmDuration: DefaultSOSAlarmDuration,
		Cooldown:         DefaultCooldown,
		SOSInterval:      DefaultSOSInterval,
		SOSMaxDuration:   DefaultSOSMaxDuration,
		SOSVideoDuration: DefaultSOSVideoDuration,
		SOSVideoDelay:    DefaultSOSVideoDelay,
		EventCapacity:    DefaultEventCapacity,
		Defaults:         DefaultSettings(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AlarmDuration <= 0 {
		c.AlarmDuration = def.AlarmDuration
	}
	if c.SOSAlarmDuration <= 0 {
		c.SOSAlarmDuration = def.SOSAlarmDuration
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.SOSInterval <= 0 {
		c.SOSInterval = def.SOSInterval
	}
	if c.SOSMaxDuration <= 0 {
		c.SOSMaxDuration = def.SOSMaxDuration
	}
	if c.SOSVideoDuration <= 0 {
		c.SOSVideoDuration = def.SOSVideoDuration
	}
	if c.SOSVideoDelay <= 0 {
		c.SOSVideoDelay = def.SOSVideoDelay
	}
	if c.EventCapacity <= 0 {
		c.EventCapacity = def.EventCapacity
	}
	if c.Defaults == (Settings{}) {
		c.Defaults = def.Defaults
	}
	c.Defaults = c.Defaults.Normalize()
	return c
}

// Deps are the collaborators of the Engine. Store is required; every
// other field may be nil, in which case the matching feature degrades.
type Deps struct {
	Store    store.Store
	Media    MediaActuator
	Sensors  SensorFeed
	Location LocationProvider
	Auth     AuthenticationPrompt
	Channel  CommandChannel
	Sinks    []EventSink
	Motion   MotionRecorder
	Mirror   StatusMirror
	Clock    clock.Clock
	Logger   Logger
}

// persistedState is the blob stored under store.KeySecurityState.
type persistedState struct {
	Settings       Settings  `json:"settings"`
	FailedAttempts int       `json:"failedAttempts"`
	State          LockState `json:"state"`
	Events         []Event   `json:"events"`
}

// cooldown is an armed suppression window for one trigger kind.
type cooldown struct {
	gen   uint64
	timer *clock.Timer
}

type alarmState struct {
	active bool
	gen    uint64
	timer  *clock.Timer
}

type sosState struct {
	active  bool
	gen     uint64
	started time.Time
	timer   *clock.Timer
	video   *clock.Timer
}

// Engine is the device lock state machine.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	store    store.Store
	media    MediaActuator
	sensors  SensorFeed
	location LocationProvider
	auth     AuthenticationPrompt
	channel  CommandChannel
	sinks    []EventSink
	motion   MotionRecorder
	mirror   StatusMirror
	clock    clock.Clock
	logger   Logger

	// runCtx scopes work started by sensor callbacks and timers.
	runCtx    context.Context
	runCancel context.CancelFunc

	mu             sync.Mutex
	initialized    bool
	closed         bool
	state          LockState
	settings       Settings
	failedAttempts int
	lockGen        uint64
	events         []Event
	lastMotion     MotionSample
	hasMotion      bool
	touchArmedAt   time.Time
	cooldowns      map[string]*cooldown
	cooldownGen    uint64
	alarm          alarmState
	sos            sosState
	handlerIDs     []uint64

	// alarmMu serialises actuator alarm calls so two alarms never overlap.
	alarmMu sync.Mutex

	// persistMu orders store writes so the newest snapshot lands last.
	persistMu sync.Mutex

	// featureMu guards subs.
	featureMu sync.Mutex
	subs      map[string]Subscription
}

// NewEngine creates a security engine. Call Initialize before use.
func NewEngine(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:       cfg,
		store:     deps.Store,
		media:     deps.Media,
		sensors:   deps.Sensors,
		location:  deps.Location,
		auth:      deps.Auth,
		channel:   deps.Channel,
		sinks:     deps.Sinks,
		motion:    deps.Motion,
		mirror:    deps.Mirror,
		clock:     deps.Clock,
		logger:    deps.Logger,
		state:     Unlocked,
		settings:  cfg.Defaults,
		cooldowns: make(map[string]*cooldown),
		subs:      make(map[string]Subscription),
	}
	if e.store == nil {
		e.store = store.NewMemoryStore()
	}
	if e.media == nil {
		e.media = unavailableMedia{}
	}
	if e.auth == nil {
		e.auth = denyPrompt{}
	}
	if e.channel == nil {
		e.channel = offlineChannel{}
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	return e
}

// Initialize loads persisted state, starts sensor subscriptions for the
// enabled features and registers the channel handlers.
//
// A failing collaborator only degrades its own feature; Initialize
// returns an error only when called after Shutdown.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.initialized = true
	e.mu.Unlock()

	e.load(ctx)
	e.reconcileFeatures()

	ids := []uint64{
		e.channel.Subscribe(ChannelRemoteLock, e.onRemoteLock),
		e.channel.Subscribe(ChannelRemoteUnlock, e.onRemoteUnlock),
		e.channel.Subscribe(ChannelRemoteSettingsUpdate, e.onRemoteSettingsUpdate),
	}
	e.channel.OnConnect(func(ctx context.Context) {
		if e.isClosed() {
			return
		}
		e.PublishStatus(ctx)
	})

	e.mu.Lock()
	e.handlerIDs = ids
	state, attempts := e.state, e.failedAttempts
	e.mu.Unlock()

	e.logger.Info("security engine initialized",
		"state", state,
		"failed_attempts", attempts,
	)
	return nil
}

// Shutdown invalidates every pending timer, closes sensor subscriptions
// and persists the final state. Stale timers become no-ops.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for kind, c := range e.cooldowns {
		c.timer.Stop()
		delete(e.cooldowns, kind)
	}
	e.alarm.gen++
	e.alarm.timer.Stop()
	e.alarm.timer = nil
	e.sos.gen++
	e.sos.timer.Stop()
	e.sos.video.Stop()
	e.sos.timer, e.sos.video = nil, nil
	e.sos.active = false
	ids := e.handlerIDs
	e.handlerIDs = nil
	e.mu.Unlock()

	for _, id := range ids {
		e.channel.Unsubscribe(id)
	}
	e.reconcileFeatures()
	e.runCancel()
	e.persist(ctx)

	e.logger.Info("security engine stopped")
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// load restores persisted state, falling back to defaults.
func (e *Engine) load(ctx context.Context) {
	ps := persistedState{Settings: e.cfg.Defaults, State: Unlocked}

	raw, err := e.store.Get(ctx, store.KeySecurityState)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.logger.Info("no persisted security state, using defaults")
	case err != nil:
		e.logger.Warn("loading security state failed, using defaults", "error", err)
	default:
		if err := json.Unmarshal(raw, &ps); err != nil {
			e.logger.Warn("persisted security state is corrupt, using defaults", "error", err)
			ps = persistedState{Settings: e.cfg.Defaults, State: Unlocked}
		}
	}

	if ps.State != Locked {
		ps.State = Unlocked
	}
	if len(ps.Events) > e.cfg.EventCapacity {
		ps.Events = ps.Events[len(ps.Events)-e.cfg.EventCapacity:]
	}

	e.mu.Lock()
	e.settings = ps.Settings.Normalize()
	e.state = ps.State
	e.failedAttempts = max(ps.FailedAttempts, 0)
	e.events = ps.Events
	e.touchArmedAt = e.clock.Now()
	e.mu.Unlock()
}

// persist writes the current state blob. Failures are logged only.
func (e *Engine) persist(ctx context.Context) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	ps := persistedState{
		Settings:       e.settings,
		FailedAttempts: e.failedAttempts,
		State:          e.state,
		Events:         slices.Clone(e.events),
	}
	e.mu.Unlock()

	data, err := json.Marshal(ps)
	if err != nil {
		e.logger.Error("encoding security state", "error", err)
		return
	}
	if err := e.store.Set(ctx, store.KeySecurityState, data); err != nil {
		e.logger.Warn("persisting security state failed", "error", err)
	}
}

// recordEventLocked appends an event to the ring. Caller holds e.mu.
func (e *Engine) recordEventLocked(eventType string, payload map[string]any) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: e.clock.Now().UTC(),
		Payload:   payload,
	}
	if len(e.events) >= e.cfg.EventCapacity {
		drop := len(e.events) - e.cfg.EventCapacity + 1
		e.events = append(e.events[:0], e.events[drop:]...)
	}
	e.events = append(e.events, ev)
	return ev
}

// emit fans an event out to the sinks.
func (e *Engine) emit(ctx context.Context, ev Event) {
	for _, sink := range e.sinks {
		if err := sink.RecordEvent(ctx, ev); err != nil {
			e.logger.Warn("event sink failed", "type", ev.Type, "error", err)
		}
	}
}

// eventPayload renders an event for the channel.
func eventPayload(ev Event) map[string]any {
	payload := make(map[string]any, len(ev.Payload)+3)
	for k, v := range ev.Payload {
		payload[k] = v
	}
	payload["type"] = ev.Type
	payload["eventId"] = ev.ID
	payload["timestamp"] = unixMillis(ev.Timestamp)
	return payload
}

// IsLocked reports whether the device is locked.
func (e *Engine) IsLocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Locked
}

// State returns the current lock state.
func (e *Engine) State() LockState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FailedAttempts returns the failed-attempt counter.
func (e *Engine) FailedAttempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failedAttempts
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Events returns the recent events, oldest first.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// AlarmActive reports whether an alarm is sounding.
func (e *Engine) AlarmActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alarm.active
}

// SOSActive reports whether the SOS broadcast loop is running.
func (e *Engine) SOSActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sos.active
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:          e.state,
		Locked:         e.state == Locked,
		FailedAttempts: e.failedAttempts,
		Settings:       e.settings,
		SOSActive:      e.sos.active,
		AlarmActive:    e.alarm.active,
		Timestamp:      unixMillis(e.clock.Now()),
	}
}

// PublishStatus sends the status snapshot over the channel and to the
// status mirror, if any. It reports whether the channel accepted it.
func (e *Engine) PublishStatus(ctx context.Context) bool {
	status := e.Status()
	if e.mirror != nil {
		if err := e.mirror.PublishSecurityState(ctx, status); err != nil {
			e.logger.Debug("security state not mirrored", "error", err)
		}
	}
	return e.channel.Send(ctx, ChannelSecurityStatus, status)
}

// ClearEventLog empties the in-memory event ring and returns how many
// events it held. The ring then holds a single event_log_cleared event,
// which also reaches the sinks, so long-term history records the clear.
func (e *Engine) ClearEventLog(ctx context.Context) int {
	e.mu.Lock()
	n := len(e.events)
	e.events = nil
	ev := e.recordEventLocked(EventLogCleared, map[string]any{"removed": n})
	e.mu.Unlock()

	e.logger.Info("security event log cleared", "removed", n)
	e.emit(ctx, ev)
	e.persist(ctx)
	return n
}
