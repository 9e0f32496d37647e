package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/maintenance"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// DefaultCommandTimeout bounds a single command's execution.
const DefaultCommandTimeout = 2 * time.Minute

// Logger defines the logging interface used by the Dispatcher.
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

// Engine is the subset of the security engine the dispatcher drives.
type Engine interface {
	RemoteLock(ctx context.Context, details map[string]any) bool
	RemoteUnlock(ctx context.Context) error
	UpdateSettings(ctx context.Context, payload json.RawMessage) (security.Settings, []string, error)
	SetFeatureEnabled(ctx context.Context, feature string, enabled bool) (security.Settings, error)
	Status() security.Status
	TriggerSOSAlert(ctx context.Context, method string) error
	StopSOS(ctx context.Context) bool
	StopAlarm(ctx context.Context) bool
	ClearEventLog(ctx context.Context) int
}

// Maintainer runs the housekeeping commands.
type Maintainer interface {
	ClearCache(ctx context.Context) (maintenance.ClearResult, error)
	Optimize(ctx context.Context) (maintenance.OptimizeResult, error)
}

// Channel is the command channel the dispatcher listens and answers on.
type Channel interface {
	Send(ctx context.Context, event string, payload any) bool
	Subscribe(event string, handler func(ctx context.Context, data json.RawMessage)) uint64
	Unsubscribe(id uint64)
}

// OutcomeRecorder receives one record per terminal ack.
type OutcomeRecorder interface {
	RecordCommand(commandType string, status string, duration time.Duration)
}

// HandlerFunc executes one command and returns its response.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

type route struct {
	owner       string
	handler     HandlerFunc
	longRunning bool
}

// Config contains dispatcher settings.
type Config struct {
	CommandTimeout time.Duration
	AckCacheSize   int
}

// Deps are the dispatcher's collaborators. Engine and Channel are required.
type Deps struct {
	Engine      Engine
	Maintenance Maintainer
	Channel     Channel
	Telemetry   OutcomeRecorder
	Clock       clock.Clock
	Logger      Logger
}

// Dispatcher routes command envelopes and acknowledges them.
//
// Thread Safety: all methods are safe for concurrent use. Each accepted
// command runs in its own goroutine.
type Dispatcher struct {
	engine      Engine
	maintenance Maintainer
	channel     Channel
	telemetry   OutcomeRecorder
	clock       clock.Clock
	logger      Logger
	timeout     time.Duration

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	routes   map[string]route
	acks     *ackCache
	inflight map[string]struct{}
	subID    uint64
	started  bool
	closed   bool
}

// New creates a dispatcher with the security and maintenance command
// types and the known external types registered.
func New(cfg Config, deps Deps) *Dispatcher {
	d := &Dispatcher{
		engine:      deps.Engine,
		maintenance: deps.Maintenance,
		channel:     deps.Channel,
		telemetry:   deps.Telemetry,
		clock:       deps.Clock,
		logger:      deps.Logger,
		timeout:     cfg.CommandTimeout,
		routes:      make(map[string]route),
		acks:        newAckCache(cfg.AckCacheSize),
		inflight:    make(map[string]struct{}),
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	if d.timeout <= 0 {
		d.timeout = DefaultCommandTimeout
	}
	d.runCtx, d.runCancel = context.WithCancel(context.Background())

	d.registerSecurityRoutes()
	for commandType, owner := range externalTypes {
		d.mustAdd(commandType, route{owner: owner})
	}
	return d
}

// mustAdd registers a route from the static tables. A duplicate there is
// a programming error.
func (d *Dispatcher) mustAdd(commandType string, r route) {
	if err := d.add(commandType, r); err != nil {
		panic(err)
	}
}

func (d *Dispatcher) add(commandType string, r route) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.routes[commandType]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, commandType)
	}
	d.routes[commandType] = r
	return nil
}

// OwnedTypes returns the command types this dispatcher executes, sorted.
func (d *Dispatcher) OwnedTypes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]string, 0, len(d.routes))
	for commandType, r := range d.routes {
		if r.owner == OwnerSecurity {
			types = append(types, commandType)
		}
	}
	sort.Strings(types)
	return types
}

// Start subscribes to inbound command envelopes.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.started {
		return nil
	}
	d.subID = d.channel.Subscribe(EventCommand, d.HandleEnvelope)
	d.started = true
	d.logger.Info("command dispatcher started", "owned_types", len(d.routes))
	return nil
}

// Close unsubscribes, cancels running commands and waits for them to
// send their terminal acks.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.started {
		d.channel.Unsubscribe(d.subID)
	}
	d.mu.Unlock()

	d.runCancel()
	d.wg.Wait()
}

// Wait blocks until every accepted command has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// HandleEnvelope accepts one raw command envelope.
func (d *Dispatcher) HandleEnvelope(_ context.Context, data json.RawMessage) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		d.logger.Warn("dropping malformed command envelope", "error", err)
		return
	}
	d.Dispatch(cmd)
}

// Dispatch accepts one command. Owned commands get a received ack and run
// asynchronously; see the package documentation for the other cases.
func (d *Dispatcher) Dispatch(cmd Command) {
	if cmd.CommandID == "" {
		d.logger.Warn("dropping command without commandId", "type", cmd.Type)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	r, known := d.routes[cmd.Type]
	switch {
	case known && r.owner != OwnerSecurity:
		d.mu.Unlock()
		d.logger.Debug("ignoring command owned elsewhere",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
			"owner", r.owner,
		)
		return
	case !known && !inSecurityNamespace(cmd.Type):
		d.mu.Unlock()
		d.logger.Warn("ignoring unrecognised command type",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
		)
		return
	}

	if cached, ok := d.acks.get(cmd.CommandID); ok {
		d.mu.Unlock()
		d.logger.Info("duplicate command, re-sending terminal ack",
			"command_id", cmd.CommandID,
			"status", cached.Status,
		)
		d.channel.Send(context.Background(), EventAck, cached)
		return
	}
	if _, running := d.inflight[cmd.CommandID]; running {
		d.mu.Unlock()
		d.logger.Debug("duplicate command already running", "command_id", cmd.CommandID)
		return
	}
	d.inflight[cmd.CommandID] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	d.sendAck(cmd.CommandID, StatusReceived, nil, nil)

	go func() {
		defer d.wg.Done()
		d.execute(cmd, r, known)
	}()
}

// execute runs the command and sends its single terminal ack.
func (d *Dispatcher) execute(cmd Command, r route, known bool) {
	start := d.clock.Now()

	var (
		response any
		err      error
	)
	if !known || r.handler == nil {
		d.logger.Warn("security command has no handler",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
		)
		err = fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Type)
	} else {
		if r.longRunning {
			d.sendAck(cmd.CommandID, StatusStarted, nil, nil)
		}
		response, err = d.run(cmd, r.handler)
	}

	status := StatusCompleted
	switch {
	case err != nil && isSecurityRejection(err):
		status = StatusFailed
		d.logger.Info("command rejected by security settings",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
			"error", err,
		)
	case err != nil:
		status = StatusFailed
		d.logger.Warn("command failed",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
			"error", err,
		)
	default:
		d.logger.Info("command completed",
			"command_id", cmd.CommandID,
			"type", cmd.Type,
		)
	}

	ack := d.sendAck(cmd.CommandID, status, response, err)

	d.mu.Lock()
	delete(d.inflight, cmd.CommandID)
	d.acks.put(ack)
	d.mu.Unlock()

	if d.telemetry != nil {
		d.telemetry.RecordCommand(cmd.Type, string(status), d.clock.Now().Sub(start))
	}
}

// run calls handler with a timeout, converting a panic into an error.
func (d *Dispatcher) run(cmd Command, handler HandlerFunc) (response any, err error) {
	ctx, cancel := context.WithTimeout(d.runCtx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panic recovered",
				"command_id", cmd.CommandID,
				"type", cmd.Type,
				"panic", r,
			)
			response = nil
			err = fmt.Errorf("%w: %v", ErrCommandPanic, r)
		}
	}()
	return handler(ctx, cmd.Data)
}

func (d *Dispatcher) sendAck(commandID string, status Status, response any, err error) Ack {
	ack := Ack{
		CommandID: commandID,
		Status:    status,
		Response:  response,
		Timestamp: d.clock.Now().UnixMilli(),
	}
	if err != nil {
		ack.Error = err.Error()
	}
	// Acks outlive Close so cancelled commands still report failure.
	if !d.channel.Send(context.Background(), EventAck, ack) {
		d.logger.Debug("ack not delivered", "command_id", commandID, "status", status)
	}
	return ack
}
