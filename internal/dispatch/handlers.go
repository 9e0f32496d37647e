package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// Owned command types.
const (
	CmdRemoteLock          = "remote-lock"
	CmdRemoteUnlock        = "remote-unlock"
	CmdRemoteSettings      = "remote-settings-update"
	CmdGetStatus           = "get_status"
	CmdClearCache          = "clear_cache"
	CmdOptimizePerformance = "optimize_performance"
	CmdTriggerSOS          = "trigger_sos"
	CmdStopSOS             = "stop_sos"
	CmdStopAlarm           = "stop_alarm"
	CmdClearEventLog       = "clear_event_log"
)

// registerSecurityRoutes fills the dispatch table. Called from New before
// the dispatcher is shared.
func (d *Dispatcher) registerSecurityRoutes() {
	owned := map[string]route{
		CmdRemoteLock:          {handler: d.remoteLock},
		CmdRemoteUnlock:        {handler: d.remoteUnlock},
		CmdRemoteSettings:      {handler: d.remoteSettings},
		CmdGetStatus:           {handler: d.getStatus},
		CmdTriggerSOS:          {handler: d.triggerSOS},
		CmdStopSOS:             {handler: d.stopSOS},
		CmdStopAlarm:           {handler: d.stopAlarm},
		CmdClearEventLog:       {handler: d.clearEventLog},
		CmdClearCache:          {handler: d.clearCache, longRunning: true},
		CmdOptimizePerformance: {handler: d.optimize, longRunning: true},
	}
	for _, feature := range security.FeatureNames() {
		owned["enable_"+feature] = route{handler: d.featureToggle(feature, true)}
		owned["disable_"+feature] = route{handler: d.featureToggle(feature, false)}
	}
	for commandType, r := range owned {
		r.owner = OwnerSecurity
		d.mustAdd(commandType, r)
	}
}

// decodeObject decodes optional command data into a map. Absent or null
// data yields an empty map.
func decodeObject(data json.RawMessage) (map[string]any, error) {
	out := map[string]any{}
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return out, nil
}

func (d *Dispatcher) remoteLock(ctx context.Context, data json.RawMessage) (any, error) {
	details, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	changed := d.engine.RemoteLock(ctx, details)
	return map[string]any{"locked": true, "changed": changed}, nil
}

func (d *Dispatcher) remoteUnlock(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := d.engine.RemoteUnlock(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"locked": false}, nil
}

func (d *Dispatcher) remoteSettings(ctx context.Context, data json.RawMessage) (any, error) {
	settings, rejected, err := d.engine.UpdateSettings(ctx, data)
	if err != nil {
		return nil, err
	}
	if rejected == nil {
		rejected = []string{}
	}
	return map[string]any{"settings": settings, "rejected": rejected}, nil
}

func (d *Dispatcher) featureToggle(feature string, enabled bool) HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		if _, err := d.engine.SetFeatureEnabled(ctx, feature, enabled); err != nil {
			return nil, err
		}
		return map[string]any{"enabled": enabled}, nil
	}
}

func (d *Dispatcher) getStatus(_ context.Context, _ json.RawMessage) (any, error) {
	return d.engine.Status(), nil
}

func (d *Dispatcher) triggerSOS(ctx context.Context, data json.RawMessage) (any, error) {
	var body struct {
		Method string `json:"method"`
	}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
		}
	}
	method := strings.TrimSpace(body.Method)
	if method == "" {
		method = "remote"
	}
	if err := d.engine.TriggerSOSAlert(ctx, method); err != nil {
		return nil, err
	}
	return map[string]any{"sosActive": true}, nil
}

func (d *Dispatcher) stopSOS(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{"stopped": d.engine.StopSOS(ctx)}, nil
}

func (d *Dispatcher) stopAlarm(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{"stopped": d.engine.StopAlarm(ctx)}, nil
}

func (d *Dispatcher) clearEventLog(ctx context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{"removed": d.engine.ClearEventLog(ctx)}, nil
}

func (d *Dispatcher) clearCache(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.maintenance == nil {
		return nil, ErrMaintenanceUnavailable
	}
	result, err := d.maintenance.ClearCache(ctx)
	if err == nil {
		return result, nil
	}
	if result.RemovedFiles == 0 {
		return nil, err
	}
	// Partial clear: the failed ack still reports what was removed.
	return result, err
}

func (d *Dispatcher) optimize(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.maintenance == nil {
		return nil, ErrMaintenanceUnavailable
	}
	result, err := d.maintenance.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isSecurityRejection reports errors that reflect a setting, not a fault.
func isSecurityRejection(err error) bool {
	return errors.Is(err, security.ErrRemoteUnlockDisabled) ||
		errors.Is(err, security.ErrSOSDisabled) ||
		errors.Is(err, security.ErrUnknownFeature)
}
