package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/settings"
)

// SettingsMetrics carries metric IDs needed by settings flows.
type SettingsMetrics struct {
	SettingsWrite        int
	SettingsFullRejected int
	SettingsDelete       int
}

// SettingsErrors carries host-level sentinel errors used by settings flows.
type SettingsErrors struct {
	EngineNotReady  error
	UserNotFound    error
	SettingNotFound error
	SettingsFull    error
	InvalidValue    error
}

// SettingsDeps captures settings flow dependencies.
type SettingsDeps struct {
	FindUserByID  func(context.Context, string) (*credential.User, error)
	PutSetting    func(context.Context, string, settings.Index, settings.Value) (settings.Map, error)
	DeleteSetting func(context.Context, string, settings.Index) (settings.Map, error)

	MetricInc func(int)
	Metrics   SettingsMetrics
	Errors    SettingsErrors
}

func (d *SettingsDeps) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, credential.ErrNotFound):
		return d.Errors.UserNotFound
	case errors.Is(err, settings.ErrFull):
		return d.Errors.SettingsFull
	default:
		return err
	}
}

// RunGetSettings returns the whole settings map of userID.
func RunGetSettings(ctx context.Context, userID string, deps SettingsDeps) (settings.Map, error) {
	if deps.FindUserByID == nil {
		return nil, deps.Errors.EngineNotReady
	}
	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		return nil, deps.mapStoreErr(err)
	}
	if user.Settings == nil {
		return settings.Map{}, nil
	}
	return user.Settings, nil
}

// RunGetSetting returns a single entry or SettingNotFound.
func RunGetSetting(ctx context.Context, userID string, idx settings.Index, deps SettingsDeps) (settings.Value, error) {
	m, err := RunGetSettings(ctx, userID, deps)
	if err != nil {
		return settings.Value{}, err
	}
	v, ok := m.Get(idx)
	if !ok {
		return settings.Value{}, deps.Errors.SettingNotFound
	}
	return v, nil
}

// RunSetSetting overwrites or inserts idx. Inserting into a full map fails
// with SettingsFull; overwriting never does.
func RunSetSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value, deps SettingsDeps) (settings.Map, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.PutSetting == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if v.IsZero() {
		return nil, deps.Errors.InvalidValue
	}

	m, err := deps.PutSetting(ctx, userID, idx, v)
	if err != nil {
		mapped := deps.mapStoreErr(err)
		if errors.Is(mapped, deps.Errors.SettingsFull) {
			deps.MetricInc(deps.Metrics.SettingsFullRejected)
		}
		return nil, mapped
	}
	deps.MetricInc(deps.Metrics.SettingsWrite)
	return m, nil
}

// RunDeleteSetting removes idx. Deleting an absent index succeeds and returns
// the unchanged map.
func RunDeleteSetting(ctx context.Context, userID string, idx settings.Index, deps SettingsDeps) (settings.Map, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.DeleteSetting == nil {
		return nil, deps.Errors.EngineNotReady
	}

	m, err := deps.DeleteSetting(ctx, userID, idx)
	if err != nil {
		return nil, deps.mapStoreErr(err)
	}
	deps.MetricInc(deps.Metrics.SettingsDelete)
	return m, nil
}
