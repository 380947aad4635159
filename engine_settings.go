package sessiongate

import (
	"context"

	"github.com/MrEthical07/sessiongate/settings"
)

// GetSettings returns the whole settings map of userID.
func (e *Engine) GetSettings(ctx context.Context, userID string) (settings.Map, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	m, err := e.flows.GetSettings(ctx, userID)
	if err != nil {
		return nil, e.storeFailure("get_settings", userID, err)
	}
	return m, nil
}

// GetSetting returns one entry, or ErrSettingNotFound.
func (e *Engine) GetSetting(ctx context.Context, userID string, idx settings.Index) (settings.Value, error) {
	if !e.ready() {
		return settings.Value{}, ErrEngineNotReady
	}
	v, err := e.flows.GetSetting(ctx, userID, idx)
	if err != nil {
		return settings.Value{}, e.storeFailure("get_setting", userID, err)
	}
	return v, nil
}

// SetSetting overwrites idx if present, otherwise inserts it. Inserting into
// a map that already holds settings.MaxEntries entries fails with
// ErrSettingsFull. The updated map is returned.
func (e *Engine) SetSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value) (settings.Map, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	m, err := e.flows.SetSetting(ctx, userID, idx, v)
	if err != nil {
		return nil, e.storeFailure("set_setting", userID, err)
	}
	return m, nil
}

// DeleteSetting removes idx. Deleting an absent index is not an error; the
// unchanged map is returned.
func (e *Engine) DeleteSetting(ctx context.Context, userID string, idx settings.Index) (settings.Map, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	m, err := e.flows.DeleteSetting(ctx, userID, idx)
	if err != nil {
		return nil, e.storeFailure("delete_setting", userID, err)
	}
	return m, nil
}
