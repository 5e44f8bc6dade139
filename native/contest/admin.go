package contest

import (
	"context"
	"log/slog"

	"stakecurate/native/common"
)

// Bootstrap seeds the settings record when none is persisted yet and returns
// the active settings. A persisted record always wins over the seed.
func (e *Engine) Bootstrap(seed Settings) (*Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	current, ok, err := e.state.Settings()
	if err != nil {
		return nil, err
	}
	if ok {
		return current, nil
	}
	if trim(seed.Owner) == "" {
		return nil, common.Validation("bootstrap", "owner required")
	}
	if err := e.limits.ValidateFee(seed.FeeBps); err != nil {
		return nil, err
	}
	cs := NewChangeset()
	cs.PutSettings(&seed)
	if err := e.state.Apply(cs); err != nil {
		return nil, err
	}
	return seed.Clone(), nil
}

// updateSettings runs an owner-only mutation of the settings record.
func (e *Engine) updateSettings(op Operation, caller string, check func(*Settings) error, mutate func(*Settings)) (*Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	settings, err := e.loadSettings()
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(settings); err != nil {
			return nil, err
		}
	}
	if err := Authorize(op, settings, nil, caller); err != nil {
		return nil, err
	}
	mutate(settings)
	cs := NewChangeset()
	cs.PutSettings(settings)
	if err := e.state.Apply(cs); err != nil {
		return nil, err
	}
	e.logger.Info("contest settings updated", slog.String("operation", string(op)), slog.String("caller", caller))
	e.emit(settingsEvent(op, settings))
	return settings.Clone(), nil
}

// SetFeeRate changes the platform fee. The ceiling is enforced before the
// caller's role, so an over-ceiling rate fails for every caller.
func (e *Engine) SetFeeRate(ctx context.Context, caller string, bps uint32) (*Settings, error) {
	return e.updateSettings(OpSetFeeRate, caller,
		func(*Settings) error { return e.limits.ValidateFee(bps) },
		func(s *Settings) { s.FeeBps = bps })
}

// Pause halts create and stake. Close keeps working.
func (e *Engine) Pause(ctx context.Context, caller string) (*Settings, error) {
	return e.updateSettings(OpPause, caller, nil, func(s *Settings) { s.Paused = true })
}

// Resume lifts a pause.
func (e *Engine) Resume(ctx context.Context, caller string) (*Settings, error) {
	return e.updateSettings(OpResume, caller, nil, func(s *Settings) { s.Paused = false })
}

// SetAgents replaces the authorised agent set.
func (e *Engine) SetAgents(ctx context.Context, caller string, agents []string) (*Settings, error) {
	cleaned := make([]string, 0, len(agents))
	seen := make(map[string]struct{}, len(agents))
	for _, agent := range agents {
		agent = trim(agent)
		if agent == "" {
			return nil, common.Validation(string(OpSetAgents), "agent account required")
		}
		if _, dup := seen[agent]; dup {
			continue
		}
		seen[agent] = struct{}{}
		cleaned = append(cleaned, agent)
	}
	return e.updateSettings(OpSetAgents, caller, nil, func(s *Settings) { s.Agents = cleaned })
}

// SetPlatformAccount changes where fees and storage costs are paid.
func (e *Engine) SetPlatformAccount(ctx context.Context, caller string, account string) (*Settings, error) {
	account = trim(account)
	if account == "" {
		return nil, common.Validation(string(OpSetPlatformAccount), "platform account required")
	}
	return e.updateSettings(OpSetPlatformAccount, caller, nil, func(s *Settings) { s.PlatformAccount = account })
}

// Authorize checks a settings-level operation such as the audit append
// against the committed settings.
func (e *Engine) Authorize(ctx context.Context, op Operation, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	settings, err := e.loadSettings()
	if err != nil {
		return err
	}
	return Authorize(op, settings, nil, caller)
}
