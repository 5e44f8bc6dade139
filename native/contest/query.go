package contest

import (
	"context"

	"stakecurate/native/common"
)

// GetContest returns a contest by id.
func (e *Engine) GetContest(ctx context.Context, id uint64) (*Contest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadContest("get_contest", id)
}

// GetStake returns the stake of account in a contest.
func (e *Engine) GetStake(ctx context.Context, contestID uint64, account string) (*StakeEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadContest("get_stake", contestID); err != nil {
		return nil, err
	}
	entry, ok, err := e.state.Stake(contestID, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NotFound("get_stake", "no stake for %s in contest %d", account, contestID)
	}
	return entry, nil
}

// ListActive returns contests still accepting stakes, by id.
func (e *Engine) ListActive(ctx context.Context) ([]*Contest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	all, err := e.state.Contests()
	if err != nil {
		return nil, err
	}
	now := e.now()
	active := make([]*Contest, 0, len(all))
	for _, c := range all {
		if c.Status(now) == StatusOpen {
			active = append(active, c)
		}
	}
	return active, nil
}

// ListContests returns every contest, by id.
func (e *Engine) ListContests(ctx context.Context) ([]*Contest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.Contests()
}

// GetFeeRate returns the platform fee in basis points.
func (e *Engine) GetFeeRate(ctx context.Context) (uint32, error) {
	settings, err := e.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.FeeBps, nil
}

// Settings returns the committed administrative record.
func (e *Engine) Settings(ctx context.Context) (*Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadSettings()
}

// Participants lists the stakes of a contest in first-stake order.
func (e *Engine) Participants(ctx context.Context, contestID uint64) ([]*StakeEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadContest("participants", contestID); err != nil {
		return nil, err
	}
	return e.state.Stakes(contestID)
}

// AccountStakes lists every stake held by account.
func (e *Engine) AccountStakes(ctx context.Context, account string) ([]*StakeEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.AccountStakes(account)
}

// IsWhitelisted reports whether account may stake in a private contest.
func (e *Engine) IsWhitelisted(ctx context.Context, contestID uint64, account string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false, errNilState
	}
	if _, err := e.loadContest("is_whitelisted", contestID); err != nil {
		return false, err
	}
	return e.state.Whitelisted(contestID, account)
}

// GetSettlement returns the settlement of a closed contest.
func (e *Engine) GetSettlement(ctx context.Context, contestID uint64) (*Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadContest("get_settlement", contestID); err != nil {
		return nil, err
	}
	settlement, ok, err := e.state.Settlement(contestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NotFound("get_settlement", "contest %d has no settlement", contestID)
	}
	return settlement, nil
}

// Settlements returns every recorded settlement in contest id order.
func (e *Engine) Settlements(ctx context.Context) ([]*Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	all, err := e.state.Contests()
	if err != nil {
		return nil, err
	}
	out := make([]*Settlement, 0)
	for _, c := range all {
		if !c.PayoutDone {
			continue
		}
		settlement, ok, err := e.state.Settlement(c.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, settlement)
		}
	}
	return out, nil
}
