package contest

import (
	"context"

	"stakecurate/native/common"
)

// WhitelistAdd allows account to stake in a private contest. Only the
// creator may edit the whitelist; repeated calls are no-ops.
func (e *Engine) WhitelistAdd(ctx context.Context, caller string, contestID uint64, account string) error {
	return e.setWhitelisted(OpWhitelistAdd, caller, contestID, account, true)
}

// WhitelistRemove revokes a previous WhitelistAdd. Existing stakes remain.
func (e *Engine) WhitelistRemove(ctx context.Context, caller string, contestID uint64, account string) error {
	return e.setWhitelisted(OpWhitelistRemove, caller, contestID, account, false)
}

func (e *Engine) setWhitelisted(op Operation, caller string, contestID uint64, account string, allowed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	contest, err := e.loadContest(op, contestID)
	if err != nil {
		return err
	}
	settings, err := e.loadSettings()
	if err != nil {
		return err
	}
	if err := Authorize(op, settings, contest, caller); err != nil {
		return err
	}
	account = trim(account)
	if account == "" {
		return common.Validation(string(op), "account required")
	}
	current, err := e.state.Whitelisted(contestID, account)
	if err != nil {
		return err
	}
	if current == allowed {
		return nil
	}
	cs := NewChangeset()
	cs.SetWhitelisted(contestID, account, allowed)
	if err := e.state.Apply(cs); err != nil {
		return err
	}
	e.emit(whitelistEvent(contestID, account, allowed))
	return nil
}
