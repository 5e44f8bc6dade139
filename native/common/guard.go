package common

import "errors"

// ErrModulePaused is returned by Guard when the module is halted by the owner.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. The returned error is
// classified as a state error so callers can map it with errors.Is.
func Guard(p PauseView, module, op string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return &Error{Kind: ErrState, Op: op, Msg: ErrModulePaused.Error()}
	}
	return nil
}

// IsPaused reports whether err originated from Guard.
func IsPaused(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrState && e.Msg == ErrModulePaused.Error()
	}
	return false
}
