package common

import "errors"

// ErrModulePaused is returned by Guard when the named module is currently
// paused by governance.
var ErrModulePaused = errors.New("module paused")

// PauseView is the minimal capability the engine exposes to its components
// for checking the governance pause switch without granting them write
// access to the pause set itself.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused if module is paused under p. A nil PauseView
// or empty module name is treated as unpaused, which lets components used
// outside the full engine (unit tests, standalone tools) skip the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
