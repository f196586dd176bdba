package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module has been halted by governance.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused under any configured view.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CompositePauseView ORs several pause views together so a module counts as
// paused when any of them says so.
type CompositePauseView []PauseView

func (c CompositePauseView) IsPaused(module string) bool {
	for _, view := range c {
		if view != nil && view.IsPaused(module) {
			return true
		}
	}
	return false
}

// StaticPauseView is a fixed set of paused module names.
type StaticPauseView map[string]bool

func (s StaticPauseView) IsPaused(module string) bool {
	return s[module]
}
