package paste

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// RobotFocuser captures and restores focus through robotgo.
type RobotFocuser struct{}

func (RobotFocuser) Frontmost() (App, error) {
	pid := robotgo.GetPid()
	if pid <= 0 {
		return App{}, fmt.Errorf("no frontmost window")
	}
	title := robotgo.GetTitle(pid)
	return App{PID: int(pid), Name: title}, nil
}

func (RobotFocuser) Activate(app App) error {
	if app.PID <= 0 {
		return fmt.Errorf("no target pid")
	}
	return robotgo.ActivePid(app.PID)
}

// NopHotkeys satisfies Hotkeys for deployments without a global hotkey
// subsystem. The daemon registers no chords of its own.
type NopHotkeys struct{}

func (NopHotkeys) Suspend() {}
func (NopHotkeys) Resume()  {}

// RobotInjector fires the canonical paste chord through a synthetic
// keyboard event.
type RobotInjector struct{}

func (RobotInjector) InjectPaste() error {
	if runtime.GOOS == "darwin" {
		return robotgo.KeyTap("v", "cmd")
	}
	return robotgo.KeyTap("v", "ctrl")
}
