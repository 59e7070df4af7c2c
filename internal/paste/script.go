package paste

import (
	"fmt"
	"os/exec"
	"runtime"
)

// ScriptFallback shells out to the platform automation tool to issue a
// paste when synthetic injection is unavailable (permission revoked
// mid-flight, event construction failure).
type ScriptFallback struct{}

func (ScriptFallback) ScriptedPaste(app App) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := `tell application "System Events" to keystroke "v" using command down`
		if app.PID > 0 {
			// Target the captured application explicitly rather than
			// whatever is frontmost by the time the script runs.
			script = fmt.Sprintf(
				`tell application "System Events" to tell (first process whose unix id is %d)`+
					"\n\tset frontmost to true\n\tkeystroke \"v\" using command down\nend tell",
				app.PID)
		}
		cmd = exec.Command("/usr/bin/osascript", "-e", script)
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command",
			`(New-Object -ComObject WScript.Shell).SendKeys('^v')`)
	default:
		// xdotool addresses windows, not pids; the engine has already
		// restored focus, so the frontmost window is the target.
		cmd = exec.Command("xdotool", "key", "--clearmodifiers", "ctrl+v")
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("scripted paste: %w: %s", err, out)
	}
	return nil
}
