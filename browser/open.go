package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// commandStarter is replaced in tests so no real browser opens.
var commandStarter = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenBrowser opens url in the default browser on Linux, macOS and Windows.
// It returns once the opener process has started.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := commandStarter(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
