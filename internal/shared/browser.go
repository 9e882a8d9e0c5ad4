package shared

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
)

// EnvBrowser names a browser command used instead of the platform opener.
const EnvBrowser = "BROWSER"

var (
	getRuntime   = func() string { return runtime.GOOS }
	startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// browserCommand builds the command that opens rawURL on goos.
//
// Windows goes through rundll32 because cmd's start splits the URL at every '&'.
func browserCommand(goos, rawURL string) (*exec.Cmd, error) {
	if browser := os.Getenv(EnvBrowser); browser != "" {
		return exec.Command(browser, rawURL), nil
	}

	switch goos {
	case "darwin":
		return exec.Command("open", rawURL), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", rawURL), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser opens an http(s) URL, normally the Google consent page, without waiting for the browser to exit.
func OpenBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: refusing to open %q", ErrInvalidArgument, rawURL)
	}

	cmd, err := browserCommand(getRuntime(), rawURL)
	if err != nil {
		return err
	}
	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
