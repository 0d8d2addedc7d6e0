package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

type ProfileOptions struct {
	// UseRealChromeProfile reuses an existing Chrome profile directory so
	// the session inherits its cookies. Recommended, since a fresh profile
	// tends to trip anti-bot interstitials on the login flow.
	UseRealChromeProfile bool   `json:"use_real_chrome_profile"`
	Name                 string `json:"name"`
	MacChromeDir         string `json:"mac_chrome_dir"`
	WinChromeDir         string `json:"win_chrome_dir"`
	LinuxChromeDir       string `json:"linux_chrome_dir"`
}

const (
	defaultMacChromeDir   = "~/Library/Application Support/Google/Chrome"
	defaultWinChromeDir   = `C:\Users\%USERNAME%\AppData\Local\Google\Chrome\User Data`
	defaultLinuxChromeDir = "~/.config/google-chrome"

	defaultProfileName = "Default"
	dedicatedDirName   = ".chatexport_profile"
)

// Dir resolves the user-data directory for the session. A dedicated
// directory under the home dir is used unless an existing Chrome profile
// was requested.
func (o ProfileOptions) Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if !o.UseRealChromeProfile {
		return filepath.Join(home, dedicatedDirName), nil
	}

	base := ""
	switch runtime.GOOS {
	case "darwin":
		base = stringOr(o.MacChromeDir, defaultMacChromeDir)
	case "windows":
		base = stringOr(o.WinChromeDir, defaultWinChromeDir)
	default:
		base = stringOr(o.LinuxChromeDir, defaultLinuxChromeDir)
	}
	base = expandHome(base, home)
	base = strings.ReplaceAll(base, "%USERNAME%", filepath.Base(home))

	return filepath.Join(base, stringOr(o.Name, defaultProfileName)), nil
}

func stringOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
