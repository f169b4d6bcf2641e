package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Paths holds the on-disk locations tally reads and writes.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Environment variables that override resolved paths.
const (
	EnvConfigPath = "TALLY_CONFIG"
	EnvDBPath     = "TALLY_DB_PATH"
	EnvDevMode    = "TALLY_DEV_MODE"
)

// Options controls path resolution. A nil Getenv reads the process environment.
type Options struct {
	AppName string
	DevMode bool
	Getenv  func(string) string
}

// DefaultPathsWithOptions resolves paths for the running OS. Dev mode appends
// "-dev" to the app name so a development build never touches the real store.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = "tally"
	}
	if opts.DevMode {
		appName += "-dev"
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return PathsFor(runtime.GOOS, getenv, configDir, dataDir, appName)
}

// PathsFor lays out config, data, db, and log locations under the given base
// dirs. XDG variables win on linux and APPDATA/LOCALAPPDATA on windows.
func PathsFor(goos string, getenv func(string) string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	configBase, dataBase := userConfigDir, userDataDir
	configVar, dataVar := "", ""
	switch goos {
	case "linux":
		configVar, dataVar = "XDG_CONFIG_HOME", "XDG_DATA_HOME"
	case "windows":
		configVar, dataVar = "APPDATA", "LOCALAPPDATA"
	}
	if configVar != "" {
		if v := strings.TrimSpace(getenv(configVar)); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv(dataVar)); v != "" {
			dataBase = v
		}
	}

	appDataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, appName+".db"),
		LogDir:     filepath.Join(appDataDir, "log"),
	}, nil
}

// WithEnvOverrides applies TALLY_CONFIG and TALLY_DB_PATH on top of resolved paths.
func WithEnvOverrides(p Paths, getenv func(string) string) Paths {
	if getenv == nil {
		return p
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		p.ConfigPath = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		p.DBPath = v
	}
	return p
}

// DevModeFromEnv reports whether TALLY_DEV_MODE holds a truthy value.
func DevModeFromEnv(getenv func(string) string) bool {
	if getenv == nil {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(getenv(EnvDevMode))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
