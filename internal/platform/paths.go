// Package platform resolves per-user locations for the board's config file and log output.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultAppName names the config and data directories when no app name is supplied.
const defaultAppName = "dragboard"

// Paths holds the resolved per-user locations for config and logs.
type Paths struct {
	ConfigPath string
	DataDir    string
	LogDir     string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths for the current OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{}
	for _, key := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"} {
		env[key] = os.Getenv(key)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appDirName(opts))
}

// PathsFor resolves paths for goos from explicit base dirs and environment overrides.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	var configKey, dataKey string
	switch goos {
	case "linux":
		configKey, dataKey = "XDG_CONFIG_HOME", "XDG_DATA_HOME"
	case "windows":
		configKey, dataKey = "APPDATA", "LOCALAPPDATA"
	}
	if v := env[configKey]; configKey != "" && v != "" {
		configBase = v
	}
	if v := env[dataKey]; dataKey != "" && v != "" {
		dataBase = v
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}

func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = defaultAppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}
