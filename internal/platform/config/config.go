package config

import (
	"fmt"
	"path/filepath"
)

type Config struct {
	DataDir      string
	WebsitesPath string
	StatePath    string
	SettingsPath string
	DBPath       string
	ListenAddr   string

	// NotifyPluginPath, when set, points at a notifier plugin binary that
	// receives user-facing alerts out of process.
	NotifyPluginPath string
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:      dataDir,
		WebsitesPath: filepath.Join(dataDir, "websites.json"),
		StatePath:    filepath.Join(dataDir, "state.json"),
		SettingsPath: filepath.Join(dataDir, "settings.yaml"),
		DBPath:       filepath.Join(dataDir, "prostop.db"),
		ListenAddr:   "127.0.0.1:7430",
	}, nil
}
