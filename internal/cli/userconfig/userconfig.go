// Package userconfig persists the CLI's per-user preferences, currently just
// which Taskdeck server the commands talk to.
package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	appDirName = "taskdeck"
	fileName   = "config.json"

	// DirEnv points the CLI at a different config directory, mainly for tests
	DirEnv = "TASKDECK_CONFIG_DIR"
)

// UserConfig is the JSON document kept in config.json
type UserConfig struct {
	SelectedServerURL string `json:"selected_server_url"`
}

// Dir is $TASKDECK_CONFIG_DIR when set, else ~/.config/taskdeck.
// The file token store lives here too.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// Path is config.json inside Dir
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load parses config.json. A missing file is a zero UserConfig, not an error.
func Load() (*UserConfig, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	cfg := &UserConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save replaces config.json via a temp file and rename, so readers never see
// a half-written document.
func Save(cfg *UserConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// SetSelectedServer records serverURL as the server later commands use
func SetSelectedServer(serverURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	cfg.SelectedServerURL = serverURL
	return Save(cfg)
}

// GetSelectedServer is the recorded server URL, "" when none was picked
func GetSelectedServer() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.SelectedServerURL, nil
}
