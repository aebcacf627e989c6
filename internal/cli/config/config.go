package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "taskdeck.json"

// Server represents a Taskdeck API server configuration
type Server struct {
	Alias string `json:"alias"`
	// URL is the API base URL including the /api prefix
	URL   string `json:"url"`
	WSURL string `json:"ws_url,omitempty"`
}

// NotificationsURL returns the WebSocket notification endpoint. When WSURL is
// not set it is derived from the API URL: http becomes ws, https becomes wss,
// and a trailing /api is replaced by /ws/notifications/.
func (s *Server) NotificationsURL() (string, error) {
	if s.WSURL != "" {
		return s.WSURL, nil
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", s.URL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	path := strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api")
	u.Path = path + "/ws/notifications/"
	u.RawQuery = ""
	return u.String(), nil
}

// Config represents the project configuration file
type Config struct {
	Servers []Server `json:"servers"`
}

// FindConfigFile searches for taskdeck.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find taskdeck.json or reach root
	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("taskdeck.json not found in %s or any parent directory", currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetServerByURL returns a server by its API URL, ignoring a trailing slash
func (c *Config) GetServerByURL(rawURL string) (*Server, error) {
	want := strings.TrimRight(rawURL, "/")
	for i := range c.Servers {
		if strings.TrimRight(c.Servers[i].URL, "/") == want {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with URL '%s' not found", rawURL)
}

// GetServerByURLOrAlias finds a server by URL first, then by alias
func (c *Config) GetServerByURLOrAlias(urlOrAlias string) (*Server, error) {
	if server, err := c.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := c.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with URL or alias '%s' not found", urlOrAlias)
}

// GetDefaultServer returns the first server in the list
func (c *Config) GetDefaultServer() (*Server, error) {
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in taskdeck.json")
	}
	return &c.Servers[0], nil
}
