package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "planit"
	configName = "config"
	configFile = configName + ".json"
	envPrefix  = "PLANIT"

	DefaultCalendar      = "Tasks"
	DefaultNotionURL     = "https://api.notion.com/v1"
	DefaultNotionVersion = "2022-06-28"
)

// Config holds the settings planit reads on every run, with environment
// overrides applied. Use SetDatabaseID and SetCalendar to change what Save
// writes; environment values never reach the file.
type Config struct {
	DatabaseID    string `mapstructure:"database_id"`
	Calendar      string `mapstructure:"calendar"`
	NotionURL     string `mapstructure:"notion_url"`
	NotionVersion string `mapstructure:"notion_version"`
	// Token comes from PLANIT_TOKEN only and is never persisted.
	Token string `mapstructure:"token"`

	dir  string
	file fileConfig
}

// fileConfig is the on-disk shape of config.json.
type fileConfig struct {
	DatabaseID string `json:"database_id"`
	Calendar   string `json:"calendar"`
}

// Dir returns ~/.config/planit.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// Load reads the config from the default directory.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads dir/config.json, overlays PLANIT_* environment variables
// and fills in defaults. A missing file is not an error.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	v.SetDefault("database_id", "")
	v.SetDefault("calendar", DefaultCalendar)
	v.SetDefault("notion_url", DefaultNotionURL)
	v.SetDefault("notion_version", DefaultNotionVersion)
	v.SetDefault("token", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Capture the file values before the environment is layered on top.
	file := fileConfig{
		DatabaseID: v.GetString("database_id"),
		Calendar:   v.GetString("calendar"),
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{dir: dir, file: file}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Calendar == "" {
		cfg.Calendar = DefaultCalendar
	}
	cfg.NotionURL = strings.TrimRight(cfg.NotionURL, "/")
	return cfg, nil
}

// SetDatabaseID changes the default database for this run and for Save.
func (c *Config) SetDatabaseID(id string) {
	c.DatabaseID = id
	c.file.DatabaseID = id
}

// SetCalendar changes the mirror calendar for this run and for Save.
func (c *Config) SetCalendar(name string) {
	c.Calendar = name
	c.file.Calendar = name
}

// Path is where Save writes.
func (c *Config) Path() string {
	return filepath.Join(c.dir, configFile)
}

// Save writes the values read from the file, plus any Set* changes, back to
// disk.
func (c *Config) Save() error {
	if c.dir == "" {
		return fmt.Errorf("config has no directory; load it before saving")
	}
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(c.Path(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c.file)
}
