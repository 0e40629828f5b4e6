package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

const defaultAddr = "http://127.0.0.1:8080"

// Settings are the connection details shared by every command.
type Settings struct {
	Addr        string        `yaml:"addr" json:"addr"`
	AdminKey    string        `yaml:"admin_key" json:"admin_key"`
	AppSecret   string        `yaml:"app_secret" json:"app_secret"`
	VerifyToken string        `yaml:"verify_token" json:"verify_token"`
	Timeout     time.Duration `yaml:"-" json:"-"`
}

// LoadFromFile reads settings from a YAML file.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return &s, nil
}

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagedeskctl.yaml")
}

// settingsFor merges the settings file, PAGEDESK_* env vars and flags, in
// increasing priority.
func settingsFor(cmd *cobra.Command) (*Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultSettingsPath()
	}

	s := &Settings{}
	if path != "" {
		loaded, err := LoadFromFile(path)
		switch {
		case err == nil:
			s = loaded
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if v := os.Getenv("PAGEDESK_APP_SECRET"); v != "" && s.AppSecret == "" {
		s.AppSecret = v
	}
	if v := os.Getenv("PAGEDESK_VERIFY_TOKEN"); v != "" && s.VerifyToken == "" {
		s.VerifyToken = v
	}

	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		s.Addr = v
	}
	if v, _ := cmd.Flags().GetString("admin-key"); v != "" {
		s.AdminKey = v
	}
	if v, _ := cmd.Flags().GetString("app-secret"); v != "" {
		s.AppSecret = v
	}
	s.Timeout, _ = cmd.Flags().GetDuration("timeout")

	if s.Addr == "" {
		s.Addr = defaultAddr
	}
	s.Addr = strings.TrimRight(s.Addr, "/")
	return s, nil
}
