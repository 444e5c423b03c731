// Package settings manages persistent user settings for the nvconf CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultAuditLog is used when no audit log path is configured.
const DefaultAuditLog = "/var/log/nvconf/audit.log"

// Settings holds persistent defaults for global flags.
type Settings struct {
	// Host is the switch to manage when -H is not given; empty means local.
	Host string `json:"host,omitempty"`

	User           string `json:"user,omitempty"`
	IdentityFile   string `json:"identity_file,omitempty"`
	KnownHostsFile string `json:"known_hosts_file,omitempty"`

	// NVPath overrides the location of the nv binary on the switch.
	NVPath string `json:"nv_path,omitempty"`

	AuditLog    string `json:"audit_log,omitempty"`
	AuditRedis  string `json:"audit_redis,omitempty"`
	MetricsFile string `json:"metrics_file,omitempty"`
}

// keys maps user-facing setting names to their fields.
var keys = map[string]func(*Settings) *string{
	"host":             func(s *Settings) *string { return &s.Host },
	"user":             func(s *Settings) *string { return &s.User },
	"identity_file":    func(s *Settings) *string { return &s.IdentityFile },
	"known_hosts_file": func(s *Settings) *string { return &s.KnownHostsFile },
	"nv_path":          func(s *Settings) *string { return &s.NVPath },
	"audit_log":        func(s *Settings) *string { return &s.AuditLog },
	"audit_redis":      func(s *Settings) *string { return &s.AuditRedis },
	"metrics_file":     func(s *Settings) *string { return &s.MetricsFile },
}

// Keys returns the setting names accepted by Set and Get, sorted.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nvconf_settings.json"
	}
	return filepath.Join(home, ".nvconf", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from path. A missing file yields empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Set assigns a setting by name. Names may use '-' or '_'.
func (s *Settings) Set(name, value string) error {
	field, ok := keys[strings.ReplaceAll(name, "-", "_")]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %s)", name, strings.Join(Keys(), ", "))
	}
	*field(s) = value
	return nil
}

// Get returns a setting by name.
func (s *Settings) Get(name string) (string, error) {
	field, ok := keys[strings.ReplaceAll(name, "-", "_")]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", name)
	}
	return *field(s), nil
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return DefaultAuditLog
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
