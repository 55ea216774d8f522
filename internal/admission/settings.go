package admission

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

const (
	SettingsFileEnvKey = "ADMISSION_SETTINGS_FILE"
	MaxSnapshotsEnvKey = "DEFAULT_MAX_SNAPSHOTS_PER_POLICY"
	BlockedReposEnvKey = "BLOCKED_REPOSITORIES"

	DefaultMaxSnapshotsPerPolicy = 50
)

// Settings are the operator-tunable admission rules. The max-count value is a
// ceiling as well as the default: policies above it are clamped, not rejected.
type Settings struct {
	DefaultMaxSnapshotsPerPolicy int64    `yaml:"default_max_snapshots_per_policy"`
	BlockedRepositories          []string `yaml:"blocked_repositories"`
}

func DefaultSettings() Settings {
	return Settings{
		DefaultMaxSnapshotsPerPolicy: DefaultMaxSnapshotsPerPolicy,
		BlockedRepositories:          []string{"cs-automated"},
	}
}

// SettingsFromEnv starts from the built-in defaults, overlays the YAML file
// named by ADMISSION_SETTINGS_FILE when set, then applies per-setting env
// overrides.
func SettingsFromEnv() (Settings, error) {
	s := DefaultSettings()
	if path := os.Getenv(SettingsFileEnvKey); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read admission settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("parse admission settings: %w", err)
		}
	}
	if v := os.Getenv(MaxSnapshotsEnvKey); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Settings{}, fmt.Errorf("invalid %s: %q", MaxSnapshotsEnvKey, v)
		}
		s.DefaultMaxSnapshotsPerPolicy = n
	}
	if v := os.Getenv(BlockedReposEnvKey); v != "" {
		s.BlockedRepositories = nil
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				s.BlockedRepositories = append(s.BlockedRepositories, r)
			}
		}
	}
	return s, nil
}
