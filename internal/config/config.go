// Package config loads process-wide defaults for the branchback tool:
// the repository directory name, the default author recorded on a
// snapshot, path-exclusion patterns, and logging settings. None of this
// is versioned state — it governs how the tool behaves, not what it
// stores — so it is never written inside the repository directory
// itself.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved, validated configuration for one invocation.
type Config struct {
	RepoDirName     string
	DefaultUser     string
	ExcludePatterns []string
	LogLevel        string
	LogFormat       string
}

const (
	defaultRepoDirName = ".pbb"
	defaultLogLevel    = "info"
	defaultLogFormat   = "console"
)

// Load builds a Config from environment variables (prefixed PBB_) and
// an optional .pbb.yaml in the current directory, falling back to
// built-in defaults for anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("pbb")
	v.AutomaticEnv()

	v.SetDefault("repo_dir_name", defaultRepoDirName)
	v.SetDefault("default_user", fallbackUser())
	v.SetDefault("exclude_patterns", []string{})
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)

	v.SetConfigName(".pbb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	cfg := Config{
		RepoDirName:     v.GetString("repo_dir_name"),
		DefaultUser:     v.GetString("default_user"),
		ExcludePatterns: v.GetStringSlice("exclude_patterns"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}
	return cfg, nil
}

func fallbackUser() string {
	for _, envVar := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v
		}
	}
	return "unknown"
}
