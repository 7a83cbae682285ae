package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (TROHOOK_XALT_DIR, ...).
const EnvPrefix = "TROHOOK"

// Load reads plugin arguments from a config file and TROHOOK_* environment variables.
// An empty path only consults the environment. The returned vector feeds Parse, so file
// values go through exactly the same validation as plugstack arguments.
func Load(path string) ([]string, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, k := range Keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	return argsFrom(v), nil
}

func argsFrom(v *viper.Viper) []string {
	var args []string
	for _, k := range Keys {
		if !v.IsSet(k) {
			continue
		}
		value := v.GetString(k)
		if value == "" {
			continue
		}
		args = append(args, k+"="+value)
	}
	return args
}

// Merge returns base followed by overrides; Parse keeps the last value per key.
func Merge(base, overrides []string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	out = append(out, base...)
	return append(out, overrides...)
}
