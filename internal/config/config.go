// Package config resolves the plugin's key=value arguments into a validated PluginConfig.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Recognized plugin argument keys.
const (
	KeyXaltDir        = "xalt_dir"
	KeyGPGHome        = "gpg_home"
	KeyGPGFingerprint = "gpg_fingerprint"
	KeyGPGPassphrase  = "gpg_passphrase"
	KeyTRSCaps        = "trs_caps"
	KeyTROUtils       = "tro_utils"

	KeyLogLevel     = "log_level"
	KeyLogJSON      = "log_json"
	KeyMetricsDir   = "metrics_dir"
	KeyOTLPEndpoint = "otlp_endpoint"
)

// Keys lists every recognized key in the order they are rendered.
var Keys = []string{
	KeyXaltDir, KeyGPGHome, KeyGPGFingerprint, KeyGPGPassphrase, KeyTRSCaps, KeyTROUtils,
	KeyLogLevel, KeyLogJSON, KeyMetricsDir, KeyOTLPEndpoint,
}

// PluginConfig is resolved once per hook instance and never mutated afterwards.
type PluginConfig struct {
	XaltDir        string `json:"xalt_dir" yaml:"xalt_dir"`
	GPGHome        string `json:"gpg_home" yaml:"gpg_home"`
	GPGFingerprint string `json:"gpg_fingerprint" yaml:"gpg_fingerprint"`
	GPGPassphrase  string `json:"gpg_passphrase" yaml:"gpg_passphrase"`
	TRSCaps        string `json:"trs_caps" yaml:"trs_caps"`
	TROUtils       string `json:"tro_utils" yaml:"tro_utils"`

	LogLevel     string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogJSON      bool   `json:"log_json,omitempty" yaml:"log_json,omitempty"`
	MetricsDir   string `json:"metrics_dir,omitempty" yaml:"metrics_dir,omitempty"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"`

	// Ignored holds entries Parse skipped: bare words and unparsable ambient values.
	Ignored []*ConfigError `json:"-" yaml:"-"`
}

// Parse builds a PluginConfig from an ordered key=value sequence.
// Unknown keys and entries without "=" are ignored; a later duplicate overrides an
// earlier one. Only an unusable xalt_dir fails.
func Parse(args []string) (*PluginConfig, error) {
	cfg := &PluginConfig{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			cfg.Ignored = append(cfg.Ignored, newConfigError(Malformed, arg, "expected key=value", nil))
			continue
		}
		key = strings.TrimSpace(key)

		switch key {
		case KeyXaltDir:
			dir, err := parseXaltDir(value)
			if err != nil {
				return nil, newConfigError(InvalidPath, arg, fmt.Sprintf("%s is not a valid directory", value), err)
			}
			cfg.XaltDir = dir
		case KeyGPGHome:
			cfg.GPGHome = value
		case KeyGPGFingerprint:
			cfg.GPGFingerprint = value
		case KeyGPGPassphrase:
			cfg.GPGPassphrase = value
		case KeyTRSCaps:
			cfg.TRSCaps = value
		case KeyTROUtils:
			cfg.TROUtils = value
		case KeyLogLevel:
			cfg.LogLevel = value
		case KeyLogJSON:
			b, err := strconv.ParseBool(value)
			if err != nil {
				cfg.Ignored = append(cfg.Ignored, newConfigError(Malformed, arg, "expected a boolean", err))
				continue
			}
			cfg.LogJSON = b
		case KeyMetricsDir:
			cfg.MetricsDir = value
		case KeyOTLPEndpoint:
			cfg.OTLPEndpoint = value
		}
	}
	return cfg, nil
}

func parseXaltDir(value string) (string, error) {
	info, err := os.Stat(value)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory")
	}
	return value, nil
}

// Validate reports the first value the provenance phases cannot run without.
func (c *PluginConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyXaltDir, c.XaltDir},
		{KeyTROUtils, c.TROUtils},
		{KeyTRSCaps, c.TRSCaps},
		{KeyGPGFingerprint, c.GPGFingerprint},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return newConfigError(Missing, r.key, "value is required", nil)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *PluginConfig) Redacted() PluginConfig {
	out := *c
	if out.GPGPassphrase != "" {
		out.GPGPassphrase = "********"
	}
	return out
}

// Args renders the config back into plugin arguments. Parse(c.Args()) yields an equal config.
func (c *PluginConfig) Args() []string {
	values := map[string]string{
		KeyXaltDir:        c.XaltDir,
		KeyGPGHome:        c.GPGHome,
		KeyGPGFingerprint: c.GPGFingerprint,
		KeyGPGPassphrase:  c.GPGPassphrase,
		KeyTRSCaps:        c.TRSCaps,
		KeyTROUtils:       c.TROUtils,
		KeyLogLevel:       c.LogLevel,
		KeyMetricsDir:     c.MetricsDir,
		KeyOTLPEndpoint:   c.OTLPEndpoint,
	}
	if c.LogJSON {
		values[KeyLogJSON] = "true"
	}

	var args []string
	for _, k := range Keys {
		if v := values[k]; v != "" {
			args = append(args, k+"="+v)
		}
	}
	return args
}
