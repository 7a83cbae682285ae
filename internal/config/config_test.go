package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseRecognizedKeys(t *testing.T) {
	xalt := t.TempDir()
	args := []string{
		"xalt_dir=" + xalt,
		"gpg_home=/etc/trohook/gnupg",
		"gpg_fingerprint=ABCDEF0123",
		"gpg_passphrase=s3cret=with=equals",
		"trs_caps=/etc/trohook/trs.jsonld",
		"tro_utils=/usr/local/bin/tro-utils",
		"log_json=true",
	}

	cfg, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := &PluginConfig{
		XaltDir:        xalt,
		GPGHome:        "/etc/trohook/gnupg",
		GPGFingerprint: "ABCDEF0123",
		GPGPassphrase:  "s3cret=with=equals",
		TRSCaps:        "/etc/trohook/trs.jsonld",
		TROUtils:       "/usr/local/bin/tro-utils",
		LogJSON:        true,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Parse() = %+v, want %+v", cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	withUnknown, err := Parse([]string{"future_knob=1", "gpg_fingerprint=FP", "other=x"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	plain, err := Parse([]string{"gpg_fingerprint=FP"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(withUnknown, plain) {
		t.Errorf("unknown keys changed the config: %+v vs %+v", withUnknown, plain)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	args := []string{"xalt_dir=" + t.TempDir(), "tro_utils=/bin/tro", "trs_caps=/caps", "gpg_fingerprint=FP"}
	a, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	b, err := Parse(a.Args())
	if err != nil {
		t.Fatalf("Parse(Args()) error = %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("re-parse differs: %+v vs %+v", a, b)
	}
}

func TestParseXaltDirValidation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "libxalt.so")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"existing directory", dir, false},
		{"regular file", file, true},
		{"missing path", filepath.Join(dir, "nope"), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]string{"xalt_dir=" + tt.value})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Reason != InvalidPath {
				t.Errorf("Reason = %v, want %v", cfgErr.Reason, InvalidPath)
			}
			if cfgErr.Entry != "xalt_dir="+tt.value {
				t.Errorf("Entry = %q, want offending argument", cfgErr.Entry)
			}
		})
	}
}

func TestParseSkipsStrayEntries(t *testing.T) {
	xalt := t.TempDir()
	tests := []struct {
		name  string
		stray string
	}{
		{"bare word", "debug"},
		{"bad log_json", "log_json=yes-please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]string{"xalt_dir=" + xalt, tt.stray, "gpg_home=/x"})
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.XaltDir != xalt || cfg.GPGHome != "/x" {
				t.Errorf("recognized keys lost: %+v", cfg)
			}
			if cfg.LogJSON {
				t.Error("LogJSON should keep its default")
			}
			if len(cfg.Ignored) != 1 {
				t.Fatalf("Ignored = %v, want one entry", cfg.Ignored)
			}
			if got := cfg.Ignored[0]; got.Reason != Malformed || got.Entry != tt.stray {
				t.Errorf("Ignored[0] = %+v", got)
			}
		})
	}
}

func TestValidateReportsMissing(t *testing.T) {
	cfg := &PluginConfig{XaltDir: "/opt/xalt", TROUtils: "/bin/tro", TRSCaps: "/caps"}
	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Reason != Missing || cfgErr.Entry != KeyGPGFingerprint {
		t.Fatalf("Validate() = %v, want missing gpg_fingerprint", err)
	}
}

func TestRedactedMasksPassphrase(t *testing.T) {
	cfg := &PluginConfig{GPGPassphrase: "hunter2"}
	if got := cfg.Redacted().GPGPassphrase; got == "hunter2" || got == "" {
		t.Errorf("Redacted passphrase = %q", got)
	}
	if cfg.GPGPassphrase != "hunter2" {
		t.Error("Redacted mutated the original")
	}
}
