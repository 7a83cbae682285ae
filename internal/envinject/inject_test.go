package envinject

import (
	"errors"
	"testing"

	"github.com/psantana5/trohook/internal/config"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapEnv) Setenv(name, value string, overwrite bool) error {
	if _, ok := m[name]; ok && !overwrite {
		return nil
	}
	m[name] = value
	return nil
}

type fakeUsers map[uint32]string

func (f fakeUsers) LookupUID(uid uint32) (string, error) {
	name, ok := f[uid]
	if !ok {
		return "", errors.New("unknown uid")
	}
	return name, nil
}

func testConfig() *config.PluginConfig {
	return &config.PluginConfig{XaltDir: "/opt/xalt", GPGHome: "/etc/trohook/gnupg"}
}

func TestComposePreload(t *testing.T) {
	shim := "/opt/xalt/lib64/libxalt_init.so"
	tests := []struct {
		name     string
		existing string
		present  bool
		want     string
	}{
		{"unset", "", false, shim},
		{"set empty", "", true, shim},
		{"single entry", "/usr/lib/libfoo.so", true, shim + ":/usr/lib/libfoo.so"},
		{"list", "/a.so:/b.so", true, shim + ":/a.so:/b.so"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposePreload(shim, tt.existing, tt.present); got != tt.want {
				t.Errorf("ComposePreload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanOrderAndValues(t *testing.T) {
	env := mapEnv{"LD_PRELOAD": "/usr/lib/libdarshan.so"}
	muts, err := Plan(env, testConfig(), 1001, fakeUsers{1001: "alice"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := []Mutation{
		{EnvGNUPGHome, "/etc/trohook/gnupg", true},
		{EnvGPGHome, "/etc/trohook/gnupg", true},
		{EnvXaltDir, "/opt/xalt", true},
		{EnvPreload, "/opt/xalt/lib64/libxalt_init.so:/usr/lib/libdarshan.so", true},
		{EnvUser, "alice", true},
		{EnvExecutableTracking, "yes", true},
		{EnvTracing, "no", true},
	}
	if len(muts) != len(want) {
		t.Fatalf("got %d mutations, want %d: %+v", len(muts), len(want), muts)
	}
	for i := range want {
		if muts[i] != want[i] {
			t.Errorf("mutation %d = %+v, want %+v", i, muts[i], want[i])
		}
	}
}

func TestPlanIsPure(t *testing.T) {
	env := mapEnv{"LD_PRELOAD": "/a.so"}
	if _, err := Plan(env, testConfig(), 1, fakeUsers{1: "bob"}); err != nil {
		t.Fatal(err)
	}
	if len(env) != 1 || env["LD_PRELOAD"] != "/a.so" {
		t.Errorf("Plan mutated the environment: %v", env)
	}
}

func TestPlanUnknownUser(t *testing.T) {
	_, err := Plan(mapEnv{}, testConfig(), 4242, fakeUsers{})
	var injErr *InjectionError
	if !errors.As(err, &injErr) {
		t.Fatalf("expected *InjectionError, got %v", err)
	}
	if injErr.UID != 4242 {
		t.Errorf("UID = %d, want 4242", injErr.UID)
	}
}

func TestApplyPreservesExistingPreload(t *testing.T) {
	env := mapEnv{"LD_PRELOAD": "/keep/me.so", "HOME": "/home/alice"}
	muts, err := Plan(env, testConfig(), 7, fakeUsers{7: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(env, muts); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if env["LD_PRELOAD"] != "/opt/xalt/lib64/libxalt_init.so:/keep/me.so" {
		t.Errorf("LD_PRELOAD = %q", env["LD_PRELOAD"])
	}
	if env["USER"] != "alice" || env["XALT_TRACING"] != "no" || env["XALT_EXECUTABLE_TRACKING"] != "yes" {
		t.Errorf("unexpected env after Apply: %v", env)
	}
	if env["HOME"] != "/home/alice" {
		t.Error("unrelated variable was touched")
	}
}

type failingSetter struct{ calls int }

func (f *failingSetter) Setenv(name, value string, overwrite bool) error {
	f.calls++
	return errors.New("read-only environment")
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	s := &failingSetter{}
	err := Apply(s, []Mutation{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if s.calls != 1 {
		t.Errorf("Setenv called %d times, want 1", s.calls)
	}
}
