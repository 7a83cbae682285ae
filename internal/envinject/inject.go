// Package envinject computes the environment a job needs for XALT to trace it.
//
// Planning is pure: Plan reads the current environment through a Getter and returns
// the mutations to make. Apply hands them to whatever owns the job environment.
package envinject

import (
	"fmt"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/psantana5/trohook/internal/config"
)

// Variables written into the job environment.
const (
	EnvGNUPGHome          = "GNUPGHOME"
	EnvGPGHome            = "GPG_HOME"
	EnvXaltDir            = "XALT_DIR"
	EnvPreload            = "LD_PRELOAD"
	EnvUser               = "USER"
	EnvExecutableTracking = "XALT_EXECUTABLE_TRACKING"
	EnvTracing            = "XALT_TRACING"
)

// PreloadSeparator joins entries of the preload list.
const PreloadSeparator = ":"

// Getter reads the job environment.
type Getter interface {
	Getenv(name string) (string, bool)
}

// Setter writes the job environment.
type Setter interface {
	Setenv(name, value string, overwrite bool) error
}

// UserResolver maps a numeric owner to a login name.
type UserResolver interface {
	LookupUID(uid uint32) (string, error)
}

// Mutation is a single environment write.
type Mutation struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Overwrite bool   `json:"overwrite"`
}

// ShimPath is the XALT init library injected through the preload list.
func ShimPath(xaltDir string) string {
	return filepath.Join(xaltDir, "lib64", "libxalt_init.so")
}

// ComposePreload puts shim in front of an existing preload list, never dropping it.
func ComposePreload(shim, existing string, present bool) string {
	if !present || existing == "" {
		return shim
	}
	return shim + PreloadSeparator + existing
}

// Plan returns the ordered mutations that activate tracing for a job owned by uid.
func Plan(env Getter, cfg *config.PluginConfig, uid uint32, users UserResolver) ([]Mutation, error) {
	if cfg == nil {
		return nil, &InjectionError{Step: "config", Err: fmt.Errorf("plugin config not resolved")}
	}

	muts := []Mutation{
		{Name: EnvGNUPGHome, Value: cfg.GPGHome, Overwrite: true},
		{Name: EnvGPGHome, Value: cfg.GPGHome, Overwrite: true},
		{Name: EnvXaltDir, Value: cfg.XaltDir, Overwrite: true},
	}

	existing, present := env.Getenv(EnvPreload)
	muts = append(muts, Mutation{
		Name:      EnvPreload,
		Value:     ComposePreload(ShimPath(cfg.XaltDir), existing, present),
		Overwrite: true,
	})

	// USER is sometimes absent or wrong inside the step and XALT keys its records on it.
	name, err := users.LookupUID(uid)
	if err != nil {
		return nil, &InjectionError{Step: "resolve_user", UID: uid, Err: err}
	}
	if name == "" {
		return nil, &InjectionError{Step: "resolve_user", UID: uid, Err: fmt.Errorf("empty user name")}
	}
	muts = append(muts, Mutation{Name: EnvUser, Value: name, Overwrite: true})

	muts = append(muts,
		Mutation{Name: EnvExecutableTracking, Value: "yes", Overwrite: true},
		Mutation{Name: EnvTracing, Value: "no", Overwrite: true},
	)
	return muts, nil
}

// Apply writes mutations in order and stops at the first failure.
func Apply(env Setter, muts []Mutation) error {
	for _, m := range muts {
		if err := env.Setenv(m.Name, m.Value, m.Overwrite); err != nil {
			return &InjectionError{Step: "setenv " + m.Name, Err: err}
		}
	}
	return nil
}

// OSUsers resolves users from the system account database.
type OSUsers struct{}

// LookupUID implements UserResolver
func (OSUsers) LookupUID(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// InjectionError means the tracing environment could not be prepared safely.
type InjectionError struct {
	Step string
	UID  uint32
	Err  error
}

// Error implements error interface
func (e *InjectionError) Error() string {
	if e.Step == "resolve_user" {
		return fmt.Sprintf("env injection failed: cannot resolve user for uid %d: %v", e.UID, e.Err)
	}
	return fmt.Sprintf("env injection failed at %s: %v", e.Step, e.Err)
}

// Unwrap implements error unwrapping
func (e *InjectionError) Unwrap() error {
	return e.Err
}
