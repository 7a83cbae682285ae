// Package slurm adapts a Slurm job environment to the hook.Handle capability set.
package slurm

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/psantana5/trohook/internal/hook"
)

// Environment the adapter reads job identity from.
const (
	EnvJobID    = "SLURM_JOB_ID"
	EnvJobIDOld = "SLURM_JOBID"
	EnvJobUID   = "SLURM_JOB_UID"
)

// EnvHandle is a Handle over an in-memory copy of the job environment.
// Writes land in the copy, which becomes the job's environment; the hook's own
// process environment is never touched.
type EnvHandle struct {
	ctx     hook.Context
	argv    []string
	options map[string]bool

	mu         sync.Mutex
	env        map[string]string
	registered map[string]hook.Option
}

// NewEnvHandle builds a handle from KEY=VALUE pairs (typically os.Environ()).
// options holds the switches the operator passed on the command line.
func NewEnvHandle(ctx hook.Context, argv []string, environ []string, options map[string]bool) *EnvHandle {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	if options == nil {
		options = map[string]bool{}
	}
	return &EnvHandle{
		ctx:        ctx,
		argv:       argv,
		options:    options,
		env:        env,
		registered: make(map[string]hook.Option),
	}
}

// Context implements hook.Handle
func (h *EnvHandle) Context() hook.Context { return h.ctx }

// PluginArgv implements hook.Handle
func (h *EnvHandle) PluginArgv() []string { return h.argv }

// JobID reads SLURM_JOB_ID (or the legacy SLURM_JOBID).
func (h *EnvHandle) JobID() (uint32, error) {
	for _, name := range []string{EnvJobID, EnvJobIDOld} {
		if v, ok := h.Getenv(name); ok && v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return 0, fmt.Errorf("parse %s=%q: %w", name, v, err)
			}
			return uint32(id), nil
		}
	}
	return 0, fmt.Errorf("%s is not set", EnvJobID)
}

// JobUID reads SLURM_JOB_UID, falling back to the uid this process runs as.
func (h *EnvHandle) JobUID() (uint32, error) {
	if v, ok := h.Getenv(EnvJobUID); ok && v != "" {
		uid, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse %s=%q: %w", EnvJobUID, v, err)
		}
		return uint32(uid), nil
	}
	return uint32(os.Getuid()), nil
}

// Getenv implements hook.Handle
func (h *EnvHandle) Getenv(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.env[name]
	return v, ok
}

// Setenv implements hook.Handle
func (h *EnvHandle) Setenv(name, value string, overwrite bool) error {
	if name == "" || strings.ContainsRune(name, '=') {
		return fmt.Errorf("invalid variable name %q", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.env[name]; exists && !overwrite {
		return nil
	}
	h.env[name] = value
	return nil
}

// RegisterOption implements hook.Handle
func (h *EnvHandle) RegisterOption(opt hook.Option) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.registered[opt.Name]; dup {
		return fmt.Errorf("option %q already registered", opt.Name)
	}
	h.registered[opt.Name] = opt
	return nil
}

// IsOptionSet is true only for registered options the operator passed.
func (h *EnvHandle) IsOptionSet(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, registered := h.registered[name]
	return registered && h.options[name]
}

// Environ returns the job environment as sorted KEY=VALUE pairs.
func (h *EnvHandle) Environ() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.env))
	for k, v := range h.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
