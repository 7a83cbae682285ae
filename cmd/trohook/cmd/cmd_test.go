package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset := func() {
		outputFormat = "table"
		cfgFile = ""
		runPluginArgs = nil
		runGenerateTRO = false
		runContext = "execution"
		logLevel = ""
		logToFile = false
	}
	reset()
	t.Cleanup(reset)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestTimestampCommand(t *testing.T) {
	out, err := execute(t, "timestamp", "0", "1700000000.9")
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01 00:00:00\n2023-11-14 22:13:20\n", out)
}

func TestTimestampRejectsGarbage(t *testing.T) {
	_, err := execute(t, "timestamp", "yesterday")
	assert.Error(t, err)
}

func TestConfigShowJSONMasksPassphrase(t *testing.T) {
	xalt := t.TempDir()
	path := filepath.Join(t.TempDir(), "trohook.yaml")
	content := "xalt_dir: " + xalt + "\n" +
		"tro_utils: /usr/bin/tro-utils\n" +
		"gpg_passphrase: hunter2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := execute(t, "config", "show", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")

	var view configView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, path, view.Source)
	assert.Equal(t, xalt, view.Config.XaltDir)
	assert.Equal(t, "********", view.Config.GPGPassphrase)
	assert.False(t, view.Valid)
	assert.Contains(t, view.Error, "trs_caps")
}

func TestRunOutsideExecutionContextPassesExitStatus(t *testing.T) {
	_, err := execute(t, "run", "--context", "submission", "--", "sh", "-c", "exit 3")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
}

func TestRunUnknownContext(t *testing.T) {
	_, err := execute(t, "run", "--context", "login", "--", "true")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "login"))
}

func TestTraceOwnerPrecedence(t *testing.T) {
	t.Setenv("SLURM_JOB_USER", "slurmuser")
	t.Setenv("USER", "shelluser")

	traceUser = "flaguser"
	owner, err := traceOwner()
	require.NoError(t, err)
	assert.Equal(t, "flaguser", owner)

	traceUser = ""
	owner, err = traceOwner()
	require.NoError(t, err)
	assert.Equal(t, "slurmuser", owner)

	t.Setenv("SLURM_JOB_USER", "")
	owner, err = traceOwner()
	require.NoError(t, err)
	assert.Equal(t, "shelluser", owner)
}

// stubTool writes a tro-utils stand-in that appends its arguments to a log file.
func stubTool(t *testing.T) (tool, calls string) {
	t.Helper()
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls.log")
	tool = filepath.Join(dir, "tro-utils")
	script := "#!/bin/sh\necho \"$@\" >> " + calls + "\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0755))
	return tool, calls
}

func TestRunExecutionContextKeepsJobExitStatus(t *testing.T) {
	me, err := user.Current()
	if err != nil {
		t.Skipf("no account for the current uid: %v", err)
	}

	xalt := t.TempDir()
	submitDir := t.TempDir()
	envDump := filepath.Join(submitDir, "job.env")
	tool, calls := stubTool(t)

	t.Setenv("SLURM_JOB_ID", "987654321")
	t.Setenv("SLURM_JOB_UID", strconv.Itoa(os.Getuid()))
	t.Setenv("SLURM_SUBMIT_DIR", submitDir)
	t.Setenv("SLURM_JOB_USER", me.Username)
	t.Setenv("LD_PRELOAD", "")
	os.Unsetenv("LD_PRELOAD")

	_, err = execute(t, "run", "--generate-tro",
		"--plugin-arg", "xalt_dir="+xalt,
		"--plugin-arg", "tro_utils="+tool,
		"--plugin-arg", "trs_caps=/etc/trohook/trs.jsonld",
		"--plugin-arg", "gpg_fingerprint=FP01",
		"--", "sh", "-c", "env > "+envDump+"; exit 5")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 5, exitErr.Code)

	env, err := os.ReadFile(envDump)
	require.NoError(t, err)
	assert.Contains(t, string(env), "LD_PRELOAD="+xalt+"/lib64/libxalt_init.so\n")
	assert.Contains(t, string(env), "XALT_DIR="+xalt+"\n")
	assert.Contains(t, string(env), "XALT_EXECUTABLE_TRACKING=yes\n")
	assert.Contains(t, string(env), "XALT_TRACING=no\n")

	// No trace exists for the job, so only the two arrangements are recorded.
	logged, err := os.ReadFile(calls)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(logged)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "arrangement add -m Initial arrangement")
	assert.Contains(t, lines[1], "arrangement add -m Final arrangement")
}

func TestRunLogsLoggingFallback(t *testing.T) {
	out, err := execute(t, "run", "--context", "submission", "--log-level", "debug",
		"--plugin-arg", "xalt_dir="+filepath.Join(t.TempDir(), "missing"),
		"--", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "Logging settings fall back to defaults")
}
