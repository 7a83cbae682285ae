package provenance

import (
	"github.com/psantana5/trohook/internal/config"
)

// Arrangement references used by the performance record. The tool numbers
// arrangements in insertion order, so Open must create 0 and Close must create 1.
const (
	OpeningArrangement = "arrangement/0"
	ClosingArrangement = "arrangement/1"
)

// Messages attached to the arrangement entries.
const (
	OpenMessage  = "Initial arrangement"
	CloseMessage = "Final arrangement"
)

// ExcludePattern keeps repository metadata out of arrangement snapshots.
const ExcludePattern = ".git"

func globalArgs(doc string, cfg *config.PluginConfig, withProfile bool) []string {
	args := []string{"--declaration", doc}
	if withProfile {
		args = append(args, "--profile", cfg.TRSCaps)
	}
	return append(args,
		"--gpg-fingerprint", cfg.GPGFingerprint,
		"--gpg-passphrase", cfg.GPGPassphrase,
	)
}

// ArrangementArgs builds `arrangement add` for a snapshot of workdir.
func ArrangementArgs(doc string, cfg *config.PluginConfig, message, workdir string) []string {
	return append(globalArgs(doc, cfg, true),
		"arrangement", "add",
		"-m", message,
		"-i", ExcludePattern,
		workdir,
	)
}

// PerformanceArgs builds `performance add` spanning the two arrangements.
func PerformanceArgs(doc string, cfg *config.PluginConfig, message, start, end string) []string {
	return append(globalArgs(doc, cfg, true),
		"performance", "add",
		"-m", message,
		"-s", start,
		"-e", end,
		"-a", OpeningArrangement,
		"-M", ClosingArrangement,
	)
}

// SignArgs builds `sign`.
func SignArgs(doc string, cfg *config.PluginConfig) []string {
	return append(globalArgs(doc, cfg, false), "sign")
}

// RedactArgs masks the passphrase value for logging.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "--gpg-passphrase" {
			out[i+1] = "********"
		}
	}
	return out
}
