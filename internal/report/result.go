package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/psantana5/trohook/internal/logging"
)

// PhaseOutcome is the frozen record of one provenance step.
type PhaseOutcome struct {
	Phase    string        `json:"phase" yaml:"phase"`
	Outcome  string        `json:"outcome" yaml:"outcome"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Result is job-level provenance truth for one hook instance.
// Phases are appended as they happen; nothing is rewritten.
type Result struct {
	JobID        uint32         `json:"job_id" yaml:"job_id"`
	Node         string         `json:"node,omitempty" yaml:"node,omitempty"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	DocumentPath string         `json:"document_path,omitempty" yaml:"document_path,omitempty"`
	StartTime    time.Time      `json:"start_time" yaml:"start_time"`
	EndTime      time.Time      `json:"end_time" yaml:"end_time"`
	Phases       []PhaseOutcome `json:"phases" yaml:"phases"`
	Sealed       bool           `json:"sealed" yaml:"sealed"`
	JobExitCode  int            `json:"job_exit_code" yaml:"job_exit_code"`
}

// NewResult starts a result for a job
func NewResult(jobID uint32, node string) *Result {
	return &Result{
		JobID:     jobID,
		Node:      node,
		StartTime: time.Now(),
	}
}

// AddPhase appends a phase outcome
func (r *Result) AddPhase(phase, outcome string, err error, d time.Duration) {
	p := PhaseOutcome{Phase: phase, Outcome: outcome, Duration: d}
	if err != nil {
		p.Error = err.Error()
	}
	r.Phases = append(r.Phases, p)
}

// Failed reports whether any phase failed
func (r *Result) Failed() bool {
	for _, p := range r.Phases {
		if p.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Finish freezes the end time. Call this ONCE.
func (r *Result) Finish() {
	if r.EndTime.IsZero() {
		r.EndTime = time.Now()
	}
}

// LogSummary emits the one-line summary ops grep for.
func (r *Result) LogSummary(logger *logging.Logger) {
	if !r.Enabled {
		logger.Info(fmt.Sprintf("JOB %d | provenance=disabled | exit=%d", r.JobID, r.JobExitCode))
		return
	}

	steps := make([]string, 0, len(r.Phases))
	for _, p := range r.Phases {
		steps = append(steps, p.Phase+"="+p.Outcome)
	}
	status := "SEALED"
	if !r.Sealed {
		status = "INCOMPLETE"
	}

	msg := fmt.Sprintf("JOB %d | provenance=%s | %s | doc=%s | exit=%d",
		r.JobID, status, strings.Join(steps, ","), r.DocumentPath, r.JobExitCode)
	if r.Sealed {
		logger.Info(msg)
	} else {
		logger.Warn(msg)
	}
}
