package provenance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/trohook/internal/config"
	"github.com/psantana5/trohook/internal/envinject"
	"github.com/psantana5/trohook/internal/logging"
	"github.com/psantana5/trohook/internal/observe"
	"github.com/psantana5/trohook/internal/report"
	"github.com/psantana5/trohook/internal/trace"
	"github.com/psantana5/trohook/internal/tracing"
)

// Phase names one provenance tool step.
type Phase string

const (
	PhaseOpen      Phase = "open"
	PhaseClose     Phase = "close"
	PhaseCorrelate Phase = "correlate"
	PhaseSeal      Phase = "seal"
)

// TraceLookup finds the execution trace for the session's job.
type TraceLookup func() (trace.ExecutionTrace, bool, error)

// Session tracks which phases have run against one document.
type Session struct {
	Job Job

	mu   sync.Mutex
	done map[Phase]bool
}

// Done reports whether phase has been attempted.
func (s *Session) Done(p Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[p]
}

// Sealed reports whether the document has been signed.
func (s *Session) Sealed() bool {
	return s.Done(PhaseSeal)
}

// claim marks p as attempted if the ordering allows it.
func (s *Session) claim(p Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done[p] {
		return fmt.Errorf("%w: %s already ran for %s", ErrPhaseOrder, p, s.Job.DocumentPath())
	}
	if s.done[PhaseSeal] {
		return fmt.Errorf("%w: document %s is sealed", ErrPhaseOrder, s.Job.DocumentPath())
	}

	var requires []Phase
	switch p {
	case PhaseClose:
		requires = []Phase{PhaseOpen}
	case PhaseCorrelate:
		requires = []Phase{PhaseOpen, PhaseClose}
	case PhaseSeal:
		requires = []Phase{PhaseOpen, PhaseClose, PhaseCorrelate}
	}
	for _, r := range requires {
		if !s.done[r] {
			return fmt.Errorf("%w: %s requires %s", ErrPhaseOrder, p, r)
		}
	}

	s.done[p] = true
	return nil
}

// PhaseObserver is told about every phase outcome, including skipped ones.
type PhaseObserver func(phase Phase, outcome string, err error, d time.Duration)

// Coordinator runs the tool invocations. It is synchronous and never retries.
type Coordinator struct {
	cfg      *config.PluginConfig
	runner   Runner
	logger   *logging.Logger
	metrics  *report.Metrics
	observer PhaseObserver

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *report.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithPhaseObserver registers a callback for phase outcomes
func WithPhaseObserver(fn PhaseObserver) Option {
	return func(c *Coordinator) { c.observer = fn }
}

// NewCoordinator creates a coordinator for a resolved config
func NewCoordinator(cfg *config.PluginConfig, runner Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		runner:   runner,
		logger:   logging.Nop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates arrangement 0. The returned session is non-nil whenever the tool was
// invoked, even if it failed: a failed Open is reported but does not stop the exit phases.
func (c *Coordinator) Open(ctx context.Context, job Job) (*Session, error) {
	doc := job.DocumentPath()

	c.mu.Lock()
	if _, exists := c.sessions[doc]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s already opened", ErrPhaseOrder, doc)
	}
	s := &Session{Job: job, done: make(map[Phase]bool)}
	c.sessions[doc] = s
	c.mu.Unlock()

	if err := s.claim(PhaseOpen); err != nil {
		return nil, err
	}
	args := ArrangementArgs(doc, c.cfg, OpenMessage, job.SubmitDir)
	return s, c.invoke(ctx, s, PhaseOpen, args)
}

// Close creates arrangement 1.
func (c *Coordinator) Close(ctx context.Context, s *Session) error {
	if err := s.claim(PhaseClose); err != nil {
		return err
	}
	args := ArrangementArgs(s.Job.DocumentPath(), c.cfg, CloseMessage, s.Job.SubmitDir)
	return c.invoke(ctx, s, PhaseClose, args)
}

// Correlate records the performance spanning the traced execution window.
func (c *Coordinator) Correlate(ctx context.Context, s *Session, tr trace.ExecutionTrace) error {
	if err := s.claim(PhaseCorrelate); err != nil {
		return err
	}
	args := PerformanceArgs(s.Job.DocumentPath(), c.cfg,
		PerformanceMessage(s.Job, tr),
		observe.FormatEpochFloat(tr.StartTime),
		observe.FormatEpochFloat(tr.EndTime),
	)
	return c.invoke(ctx, s, PhaseCorrelate, args)
}

// Seal signs the document. Nothing may touch it afterwards.
func (c *Coordinator) Seal(ctx context.Context, s *Session) error {
	if err := s.claim(PhaseSeal); err != nil {
		return err
	}
	return c.invoke(ctx, s, PhaseSeal, SignArgs(s.Job.DocumentPath(), c.cfg))
}

// Finalize runs Close, the trace lookup, Correlate and Seal, stopping at the first failure.
// A missing trace is a failure: the document is left open rather than signed without a
// correlated performance record.
func (c *Coordinator) Finalize(ctx context.Context, s *Session, lookup TraceLookup) error {
	if err := c.Close(ctx, s); err != nil {
		c.skip(PhaseCorrelate, PhaseSeal)
		return err
	}

	tr, found, err := lookup()
	switch {
	case err != nil:
		c.metrics.IncrTraceLookup(report.LookupError)
		c.logger.Error("Trace lookup failed", logging.Fields{"job_id": s.Job.ID, "error": err})
		c.skip(PhaseCorrelate, PhaseSeal)
		return err
	case !found:
		c.metrics.IncrTraceLookup(report.LookupNotFound)
		c.logger.Error("No XALT trace matched the job", logging.Fields{"job_id": s.Job.ID, "user": s.Job.User})
		c.skip(PhaseCorrelate, PhaseSeal)
		return fmt.Errorf("%w %d", ErrTraceNotFound, s.Job.ID)
	}
	c.metrics.IncrTraceLookup(report.LookupFound)
	c.logger.Debug("Matched XALT trace", logging.Fields{"job_id": s.Job.ID, "path": tr.Path})

	if err := c.Correlate(ctx, s, tr); err != nil {
		c.skip(PhaseSeal)
		return err
	}
	return c.Seal(ctx, s)
}

// PerformanceMessage describes the run, naming the traced command when XALT recorded one.
func PerformanceMessage(job Job, tr trace.ExecutionTrace) string {
	if len(tr.CommandLine) == 0 {
		return fmt.Sprintf("Slurm job %d execution", job.ID)
	}
	return fmt.Sprintf("Slurm job %d: %s", job.ID, strings.Join(tr.CommandLine, " "))
}

func (c *Coordinator) skip(phases ...Phase) {
	for _, p := range phases {
		c.record(p, report.OutcomeSkipped, nil, 0)
	}
}

func (c *Coordinator) record(p Phase, outcome string, err error, d time.Duration) {
	c.metrics.IncrPhase(string(p), outcome)
	if c.observer != nil {
		c.observer(p, outcome, err, d)
	}
}

func (c *Coordinator) toolEnv() []string {
	if c.cfg.GPGHome == "" {
		return nil
	}
	return []string{
		envinject.EnvGNUPGHome + "=" + c.cfg.GPGHome,
		envinject.EnvGPGHome + "=" + c.cfg.GPGHome,
	}
}

func (c *Coordinator) invoke(ctx context.Context, s *Session, phase Phase, args []string) error {
	inv := Invocation{
		Tool: c.cfg.TROUtils,
		Args: args,
		Env:  c.toolEnv(),
		Dir:  s.Job.SubmitDir,
	}

	ctx, span := tracing.Start(ctx, "provenance."+string(phase),
		attribute.String("provenance.phase", string(phase)),
		attribute.Int64("slurm.job_id", int64(s.Job.ID)),
		attribute.String("provenance.document", s.Job.DocumentPath()),
	)
	timing := observe.NewTiming()
	log := c.logger.WithFields(logging.Fields{"phase": string(phase), "job_id": s.Job.ID})
	log.Debug("Invoking provenance tool", logging.Fields{"command": inv.String()})

	out, err := c.runner.Run(ctx, inv)
	timing.Complete()

	if err != nil {
		toolErr := &ToolInvocationError{
			Phase:    phase,
			Command:  inv.String(),
			ExitCode: ExitCode(err),
			Output:   string(out),
			Err:      err,
		}
		c.record(phase, report.OutcomeFailed, toolErr, timing.Duration())
		log.Error("Provenance tool failed", logging.Fields{
			"exit_code": toolErr.ExitCode,
			"output":    strings.TrimSpace(string(out)),
			"error":     err,
		})
		tracing.End(span, toolErr)
		return toolErr
	}

	c.record(phase, report.OutcomeOK, nil, timing.Duration())
	log.Info("Provenance phase complete", logging.Fields{"duration": timing.Duration().String()})
	tracing.End(span, nil)
	return nil
}
