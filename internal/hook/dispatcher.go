// Package hook is the per-job state machine driven by the scheduler's plugin callbacks.
//
// Provenance is best effort: a callback only returns an error when the host contract is
// broken (option registration failed, callbacks out of order). Every provenance failure
// is logged and turned into "skip the rest", so the job itself never fails because of it.
package hook

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/trohook/internal/config"
	"github.com/psantana5/trohook/internal/envinject"
	"github.com/psantana5/trohook/internal/logging"
	"github.com/psantana5/trohook/internal/provenance"
	"github.com/psantana5/trohook/internal/report"
	"github.com/psantana5/trohook/internal/trace"
	"github.com/psantana5/trohook/internal/tracing"
)

// Environment read from the job.
const (
	EnvSubmitDir = "SLURM_SUBMIT_DIR"
	EnvJobUser   = "SLURM_JOB_USER"
)

// Phase names recorded on the Result besides the tool phases.
const (
	stepConfig = "config"
	stepInject = "inject"
	stepLookup = "trace_lookup"
)

// Deps are the collaborators a Dispatcher talks to.
type Deps struct {
	Runner  provenance.Runner
	Users   envinject.UserResolver
	Locator *trace.Locator
	Logger  *logging.Logger
	Metrics *report.Metrics
	Node    string
}

// Dispatcher holds per-job state across callbacks. One per job per node.
type Dispatcher struct {
	deps Deps

	state   State
	enabled bool
	cfg     *config.PluginConfig

	job         *provenance.Job
	coordinator *provenance.Coordinator
	session     *provenance.Session
	result      *report.Result
}

// New creates a dispatcher in StateCreated
func New(deps Deps) *Dispatcher {
	if deps.Runner == nil {
		deps.Runner = provenance.ExecRunner{}
	}
	if deps.Users == nil {
		deps.Users = envinject.OSUsers{}
	}
	if deps.Locator == nil {
		deps.Locator = trace.NewLocator()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Dispatcher{
		deps:  deps,
		state: StateCreated,
	}
}

// State returns the current state
func (d *Dispatcher) State() State { return d.state }

// Enabled reports whether provenance capture was requested for this job
func (d *Dispatcher) Enabled() bool { return d.enabled }

// Config returns the resolved config, nil outside the execution context or when invalid
func (d *Dispatcher) Config() *config.PluginConfig { return d.cfg }

// Result returns the provenance outcome recorded so far
func (d *Dispatcher) Result() *report.Result { return d.result }

func (d *Dispatcher) advance(to State) error {
	if IsTerminalState(d.state) {
		return ErrFinalized
	}
	if err := ValidateTransition(d.state, to); err != nil {
		return err
	}
	d.state = to
	return nil
}

func (d *Dispatcher) begin(ctx context.Context, callback string, h Handle) (context.Context, func(error)) {
	d.deps.Metrics.IncrCallback(callback)
	ctx, span := tracing.Start(ctx, "hook."+callback,
		attribute.String("slurm.context", h.Context().String()),
	)
	return ctx, func(err error) { tracing.End(span, err) }
}

// Init registers the opt-in switch and, where the job body runs, resolves the config.
func (d *Dispatcher) Init(ctx context.Context, h Handle) (err error) {
	_, end := d.begin(ctx, "init", h)
	defer func() { end(err) }()

	if err := d.advance(StateConfigured); err != nil {
		return err
	}

	if h.Context().registersOption() {
		if err := h.RegisterOption(OptGenerateTRO); err != nil {
			return fmt.Errorf("failed to register %s option: %w", OptGenerateTRO.Name, err)
		}
	}

	if h.Context() != ContextExecution {
		return nil
	}

	d.result = report.NewResult(0, d.deps.Node)
	if id, err := h.JobID(); err == nil {
		d.result.JobID = id
	}

	cfg, cerr := config.Parse(h.PluginArgv())
	if cerr == nil {
		cerr = cfg.Validate()
	}
	if cerr != nil {
		d.deps.Logger.Error("Invalid plugin configuration, provenance capture unavailable for this job",
			logging.Fields{"error": cerr})
		d.result.AddPhase(stepConfig, report.OutcomeFailed, cerr, 0)
		return nil
	}
	for _, ignored := range cfg.Ignored {
		d.deps.Logger.Debug("Ignoring plugin argument", logging.Fields{"error": ignored})
	}
	d.cfg = cfg
	return nil
}

// InitPostOpt freezes whether capture was requested.
func (d *Dispatcher) InitPostOpt(ctx context.Context, h Handle) (err error) {
	_, end := d.begin(ctx, "init_post_opt", h)
	defer func() { end(err) }()

	if err := d.advance(StateOptionResolved); err != nil {
		return err
	}
	d.enabled = h.IsOptionSet(OptGenerateTRO.Name)
	if d.result != nil {
		d.result.Enabled = d.enabled
	}
	if d.enabled {
		d.deps.Logger.Info("Provenance capture requested", logging.Fields{"context": h.Context().String()})
	}
	return nil
}

// UserInit prepares the tracing environment and opens the document.
func (d *Dispatcher) UserInit(ctx context.Context, h Handle) (err error) {
	ctx, end := d.begin(ctx, "user_init", h)
	defer func() { end(err) }()

	if err := d.advance(StateActive); err != nil {
		return err
	}
	if !d.enabled || h.Context() != ContextExecution || d.cfg == nil {
		return nil
	}

	uid, err := h.JobUID()
	if err != nil {
		d.fail(stepInject, &envinject.InjectionError{Step: "job_uid", Err: err})
		return nil
	}

	started := time.Now()
	muts, err := envinject.Plan(h, d.cfg, uid, d.deps.Users)
	if err != nil {
		d.deps.Metrics.IncrInjection(report.OutcomeFailed)
		d.fail(stepInject, err)
		return nil
	}

	job, err := d.jobContext(h, resolvedUser(muts))
	if err != nil {
		d.fail(stepInject, err)
		return nil
	}

	if err := envinject.Apply(h, muts); err != nil {
		d.deps.Metrics.IncrInjection(report.OutcomeFailed)
		d.fail(stepInject, err)
		return nil
	}
	d.deps.Metrics.IncrInjection(report.OutcomeOK)
	d.result.AddPhase(stepInject, report.OutcomeOK, nil, time.Since(started))

	session, err := d.coordinatorFor().Open(ctx, *job)
	d.session = session
	if err != nil {
		d.deps.Logger.Warn("Opening arrangement failed, continuing", logging.Fields{"error": err})
	}
	return nil
}

// Exit records the closing arrangement, the correlated performance and the signature.
func (d *Dispatcher) Exit(ctx context.Context, h Handle) (err error) {
	ctx, end := d.begin(ctx, "exit", h)
	defer func() { end(err) }()

	if err := d.advance(StateFinalized); err != nil {
		return err
	}
	if d.result != nil {
		defer d.finish()
	}
	if !d.enabled || h.Context() != ContextExecution || d.session == nil {
		return nil
	}

	job := d.session.Job
	lookup := func() (trace.ExecutionTrace, bool, error) {
		start := time.Now()
		tr, found, err := d.deps.Locator.Find(job.ID, job.User)
		switch {
		case err != nil:
			d.result.AddPhase(stepLookup, report.OutcomeFailed, err, time.Since(start))
		case !found:
			d.result.AddPhase(stepLookup, report.OutcomeFailed, provenance.ErrTraceNotFound, time.Since(start))
		default:
			d.result.AddPhase(stepLookup, report.OutcomeOK, nil, time.Since(start))
		}
		return tr, found, err
	}

	if err := d.coordinatorFor().Finalize(ctx, d.session, lookup); err != nil {
		d.deps.Logger.Error("Provenance document left unsealed", logging.Fields{
			"job_id":   job.ID,
			"document": job.DocumentPath(),
			"error":    err,
		})
	}
	d.result.Sealed = d.session.Sealed()
	return nil
}

// jobContext builds the Job once, the first time it is needed.
func (d *Dispatcher) jobContext(h Handle, fallbackUser string) (*provenance.Job, error) {
	if d.job != nil {
		return d.job, nil
	}
	id, err := h.JobID()
	if err != nil {
		return nil, fmt.Errorf("job id unavailable: %w", err)
	}
	submitDir, ok := h.Getenv(EnvSubmitDir)
	if !ok || submitDir == "" {
		return nil, fmt.Errorf("%s is not set", EnvSubmitDir)
	}
	user, ok := h.Getenv(EnvJobUser)
	if !ok || user == "" {
		user = fallbackUser
	}

	d.job = &provenance.Job{ID: id, SubmitDir: submitDir, User: user}
	d.result.JobID = id
	d.result.DocumentPath = d.job.DocumentPath()
	return d.job, nil
}

// resolvedUser is the USER value planned from the job uid.
func resolvedUser(muts []envinject.Mutation) string {
	for _, m := range muts {
		if m.Name == envinject.EnvUser {
			return m.Value
		}
	}
	return ""
}

func (d *Dispatcher) coordinatorFor() *provenance.Coordinator {
	if d.coordinator == nil {
		d.coordinator = provenance.NewCoordinator(d.cfg, d.deps.Runner,
			provenance.WithLogger(d.deps.Logger),
			provenance.WithMetrics(d.deps.Metrics),
			provenance.WithPhaseObserver(func(p provenance.Phase, outcome string, err error, dur time.Duration) {
				d.result.AddPhase(string(p), outcome, err, dur)
			}),
		)
	}
	return d.coordinator
}

func (d *Dispatcher) fail(step string, err error) {
	d.deps.Logger.Error("Provenance capture skipped for this job", logging.Fields{"step": step, "error": err})
	d.result.AddPhase(step, report.OutcomeFailed, err, 0)
}

func (d *Dispatcher) finish() {
	d.result.Finish()
	d.deps.Metrics.RecordResult(d.result)
}
