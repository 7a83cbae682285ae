package hook

import "fmt"

// Context is where in the job's life the scheduler loaded the hook.
type Context int

const (
	ContextOther      Context = iota
	ContextSubmission         // srun/sbatch on the submit host (SPANK "local")
	ContextAllocation         // salloc (SPANK "allocator")
	ContextExecution          // slurmstepd on a compute node (SPANK "remote")
)

func (c Context) String() string {
	switch c {
	case ContextSubmission:
		return "submission"
	case ContextAllocation:
		return "allocation"
	case ContextExecution:
		return "execution"
	default:
		return "other"
	}
}

// ParseContext maps a context name (or its SPANK alias) to a Context.
func ParseContext(s string) (Context, error) {
	switch s {
	case "submission", "local":
		return ContextSubmission, nil
	case "allocation", "allocator":
		return ContextAllocation, nil
	case "execution", "remote":
		return ContextExecution, nil
	case "other", "slurmd", "job_script":
		return ContextOther, nil
	default:
		return ContextOther, fmt.Errorf("unknown context %q", s)
	}
}

// registersOption reports whether the opt-in switch is offered in c.
func (c Context) registersOption() bool {
	return c == ContextSubmission || c == ContextAllocation || c == ContextExecution
}

// Option is a command-line switch registered with the scheduler.
type Option struct {
	Name  string
	Usage string
}

// OptGenerateTRO is the opt-in switch: --generate-tro.
var OptGenerateTRO = Option{
	Name:  "generate-tro",
	Usage: "Generate a TRO for a running job",
}

// Handle is everything the dispatcher needs from the scheduler.
type Handle interface {
	Context() Context
	JobID() (uint32, error)
	JobUID() (uint32, error)
	PluginArgv() []string
	Getenv(name string) (string, bool)
	Setenv(name, value string, overwrite bool) error
	RegisterOption(opt Option) error
	IsOptionSet(name string) bool
}
