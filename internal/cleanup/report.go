package cleanup

import (
	"fmt"
	"strings"
	"time"

	"asset-preview/internal/scene"
)

// Phase names a cleanup step.
type Phase string

const (
	PhaseUnlocking        Phase = "unlocking"
	PhaseDisconnecting    Phase = "disconnecting"
	PhaseDeleting         Phase = "deleting"
	PhaseNamespaceRemoval Phase = "namespace_removal"
	PhaseValidating       Phase = "validating"
	PhaseAggressiveDelete Phase = "aggressive_delete"
)

// Phases lists every phase in the order a full escalating run visits them.
var Phases = []Phase{
	PhaseUnlocking,
	PhaseDisconnecting,
	PhaseDeleting,
	PhaseNamespaceRemoval,
	PhaseValidating,
	PhaseAggressiveDelete,
}

// State is the terminal state of a run.
type State string

const (
	StateDone   State = "done"
	StateFailed State = "failed"
)

// PhaseEntry records one phase execution.
type PhaseEntry struct {
	Phase    Phase         `json:"phase"`
	Nodes    int           `json:"nodes"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the ordered record of a cleanup run.
type Report struct {
	Namespace       string             `json:"namespace"`
	Phases          []PhaseEntry       `json:"phases"`
	Unlocked        []scene.NodeID     `json:"unlocked,omitempty"`
	Disconnected    []scene.Connection `json:"disconnected,omitempty"`
	Deleted         int                `json:"deleted"`
	Skipped         []scene.NodeID     `json:"skipped,omitempty"`
	Escalated       bool               `json:"escalated"`
	NamespaceAbsent bool               `json:"namespaceAbsent"`
	State           State              `json:"state"`
	Log             []string           `json:"log"`
	StartedAt       time.Time          `json:"startedAt"`
	FinishedAt      time.Time          `json:"finishedAt"`
}

// Attempted reports whether the run executed phase p at least once.
func (r *Report) Attempted(p Phase) bool {
	return r.Count(p) > 0
}

// Count returns how many times phase p ran.
func (r *Report) Count(p Phase) int {
	n := 0
	for _, e := range r.Phases {
		if e.Phase == p {
			n++
		}
	}
	return n
}

// PhaseErrors returns the entries that recorded an error.
func (r *Report) PhaseErrors() []PhaseEntry {
	var out []PhaseEntry
	for _, e := range r.Phases {
		if e.Err != "" {
			out = append(out, e)
		}
	}
	return out
}

// Err returns a *Failure for failed runs and nil otherwise.
func (r *Report) Err() error {
	if r == nil || r.State != StateFailed {
		return nil
	}
	return &Failure{Report: r}
}

// Summary is a one-line description for logs.
func (r *Report) Summary() string {
	names := make([]string, len(r.Phases))
	for i, e := range r.Phases {
		names[i] = string(e.Phase)
		if e.Err != "" {
			names[i] += "!"
		}
	}
	return fmt.Sprintf("namespace=%s state=%s escalated=%v unlocked=%d disconnected=%d deleted=%d phases=[%s]",
		r.Namespace, r.State, r.Escalated, len(r.Unlocked), len(r.Disconnected), r.Deleted, strings.Join(names, " "))
}

func (r *Report) logf(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	r.Log = append(r.Log, msg)
	return msg
}

// Failure reports a cleanup that ended with the namespace still present.
// It is meant for logging; cleanup failures never abort the user action
// that triggered them.
type Failure struct {
	Report *Report
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cleanup of namespace %s failed", f.Report.Namespace)
	for _, e := range f.Report.PhaseErrors() {
		fmt.Fprintf(&b, "; %s: %s", e.Phase, e.Err)
	}
	return b.String()
}
