package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/playbook"
)

// Engine executes a playbook against an inventory and reports per-host
// outcomes. Run blocks until the whole playbook finished or a fatal
// setup error occurred. Per-host task failures and unreachable hosts are
// never returned as errors; they accumulate in the RunResult.
type Engine interface {
	Run(ctx context.Context, pb *playbook.Playbook, inv *inventory.Inventory, opts Options) (*RunResult, error)
}

// Credentials carries opaque secret material through to the engine. The
// orchestrator never inspects these values.
type Credentials struct {
	// RemoteUser is the SSH login user
	RemoteUser string

	// PrivateKeyFile is the path to the SSH private key
	PrivateKeyFile string

	// Password is an optional SSH password
	Password []byte
}

// Options controls a single engine run.
type Options struct {
	// Forks bounds per-play host concurrency
	Forks int

	// Timeout is the SSH connect timeout
	Timeout time.Duration

	// CheckMode predicts changes without applying them
	CheckMode bool

	// Step asks StepConfirm before each task
	Step bool

	// StartAtTask skips tasks until the named task is reached
	StartAtTask string

	// ForceHandlers runs notified handlers even on hosts that failed
	ForceHandlers bool

	// FlushCache drops cached host facts before the run
	FlushCache bool

	// Selector filters tasks by tags
	Selector playbook.TagSelector

	// Credentials is opaque secret material for the connection layer
	Credentials Credentials

	// StepConfirm is consulted in step mode; nil means always proceed
	StepConfirm func(task string) bool
}

// HostSummary is the per-host counter set for one playbook run. It is
// mutated incrementally as results arrive and read-only once the run ends.
type HostSummary struct {
	Ok          int
	Changed     int
	Unreachable int
	Failures    int
	Skipped     int
}

// RunResult aggregates all host summaries for one playbook invocation.
type RunResult struct {
	Summaries map[string]*HostSummary
}

// NewRunResult creates an empty result
func NewRunResult() *RunResult {
	return &RunResult{Summaries: make(map[string]*HostSummary)}
}

// Summary returns the summary for a host, creating it on first use.
func (r *RunResult) Summary(host string) *HostSummary {
	s, ok := r.Summaries[host]
	if !ok {
		s = &HostSummary{}
		r.Summaries[host] = s
	}
	return s
}

// Hosts returns all summarized hostnames in sorted order.
func (r *RunResult) Hosts() []string {
	hosts := make([]string, 0, len(r.Summaries))
	for h := range r.Summaries {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// FailedHosts returns hosts with at least one failure, sorted.
func (r *RunResult) FailedHosts() []string {
	var out []string
	for _, h := range r.Hosts() {
		if r.Summaries[h].Failures > 0 {
			out = append(out, h)
		}
	}
	return out
}

// UnreachableHosts returns hosts with unreachable counts, sorted. A host
// can appear in both the failed and unreachable lists.
func (r *RunResult) UnreachableHosts() []string {
	var out []string
	for _, h := range r.Hosts() {
		if r.Summaries[h].Unreachable > 0 {
			out = append(out, h)
		}
	}
	return out
}
