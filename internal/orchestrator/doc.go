// Package orchestrator contains the control logic that decides what a
// playbook run executes, how the run is filtered, and how its outcome is
// classified.
//
// The dispatcher selects one of four mutually exclusive modes per
// invocation (execute, syntax check, list hosts, list tasks), validates
// the inventory before anything runs, and processes multiple playbooks
// strictly sequentially. Per-host outcomes from the execution engine are
// folded by the stats reporter into a recap table and a process exit
// code: 2 when any host failed, 3 when hosts were only unreachable, 0
// otherwise. Across playbooks the most severe code wins. Failed and
// unreachable hosts are persisted as a retry list so a subsequent run
// can target only them.
package orchestrator
