// Package engine defines the execution engine contract and the default
// SSH implementation.
//
// The orchestrator treats an Engine as an opaque synchronous call: Run
// blocks until the playbook finished or a fatal setup error occurred, and
// the engine manages its own fan-out across hosts internally. Per-host
// task failures and unreachable hosts are recovered locally, accumulated
// into RunResult counters, and never surfaced as errors.
//
// The SSH engine fans out per play with bounded concurrency (forks,
// capped by the play's serial setting), drops failed or unreachable
// hosts from subsequent plays, and supports the command, shell, copy,
// and ping actions plus notified handlers.
package engine
