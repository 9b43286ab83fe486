// Package playbook defines the playbook document model and the tag
// selection logic that decides which plays and tasks are eligible to run.
//
// A playbook is an ordered list of plays; each play targets a host
// pattern and carries an ordered sequence of tasks. Tags declared on a
// play are inherited by every task in it, and a task's effective tag set
// is always the union of its own tags and its play's tags.
//
// # Tag selection
//
// TagSelector holds the only/skip tag-set pair. Resolution follows three
// rules:
//
//   - an empty only set is the universal selector and matches everything,
//     including untagged tasks
//   - skip takes precedence over inclusion and is applied after matching
//   - a selector naming tags absent from a play entirely excludes that
//     play outright (mistyped tag guard)
//
// The same Resolve path backs both the list modes and execution
// filtering, so the two can never disagree about what runs.
package playbook
