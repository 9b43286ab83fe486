package playbook

// Playbook is a parsed playbook document: an ordered list of plays.
// It is read-only during orchestration.
type Playbook struct {
	// Path is the file the playbook was loaded from
	Path string

	// Plays are the plays in document order
	Plays []Play
}

// Play is a named grouping of tasks targeted at a host pattern.
type Play struct {
	// Name is the optional play label
	Name string `yaml:"name"`

	// Hosts is the host pattern the play targets (required)
	Hosts string `yaml:"hosts"`

	// Tags declared on the play, inherited by every task in it
	Tags []string `yaml:"tags"`

	// Serial caps per-play concurrency when > 0
	Serial int `yaml:"serial"`

	// Become requests privilege escalation for the play's tasks
	Become bool `yaml:"become"`

	// Vars are play-scoped variables
	Vars map[string]any `yaml:"vars"`

	// Tasks are the play's tasks in order
	Tasks []Task

	// Handlers run when notified by a changed task
	Handlers []Task
}

// Label returns the play name, falling back to the host pattern for
// unnamed plays.
func (p Play) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Hosts
}

// Task is a single unit of work within a play. Meta tasks may be unnamed.
type Task struct {
	// Name is the optional task label
	Name string

	// Action is the module-style action key (command, shell, copy, ping)
	Action string

	// Args are the action arguments
	Args map[string]any

	// Tags declared on the task itself
	Tags []string

	// When is an optional condition expression, passed through to the engine
	When string

	// Notify lists handler names to trigger when the task reports a change
	Notify []string
}

// EffectiveTags returns the union of the task's own tags and the play's
// tags. Listing and execution filtering both go through this method; the
// two paths must never diverge.
func (t Task) EffectiveTags(p Play) []string {
	return unionTags(p.Tags, t.Tags)
}

// unionTags merges tag lists preserving first-seen order
func unionTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, tag := range list {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
