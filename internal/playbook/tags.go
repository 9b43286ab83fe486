package playbook

// TagAll is the universal selector value: it matches every task and play,
// tagged or not.
const TagAll = "all"

// TagSelector is the only/skip tag-set pair controlling which plays and
// tasks run. The zero value is not useful; construct with NewTagSelector.
type TagSelector struct {
	only []string
	skip []string
}

// NewTagSelector builds a selector from --tags / --skip-tags values.
// An empty only list defaults to the universal selector.
func NewTagSelector(only, skip []string) TagSelector {
	if len(only) == 0 {
		only = []string{TagAll}
	}
	return TagSelector{only: only, skip: skip}
}

// Universal reports whether the selector's only set matches everything.
func (s TagSelector) Universal() bool {
	for _, t := range s.only {
		if t == TagAll {
			return true
		}
	}
	return false
}

// Only returns the only tag set.
func (s TagSelector) Only() []string { return s.only }

// Skip returns the skip tag set.
func (s TagSelector) Skip() []string { return s.skip }

// Resolution is the outcome of resolving one task against a selector.
type Resolution struct {
	Included bool
	Reason   string
}

// Resolve decides whether a task with the given play/task tags runs under
// this selector. Matching happens first; skip takes precedence and is
// applied after. Resolving twice with the same inputs always yields the
// same decision.
func (s TagSelector) Resolve(playTags, taskTags []string) Resolution {
	effective := unionTags(playTags, taskTags)

	if s.skipMatches(effective) {
		return Resolution{Included: false, Reason: "excluded by skip tags"}
	}

	if s.Universal() {
		return Resolution{Included: true, Reason: "universal selector"}
	}

	if len(intersect(effective, s.only)) > 0 {
		return Resolution{Included: true, Reason: "tag matched"}
	}

	return Resolution{Included: false, Reason: "no matching tags"}
}

// AddressesPlay decides whether a play survives play-level filtering,
// used by the list modes before per-task iteration.
//
// A play is addressed when the selector is universal or at least one of
// its effective tags matches the only set. A selector that names tags
// absent from the play entirely excludes the play outright: running an
// unintended subset because a tag name was mistyped is worse than
// running nothing.
func (s TagSelector) AddressesPlay(p Play) bool {
	universe := p.Tags
	for _, t := range p.Tasks {
		universe = unionTags(universe, t.EffectiveTags(p))
	}

	var matched []string
	if s.Universal() {
		matched = universe
	} else {
		matched = intersect(universe, s.only)
	}

	if len(s.unknownTags(universe)) > 0 {
		return false
	}

	return len(matched) > 0 || s.Universal()
}

// unknownTags returns selector tags that appear nowhere in the given tag
// universe. The universal wildcard is never unknown.
func (s TagSelector) unknownTags(universe []string) []string {
	known := make(map[string]struct{}, len(universe))
	for _, t := range universe {
		known[t] = struct{}{}
	}
	known[TagAll] = struct{}{}

	var unknown []string
	for _, t := range unionTags(s.only, s.skip) {
		if _, ok := known[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	return unknown
}

// skipMatches reports whether the effective tag set is excluded by the
// skip set. Skipping "all" excludes everything.
func (s TagSelector) skipMatches(effective []string) bool {
	for _, t := range s.skip {
		if t == TagAll {
			return true
		}
	}
	return len(intersect(effective, s.skip)) > 0
}

// intersect returns the elements of a that also appear in b, in a's order
func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
