package playbook

import (
	"fmt"
	"os"
	"sort"

	"github.com/rkadam/opsbook/internal/util"
	"gopkg.in/yaml.v3"
)

// task keys that are not action names
var reservedTaskKeys = map[string]struct{}{
	"name":   {},
	"tags":   {},
	"when":   {},
	"notify": {},
	"vars":   {},
}

// rawPlay is the YAML shape of a play before task conversion
type rawPlay struct {
	Name   string         `yaml:"name"`
	Hosts  string         `yaml:"hosts"`
	Tags   stringList     `yaml:"tags"`
	Serial int            `yaml:"serial"`
	Become bool           `yaml:"become"`
	Vars   map[string]any `yaml:"vars"`
	Tasks  []rawTask      `yaml:"tasks"`

	Handlers []rawTask `yaml:"handlers"`
}

type rawTask map[string]any

// stringList accepts either a scalar or a sequence, so both
// `tags: deploy` and `tags: [deploy, web]` parse.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("expected string or list of strings at line %d", node.Line)
	}
}

// Load parses a playbook file and validates its structure. The same load
// path backs both execution and syntax-check mode. Load failures are
// validation errors: they abort the whole invocation.
func Load(path string) (*Playbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, util.WrapPlaybookError(path, err)
	}
	if !info.Mode().IsRegular() && info.Mode()&os.ModeNamedPipe == 0 {
		return nil, util.NewValidationError(path, "not a regular file or pipe")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.WrapPlaybookError(path, err)
	}

	var raws []rawPlay
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, util.WrapPlaybookError(path, err)
	}
	if len(raws) == 0 {
		return nil, util.NewValidationError(path, "playbook contains no plays")
	}

	pb := &Playbook{Path: path}
	for i, rp := range raws {
		play, err := convertPlay(rp)
		if err != nil {
			return nil, util.NewValidationError(path, fmt.Sprintf("play %d: %v", i+1, err))
		}
		pb.Plays = append(pb.Plays, play)
	}

	return pb, nil
}

func convertPlay(rp rawPlay) (Play, error) {
	if rp.Hosts == "" {
		return Play{}, fmt.Errorf("play is missing 'hosts'")
	}

	play := Play{
		Name:   rp.Name,
		Hosts:  rp.Hosts,
		Tags:   rp.Tags,
		Serial: rp.Serial,
		Become: rp.Become,
		Vars:   rp.Vars,
	}

	for i, rt := range rp.Tasks {
		task, err := convertTask(rt)
		if err != nil {
			return Play{}, fmt.Errorf("task %d: %v", i+1, err)
		}
		play.Tasks = append(play.Tasks, task)
	}
	for i, rt := range rp.Handlers {
		task, err := convertTask(rt)
		if err != nil {
			return Play{}, fmt.Errorf("handler %d: %v", i+1, err)
		}
		play.Handlers = append(play.Handlers, task)
	}

	return play, nil
}

// convertTask extracts the action key from the remaining task keys.
// Exactly one non-reserved key is the action; its value becomes the args.
func convertTask(rt rawTask) (Task, error) {
	var task Task

	if v, ok := rt["name"].(string); ok {
		task.Name = v
	}
	if v, ok := rt["when"].(string); ok {
		task.When = v
	}
	task.Tags = anyToStrings(rt["tags"])
	task.Notify = anyToStrings(rt["notify"])

	// Iterate action candidates in sorted order so duplicate-action
	// errors are deterministic
	keys := make([]string, 0, len(rt))
	for k := range rt {
		if _, reserved := reservedTaskKeys[k]; !reserved {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return Task{}, fmt.Errorf("task has no action")
	}
	if len(keys) > 1 {
		return Task{}, fmt.Errorf("task has multiple actions: %v", keys)
	}

	task.Action = keys[0]
	switch v := rt[keys[0]].(type) {
	case map[string]any:
		task.Args = v
	case nil:
		task.Args = map[string]any{}
	default:
		// free-form argument, e.g. `command: echo hello`
		task.Args = map[string]any{"_raw": v}
	}

	return task, nil
}

func anyToStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
