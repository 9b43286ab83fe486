package engine

import (
	"fmt"
	"strings"
)

// evalWhen evaluates a task's when expression against merged variables.
// Supported forms: bare variable truthiness, "a == b", "a != b", and a
// leading "not ". Anything else is an error surfaced as a task failure.
func evalWhen(expr string, vars map[string]any) (bool, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return true, nil
	}

	if rest, ok := strings.CutPrefix(e, "not "); ok {
		v, err := evalWhen(strings.TrimSpace(rest), vars)
		return !v, err
	}

	if left, right, ok := strings.Cut(e, "!="); ok {
		v, err := compare(left, right, vars)
		return !v, err
	}
	if left, right, ok := strings.Cut(e, "=="); ok {
		return compare(left, right, vars)
	}

	// bare variable truthiness
	val := lookup(vars, e)
	switch v := val.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return v != "" && v != "false", nil
	default:
		return true, nil
	}
}

func compare(left, right string, vars map[string]any) (bool, error) {
	l := strings.TrimSpace(left)
	r := strings.Trim(strings.TrimSpace(right), "\"'")
	if l == "" || r == "" {
		return false, fmt.Errorf("unsupported when expression: %s == %s", left, right)
	}
	return fmt.Sprintf("%v", lookup(vars, l)) == r, nil
}

// lookup resolves a dotted path into nested maps
func lookup(m map[string]any, path string) any {
	cur := any(m)
	for _, p := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[p]
	}
	return cur
}
