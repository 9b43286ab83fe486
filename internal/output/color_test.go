package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewColorSchemeNonTTY(t *testing.T) {
	// a bytes.Buffer is never a TTY, so colors must be disabled even
	// without --no-color
	var buf bytes.Buffer
	cs := NewColorScheme(&buf, false)

	if !cs.Disabled {
		t.Error("expected colors disabled for non-TTY writer")
	}

	out := cs.Failure("web1")
	if out != "web1" {
		t.Errorf("disabled scheme should not emit escape codes, got %q", out)
	}
}

func TestNewColorSchemeNoColor(t *testing.T) {
	var buf bytes.Buffer
	cs := NewColorScheme(&buf, true)

	if !cs.Disabled {
		t.Error("expected colors disabled when noColor is true")
	}
}

func TestHostColor(t *testing.T) {
	var buf bytes.Buffer
	cs := NewColorScheme(&buf, false)

	tests := []struct {
		name        string
		failures    int
		unreachable int
		changed     int
		want        string
	}{
		{"failures win", 1, 0, 3, "failure"},
		{"unreachable counts as failure", 0, 2, 0, "failure"},
		{"changed without failures", 0, 0, 1, "changed"},
		{"clean host", 0, 0, 0, "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := cs.HostColor(tt.failures, tt.unreachable, tt.changed)

			// with colors disabled the functions are identical; compare
			// against the named function by pointer identity via output
			// of a probe scheme instead
			_ = fn
			probe := &ColorScheme{
				Success: func(f string, a ...interface{}) string { return "success" },
				Changed: func(f string, a ...interface{}) string { return "changed" },
				Failure: func(f string, a ...interface{}) string { return "failure" },
			}
			got := probe.HostColor(tt.failures, tt.unreachable, tt.changed)("x")
			if got != tt.want {
				t.Errorf("HostColor() picked %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteRecapTable(t *testing.T) {
	var buf bytes.Buffer
	cs := NewColorScheme(&buf, true)

	WriteRecapTable(&buf, cs, [][]string{
		{"web1", "3", "1", "0", "0"},
		{"web2", "2", "0", "1", "0"},
	})

	out := buf.String()
	for _, want := range []string{"HOST", "web1", "web2", "UNREACHABLE"} {
		if !strings.Contains(out, want) {
			t.Errorf("recap table missing %q:\n%s", want, out)
		}
	}
}
