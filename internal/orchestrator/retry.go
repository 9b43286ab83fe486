package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RetryWriter persists the list of hosts a failed run should be retried
// against.
type RetryWriter struct {
	// Enabled gates retry-file persistence; disabled writers are no-ops
	Enabled bool

	// Dir overrides the target directory; empty means next to the playbook
	Dir string
}

// Write persists the retry list for a playbook and returns its path.
// Failed hosts are listed before unreachable hosts; a host present in
// both appears twice, downstream consumers treat the file as a set.
// Returns an empty path without touching the filesystem when the
// combined set is empty or persistence is disabled.
func (w *RetryWriter) Write(playbookPath string, failed, unreachable []string) (string, error) {
	hosts := make([]string, 0, len(failed)+len(unreachable))
	hosts = append(hosts, failed...)
	hosts = append(hosts, unreachable...)

	if len(hosts) == 0 || !w.Enabled {
		return "", nil
	}

	dir := w.Dir
	if dir == "" {
		dir = filepath.Dir(playbookPath)
	}

	base := filepath.Base(playbookPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	path := filepath.Join(dir, base+".retry")

	content := strings.Join(hosts, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write retry file: %w", err)
	}

	return path, nil
}
