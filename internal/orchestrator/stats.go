package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/rkadam/opsbook/internal/engine"
	"github.com/rkadam/opsbook/internal/output"
	"github.com/rkadam/opsbook/internal/util"
)

// Reporter turns a run result into the per-host recap and the process
// exit code.
type Reporter struct {
	out    io.Writer
	colors *output.ColorScheme
	logger *slog.Logger
}

// NewReporter creates a stats reporter writing to out
func NewReporter(out io.Writer, colors *output.ColorScheme, logger *slog.Logger) *Reporter {
	if colors == nil {
		colors = output.NewColorScheme(out, true)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{out: out, colors: colors, logger: logger}
}

// ExitCode derives the process exit code from a run result, evaluated
// after all hosts are summarized. Failures take priority over
// unreachable across the whole run; unreachable alone is still an error
// code, connectivity failure is as fatal to the run's success as a task
// failure.
func (r *Reporter) ExitCode(res *engine.RunResult) int {
	if len(res.FailedHosts()) > 0 {
		return util.ExitHostFailed
	}
	if len(res.UnreachableHosts()) > 0 {
		return util.ExitUnreachable
	}
	return util.ExitOK
}

// RecapLines renders the uncolored per-host recap, hosts in sorted
// order, for persisted logs and tests. Skipped counts are tracked but
// omitted from the default recap.
func (r *Reporter) RecapLines(res *engine.RunResult) []string {
	var lines []string
	for _, host := range res.Hosts() {
		s := res.Summaries[host]
		lines = append(lines, fmt.Sprintf("%s : ok=%d changed=%d unreachable=%d failed=%d",
			host, s.Ok, s.Changed, s.Unreachable, s.Failures))
	}
	return lines
}

// WriteRecap renders the colorized recap table to the interactive writer
// and logs the uncolored lines for persistence.
func (r *Reporter) WriteRecap(res *engine.RunResult) {
	fmt.Fprintf(r.out, "\n%s\n", r.colors.Header("PLAY RECAP"))

	rows := make([][]string, 0, len(res.Summaries))
	for _, host := range res.Hosts() {
		s := res.Summaries[host]
		label := r.colors.HostColor(s.Failures, s.Unreachable, s.Changed)(host)
		rows = append(rows, []string{
			label,
			strconv.Itoa(s.Ok),
			strconv.Itoa(s.Changed),
			strconv.Itoa(s.Unreachable),
			strconv.Itoa(s.Failures),
		})
	}
	output.WriteRecapTable(r.out, r.colors, rows)

	for _, line := range r.RecapLines(res) {
		r.logger.Info("recap", "host", line)
	}
}
