package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rkadam/opsbook/internal/engine"
	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/playbook"
	"github.com/rkadam/opsbook/internal/util"
)

// Mode is one of the four mutually exclusive run behaviors
type Mode int

const (
	// ModeExecute hands the playbook to the execution engine
	ModeExecute Mode = iota
	// ModeSyntaxCheck loads and validates structure, never executes
	ModeSyntaxCheck
	// ModeListHosts prints the hosts each play would target
	ModeListHosts
	// ModeListTasks prints the tasks that would run
	ModeListTasks
)

// SelectMode picks the run mode from the CLI flags. Syntax check wins
// over the list modes; any of the three set means execute is skipped
// entirely.
func SelectMode(syntaxCheck, listHosts, listTasks bool) Mode {
	switch {
	case syntaxCheck:
		return ModeSyntaxCheck
	case listHosts:
		return ModeListHosts
	case listTasks:
		return ModeListTasks
	default:
		return ModeExecute
	}
}

// Request is one orchestrator invocation: a list of playbooks processed
// sequentially against a shared inventory.
type Request struct {
	// PlaybookPaths are the playbook files, at least one required
	PlaybookPaths []string

	// Inventory is the resolved inventory, validated before any run
	Inventory *inventory.Inventory

	// Limit is the subset pattern restricting execution
	Limit string

	// Mode selects the run behavior, applied uniformly to all playbooks
	Mode Mode

	// Selector filters plays and tasks by tags
	Selector playbook.TagSelector

	// EngineOpts are passed through to the execution engine
	EngineOpts engine.Options
}

// Dispatcher drives playbook runs: it validates the inventory, loads
// each playbook, applies the selected mode, and folds per-playbook exit
// codes into one process code.
type Dispatcher struct {
	engine   engine.Engine
	reporter *Reporter
	retry    *RetryWriter
	out      io.Writer
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher
func NewDispatcher(e engine.Engine, reporter *Reporter, retry *RetryWriter, out io.Writer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{engine: e, reporter: reporter, retry: retry, out: out, logger: logger}
}

// Run processes the request's playbooks strictly sequentially. A fatal
// load or validation error aborts the remaining playbooks and returns
// exit 1; otherwise the most severe per-playbook code across the whole
// invocation wins (failures over unreachable over success).
func (d *Dispatcher) Run(ctx context.Context, req Request) (int, error) {
	if len(req.PlaybookPaths) == 0 {
		return util.ExitFatal, fmt.Errorf("%w: at least one playbook is required", util.ErrUsage)
	}

	if err := inventory.Validate(req.Inventory, req.Limit, d.logger); err != nil {
		return util.ExitFatal, err
	}

	req.EngineOpts.Selector = req.Selector

	exit := util.ExitOK
	for _, path := range req.PlaybookPaths {
		pb, err := playbook.Load(path)
		if err != nil {
			return util.ExitFatal, err
		}

		switch req.Mode {
		case ModeSyntaxCheck:
			fmt.Fprintf(d.out, "playbook: %s\n", path)

		case ModeListHosts:
			d.listHosts(pb, req.Inventory, req.Selector)

		case ModeListTasks:
			d.listTasks(pb, req.Selector)

		case ModeExecute:
			code, err := d.execute(ctx, pb, req)
			if err != nil {
				return util.ExitFatal, err
			}
			exit = mostSevere(exit, code)
		}
	}

	return exit, nil
}

// execute runs one playbook through the engine and reports on it
func (d *Dispatcher) execute(ctx context.Context, pb *playbook.Playbook, req Request) (int, error) {
	d.logger.Info("running playbook", "path", pb.Path, "plays", len(pb.Plays))

	res, err := d.engine.Run(ctx, pb, req.Inventory, req.EngineOpts)
	if err != nil {
		return util.ExitFatal, util.WrapPlaybookError(pb.Path, err)
	}

	d.reporter.WriteRecap(res)
	code := d.reporter.ExitCode(res)

	if code != util.ExitOK && d.retry != nil {
		path, err := d.retry.Write(pb.Path, res.FailedHosts(), res.UnreachableHosts())
		if err != nil {
			d.logger.Warn("could not write retry file", "error", err)
		} else if path != "" {
			fmt.Fprintf(d.out, "\nto retry, use: --limit @%s\n", path)
		}
	}

	return code, nil
}

// listHosts prints, per surviving play, the hosts it would target
func (d *Dispatcher) listHosts(pb *playbook.Playbook, inv *inventory.Inventory, sel playbook.TagSelector) {
	fmt.Fprintf(d.out, "\nplaybook: %s\n", pb.Path)
	for i, play := range pb.Plays {
		if !sel.AddressesPlay(play) {
			continue
		}
		hosts := inv.ActiveHosts(play.Hosts)
		fmt.Fprintf(d.out, "\n  play #%d (%s): host count=%d\n", i+1, play.Label(), len(hosts))
		for _, h := range hosts {
			fmt.Fprintf(d.out, "    %s\n", h.Name)
		}
	}
}

// listTasks prints, per surviving play, the tasks the selector keeps.
// Unnamed meta tasks are executed but not listed.
func (d *Dispatcher) listTasks(pb *playbook.Playbook, sel playbook.TagSelector) {
	fmt.Fprintf(d.out, "\nplaybook: %s\n", pb.Path)
	for i, play := range pb.Plays {
		if !sel.AddressesPlay(play) {
			continue
		}
		fmt.Fprintf(d.out, "\n  play #%d (%s):\n", i+1, play.Label())
		for _, t := range play.Tasks {
			if !sel.Resolve(play.Tags, t.Tags).Included {
				continue
			}
			if t.Name == "" {
				continue
			}
			if tags := t.EffectiveTags(play); len(tags) > 0 {
				fmt.Fprintf(d.out, "    %s\tTAGS: %v\n", t.Name, tags)
			} else {
				fmt.Fprintf(d.out, "    %s\n", t.Name)
			}
		}
	}
}

// severity ranks exit codes for the multi-playbook fold: fatal beats
// host failures, host failures beat unreachable, anything beats success
var severity = map[int]int{
	util.ExitOK:          0,
	util.ExitUnreachable: 1,
	util.ExitHostFailed:  2,
	util.ExitFatal:       3,
}

// mostSevere keeps the more severe of two exit codes. A later playbook's
// success never erases an earlier failure.
func mostSevere(a, b int) int {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
