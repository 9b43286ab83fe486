package run

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rkadam/opsbook/internal/config"
	"github.com/rkadam/opsbook/internal/engine"
	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/orchestrator"
	"github.com/rkadam/opsbook/internal/output"
	"github.com/rkadam/opsbook/internal/playbook"
	"github.com/rkadam/opsbook/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options collects all run command flags
type options struct {
	tags          []string
	skipTags      []string
	limit         string
	syntaxCheck   bool
	listTasks     bool
	listHosts     bool
	check         bool
	step          bool
	startAtTask   string
	forceHandlers bool
	flushCache    bool
	remoteUser    string
	privateKey    string
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run [flags] PLAYBOOK...",
		Short: "Run one or more playbooks",
		Long: `Run playbooks against the inventory, in the order given.

Plays and tasks can be filtered by tags, hosts can be restricted with a
limit pattern, and the list and syntax-check modes preview a run without
contacting any host.`,
		Example: `  # Run a playbook against the default inventory
  opsbook run site.yml

  # Run only tasks tagged deploy, skipping anything tagged slow
  opsbook run site.yml --tags deploy --skip-tags slow

  # Restrict the run to two hosts
  opsbook run site.yml --limit web1,web2

  # Retry only the hosts that failed last time
  opsbook run site.yml --limit @site.retry

  # Preview which hosts and tasks a run would touch
  opsbook run site.yml --list-hosts
  opsbook run site.yml --list-tasks

  # Validate playbook structure without executing
  opsbook run site.yml --syntax-check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return util.NewExitError(util.ExitFatal,
					fmt.Errorf("%w: at least one playbook is required", util.ErrUsage))
			}
			return runPlaybooks(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "only run plays and tasks tagged with these values")
	cmd.Flags().StringSliceVar(&opts.skipTags, "skip-tags", nil, "skip plays and tasks tagged with these values")
	cmd.Flags().StringVarP(&opts.limit, "limit", "l", "", "limit execution to a subset of hosts (pattern or @retryfile)")
	cmd.Flags().BoolVar(&opts.syntaxCheck, "syntax-check", false, "validate playbook structure without executing")
	cmd.Flags().BoolVar(&opts.listTasks, "list-tasks", false, "list tasks that would run, do not execute")
	cmd.Flags().BoolVar(&opts.listHosts, "list-hosts", false, "list hosts that would be targeted, do not execute")
	cmd.Flags().BoolVarP(&opts.check, "check", "C", false, "report what would change without changing anything")
	cmd.Flags().BoolVar(&opts.step, "step", false, "confirm each task interactively before running it")
	cmd.Flags().StringVar(&opts.startAtTask, "start-at-task", "", "start execution at the task with this name")
	cmd.Flags().BoolVar(&opts.forceHandlers, "force-handlers", false, "run notified handlers even on failed hosts")
	cmd.Flags().BoolVar(&opts.flushCache, "flush-cache", false, "discard cached facts before running")
	cmd.Flags().StringVarP(&opts.remoteUser, "user", "u", "", "connect as this user")
	cmd.Flags().StringVar(&opts.privateKey, "private-key", "", "use this SSH private key file")

	return cmd
}

func runPlaybooks(ctx context.Context, paths []string, opts *options) error {
	logger := slog.Default()

	// Load the config file for defaults the flags did not override
	mgr := config.NewManager(viper.ConfigFileUsed())
	cfg, err := mgr.Load()
	if err != nil {
		return util.WrapErrorf(err, "loading configuration")
	}

	inv, err := loadInventory(cfg, logger)
	if err != nil {
		return err
	}

	engineOpts := buildEngineOptions(cfg, opts)

	noColor := viper.GetBool("no-color") || cfg.Defaults.NoColor
	colors := output.NewColorScheme(os.Stdout, noColor)

	reporter := orchestrator.NewReporter(os.Stdout, colors, logger)
	retry := &orchestrator.RetryWriter{
		Enabled: cfg.Retry.Enabled,
		Dir:     cfg.Retry.SavePath,
	}

	dispatcher := orchestrator.NewDispatcher(
		engine.NewSSHEngine(logger), reporter, retry, os.Stdout, logger)

	code, err := dispatcher.Run(ctx, orchestrator.Request{
		PlaybookPaths: paths,
		Inventory:     inv,
		Limit:         opts.limit,
		Mode:          orchestrator.SelectMode(opts.syntaxCheck, opts.listHosts, opts.listTasks),
		Selector:      playbook.NewTagSelector(opts.tags, opts.skipTags),
		EngineOpts:    engineOpts,
	})
	if err != nil {
		return util.NewExitError(code, err)
	}
	if code != util.ExitOK {
		// Per-host outcomes were already reported via the recap table
		return util.NewExitError(code, nil)
	}

	return nil
}

// loadInventory resolves the inventory path from the flag or config
// file. No inventory at all yields an empty one, which the guard will
// warn about rather than reject.
func loadInventory(cfg *config.Config, logger *slog.Logger) (*inventory.Inventory, error) {
	path := viper.GetString("inventory")
	if path == "" {
		path = cfg.Inventory
	}
	if path == "" {
		logger.Debug("no inventory specified")
		return inventory.New(nil), nil
	}

	inv, err := inventory.Load(path)
	if err != nil {
		return nil, util.WrapErrorf(err, "loading inventory %q", path)
	}

	logger.Debug("loaded inventory", "path", path, "hosts", len(inv.Hosts("all")))
	return inv, nil
}

func buildEngineOptions(cfg *config.Config, opts *options) engine.Options {
	user := opts.remoteUser
	if user == "" {
		user = cfg.Connection.RemoteUser
	}
	key := opts.privateKey
	if key == "" {
		key = cfg.Connection.PrivateKeyFile
	}

	timeout := viper.GetDuration("defaults.timeout")
	if timeout == 0 {
		timeout = cfg.Defaults.Timeout
	}
	forks := viper.GetInt("defaults.forks")
	if forks == 0 {
		forks = cfg.Defaults.Forks
	}

	engineOpts := engine.Options{
		Forks:         forks,
		Timeout:       timeout,
		CheckMode:     opts.check,
		Step:          opts.step,
		StartAtTask:   opts.startAtTask,
		ForceHandlers: opts.forceHandlers,
		FlushCache:    opts.flushCache,
		Credentials: engine.Credentials{
			RemoteUser:     user,
			PrivateKeyFile: key,
		},
	}

	if opts.step {
		engineOpts.StepConfirm = confirmTask
	}

	return engineOpts
}

// confirmTask prompts on stdin before each task in step mode
func confirmTask(name string) bool {
	fmt.Fprintf(os.Stderr, "Perform task: %s (y/n): ", name)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
