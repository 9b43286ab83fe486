package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/playbook"
	"github.com/rkadam/opsbook/internal/util"
	"golang.org/x/crypto/ssh"
)

const (
	defaultForks   = 5
	defaultTimeout = 15 * time.Second
)

// connection is the remote operation surface the engine drives. The SSH
// implementation lives in conn.go; tests substitute their own.
type connection interface {
	Exec(ctx context.Context, cmd string, sudo bool) (stdout, stderr string, exit int, err error)
	Put(src io.Reader, dst string, mode os.FileMode) error
	Close() error
}

// SSHEngine is the default execution engine. It connects to hosts over
// SSH, fans out per play with bounded concurrency, and accumulates
// per-host counters. Hosts that fail or become unreachable are dropped
// from subsequent plays.
type SSHEngine struct {
	logger *slog.Logger

	// dialFn opens the connection to one host; defaults to SSH
	dialFn func(h inventory.Host, creds Credentials, timeout time.Duration) (connection, error)

	mu sync.Mutex
	// facts gathered per host, cached across playbook runs within one
	// invocation until a flush-cache run drops them
	facts map[string]map[string]any
}

// NewSSHEngine creates an engine with the given logger
func NewSSHEngine(logger *slog.Logger) *SSHEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &SSHEngine{
		logger: logger,
		facts:  make(map[string]map[string]any),
	}
	e.dialFn = func(h inventory.Host, creds Credentials, timeout time.Duration) (connection, error) {
		conn, err := e.dial(h, creds, timeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return e
}

// taskPlan is one task with its pre-computed gating decision
type taskPlan struct {
	task playbook.Task
	// skip marks tasks excluded by start-at-task gating; tag-excluded
	// tasks never enter the plan at all
	skip bool
}

// Run implements Engine.
func (e *SSHEngine) Run(ctx context.Context, pb *playbook.Playbook, inv *inventory.Inventory, opts Options) (*RunResult, error) {
	if opts.Forks <= 0 {
		opts.Forks = defaultForks
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.FlushCache {
		e.mu.Lock()
		e.facts = make(map[string]map[string]any)
		e.mu.Unlock()
	}

	res := NewRunResult()
	baseDir := filepath.Dir(pb.Path)

	// hosts failed or unreachable in an earlier play are dropped from
	// later plays; guarded because play fan-out writes it concurrently
	dead := make(map[string]bool)
	var deadMu sync.Mutex

	// start-at-task gating spans plays: everything before the named
	// task is skipped, everything after runs normally
	started := opts.StartAtTask == ""

	for _, play := range pb.Plays {
		// a selector naming a tag the play never defines excludes the
		// play outright, matching what the list modes report
		if !opts.Selector.AddressesPlay(play) {
			continue
		}

		plan := make([]taskPlan, 0, len(play.Tasks))
		for _, t := range play.Tasks {
			if !opts.Selector.Resolve(play.Tags, t.Tags).Included {
				continue
			}
			if !started && t.Name == opts.StartAtTask {
				started = true
			}
			plan = append(plan, taskPlan{task: t, skip: !started})
		}
		if len(plan) == 0 {
			continue
		}

		hosts := inv.ActiveHosts(play.Hosts)
		live := make([]inventory.Host, 0, len(hosts))
		deadMu.Lock()
		for _, h := range hosts {
			if !dead[h.Name] {
				live = append(live, h)
			}
		}
		deadMu.Unlock()

		// summaries pre-created on the main goroutine so workers only
		// touch their own entry
		for _, h := range live {
			res.Summary(h.Name)
		}

		conc := opts.Forks
		if play.Serial > 0 && play.Serial < conc {
			conc = play.Serial
		}

		e.logger.Debug("starting play",
			"play", play.Label(),
			"hosts", len(live),
			"forks", conc)

		sem := make(chan struct{}, conc)
		var wg sync.WaitGroup
		for _, h := range live {
			h := h
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				sum := res.Summaries[h.Name]
				e.runHostPlay(ctx, h, play, plan, baseDir, opts, sum)
				if sum.Failures > 0 || sum.Unreachable > 0 {
					deadMu.Lock()
					dead[h.Name] = true
					deadMu.Unlock()
				}
			}()
		}
		wg.Wait()

		if ctx.Err() != nil {
			return res, fmt.Errorf("%w: %v", util.ErrCancelled, ctx.Err())
		}
	}

	return res, nil
}

// runHostPlay executes one play's planned tasks on one host
func (e *SSHEngine) runHostPlay(ctx context.Context, h inventory.Host, play playbook.Play, plan []taskPlan, baseDir string, opts Options, sum *HostSummary) {
	conn, err := e.dialFn(h, opts.Credentials, opts.Timeout)
	if err != nil {
		sum.Unreachable++
		e.logger.Warn("host unreachable", "host", h.Name, "error", err)
		return
	}
	defer conn.Close()

	facts := e.hostFacts(ctx, conn, h.Name)
	vars := map[string]any{"facts": facts}
	for k, v := range play.Vars {
		vars[k] = v
	}
	for k, v := range h.Vars {
		vars[k] = v
	}

	notified := make(map[string]bool)
	failed := false

	for _, tp := range plan {
		if tp.skip {
			sum.Skipped++
			continue
		}
		if opts.Step && opts.StepConfirm != nil && !opts.StepConfirm(tp.task.Name) {
			sum.Skipped++
			continue
		}
		if tp.task.When != "" {
			ok, err := evalWhen(tp.task.When, vars)
			if err != nil {
				sum.Failures++
				e.logger.Warn("task failed", "host", h.Name, "task", tp.task.Name, "error", err)
				failed = true
				break
			}
			if !ok {
				sum.Skipped++
				continue
			}
		}
		if opts.CheckMode {
			sum.Ok++
			continue
		}

		changed, err := e.runTask(ctx, conn, play, tp.task, baseDir, vars)
		if err != nil {
			sum.Failures++
			e.logger.Warn("task failed", "host", h.Name, "task", tp.task.Name, "error", err)
			failed = true
			break
		}

		sum.Ok++
		if changed {
			sum.Changed++
			for _, n := range tp.task.Notify {
				notified[n] = true
			}
		}
	}

	if len(notified) == 0 || (failed && !opts.ForceHandlers) {
		return
	}

	for _, handler := range play.Handlers {
		if !notified[handler.Name] {
			continue
		}
		changed, err := e.runTask(ctx, conn, play, handler, baseDir, vars)
		if err != nil {
			sum.Failures++
			e.logger.Warn("handler failed", "host", h.Name, "handler", handler.Name, "error", err)
			return
		}
		sum.Ok++
		if changed {
			sum.Changed++
		}
	}
}

// runTask dispatches a single task action and reports whether it changed
// the host
func (e *SSHEngine) runTask(ctx context.Context, conn connection, play playbook.Play, t playbook.Task, baseDir string, vars map[string]any) (bool, error) {
	switch t.Action {
	case "ping":
		_, _, _, err := conn.Exec(ctx, "true", false)
		return false, err

	case "command", "shell":
		cmd := rawArg(t.Args)
		if cmd == "" {
			return false, fmt.Errorf("%s task has no command", t.Action)
		}
		_, stderr, exit, err := conn.Exec(ctx, cmd, play.Become)
		if err != nil {
			return false, err
		}
		if exit != 0 {
			return false, fmt.Errorf("command exited %d: %s", exit, stderr)
		}
		return true, nil

	case "copy":
		src, _ := t.Args["src"].(string)
		dest, _ := t.Args["dest"].(string)
		if src == "" || dest == "" {
			return false, fmt.Errorf("copy task requires src and dest")
		}
		mode := os.FileMode(0644)
		if m, ok := t.Args["mode"].(string); ok {
			if parsed, err := strconv.ParseUint(m, 8, 32); err == nil {
				mode = os.FileMode(parsed)
			}
		}
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		f, err := os.Open(src)
		if err != nil {
			return false, err
		}
		defer f.Close()
		if err := conn.Put(f, dest, mode); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: %s", util.ErrUnknownAction, t.Action)
	}
}

// hostFacts gathers minimal facts once per host and caches them
func (e *SSHEngine) hostFacts(ctx context.Context, conn connection, host string) map[string]any {
	e.mu.Lock()
	if cached, ok := e.facts[host]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	facts := make(map[string]any)
	if out, _, exit, err := conn.Exec(ctx, "uname -s", false); err == nil && exit == 0 {
		facts["os_family"] = trimLine(out)
	}
	if out, _, exit, err := conn.Exec(ctx, "uname -n", false); err == nil && exit == 0 {
		facts["hostname"] = trimLine(out)
	}

	e.mu.Lock()
	e.facts[host] = facts
	e.mu.Unlock()
	return facts
}

func trimLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	return s
}

// rawArg extracts a free-form command argument
func rawArg(args map[string]any) string {
	if v, ok := args["_raw"].(string); ok {
		return v
	}
	if v, ok := args["cmd"].(string); ok {
		return v
	}
	return ""
}

// dial opens the SSH and SFTP connection for a host. Host vars override
// credential defaults for user, port, and key path.
func (e *SSHEngine) dial(h inventory.Host, creds Credentials, timeout time.Duration) (*sshConn, error) {
	user := stringVar(h.Vars, "user")
	if user == "" {
		user = creds.RemoteUser
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	var auth []ssh.AuthMethod
	keyPath := expandHome(stringVar(h.Vars, "ssh_private_key_file"))
	if keyPath == "" {
		keyPath = expandHome(creds.PrivateKeyFile)
	}
	if keyPath == "" {
		keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(keyPath); err != nil {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_ed25519")
		}
	}
	if key, err := os.ReadFile(keyPath); err == nil {
		if signer, err := ssh.ParsePrivateKey(key); err == nil {
			auth = append(auth, ssh.PublicKeys(signer))
		}
	}
	if len(creds.Password) > 0 {
		auth = append(auth, ssh.Password(string(creds.Password)))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: no usable credentials for %s", util.ErrConnectionFailed, h.Name)
	}

	port := h.Port
	if port == 0 {
		port = 22
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(h.Address(), strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrConnectionFailed, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: sftp: %v", util.ErrConnectionFailed, err)
	}

	return &sshConn{client: client, sftp: sftpClient}, nil
}

func stringVar(vars map[string]any, key string) string {
	v, ok := vars[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func expandHome(path string) string {
	if path != "" && path[0] == '~' {
		return filepath.Join(os.Getenv("HOME"), path[1:])
	}
	return path
}
