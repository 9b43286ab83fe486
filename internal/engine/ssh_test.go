package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/playbook"
	"github.com/rkadam/opsbook/internal/util"
)

// runRecorder tracks every command executed across all fake connections
// and which ones should fail
type runRecorder struct {
	mu          sync.Mutex
	commands    []string        // "host: cmd"
	failures    map[string]bool // "host: cmd" -> non-zero exit
	unreachable map[string]bool
}

func newRunRecorder() *runRecorder {
	return &runRecorder{
		failures:    make(map[string]bool),
		unreachable: make(map[string]bool),
	}
}

func (r *runRecorder) record(host, cmd string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := host + ": " + cmd
	r.commands = append(r.commands, key)
	return r.failures[key]
}

func (r *runRecorder) ran(host, cmd string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := host + ": " + cmd
	for _, c := range r.commands {
		if c == key {
			return true
		}
	}
	return false
}

// fakeConn routes all remote operations through the recorder
type fakeConn struct {
	host string
	rec  *runRecorder
}

func (c *fakeConn) Exec(_ context.Context, cmd string, _ bool) (string, string, int, error) {
	if c.rec.record(c.host, cmd) {
		return "", "task error", 1, nil
	}
	return "", "", 0, nil
}

func (c *fakeConn) Put(_ io.Reader, _ string, _ os.FileMode) error { return nil }

func (c *fakeConn) Close() error { return nil }

func newFakeEngine(rec *runRecorder) *SSHEngine {
	e := NewSSHEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.dialFn = func(h inventory.Host, _ Credentials, _ time.Duration) (connection, error) {
		if rec.unreachable[h.Name] {
			return nil, util.ErrConnectionFailed
		}
		return &fakeConn{host: h.Name, rec: rec}, nil
	}
	return e
}

func commandTask(name, cmd string) playbook.Task {
	return playbook.Task{Name: name, Action: "command", Args: map[string]any{"_raw": cmd}}
}

func webInventory() *inventory.Inventory {
	return inventory.New([]inventory.Host{
		{Name: "web1", Groups: []string{"web"}},
		{Name: "web2", Groups: []string{"web"}},
	})
}

func universal() playbook.TagSelector {
	return playbook.NewTagSelector(nil, nil)
}

func TestEngineRunCountsPerHost(t *testing.T) {
	rec := newRunRecorder()
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
		Name:  "deploy",
		Hosts: "web",
		Tasks: []playbook.Task{
			commandTask("one", "/bin/one"),
			commandTask("two", "/bin/two"),
		},
	}}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{Selector: universal()})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	for _, host := range []string{"web1", "web2"} {
		s := res.Summary(host)
		if s.Ok != 2 || s.Changed != 2 || s.Failures != 0 {
			t.Errorf("%s summary = %+v, want ok=2 changed=2", host, s)
		}
		for _, cmd := range []string{"/bin/one", "/bin/two"} {
			if !rec.ran(host, cmd) {
				t.Errorf("expected %s to run %s", host, cmd)
			}
		}
	}
}

func TestEngineStartAtTaskSpansPlays(t *testing.T) {
	rec := newRunRecorder()
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{
		{
			Name:  "prep",
			Hosts: "web",
			Tasks: []playbook.Task{commandTask("prepare", "/bin/prepare")},
		},
		{
			Name:  "deploy",
			Hosts: "web",
			Tasks: []playbook.Task{
				commandTask("deploy", "/bin/deploy"),
				commandTask("verify", "/bin/verify"),
			},
		},
	}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{
		Selector:    universal(),
		StartAtTask: "deploy",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rec.ran("web1", "/bin/prepare") {
		t.Error("tasks before the start task must not run")
	}
	for _, cmd := range []string{"/bin/deploy", "/bin/verify"} {
		if !rec.ran("web1", cmd) {
			t.Errorf("expected %s to run after the start task", cmd)
		}
	}

	s := res.Summary("web1")
	if s.Skipped != 1 || s.Ok != 2 {
		t.Errorf("summary = %+v, want skipped=1 ok=2", s)
	}
}

func TestEngineDeadHostDroppedFromLaterPlays(t *testing.T) {
	rec := newRunRecorder()
	rec.failures["web1: /bin/flaky"] = true
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{
		{
			Name:  "first",
			Hosts: "web",
			Tasks: []playbook.Task{commandTask("flaky", "/bin/flaky")},
		},
		{
			Name:  "second",
			Hosts: "web",
			Tasks: []playbook.Task{commandTask("next", "/bin/next")},
		},
	}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{Selector: universal()})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.Summary("web1").Failures != 1 {
		t.Errorf("web1 summary = %+v, want failures=1", res.Summary("web1"))
	}
	if rec.ran("web1", "/bin/next") {
		t.Error("a failed host must be dropped from later plays")
	}
	if !rec.ran("web2", "/bin/next") {
		t.Error("healthy hosts keep running later plays")
	}
	if res.Summary("web2").Ok != 2 {
		t.Errorf("web2 summary = %+v, want ok=2", res.Summary("web2"))
	}
}

func TestEngineUnreachableHost(t *testing.T) {
	rec := newRunRecorder()
	rec.unreachable["web1"] = true
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
		Name:  "deploy",
		Hosts: "web",
		Tasks: []playbook.Task{commandTask("one", "/bin/one")},
	}}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{Selector: universal()})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if s := res.Summary("web1"); s.Unreachable != 1 || s.Ok != 0 {
		t.Errorf("web1 summary = %+v, want unreachable=1", s)
	}
	if rec.ran("web1", "/bin/one") {
		t.Error("no commands should reach an unreachable host")
	}
	if res.Summary("web2").Ok != 1 {
		t.Errorf("web2 summary = %+v, want ok=1", res.Summary("web2"))
	}
}

func TestEngineHandlers(t *testing.T) {
	changeTask := commandTask("change", "/bin/change")
	changeTask.Notify = []string{"restart app"}

	tests := []struct {
		name          string
		tasks         []playbook.Task
		failures      map[string]bool
		forceHandlers bool
		wantHandler   bool
	}{
		{
			name:        "changed task notifies its handler",
			tasks:       []playbook.Task{changeTask},
			wantHandler: true,
		},
		{
			name:  "failure after notification suppresses handlers",
			tasks: []playbook.Task{changeTask, commandTask("boom", "/bin/boom")},
			failures: map[string]bool{
				"web1: /bin/boom": true,
			},
			wantHandler: false,
		},
		{
			name:  "force-handlers runs them anyway",
			tasks: []playbook.Task{changeTask, commandTask("boom", "/bin/boom")},
			failures: map[string]bool{
				"web1: /bin/boom": true,
			},
			forceHandlers: true,
			wantHandler:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRunRecorder()
			for k, v := range tt.failures {
				rec.failures[k] = v
			}
			e := newFakeEngine(rec)

			pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
				Name:     "deploy",
				Hosts:    "all",
				Tasks:    tt.tasks,
				Handlers: []playbook.Task{commandTask("restart app", "/bin/restart")},
			}}}
			inv := inventory.New([]inventory.Host{{Name: "web1"}})

			_, err := e.Run(context.Background(), pb, inv, Options{
				Selector:      universal(),
				ForceHandlers: tt.forceHandlers,
			})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}

			if got := rec.ran("web1", "/bin/restart"); got != tt.wantHandler {
				t.Errorf("handler ran = %v, want %v", got, tt.wantHandler)
			}
		})
	}
}

func TestEngineCheckMode(t *testing.T) {
	rec := newRunRecorder()
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
		Name:  "deploy",
		Hosts: "web",
		Tasks: []playbook.Task{commandTask("one", "/bin/one")},
	}}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{
		Selector:  universal(),
		CheckMode: true,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rec.ran("web1", "/bin/one") {
		t.Error("check mode must not execute task commands")
	}
	if s := res.Summary("web1"); s.Ok != 1 || s.Changed != 0 {
		t.Errorf("summary = %+v, want ok=1 changed=0", s)
	}
}

func TestEngineStepSkipsDeclinedTasks(t *testing.T) {
	rec := newRunRecorder()
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
		Name:  "deploy",
		Hosts: "web",
		Tasks: []playbook.Task{
			commandTask("keep", "/bin/keep"),
			commandTask("drop", "/bin/drop"),
		},
	}}}

	res, err := e.Run(context.Background(), pb, webInventory(), Options{
		Selector:    universal(),
		Step:        true,
		StepConfirm: func(name string) bool { return name == "keep" },
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !rec.ran("web1", "/bin/keep") {
		t.Error("confirmed task should run")
	}
	if rec.ran("web1", "/bin/drop") {
		t.Error("declined task must not run")
	}
	if s := res.Summary("web1"); s.Ok != 1 || s.Skipped != 1 {
		t.Errorf("summary = %+v, want ok=1 skipped=1", s)
	}
}

func TestEngineSelectorGatesPlays(t *testing.T) {
	tests := []struct {
		name    string
		only    []string
		wantRan bool
	}{
		{
			name:    "known tag runs the play",
			only:    []string{"deploy"},
			wantRan: true,
		},
		{
			name:    "mistyped tag alongside a known one excludes the play",
			only:    []string{"deploy", "deplyo"},
			wantRan: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRunRecorder()
			e := newFakeEngine(rec)

			pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
				Name:  "deploy",
				Hosts: "web",
				Tags:  []string{"deploy"},
				Tasks: []playbook.Task{commandTask("push", "/bin/push")},
			}}}

			res, err := e.Run(context.Background(), pb, webInventory(), Options{
				Selector: playbook.NewTagSelector(tt.only, nil),
			})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}

			if got := rec.ran("web1", "/bin/push"); got != tt.wantRan {
				t.Errorf("task ran = %v, want %v", got, tt.wantRan)
			}
			if !tt.wantRan && len(res.Summaries) != 0 {
				t.Errorf("an excluded play must not touch any host, got %v", res.Summaries)
			}
		})
	}
}

func TestEngineSerialRunsHostsInOrder(t *testing.T) {
	rec := newRunRecorder()
	e := newFakeEngine(rec)

	pb := &playbook.Playbook{Path: "site.yml", Plays: []playbook.Play{{
		Name:   "rolling",
		Hosts:  "web",
		Serial: 1,
		Tasks:  []playbook.Task{commandTask("one", "/bin/one")},
	}}}

	_, err := e.Run(context.Background(), pb, webInventory(), Options{Selector: universal()})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// with serial 1 the first host finishes everything before the second
	// host starts
	lastWeb1 := -1
	firstWeb2 := -1
	rec.mu.Lock()
	for i, c := range rec.commands {
		if strings.HasPrefix(c, "web1:") {
			lastWeb1 = i
		}
		if strings.HasPrefix(c, "web2:") && firstWeb2 == -1 {
			firstWeb2 = i
		}
	}
	rec.mu.Unlock()

	if lastWeb1 == -1 || firstWeb2 == -1 {
		t.Fatalf("both hosts should have run, commands: %v", rec.commands)
	}
	if lastWeb1 > firstWeb2 {
		t.Errorf("serial 1 should finish web1 before web2 starts, commands: %v", rec.commands)
	}
}
