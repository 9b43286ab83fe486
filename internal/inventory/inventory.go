package inventory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rkadam/opsbook/internal/util"
	"gopkg.in/yaml.v3"
)

// Host is one machine from the inventory with its merged variables.
type Host struct {
	// Name is the inventory hostname
	Name string

	// Addr is the connect address; defaults to Name when empty
	Addr string

	// Port is the SSH port; 0 means the default
	Port int

	// Groups are the group names the host belongs to
	Groups []string

	// Vars are the merged variables, host vars shadowing group vars
	Vars map[string]any
}

// Address returns the host's connect address.
func (h Host) Address() string {
	if h.Addr != "" {
		return h.Addr
	}
	return h.Name
}

// group is the YAML shape of one inventory group
type group struct {
	Children map[string]group          `yaml:"children"`
	Hosts    map[string]map[string]any `yaml:"hosts"`
	Vars     map[string]any            `yaml:"vars"`
}

type root struct {
	All group `yaml:"all"`
}

// Inventory is a resolved set of hosts. A subset limit, once applied,
// restricts the active host set for the rest of the run.
type Inventory struct {
	path   string
	hosts  []Host
	subset []Host
	// limited records that ApplySubset ran, even if it matched nothing
	limited bool
}

// Load reads a YAML inventory file and flattens its group tree into an
// ordered host list. Hosts are ordered group by group, sorted by name
// within each group, so runs are reproducible.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var r root
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, util.NewValidationError(path, fmt.Sprintf("invalid inventory: %v", err))
	}

	inv := &Inventory{path: path}
	inv.flatten("all", r.All, nil, nil)
	return inv, nil
}

// New builds an inventory directly from hosts, for callers that resolve
// hosts themselves (tests, future dynamic sources).
func New(hosts []Host) *Inventory {
	return &Inventory{hosts: hosts}
}

func (i *Inventory) flatten(name string, g group, lineage []string, inherited map[string]any) {
	groupVars := mergeVars(inherited, g.Vars)

	names := make([]string, 0, len(g.Hosts))
	for h := range g.Hosts {
		names = append(names, h)
	}
	sort.Strings(names)

	groups := lineage
	if name != "all" {
		groups = append(append([]string{}, lineage...), name)
	}

	for _, hn := range names {
		hv := g.Hosts[hn]
		host := Host{Name: hn, Groups: groups, Vars: mergeVars(groupVars, hv)}
		if v, ok := hv["host"].(string); ok {
			host.Addr = v
		}
		if v, ok := hv["port"].(int); ok {
			host.Port = v
		}
		i.addHost(host)
	}

	children := make([]string, 0, len(g.Children))
	for c := range g.Children {
		children = append(children, c)
	}
	sort.Strings(children)
	for _, cn := range children {
		i.flatten(cn, g.Children[cn], groups, groupVars)
	}
}

// addHost appends a host, merging group membership when the same host
// appears in several groups
func (i *Inventory) addHost(h Host) {
	for idx := range i.hosts {
		if i.hosts[idx].Name == h.Name {
			i.hosts[idx].Groups = append(i.hosts[idx].Groups, h.Groups...)
			i.hosts[idx].Vars = mergeVars(i.hosts[idx].Vars, h.Vars)
			return
		}
	}
	i.hosts = append(i.hosts, h)
}

// Hosts returns the hosts matching the pattern from the full inventory,
// ignoring any applied subset. An empty pattern or "all" matches every
// host.
func (i *Inventory) Hosts(pattern string) []Host {
	return filterHosts(i.hosts, pattern)
}

// ApplySubset restricts the active host set to those matching the limit
// pattern. An empty pattern leaves the inventory unrestricted.
func (i *Inventory) ApplySubset(pattern string) {
	if pattern == "" {
		return
	}
	i.subset = filterHosts(i.hosts, pattern)
	i.limited = true
}

// ActiveHosts returns the hosts matching the pattern from the active set
// (the subset when a limit was applied, the full inventory otherwise).
func (i *Inventory) ActiveHosts(pattern string) []Host {
	base := i.hosts
	if i.limited {
		base = i.subset
	}
	return filterHosts(base, pattern)
}

// Path returns the inventory source path, empty for in-memory inventories.
func (i *Inventory) Path() string { return i.path }

// BaseDir returns the directory containing the inventory file.
func (i *Inventory) BaseDir() string { return filepath.Dir(i.path) }

// filterHosts applies a host pattern: "all" or empty matches everything,
// otherwise a comma-separated union of host names, group names, and
// @file references to retry lists.
func filterHosts(hosts []Host, pattern string) []Host {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "all" {
		return hosts
	}

	wanted := make(map[string]struct{})
	var groups []string
	for _, term := range strings.Split(pattern, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.HasPrefix(term, "@") {
			for _, name := range readHostFile(term[1:]) {
				wanted[name] = struct{}{}
			}
			continue
		}
		wanted[term] = struct{}{}
		groups = append(groups, term)
	}

	var out []Host
	for _, h := range hosts {
		if _, ok := wanted[h.Name]; ok {
			out = append(out, h)
			continue
		}
		for _, g := range h.Groups {
			if containsString(groups, g) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// readHostFile reads one hostname per line, as written by the retry list
// writer. Unreadable files contribute no hosts.
func readHostFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func mergeVars(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
