// Package inventory loads the operator's site definition (spec.md §3, §6):
// hosts, groups, group memberships, and variable maps, merged from one or
// more YAML files via spf13/viper (only the files are read: no flags,
// environment variables or defaults are layered in), decoded through
// viper's mapstructure tags and validated with go-playground/validator/v10
// struct tags.
package inventory

import (
	"fmt"
	"net/url"
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/oddlama/forge/internal/forgeerr"
	"github.com/oddlama/forge/pkg/connector"
)

// Host is one target machine (spec.md §3): a unique identifier, a
// transport URL (scheme selects the registered connector, e.g.
// "ssh://deploy@db1.example.com:2222"), its group memberships in
// declaration order, and its own variable map.
type Host struct {
	Name      string         `mapstructure:"name" yaml:"name" validate:"required"`
	Transport string         `mapstructure:"transport" yaml:"transport" validate:"required"`
	Groups    []string       `mapstructure:"groups" yaml:"groups"`
	Vars      map[string]any `mapstructure:"vars" yaml:"vars"`
}

// Group is a named collection of hosts sharing a variable map (spec.md
// §3). Member order is recorded separately in Inventory, derived from the
// order hosts declare membership, since Group itself carries only what
// the operator writes about the group.
type Group struct {
	Name string         `mapstructure:"name" yaml:"name" validate:"required"`
	Vars map[string]any `mapstructure:"vars" yaml:"vars"`
}

type document struct {
	Hosts  []Host  `mapstructure:"hosts" yaml:"hosts"`
	Groups []Group `mapstructure:"groups" yaml:"groups"`
}

// Inventory is the immutable (post-load) result of merging every site
// file named on the command line. Per spec.md §3, a Host's variable map
// is read-only once the run starts; Inventory never exposes a mutator.
type Inventory struct {
	hosts     map[string]*Host
	hostOrder []string
	groups    map[string]*Group
	members   map[string][]string // group name -> host names, in declaration order
}

// validate is shared across Load calls; go-playground/validator/v10
// instances are safe for concurrent use once built, matching the
// teacher's pkg/config.Validate pattern of a package-level validator.
var validate = validator.New()

// Load reads and merges one or more YAML inventory files (spec.md §6:
// `run [options] <inventory>... <script>`). Later files override earlier
// ones key-by-key, the same precedence viper applies between a base
// config and an override file. Returns a *forgeerr.Error(KindUsage) for
// any malformed file, duplicate identifier, dangling group reference, or
// struct validation failure, so callers can exit 2 without further
// inspection (spec.md §6, §7).
func Load(paths ...string) (*Inventory, error) {
	if len(paths) == 0 {
		return nil, forgeerr.Usage("inventory: at least one inventory file is required")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, forgeerr.Usage("inventory: opening %s: %v", path, err)
		}
		readErr := func() error {
			defer f.Close()
			if i == 0 {
				return v.ReadConfig(f)
			}
			return v.MergeConfig(f)
		}()
		if readErr != nil {
			return nil, forgeerr.Usage("inventory: parsing %s: %v", path, readErr)
		}
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, forgeerr.Usage("inventory: decoding merged site files: %v", err)
	}

	return build(&doc)
}

func build(doc *document) (*Inventory, error) {
	inv := &Inventory{
		hosts:   make(map[string]*Host),
		groups:  make(map[string]*Group),
		members: make(map[string][]string),
	}

	for i := range doc.Groups {
		g := doc.Groups[i]
		if err := validate.Struct(g); err != nil {
			return nil, forgeerr.Usage("inventory: group %q: %v", g.Name, err)
		}
		if _, exists := inv.groups[g.Name]; exists {
			return nil, forgeerr.Usage("inventory: duplicate group %q", g.Name)
		}
		gCopy := g
		inv.groups[g.Name] = &gCopy
	}

	for i := range doc.Hosts {
		h := doc.Hosts[i]
		if err := validate.Struct(h); err != nil {
			return nil, forgeerr.Usage("inventory: host %q: %v", h.Name, err)
		}
		if _, exists := inv.hosts[h.Name]; exists {
			return nil, forgeerr.Usage("inventory: duplicate host %q", h.Name)
		}
		if _, _, err := parseTransport(h.Transport); err != nil {
			return nil, forgeerr.Usage("inventory: host %q: %v", h.Name, err)
		}
		for _, gname := range h.Groups {
			if _, ok := inv.groups[gname]; !ok {
				return nil, forgeerr.Usage("inventory: host %q references unknown group %q", h.Name, gname)
			}
			inv.members[gname] = append(inv.members[gname], h.Name)
		}
		hCopy := h
		inv.hosts[h.Name] = &hCopy
		inv.hostOrder = append(inv.hostOrder, h.Name)
	}

	return inv, nil
}

// Hosts returns every host in declaration order.
func (inv *Inventory) Hosts() []*Host {
	out := make([]*Host, 0, len(inv.hostOrder))
	for _, name := range inv.hostOrder {
		out = append(out, inv.hosts[name])
	}
	return out
}

// Host looks up a single host by name.
func (inv *Inventory) Host(name string) (*Host, bool) {
	h, ok := inv.hosts[name]
	return h, ok
}

// Select resolves a comma-separated host-id list (the `-H/--hosts` flag,
// spec.md §6) against the inventory. An empty csv selects every host, in
// declaration order. An unknown host name is a usage error (spec.md §6:
// "Unknown host → exit 2").
func (inv *Inventory) Select(csv string) ([]*Host, error) {
	if strings.TrimSpace(csv) == "" {
		return inv.Hosts(), nil
	}
	var out []*Host
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h, ok := inv.hosts[name]
		if !ok {
			return nil, forgeerr.Usage("unknown host %q", name)
		}
		out = append(out, h)
	}
	return out, nil
}

// GroupMembers returns the hosts belonging to group, in the order they
// declared membership (spec.md §3: "Group ... ordered list of member
// hosts").
func (inv *Inventory) GroupMembers(group string) []string {
	members := inv.members[group]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// Vars returns host's effective variable map (spec.md §3): every group
// the host belongs to merges in (in the host's declared group order,
// later groups overriding earlier ones), then the host's own variables
// win over all of them. The returned map is a fresh copy on each call —
// Host's own Vars field remains the single owned, read-only source.
func (inv *Inventory) Vars(host *Host) map[string]any {
	out := make(map[string]any)
	for _, gname := range host.Groups {
		if g, ok := inv.groups[gname]; ok {
			for k, v := range g.Vars {
				out[k] = v
			}
		}
	}
	for k, v := range host.Vars {
		out[k] = v
	}
	return out
}

// ConnectorInfo splits Transport into the scheme used to look up a
// connector.Factory in the registry, the scheme-stripped URL passed to
// it, and the connector.HostInfo the factory needs to actually dial.
func (h *Host) ConnectorInfo() (scheme, rest string, info connector.HostInfo, err error) {
	scheme, rest, err = parseTransport(h.Transport)
	if err != nil {
		return "", "", connector.HostInfo{}, err
	}

	info = connector.HostInfo{Name: h.Name}
	if scheme != "ssh" {
		return scheme, rest, info, nil
	}

	u, perr := url.Parse(h.Transport)
	if perr != nil {
		return "", "", connector.HostInfo{}, fmt.Errorf("inventory: parsing transport %q: %w", h.Transport, perr)
	}
	info.SSHHost = u.Hostname()
	info.SSHPort = 22
	if p := u.Port(); p != "" {
		port, perr := strconv.Atoi(p)
		if perr != nil {
			return "", "", connector.HostInfo{}, fmt.Errorf("inventory: host %q: invalid port %q", h.Name, p)
		}
		info.SSHPort = port
	}
	info.SSHUser = u.User.Username()
	if info.SSHUser == "" {
		if cu, err := user.Current(); err == nil {
			info.SSHUser = cu.Username
		}
	}
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range q[k] {
			info.SSHOpts = append(info.SSHOpts, "-o", fmt.Sprintf("%s=%s", k, v))
		}
	}
	return scheme, rest, info, nil
}

func parseTransport(transport string) (scheme, rest string, err error) {
	idx := strings.Index(transport, "://")
	if idx < 0 {
		return "", "", fmt.Errorf("transport %q has no scheme (expected scheme://...)", transport)
	}
	return transport[:idx], transport[idx+len("://"):], nil
}
