package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/soralab/netfault/internal/logging"
	"github.com/soralab/netfault/internal/runner"
)

const discoverTimeout = 10 * time.Second

// Interface describes one active, addressed interface of a container.
type Interface struct {
	Name    string   `json:"name"`
	MAC     string   `json:"mac"`
	IPsCIDR []string `json:"ips_cidr"`
}

// Topology is the discovered lab layout: the containerlab containers, the
// point-to-point links inferred from shared IPv4 subnets, and each
// container's interface names.
type Topology struct {
	Containers            []string            `json:"containers"`
	Links                 [][]string          `json:"links"`
	InterfacesByContainer map[string][]string `json:"interfaces_by_container"`
}

// Discoverer infers the lab topology by shelling into the containers.
type Discoverer struct {
	lab    *runner.Lab
	prefix string
}

// NewDiscoverer creates a Discoverer matching containers with the given
// name prefix.
func NewDiscoverer(lab *runner.Lab, prefix string) *Discoverer {
	if prefix == "" {
		prefix = "clab-"
	}
	return &Discoverer{lab: lab, prefix: prefix}
}

// Discover lists the lab containers and infers links. Discovery failures
// for individual containers degrade to an emptier topology rather than an
// error; only the container listing itself is fatal.
func (d *Discoverer) Discover(ctx context.Context) (*Topology, error) {
	containers, err := d.listContainers(ctx)
	if err != nil {
		return nil, err
	}

	topo := &Topology{
		Containers:            containers,
		Links:                 [][]string{},
		InterfacesByContainer: make(map[string][]string, len(containers)),
	}

	// Subnet -> containers attached to it
	subnetMap := make(map[netip.Prefix][]string)

	for _, name := range containers {
		ifaces := d.containerInterfaces(ctx, name)

		names := make([]string, 0, len(ifaces))
		for _, iface := range ifaces {
			names = append(names, iface.Name)
			for _, cidr := range iface.IPsCIDR {
				pfx, err := netip.ParsePrefix(cidr)
				if err != nil {
					continue
				}
				net := pfx.Masked()
				if net.Addr().IsLinkLocalUnicast() || net.Addr().IsLoopback() {
					continue
				}
				subnetMap[net] = append(subnetMap[net], name)
			}
		}
		topo.InterfacesByContainer[name] = names
	}

	// A subnet shared by exactly two containers is a link
	seen := make(map[string]bool)
	for _, attached := range subnetMap {
		unique := uniqueSorted(attached)
		if len(unique) != 2 {
			continue
		}
		key := unique[0] + "|" + unique[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		topo.Links = append(topo.Links, unique)
	}
	sort.Slice(topo.Links, func(i, j int) bool {
		if topo.Links[i][0] != topo.Links[j][0] {
			return topo.Links[i][0] < topo.Links[j][0]
		}
		return topo.Links[i][1] < topo.Links[j][1]
	})

	return topo, nil
}

// listContainers returns the running containers matching the lab prefix.
func (d *Discoverer) listContainers(ctx context.Context) ([]string, error) {
	res, err := d.lab.Docker(ctx, discoverTimeout,
		"ps", "--format", "{{.Names}}", "--filter", "name="+d.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("failed to list containers: %s", strings.TrimSpace(res.Stderr))
	}

	containers := []string{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			containers = append(containers, name)
		}
	}
	sort.Strings(containers)
	return containers, nil
}

// ipAddrEntry mirrors the fields of `ip -j addr` output this package
// cares about.
type ipAddrEntry struct {
	IfName    string `json:"ifname"`
	LinkType  string `json:"link_type"`
	OperState string `json:"operstate"`
	Address   string `json:"address"`
	AddrInfo  []struct {
		Family    string `json:"family"`
		Local     string `json:"local"`
		PrefixLen int    `json:"prefixlen"`
	} `json:"addr_info"`
}

// containerInterfaces returns the active addressed interfaces of one
// container, skipping loopback and down links.
func (d *Discoverer) containerInterfaces(ctx context.Context, container string) []Interface {
	res, err := d.lab.Exec(ctx, discoverTimeout, container, "ip", "-j", "addr")
	if err != nil || res.ExitCode != 0 {
		logging.Error("Topology", "failed to read interfaces of "+container, err)
		return nil
	}

	var entries []ipAddrEntry
	if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
		logging.Error("Topology", "failed to decode ip addr output of "+container, err)
		return nil
	}

	var ifaces []Interface
	for _, entry := range entries {
		if entry.LinkType == "loopback" || entry.OperState != "UP" {
			continue
		}
		var cidrs []string
		for _, addr := range entry.AddrInfo {
			if addr.Family != "inet" {
				continue
			}
			cidrs = append(cidrs, fmt.Sprintf("%s/%d", addr.Local, addr.PrefixLen))
		}
		if entry.IfName != "" && len(cidrs) > 0 {
			ifaces = append(ifaces, Interface{
				Name:    entry.IfName,
				MAC:     entry.Address,
				IPsCIDR: cidrs,
			})
		}
	}
	return ifaces
}

func uniqueSorted(names []string) []string {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
