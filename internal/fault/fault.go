package fault

import (
	"fmt"
	"strconv"
	"strings"
)

// Fault kinds accepted by the injector.
const (
	KindLinkDown       = "link_down"
	KindLinkUp         = "link_up"
	KindNodeStop       = "node_stop"
	KindNodeStart      = "node_start"
	KindNodePause      = "node_pause"
	KindNodeUnpause    = "node_unpause"
	KindAddLatency     = "add_latency"
	KindLimitBandwidth = "limit_bandwidth"
	KindTCClear        = "tc_clear"
)

// Request is the wire form of a fault-injection request. It is converted
// into a typed Fault variant at the boundary; fields irrelevant to the
// requested kind are ignored.
type Request struct {
	FaultType           string `json:"fault_type"`
	TargetNode          string `json:"target_node"`
	TargetInterface     string `json:"target_interface"`
	TargetLink          string `json:"target_link"` // "nodeA|nodeB"
	LatencyMs           int    `json:"latency_ms"`
	JitterMs            int    `json:"jitter_ms"`
	CorrelationPercent  int    `json:"correlation_percent"`
	BandwidthRateKbit   int    `json:"bandwidth_rate_kbit"`
	BandwidthBurstBytes string `json:"bandwidth_burst_bytes"`
	BandwidthLatency    string `json:"bandwidth_latency_ms"`
}

// ValidationError reports a rejected request; nothing was executed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Fault is one validated, executable fault variant.
type Fault interface {
	// Kind returns the fault kind tag.
	Kind() string
	// Describe returns a human-readable description of the target.
	Describe() string
	// DockerArgs returns the docker subcommand implementing the fault.
	DockerArgs() []string
	// addsQdisc reports whether the fault adds a tc qdisc, for the
	// "file exists" warning classification.
	addsQdisc() bool
}

// LinkFault brings a link endpoint interface down or up.
type LinkFault struct {
	Up        bool
	Link      string // "nodeA|nodeB", display only
	Node      string // endpoint to act on
	Interface string
}

func (f *LinkFault) Kind() string {
	if f.Up {
		return KindLinkUp
	}
	return KindLinkDown
}

func (f *LinkFault) Describe() string {
	return fmt.Sprintf("%s on link %s interface %s of node %s",
		f.Kind(), strings.ReplaceAll(f.Link, "|", "-"), f.Interface, f.Node)
}

func (f *LinkFault) DockerArgs() []string {
	action := "down"
	if f.Up {
		action = "up"
	}
	return []string{"exec", f.Node, "ip", "link", "set", f.Interface, action}
}

func (f *LinkFault) addsQdisc() bool { return false }

// NodeFault stops, starts, pauses or unpauses a whole container.
type NodeFault struct {
	Action string // stop, start, pause, unpause
	Node   string
}

func (f *NodeFault) Kind() string { return "node_" + f.Action }

func (f *NodeFault) Describe() string {
	return fmt.Sprintf("node %s", f.Node)
}

func (f *NodeFault) DockerArgs() []string {
	return []string{f.Action, f.Node}
}

func (f *NodeFault) addsQdisc() bool { return false }

// LatencyFault adds netem delay on an interface.
type LatencyFault struct {
	Node               string
	Interface          string
	LatencyMs          int
	JitterMs           int // 0 = none
	CorrelationPercent int // -1 = none
}

func (f *LatencyFault) Kind() string { return KindAddLatency }

func (f *LatencyFault) Describe() string {
	return fmt.Sprintf("latency (%dms) on node %s, interface %s", f.LatencyMs, f.Node, f.Interface)
}

func (f *LatencyFault) DockerArgs() []string {
	args := []string{
		"exec", f.Node, "tc", "qdisc", "add", "dev", f.Interface,
		"root", "netem", "delay", fmt.Sprintf("%dms", f.LatencyMs),
	}
	if f.JitterMs > 0 {
		args = append(args, fmt.Sprintf("%dms", f.JitterMs))
	}
	if f.CorrelationPercent >= 0 && f.JitterMs > 0 {
		args = append(args, fmt.Sprintf("%d%%", f.CorrelationPercent))
	}
	return args
}

func (f *LatencyFault) addsQdisc() bool { return true }

// BandwidthFault rate-limits an interface with a token bucket filter.
type BandwidthFault struct {
	Node       string
	Interface  string
	RateKbit   int
	BurstBytes string
	TBFLatency string
}

func (f *BandwidthFault) Kind() string { return KindLimitBandwidth }

func (f *BandwidthFault) Describe() string {
	return fmt.Sprintf("bandwidth limit (%dkbit) on node %s, interface %s", f.RateKbit, f.Node, f.Interface)
}

func (f *BandwidthFault) DockerArgs() []string {
	return []string{
		"exec", f.Node, "tc", "qdisc", "add", "dev", f.Interface, "root", "tbf",
		"rate", fmt.Sprintf("%dkbit", f.RateKbit),
		"burst", f.BurstBytes,
		"latency", f.TBFLatency,
	}
}

func (f *BandwidthFault) addsQdisc() bool { return true }

// ClearFault removes the root qdisc from an interface, undoing latency
// and bandwidth faults.
type ClearFault struct {
	Node      string
	Interface string
}

func (f *ClearFault) Kind() string { return KindTCClear }

func (f *ClearFault) Describe() string {
	return fmt.Sprintf("tc rules on node %s, interface %s", f.Node, f.Interface)
}

func (f *ClearFault) DockerArgs() []string {
	return []string{"exec", f.Node, "tc", "qdisc", "del", "dev", f.Interface, "root"}
}

func (f *ClearFault) addsQdisc() bool { return false }

// Parse validates a request and converts it to its typed variant. The
// returned error is always a *ValidationError for rejected input.
func Parse(req Request) (Fault, error) {
	switch req.FaultType {
	case KindLinkDown, KindLinkUp:
		if req.TargetLink == "" || req.TargetInterface == "" {
			return nil, &ValidationError{"Target link and interface must be selected for link operations."}
		}
		node := req.TargetNode
		if node == "" {
			node = strings.SplitN(req.TargetLink, "|", 2)[0]
		}
		return &LinkFault{
			Up:        req.FaultType == KindLinkUp,
			Link:      req.TargetLink,
			Node:      node,
			Interface: req.TargetInterface,
		}, nil

	case KindNodeStop, KindNodeStart, KindNodePause, KindNodeUnpause:
		if req.TargetNode == "" {
			return nil, &ValidationError{"Target node must be selected."}
		}
		action := strings.TrimPrefix(req.FaultType, "node_")
		return &NodeFault{Action: action, Node: req.TargetNode}, nil

	case KindAddLatency:
		if req.TargetNode == "" || req.TargetInterface == "" || req.LatencyMs == 0 {
			return nil, &ValidationError{"Target node, target interface and latency (ms) are required for adding latency."}
		}
		if req.LatencyMs < 0 {
			return nil, &ValidationError{fmt.Sprintf("Invalid latency value: %d. Must be a positive integer.", req.LatencyMs)}
		}
		f := &LatencyFault{
			Node:               req.TargetNode,
			Interface:          req.TargetInterface,
			LatencyMs:          req.LatencyMs,
			CorrelationPercent: -1,
		}
		if req.JitterMs > 0 {
			f.JitterMs = req.JitterMs
		}
		if req.CorrelationPercent > 0 {
			if req.CorrelationPercent > 100 {
				return nil, &ValidationError{fmt.Sprintf("Invalid correlation value: %d. Must be within 0-100.", req.CorrelationPercent)}
			}
			f.CorrelationPercent = req.CorrelationPercent
		}
		return f, nil

	case KindLimitBandwidth:
		if req.TargetNode == "" || req.TargetInterface == "" || req.BandwidthRateKbit == 0 {
			return nil, &ValidationError{"Target node, target interface and bandwidth rate (kbit) are required for limiting bandwidth."}
		}
		if req.BandwidthRateKbit < 0 {
			return nil, &ValidationError{fmt.Sprintf("Invalid bandwidth rate value: %d. Must be a positive integer.", req.BandwidthRateKbit)}
		}
		burst := req.BandwidthBurstBytes
		if burst == "" {
			// Default burst of roughly 100ms worth of traffic, in bytes
			burst = strconv.Itoa(req.BandwidthRateKbit * 1000 / 8 / 10)
		}
		tbfLatency := req.BandwidthLatency
		if tbfLatency == "" {
			tbfLatency = "50ms"
		}
		return &BandwidthFault{
			Node:       req.TargetNode,
			Interface:  req.TargetInterface,
			RateKbit:   req.BandwidthRateKbit,
			BurstBytes: burst,
			TBFLatency: tbfLatency,
		}, nil

	case KindTCClear:
		if req.TargetNode == "" || req.TargetInterface == "" {
			return nil, &ValidationError{"Target node and target interface are required for clearing tc rules."}
		}
		return &ClearFault{Node: req.TargetNode, Interface: req.TargetInterface}, nil

	default:
		return nil, &ValidationError{fmt.Sprintf("Unknown fault type: %s", req.FaultType)}
	}
}
