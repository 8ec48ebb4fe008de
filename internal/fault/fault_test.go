package fault

import (
	"errors"
	"reflect"
	"testing"

	"github.com/soralab/netfault/internal/model"
	"github.com/soralab/netfault/internal/runner"
)

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown type", Request{FaultType: "meteor_strike"}},
		{"empty type", Request{}},
		{"link without interface", Request{FaultType: KindLinkDown, TargetLink: "r1|r2"}},
		{"link without link", Request{FaultType: KindLinkUp, TargetInterface: "eth1"}},
		{"node stop without node", Request{FaultType: KindNodeStop}},
		{"latency without latency value", Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1"}},
		{"negative latency", Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: -5}},
		{"correlation over 100", Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: 10, JitterMs: 2, CorrelationPercent: 150}},
		{"bandwidth without rate", Request{FaultType: KindLimitBandwidth, TargetNode: "r1", TargetInterface: "eth1"}},
		{"negative bandwidth rate", Request{FaultType: KindLimitBandwidth, TargetNode: "r1", TargetInterface: "eth1", BandwidthRateKbit: -100}},
		{"tc clear without interface", Request{FaultType: KindTCClear, TargetNode: "r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestParseDockerArgs(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "link down uses first endpoint by default",
			req:  Request{FaultType: KindLinkDown, TargetLink: "clab-ospf-r1|clab-ospf-r2", TargetInterface: "eth1"},
			want: []string{"exec", "clab-ospf-r1", "ip", "link", "set", "eth1", "down"},
		},
		{
			name: "link up on explicit node",
			req:  Request{FaultType: KindLinkUp, TargetLink: "r1|r2", TargetNode: "r2", TargetInterface: "eth2"},
			want: []string{"exec", "r2", "ip", "link", "set", "eth2", "up"},
		},
		{
			name: "node stop",
			req:  Request{FaultType: KindNodeStop, TargetNode: "clab-ospf-r1"},
			want: []string{"stop", "clab-ospf-r1"},
		},
		{
			name: "node unpause",
			req:  Request{FaultType: KindNodeUnpause, TargetNode: "clab-ospf-r1"},
			want: []string{"unpause", "clab-ospf-r1"},
		},
		{
			name: "latency plain",
			req:  Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: 100},
			want: []string{"exec", "r1", "tc", "qdisc", "add", "dev", "eth1", "root", "netem", "delay", "100ms"},
		},
		{
			name: "latency with jitter and correlation",
			req:  Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: 100, JitterMs: 10, CorrelationPercent: 25},
			want: []string{"exec", "r1", "tc", "qdisc", "add", "dev", "eth1", "root", "netem", "delay", "100ms", "10ms", "25%"},
		},
		{
			name: "correlation without jitter is dropped",
			req:  Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: 100, CorrelationPercent: 25},
			want: []string{"exec", "r1", "tc", "qdisc", "add", "dev", "eth1", "root", "netem", "delay", "100ms"},
		},
		{
			name: "bandwidth with defaults",
			req:  Request{FaultType: KindLimitBandwidth, TargetNode: "r1", TargetInterface: "eth1", BandwidthRateKbit: 1000},
			want: []string{"exec", "r1", "tc", "qdisc", "add", "dev", "eth1", "root", "tbf", "rate", "1000kbit", "burst", "12500", "latency", "50ms"},
		},
		{
			name: "bandwidth with explicit burst and latency",
			req:  Request{FaultType: KindLimitBandwidth, TargetNode: "r1", TargetInterface: "eth1", BandwidthRateKbit: 1000, BandwidthBurstBytes: "32kbit", BandwidthLatency: "400ms"},
			want: []string{"exec", "r1", "tc", "qdisc", "add", "dev", "eth1", "root", "tbf", "rate", "1000kbit", "burst", "32kbit", "latency", "400ms"},
		},
		{
			name: "tc clear",
			req:  Request{FaultType: KindTCClear, TargetNode: "r1", TargetInterface: "eth1"},
			want: []string{"exec", "r1", "tc", "qdisc", "del", "dev", "eth1", "root"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.req)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := f.DockerArgs(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	latency := &LatencyFault{Node: "r1", Interface: "eth1", LatencyMs: 100, CorrelationPercent: -1}
	clear := &ClearFault{Node: "r1", Interface: "eth1"}

	tests := []struct {
		name  string
		fault Fault
		res   runner.Result
		want  string
	}{
		{
			name:  "clean run",
			fault: latency,
			res:   runner.Result{ExitCode: 0},
			want:  model.StatusSuccess,
		},
		{
			name:  "existing qdisc downgrades to warning",
			fault: latency,
			res:   runner.Result{Stderr: "Error: Exclusivity flag on, cannot modify.\nRTNETLINK answers: File exists", ExitCode: 2},
			want:  model.StatusWarning,
		},
		{
			name:  "file exists on a non-qdisc fault stays an error",
			fault: clear,
			res:   runner.Result{Stderr: "RTNETLINK answers: File exists", ExitCode: 2},
			want:  model.StatusError,
		},
		{
			name:  "stderr error keyword",
			fault: clear,
			res:   runner.Result{Stderr: `Cannot find device "eth9"`, ExitCode: 1},
			want:  model.StatusError,
		},
		{
			name:  "silent nonzero exit",
			fault: clear,
			res:   runner.Result{ExitCode: 1},
			want:  model.StatusError,
		},
		{
			name:  "benign stdout chatter",
			fault: clear,
			res:   runner.Result{Stdout: "qdisc deleted", ExitCode: 0},
			want:  model.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.fault, tt.res)
			if got.Status != tt.want {
				t.Errorf("status = %q (%s), want %q", got.Status, got.Message, tt.want)
			}
		})
	}
}

func TestParseLatencyDefaults(t *testing.T) {
	f, err := Parse(Request{FaultType: KindAddLatency, TargetNode: "r1", TargetInterface: "eth1", LatencyMs: 50})
	if err != nil {
		t.Fatal(err)
	}
	lf, ok := f.(*LatencyFault)
	if !ok {
		t.Fatalf("variant = %T, want *LatencyFault", f)
	}
	if lf.JitterMs != 0 {
		t.Errorf("jitter = %d, want 0", lf.JitterMs)
	}
	if lf.CorrelationPercent != -1 {
		t.Errorf("correlation = %d, want -1 sentinel", lf.CorrelationPercent)
	}
}
