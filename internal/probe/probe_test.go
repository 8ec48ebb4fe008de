package probe

import (
	"testing"
	"time"
)

const alpinePingOutput = `PING 192.168.12.10 (192.168.12.10): 56 data bytes

--- 192.168.12.10 ping statistics ---
10 packets transmitted, 10 packets received, 0% packet loss
round-trip min/avg/max = 0.101/0.248/0.915 ms`

const ubuntuPingOutput = `PING 192.168.12.10 (192.168.12.10) 56(84) bytes of data.

--- 192.168.12.10 ping statistics ---
10 packets transmitted, 8 received, 20% packet loss, time 902ms
rtt min/avg/max/mdev = 0.089/0.152/0.310/0.071 ms`

func TestParsePingOutput(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		wantRTT  *float64
		wantLoss *float64
	}{
		{
			name:     "busybox dialect",
			out:      alpinePingOutput,
			wantRTT:  ptr(0.248),
			wantLoss: ptr(0.0),
		},
		{
			name:     "iputils dialect with loss",
			out:      ubuntuPingOutput,
			wantRTT:  ptr(0.152),
			wantLoss: ptr(20.0),
		},
		{
			name: "fractional loss",
			out: `100 packets transmitted, 99 packets received, 1.0% packet loss
round-trip min/avg/max = 0.1/0.2/0.3 ms`,
			wantRTT:  ptr(0.2),
			wantLoss: ptr(1.0),
		},
		{
			name: "total loss has no rtt line",
			out: `PING 192.168.12.10 (192.168.12.10): 56 data bytes

--- 192.168.12.10 ping statistics ---
10 packets transmitted, 0 packets received, 100% packet loss`,
			wantRTT:  nil,
			wantLoss: ptr(100.0),
		},
		{
			name:     "unparsable output yields no values",
			out:      "ping: bad address 'nonexistent'",
			wantRTT:  nil,
			wantLoss: nil,
		},
		{
			name:     "empty output",
			out:      "",
			wantRTT:  nil,
			wantLoss: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePingOutput(tt.out)
			checkFloat(t, "rtt", got.RTTAvgMs, tt.wantRTT)
			checkFloat(t, "loss", got.LossPercent, tt.wantLoss)
		})
	}
}

func TestParseIperfOutputTCP(t *testing.T) {
	out := `{"end":{"sum_received":{"bits_per_second":94123456.789,"seconds":1.0}}}`

	got := parseIperfOutput(out)
	checkFloat(t, "throughput", got.ThroughputMbps, ptr(94.12))
	if got.JitterMs != nil {
		t.Errorf("jitter = %v, want nil for TCP", *got.JitterMs)
	}
	if got.LostPackets != nil || got.LostPercent != nil {
		t.Error("TCP run should not report UDP loss figures")
	}
}

func TestParseIperfOutputUDP(t *testing.T) {
	out := `{"end":{"sum":{"bits_per_second":10000000,"jitter_ms":0.042,"lost_packets":3,"lost_percent":0.35}}}`

	got := parseIperfOutput(out)
	checkFloat(t, "throughput", got.ThroughputMbps, ptr(10.0))
	checkFloat(t, "jitter", got.JitterMs, ptr(0.042))
	if got.LostPackets == nil || *got.LostPackets != 3 {
		t.Errorf("lost packets = %v, want 3", got.LostPackets)
	}
	checkFloat(t, "lost percent", got.LostPercent, ptr(0.35))
}

func TestParseIperfOutputInvalid(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty", ""},
		{"not json", "iperf3: error - unable to connect to server"},
		{"json without end section", `{"start":{"connected":[]}}`},
		{"error report", `{"error":"unable to connect to server: Connection refused"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIperfOutput(tt.out)
			if got.ThroughputMbps != nil {
				t.Errorf("throughput = %v, want nil", *got.ThroughputMbps)
			}
		})
	}
}

func TestPingTimeout(t *testing.T) {
	tests := []struct {
		count int
		want  time.Duration
	}{
		{1, 5 * time.Second},
		{2, 5 * time.Second},
		{10, 13 * time.Second},
		{60, 63 * time.Second},
	}

	for _, tt := range tests {
		if got := pingTimeout(tt.count); got != tt.want {
			t.Errorf("pingTimeout(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func checkFloat(t *testing.T, field string, got, want *float64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil:
		t.Errorf("%s = nil, want %v", field, *want)
	case want == nil:
		t.Errorf("%s = %v, want nil", field, *got)
	case *got != *want:
		t.Errorf("%s = %v, want %v", field, *got, *want)
	}
}

func ptr(v float64) *float64 { return &v }
