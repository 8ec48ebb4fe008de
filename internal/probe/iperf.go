package probe

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/soralab/netfault/internal/logging"
)

const (
	listenerStartTimeout = 10 * time.Second
	listenerStopTimeout  = 5 * time.Second
	// Extra slack on top of the configured test duration before a hung
	// iperf3 client is killed.
	iperfOverhead = 10 * time.Second
)

// IperfStats holds the parsed outcome of one iperf3 run. Nil fields mean
// the run failed or its JSON carried no such value.
type IperfStats struct {
	ThroughputMbps *float64
	JitterMs       *float64
	LostPackets    *int
	LostPercent    *float64
}

// parseIperfOutput extracts throughput and UDP loss figures from iperf3
// JSON output. TCP reports under end.sum_received, UDP under end.sum.
func parseIperfOutput(out string) IperfStats {
	var stats IperfStats
	if out == "" || !gjson.Valid(out) {
		return stats
	}

	sum := gjson.Get(out, "end.sum_received")
	if !sum.Exists() {
		sum = gjson.Get(out, "end.sum")
	}
	if !sum.Exists() {
		return stats
	}

	if bps := sum.Get("bits_per_second"); bps.Exists() {
		mbps := roundTo(bps.Float()/1e6, 2)
		stats.ThroughputMbps = &mbps
	}
	if j := sum.Get("jitter_ms"); j.Exists() {
		v := j.Float()
		stats.JitterMs = &v
	}
	if lp := sum.Get("lost_packets"); lp.Exists() {
		v := int(lp.Int())
		stats.LostPackets = &v
	}
	if pct := sum.Get("lost_percent"); pct.Exists() {
		v := pct.Float()
		stats.LostPercent = &v
	}

	return stats
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func (s *Sampler) iperfTimeout() time.Duration {
	return s.params.Duration + iperfOverhead
}

// tcpProbe measures TCP throughput from the client container.
func (s *Sampler) tcpProbe(ctx context.Context) IperfStats {
	args := []string{
		"iperf3", "-c", s.params.ServerAddress,
		"-t", strconv.Itoa(int(s.params.Duration.Seconds())),
		"-J", "-P", "1",
	}
	res, err := s.lab.Exec(ctx, s.iperfTimeout(), s.params.ClientContainer, args...)
	if err != nil {
		logging.Error("Sampler", "iperf3 TCP probe failed", err)
		return IperfStats{}
	}
	return parseIperfOutput(res.Stdout)
}

// udpProbe measures UDP throughput, jitter and loss from the client
// container at the configured offered bandwidth.
func (s *Sampler) udpProbe(ctx context.Context) IperfStats {
	args := []string{
		"iperf3", "-c", s.params.ServerAddress,
		"-t", strconv.Itoa(int(s.params.Duration.Seconds())),
		"-u", "-b", s.params.UDPBandwidth,
		"-J", "-P", "1",
	}
	res, err := s.lab.Exec(ctx, s.iperfTimeout(), s.params.ClientContainer, args...)
	if err != nil {
		logging.Error("Sampler", "iperf3 UDP probe failed", err)
		return IperfStats{}
	}
	return parseIperfOutput(res.Stdout)
}

// StartListener starts the iperf3 server daemon on the server container.
// An already-running listener is not an error; any other failure disables
// throughput probing for the session while ping probing continues.
func (s *Sampler) StartListener(ctx context.Context) bool {
	res, err := s.lab.Exec(ctx, listenerStartTimeout, s.params.ServerContainer, "iperf3", "-s", "-D")
	if err != nil {
		logging.Error("Sampler", "iperf3 server start command failed", err)
		s.listenerUp = false
		return false
	}

	out := res.Combined()
	if strings.Contains(out, "Address already in use") {
		logging.Info("Sampler", "iperf3 server already running on "+s.params.ServerContainer, nil)
		s.listenerUp = true
		return true
	}
	if res.ExitCode != 0 || strings.Contains(out, "failed to daemonize") {
		logging.Warn("Sampler", "iperf3 server failed to start; throughput probing disabled: "+strings.TrimSpace(out))
		s.listenerUp = false
		return false
	}

	logging.Info("Sampler", "iperf3 server started on "+s.params.ServerContainer, nil)
	s.listenerUp = true
	return true
}

// StopListener terminates the iperf3 server daemon. A missing process is
// fine; anything else is reported back as a warning, never an error.
func (s *Sampler) StopListener(ctx context.Context) (warning string) {
	if !s.listenerUp {
		return ""
	}
	s.listenerUp = false

	res, err := s.lab.Exec(ctx, listenerStopTimeout, s.params.ServerContainer, "pkill", "-SIGTERM", "iperf3")
	if err != nil {
		return "iperf3 server stop command failed: " + err.Error()
	}

	out := strings.ToLower(res.Combined())
	if strings.Contains(out, "no process found") {
		return "iperf3 server was not found running"
	}
	if res.ExitCode > 1 {
		// pkill exits 1 when no process matched, >1 on real failure
		return "iperf3 server may require a manual stop: " + strings.TrimSpace(res.Combined())
	}
	return ""
}
