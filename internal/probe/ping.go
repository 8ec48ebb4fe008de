package probe

import (
	"context"
	"regexp"
	"strconv"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/soralab/netfault/internal/logging"
)

// Ping output dialects. Busybox (Alpine lab images) and iputils (Ubuntu)
// print the RTT summary line differently; both are accepted.
var (
	rttAlpineRe = regexp.MustCompile(`round-trip min/avg/max = [\d.]+/([\d.]+)/[\d.]+ ms`)
	rttUbuntuRe = regexp.MustCompile(`rtt min/avg/max/mdev = [\d.]+/([\d.]+)/[\d.]+/[\d.]+ ms`)
	lossRe      = regexp.MustCompile(`([\d.]+)% packet loss`)
)

// PingStats holds the parsed outcome of one reachability probe. Nil fields
// mean the probe failed or its output carried no such token; a parse
// failure is not evidence of loss, so loss stays nil rather than 100.
type PingStats struct {
	RTTAvgMs    *float64
	LossPercent *float64
}

// parsePingOutput extracts average RTT and loss percentage from ping's
// summary output, tolerating both the busybox and iputils dialects.
func parsePingOutput(out string) PingStats {
	var stats PingStats
	if out == "" {
		return stats
	}

	if m := rttAlpineRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.RTTAvgMs = &v
		}
	} else if m := rttUbuntuRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.RTTAvgMs = &v
		}
	}

	if m := lossRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.LossPercent = &v
		}
	}

	return stats
}

// pingTimeout bounds one ping burst: one second per echo plus setup slack,
// never below five seconds.
func pingTimeout(count int) time.Duration {
	secs := count + 3
	if secs < 5 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// execPing runs ping inside the client container via docker exec.
func (s *Sampler) execPing(ctx context.Context) PingStats {
	interval := strconv.FormatFloat(1/float64(s.params.PingCount), 'f', -1, 64)
	args := []string{
		"ping",
		"-c", strconv.Itoa(s.params.PingCount),
		"-q",
		"-i", interval,
		s.params.ServerAddress,
	}

	res, err := s.lab.Exec(ctx, pingTimeout(s.params.PingCount), s.params.ClientContainer, args...)
	if err != nil {
		logging.Error("Sampler", "ping probe failed", err)
		return PingStats{}
	}
	// ping exits nonzero on loss but still prints the summary
	return parsePingOutput(res.Combined())
}

// nativePing runs an in-process ICMP burst from the host instead of
// shelling into the client container.
func (s *Sampler) nativePing(ctx context.Context) PingStats {
	pinger, err := probing.NewPinger(s.params.ServerAddress)
	if err != nil {
		logging.Error("Sampler", "failed to create pinger", err)
		return PingStats{}
	}

	pinger.Count = s.params.PingCount
	pinger.Interval = time.Second / time.Duration(s.params.PingCount)
	pinger.Timeout = pingTimeout(s.params.PingCount)
	pinger.SetPrivileged(s.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		if s.privileged {
			// Raw sockets need CAP_NET_RAW; fall back to UDP ping once.
			s.privileged = false
			pinger.SetPrivileged(false)
			err = pinger.RunWithContext(ctx)
		}
		if err != nil {
			logging.Error("Sampler", "native ping failed", err)
			return PingStats{}
		}
	}

	st := pinger.Statistics()
	var stats PingStats
	if st.PacketsSent > 0 {
		loss := float64(st.PacketsSent-st.PacketsRecv) / float64(st.PacketsSent) * 100
		stats.LossPercent = &loss
	}
	if st.PacketsRecv > 0 {
		avg := float64(st.AvgRtt.Microseconds()) / 1000.0
		stats.RTTAvgMs = &avg
	}
	return stats
}
