package probe

import (
	"context"
	"time"

	"github.com/soralab/netfault/internal/config"
	"github.com/soralab/netfault/internal/model"
	"github.com/soralab/netfault/internal/runner"
)

// Params fixes the client/server pair and probe sizing for one
// measurement session.
type Params struct {
	ClientContainer string
	ServerContainer string
	ServerAddress   string
	PingCount       int
	Duration        time.Duration
	UDPBandwidth    string
	PingMode        string
}

// Sampler executes one measurement cycle: a ping burst plus TCP and UDP
// throughput probes against a fixed pair. Individual probe failures never
// abort a cycle; every cycle yields exactly one MetricSample, possibly
// with null fields.
type Sampler struct {
	lab    *runner.Lab
	params Params

	listenerUp bool
	privileged bool
}

// NewSampler creates a Sampler for the given pair.
func NewSampler(lab *runner.Lab, params Params) *Sampler {
	if params.PingCount < 1 {
		params.PingCount = 1
	}
	if params.Duration < time.Second {
		params.Duration = time.Second
	}
	if params.UDPBandwidth == "" {
		params.UDPBandwidth = "10M"
	}
	return &Sampler{
		lab:        lab,
		params:     params,
		privileged: true,
	}
}

// ListenerUp reports whether throughput probing is enabled for this
// session.
func (s *Sampler) ListenerUp() bool {
	return s.listenerUp
}

// Sample runs one full measurement cycle and returns the resulting row.
// The caller tags IsInjected.
func (s *Sampler) Sample(ctx context.Context) model.MetricSample {
	sample := model.MetricSample{
		Timestamp:       time.Now().Truncate(time.Second),
		SourceContainer: s.params.ClientContainer,
		TargetContainer: s.params.ServerContainer,
	}

	var ping PingStats
	if s.params.PingMode == config.PingModeNative {
		ping = s.nativePing(ctx)
	} else {
		ping = s.execPing(ctx)
	}
	sample.RTTAvgMs = ping.RTTAvgMs
	sample.PacketLossPercent = ping.LossPercent

	if ctx.Err() != nil {
		return sample
	}

	if s.listenerUp {
		tcp := s.tcpProbe(ctx)
		sample.TCPThroughputMbps = tcp.ThroughputMbps

		if ctx.Err() != nil {
			return sample
		}

		udp := s.udpProbe(ctx)
		sample.UDPThroughputMbps = udp.ThroughputMbps
		if udp.ThroughputMbps != nil {
			sample.UDPJitterMs = udp.JitterMs
			sample.UDPLostPackets = udp.LostPackets
			sample.UDPLostPercent = udp.LostPercent
		}
	}

	return sample
}

// WorstCaseCycle is the longest a single cycle can take with every probe
// hitting its timeout. The loop's bounded stop wait derives from it.
func (s *Sampler) WorstCaseCycle() time.Duration {
	return pingTimeout(s.params.PingCount) + 2*s.iperfTimeout()
}
