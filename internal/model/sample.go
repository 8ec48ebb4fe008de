package model

import (
	"math"
	"time"
)

// TimestampLayout is the second-precision layout used for stored samples.
const TimestampLayout = "2006-01-02T15:04:05"

// Metric names tracked by the analysis engine, in storage column order.
const (
	MetricRTTAvg        = "rtt_avg_ms"
	MetricPacketLoss    = "packet_loss_percent"
	MetricTCPThroughput = "tcp_throughput_mbps"
	MetricUDPThroughput = "udp_throughput_mbps"
	MetricUDPJitter     = "udp_jitter_ms"
	MetricUDPLostPkts   = "udp_lost_packets"
	MetricUDPLostPct    = "udp_lost_percent"
)

// Metrics returns the tracked metric names in canonical order.
func Metrics() []string {
	return []string{
		MetricRTTAvg,
		MetricPacketLoss,
		MetricTCPThroughput,
		MetricUDPThroughput,
		MetricUDPJitter,
		MetricUDPLostPkts,
		MetricUDPLostPct,
	}
}

// MetricSample is one row of the measurement time series. Numeric fields
// are pointers: nil means the probe failed or did not report the value.
// A sample is immutable once appended to the store.
type MetricSample struct {
	Timestamp         time.Time `json:"timestamp"`
	SourceContainer   string    `json:"source_container"`
	TargetContainer   string    `json:"target_container"`
	RTTAvgMs          *float64  `json:"rtt_avg_ms"`
	PacketLossPercent *float64  `json:"packet_loss_percent"`
	TCPThroughputMbps *float64  `json:"tcp_throughput_mbps"`
	UDPThroughputMbps *float64  `json:"udp_throughput_mbps"`
	UDPJitterMs       *float64  `json:"udp_jitter_ms"`
	UDPLostPackets    *int      `json:"udp_lost_packets"`
	UDPLostPercent    *float64  `json:"udp_lost_percent"`
	IsInjected        bool      `json:"is_injected"`
}

// Metric returns the named metric value, or nil when it is absent.
// udp_lost_packets is widened to float64 so all metrics share one shape.
func (s *MetricSample) Metric(name string) *float64 {
	switch name {
	case MetricRTTAvg:
		return s.RTTAvgMs
	case MetricPacketLoss:
		return s.PacketLossPercent
	case MetricTCPThroughput:
		return s.TCPThroughputMbps
	case MetricUDPThroughput:
		return s.UDPThroughputMbps
	case MetricUDPJitter:
		return s.UDPJitterMs
	case MetricUDPLostPkts:
		if s.UDPLostPackets == nil {
			return nil
		}
		v := float64(*s.UDPLostPackets)
		return &v
	case MetricUDPLostPct:
		return s.UDPLostPercent
	default:
		return nil
	}
}

// Float returns a pointer to v, dropping NaN and infinities to nil so
// they can never reach the JSON boundary.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
