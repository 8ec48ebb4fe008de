package store

import (
	"github.com/soralab/netfault/internal/model"
)

// Columns is the storage column order of the sample log.
var Columns = []string{
	"timestamp",
	"source_container",
	"target_container",
	"rtt_avg_ms",
	"packet_loss_percent",
	"tcp_throughput_mbps",
	"udp_throughput_mbps",
	"udp_jitter_ms",
	"udp_lost_packets",
	"udp_lost_percent",
	"is_injected",
}

// Store is an append-only log of measurement samples. Rows are immutable
// once appended; LoadAll replays the full history.
type Store interface {
	// Append durably writes one row, creating the backing log and its
	// header on first write.
	Append(sample model.MetricSample) error

	// LoadAll returns every stored row, skipping rows whose timestamp is
	// missing or unparsable.
	LoadAll() ([]model.MetricSample, error)
}
