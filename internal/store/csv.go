package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/soralab/netfault/internal/model"
)

// CSVStore persists samples to a flat CSV file, one row per sample.
// Missing numeric values are stored as empty fields, is_injected as
// lowercase "true"/"false".
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore creates a store backed by the given file path. The file is
// created lazily on first append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Append writes one row, creating the file and header if needed.
func (s *CSVStore) Append(sample model.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open sample log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat sample log: %w", err)
	}
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	if err := w.Write(encodeRow(sample)); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush row: %w", err)
	}
	return nil
}

// LoadAll replays the full log. A missing file yields an empty history,
// not an error. Rows with a missing or unparsable timestamp are skipped;
// missing optional columns load as nil.
func (s *CSVStore) LoadAll() ([]model.MetricSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.MetricSample{}, nil
		}
		return nil, fmt.Errorf("failed to open sample log: %w", err)
	}
	defer f.Close()

	return ReadSamples(f)
}

// ReadSamples decodes samples from CSV content with a header row.
func ReadSamples(r io.Reader) ([]model.MetricSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []model.MetricSample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Column lookup tolerant of case and embedded spaces
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		index[key] = i
	}

	samples := []model.MetricSample{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		ts, ok := model.ParseTime(field(record, index, "timestamp"))
		if !ok {
			continue
		}

		sample := model.MetricSample{
			Timestamp:       ts,
			SourceContainer: field(record, index, "source_container"),
			TargetContainer: field(record, index, "target_container"),
		}
		sample.RTTAvgMs = parseFloat(field(record, index, "rtt_avg_ms"))
		sample.PacketLossPercent = parseFloat(field(record, index, "packet_loss_percent"))
		sample.TCPThroughputMbps = parseFloat(field(record, index, "tcp_throughput_mbps"))
		sample.UDPThroughputMbps = parseFloat(field(record, index, "udp_throughput_mbps"))
		sample.UDPJitterMs = parseFloat(field(record, index, "udp_jitter_ms"))
		sample.UDPLostPackets = parseInt(field(record, index, "udp_lost_packets"))
		sample.UDPLostPercent = parseFloat(field(record, index, "udp_lost_percent"))
		sample.IsInjected = strings.EqualFold(strings.TrimSpace(field(record, index, "is_injected")), "true")

		samples = append(samples, sample)
	}

	return samples, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// The lost-packet count is written as an integer but a float-encoded
	// value still loads.
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v := int(f)
		return &v
	}
	return nil
}

func encodeRow(sample model.MetricSample) []string {
	return []string{
		sample.Timestamp.Format(model.TimestampLayout),
		sample.SourceContainer,
		sample.TargetContainer,
		floatField(sample.RTTAvgMs),
		floatField(sample.PacketLossPercent),
		floatField(sample.TCPThroughputMbps),
		floatField(sample.UDPThroughputMbps),
		floatField(sample.UDPJitterMs),
		intField(sample.UDPLostPackets),
		floatField(sample.UDPLostPercent),
		strconv.FormatBool(sample.IsInjected),
	}
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
