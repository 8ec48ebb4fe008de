package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soralab/netfault/internal/config"
	"github.com/soralab/netfault/internal/logging"
	"github.com/soralab/netfault/internal/model"
	"github.com/soralab/netfault/internal/probe"
	"github.com/soralab/netfault/internal/store"
)

// stopMargin is added to one worst-case cycle when waiting for the loop
// to observe cancellation.
const stopMargin = 10 * time.Second

// StartRequest overrides the configured measurement defaults for one run.
// Zero or invalid values fall back to the configured defaults.
type StartRequest struct {
	ClientContainer string `json:"client_container"`
	ServerContainer string `json:"server_container"`
	ServerAddress   string `json:"server_address"`
	IntervalSec     int    `json:"interval_sec"`
	PingCount       int    `json:"ping_count"`
	DurationSec     int    `json:"duration_sec"`
}

// CycleRunner is the measurement cycle executed by the loop. It is the
// probe.Sampler in production and a stub in tests.
type CycleRunner interface {
	StartListener(ctx context.Context) bool
	StopListener(ctx context.Context) (warning string)
	Sample(ctx context.Context) model.MetricSample
	WorstCaseCycle() time.Duration
}

// Collector owns the measurement loop and the shared fault flag. At most
// one loop runs at a time; the flag is written by the fault-injection
// path while the loop reads it every cycle, so all access is guarded.
type Collector struct {
	cfg        *config.Config
	store      store.Store
	newSampler func(probe.Params) CycleRunner

	mu       sync.Mutex
	running  bool
	injected bool
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	sampler  CycleRunner

	subscribers map[chan model.MetricSample]struct{}
	subMu       sync.RWMutex
}

// New creates a Collector. newSampler builds the cycle runner for a run's
// resolved parameters.
func New(cfg *config.Config, st store.Store, newSampler func(probe.Params) CycleRunner) *Collector {
	return &Collector{
		cfg:         cfg,
		store:       st,
		newSampler:  newSampler,
		subscribers: make(map[chan model.MetricSample]struct{}),
	}
}

// IsRunning reports whether the measurement loop is currently active.
func (c *Collector) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// FaultFlag returns the current fault flag value.
func (c *Collector) FaultFlag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.injected
}

// SetFaultFlag sets the fault flag. The flag is a latch over a run: it is
// reset when a run starts and flips true when any fault is attempted, so
// samples collected from that instant on are tagged.
func (c *Collector) SetFaultFlag(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.injected = v
}

// resolveParams merges a start request with the configured defaults.
func (c *Collector) resolveParams(req StartRequest) (probe.Params, time.Duration) {
	m := c.cfg.Measure

	params := probe.Params{
		ClientContainer: m.ClientContainer,
		ServerContainer: m.ServerContainer,
		ServerAddress:   m.ServerAddress,
		PingCount:       m.PingCount,
		Duration:        m.ProbeDuration,
		UDPBandwidth:    m.UDPBandwidth,
		PingMode:        m.PingMode,
	}
	interval := m.Interval

	if req.ClientContainer != "" {
		params.ClientContainer = req.ClientContainer
	}
	if req.ServerContainer != "" {
		params.ServerContainer = req.ServerContainer
	}
	if req.ServerAddress != "" {
		params.ServerAddress = req.ServerAddress
	}
	if req.PingCount >= 1 {
		params.PingCount = req.PingCount
	}
	if req.DurationSec >= 1 {
		params.Duration = time.Duration(req.DurationSec) * time.Second
	}
	if req.IntervalSec >= 1 {
		interval = time.Duration(req.IntervalSec) * time.Second
	}

	return params, interval
}

// Start launches the measurement loop. Starting while already running is
// an informational no-op.
func (c *Collector) Start(req StartRequest) model.OpResult {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return model.OpResult{Status: model.StatusInfo, Message: "Measurement is already running."}
	}

	params, interval := c.resolveParams(req)

	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.injected = false
	c.interval = interval
	c.cancel = cancel
	c.done = make(chan struct{})
	c.sampler = c.newSampler(params)

	sampler := c.sampler
	done := c.done
	c.mu.Unlock()

	logging.Info("Collector", fmt.Sprintf("starting measurement loop: %s -> %s (%s), interval %s, %d pings, %s probes",
		params.ClientContainer, params.ServerContainer, params.ServerAddress,
		interval, params.PingCount, params.Duration), nil)

	go c.run(ctx, sampler, interval, done)

	return model.OpResult{Status: model.StatusSuccess, Message: "Measurement started."}
}

// run is the loop body. It owns the iperf3 listener lifecycle for the
// session and marks the collector not-running on exit.
func (c *Collector) run(ctx context.Context, sampler CycleRunner, interval time.Duration, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	if !sampler.StartListener(ctx) {
		logging.Warn("Collector", "iperf3 listener unavailable; continuing with ping-only sampling")
	}

	for {
		select {
		case <-ctx.Done():
			logging.Info("Collector", "measurement loop stopping as requested", nil)
			return
		default:
		}

		injected := c.FaultFlag()
		sample := sampler.Sample(ctx)
		sample.IsInjected = injected

		// A cycle interrupted by stop produces no row
		if ctx.Err() != nil {
			logging.Info("Collector", "measurement loop stopping as requested", nil)
			return
		}

		if err := c.store.Append(sample); err != nil {
			logging.Error("Collector", "failed to append sample; row dropped", err)
		}
		c.broadcast(sample)
		logging.Sample(sample.SourceContainer, sample.TargetContainer,
			sample.RTTAvgMs, sample.PacketLossPercent, sample.IsInjected)

		select {
		case <-ctx.Done():
			logging.Info("Collector", "measurement loop stopping as requested", nil)
			return
		case <-time.After(interval):
		}
	}
}

// Stop cancels the loop and blocks until it exits, bounded by one
// worst-case cycle plus margin. Stopping an idle loop is an informational
// no-op.
func (c *Collector) Stop() model.OpResult {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return model.OpResult{Status: model.StatusInfo, Message: "Measurement is not running."}
	}
	cancel := c.cancel
	done := c.done
	sampler := c.sampler
	interval := c.interval
	c.mu.Unlock()

	cancel()

	wait := interval + sampler.WorstCaseCycle() + stopMargin
	status := model.StatusSuccess
	message := "Measurement stopped successfully."

	select {
	case <-done:
	case <-time.After(wait):
		status = model.StatusWarning
		message = "Measurement loop did not stop gracefully within the bounded wait."
		logging.Warn("Collector", "measurement loop did not terminate in time")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if warning := sampler.StopListener(stopCtx); warning != "" {
		if status == model.StatusSuccess {
			status = model.StatusWarning
		}
		message += " " + warning + "."
		logging.Warn("Collector", warning)
	}

	return model.OpResult{Status: status, Message: message}
}

// Subscribe returns a channel receiving every recorded sample.
func (c *Collector) Subscribe() <-chan model.MetricSample {
	ch := make(chan model.MetricSample, 100)

	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Collector) Unsubscribe(ch <-chan model.MetricSample) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for subCh := range c.subscribers {
		if subCh == ch {
			close(subCh)
			delete(c.subscribers, subCh)
			return
		}
	}
}

// Close shuts the collector down and closes all subscriber channels.
func (c *Collector) Close() {
	if c.IsRunning() {
		c.Stop()
	}

	c.subMu.Lock()
	for ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, ch)
	}
	c.subMu.Unlock()
}

func (c *Collector) broadcast(sample model.MetricSample) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- sample:
		default:
			// Subscriber buffer full; drop rather than block the loop
		}
	}
}
