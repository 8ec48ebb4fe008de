package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soralab/netfault/internal/analysis"
	"github.com/soralab/netfault/internal/collector"
	"github.com/soralab/netfault/internal/config"
	"github.com/soralab/netfault/internal/fault"
	"github.com/soralab/netfault/internal/model"
	"github.com/soralab/netfault/internal/store"
	"github.com/soralab/netfault/internal/topology"
)

// Handler holds dependencies for API handlers
type Handler struct {
	config     *config.Config
	collector  *collector.Collector
	store      store.Store
	engine     *analysis.Engine
	injector   *fault.Injector
	discoverer *topology.Discoverer
	startTime  time.Time
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(cfg *config.Config, col *collector.Collector, st store.Store,
	eng *analysis.Engine, inj *fault.Injector, disc *topology.Discoverer) *Handler {
	return &Handler{
		config:     cfg,
		collector:  col,
		store:      st,
		engine:     eng,
		injector:   inj,
		discoverer: disc,
		startTime:  time.Now(),
	}
}

// StatusResponse represents the response for the status endpoint
type StatusResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	UptimeSecs float64 `json:"uptime_secs"`
	IsRunning  bool    `json:"is_running"`
	Version    string  `json:"version"`
}

// GetStatus returns the current system status
func (h *Handler) GetStatus(c *gin.Context) {
	uptime := time.Since(h.startTime)

	c.JSON(http.StatusOK, StatusResponse{
		Status:     "ok",
		Uptime:     uptime.Round(time.Second).String(),
		UptimeSecs: uptime.Seconds(),
		IsRunning:  h.collector.IsRunning(),
		Version:    "0.1.0",
	})
}

// MeasureStatus reports whether the measurement loop is running.
func (h *Handler) MeasureStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_running": h.collector.IsRunning()})
}

// StartMeasure starts the measurement loop. The optional body overrides
// the configured defaults for this run.
func (h *Handler) StartMeasure(c *gin.Context) {
	var req collector.StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.OpResult{
				Status:  model.StatusError,
				Message: "Invalid start request: " + err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, h.collector.Start(req))
}

// StopMeasure stops the measurement loop.
func (h *Handler) StopMeasure(c *gin.Context) {
	c.JSON(http.StatusOK, h.collector.Stop())
}

// FlagRequest sets the shared fault flag.
type FlagRequest struct {
	IsInjected *bool `json:"is_injected" binding:"required"`
}

// SetFaultFlag flips the fault flag. Used by external fault tooling that
// degrades the lab outside this process.
func (h *Handler) SetFaultFlag(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.OpResult{
			Status:  model.StatusError,
			Message: "Invalid value for is_injected. Must be true or false.",
		})
		return
	}

	h.collector.SetFaultFlag(*req.IsInjected)
	c.JSON(http.StatusOK, gin.H{
		"status":             model.StatusSuccess,
		"message":            "Fault injected flag updated.",
		"current_flag_state": *req.IsInjected,
	})
}

// GetHistory returns every stored sample.
func (h *Handler) GetHistory(c *gin.Context) {
	samples, err := h.store.LoadAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to load sample history: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, samples)
}

// sampleRow is the wire form of a posted sample; the timestamp arrives as
// a string and may be unparsable, in which case the analysis engine
// discards the row.
type sampleRow struct {
	Timestamp         string   `json:"timestamp"`
	SourceContainer   string   `json:"source_container"`
	TargetContainer   string   `json:"target_container"`
	RTTAvgMs          *float64 `json:"rtt_avg_ms"`
	PacketLossPercent *float64 `json:"packet_loss_percent"`
	TCPThroughputMbps *float64 `json:"tcp_throughput_mbps"`
	UDPThroughputMbps *float64 `json:"udp_throughput_mbps"`
	UDPJitterMs       *float64 `json:"udp_jitter_ms"`
	UDPLostPackets    *int     `json:"udp_lost_packets"`
	UDPLostPercent    *float64 `json:"udp_lost_percent"`
	IsInjected        bool     `json:"is_injected"`
}

func (r sampleRow) toSample() model.MetricSample {
	ts, _ := model.ParseTime(r.Timestamp)
	return model.MetricSample{
		Timestamp:         ts,
		SourceContainer:   r.SourceContainer,
		TargetContainer:   r.TargetContainer,
		RTTAvgMs:          r.RTTAvgMs,
		PacketLossPercent: r.PacketLossPercent,
		TCPThroughputMbps: r.TCPThroughputMbps,
		UDPThroughputMbps: r.UDPThroughputMbps,
		UDPJitterMs:       r.UDPJitterMs,
		UDPLostPackets:    r.UDPLostPackets,
		UDPLostPercent:    r.UDPLostPercent,
		IsInjected:        r.IsInjected,
	}
}

// AnalyzeRequest wraps the posted sample rows.
type AnalyzeRequest struct {
	Data []sampleRow `json:"data"`
}

// Analyze runs the analysis engine over posted samples.
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Request must be JSON with a 'data' array: " + err.Error(),
		})
		return
	}

	samples := make([]model.MetricSample, 0, len(req.Data))
	for _, row := range req.Data {
		samples = append(samples, row.toSample())
	}

	c.JSON(http.StatusOK, h.engine.Analyze(samples))
}

// AnalyzeHistory runs the analysis engine over the stored sample log.
func (h *Handler) AnalyzeHistory(c *gin.Context) {
	samples, err := h.store.LoadAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to load sample history: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.engine.Analyze(samples))
}

// AnalyzeUpload analyzes an uploaded CSV sample log.
func (h *Handler) AnalyzeUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}

	samples, err := store.ReadSamples(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to parse uploaded CSV: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.engine.Analyze(samples))
}

// GetTopology discovers and returns the lab topology.
func (h *Handler) GetTopology(c *gin.Context) {
	topo, err := h.discoverer.Discover(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Topology discovery failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, topo)
}

// InjectFault validates and executes a fault-injection request.
func (h *Handler) InjectFault(c *gin.Context) {
	var req fault.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.OpResult{
			Status:  model.StatusError,
			Message: "Invalid fault request: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.injector.Inject(c.Request.Context(), req))
}

// GetConfig returns a sanitized view of the current configuration.
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server": gin.H{
			"address": h.config.Server.Address,
		},
		"measure": gin.H{
			"client_container": h.config.Measure.ClientContainer,
			"server_container": h.config.Measure.ServerContainer,
			"server_address":   h.config.Measure.ServerAddress,
			"interval":         h.config.Measure.Interval.String(),
			"ping_count":       h.config.Measure.PingCount,
			"probe_duration":   h.config.Measure.ProbeDuration.String(),
			"ping_mode":        h.config.Measure.PingMode,
		},
		"storage": gin.H{
			"csv_path": h.config.CSVPath(),
		},
	})
}
