package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Format represents the logging output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger wraps the standard logger with format options
type Logger struct {
	format Format
	writer io.Writer
}

var defaultLogger = &Logger{
	format: FormatText,
	writer: os.Stderr,
}

// SetFormat sets the logging format globally
func SetFormat(format Format) {
	defaultLogger.format = format
}

// SetWriter sets the output writer
func SetWriter(w io.Writer) {
	defaultLogger.writer = w
	log.SetOutput(w)
}

// GetFormat returns the current logging format
func GetFormat() Format {
	return defaultLogger.format
}

// LogEntry represents a structured log entry for JSON output
type LogEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Component string      `json:"component"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

// SampleLogEntry represents a completed measurement cycle log entry
type SampleLogEntry struct {
	Timestamp  string   `json:"timestamp"`
	Level      string   `json:"level"`
	Component  string   `json:"component"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	RTTAvgMs   *float64 `json:"rtt_avg_ms"`
	LossPct    *float64 `json:"packet_loss_percent"`
	IsInjected bool     `json:"is_injected"`
}

func emit(entry interface{}) {
	jsonBytes, _ := json.Marshal(entry)
	defaultLogger.writer.Write(append(jsonBytes, '\n'))
}

// Info logs an info message
func Info(component, message string, data interface{}) {
	if defaultLogger.format == FormatJSON {
		emit(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     "info",
			Component: component,
			Message:   message,
			Data:      data,
		})
	} else {
		log.Printf("[%s] %s", component, message)
	}
}

// Warn logs a warning message
func Warn(component, message string) {
	if defaultLogger.format == FormatJSON {
		emit(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     "warn",
			Component: component,
			Message:   message,
		})
	} else {
		log.Printf("[%s] WARNING: %s", component, message)
	}
}

// Error logs an error message
func Error(component, message string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	if defaultLogger.format == FormatJSON {
		emit(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     "error",
			Component: component,
			Message:   message,
			Data:      map[string]string{"error": errStr},
		})
	} else {
		if err != nil {
			log.Printf("[%s] %s: %v", component, message, err)
		} else {
			log.Printf("[%s] %s", component, message)
		}
	}
}

// Sample logs one measurement cycle result
func Sample(source, target string, rttAvgMs, lossPct *float64, injected bool) {
	if defaultLogger.format == FormatJSON {
		emit(SampleLogEntry{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Level:      "info",
			Component:  "Sampler",
			Source:     source,
			Target:     target,
			RTTAvgMs:   rttAvgMs,
			LossPct:    lossPct,
			IsInjected: injected,
		})
		return
	}

	if rttAvgMs != nil {
		log.Printf("[Sampler] %s -> %s: rtt %.2fms (injected=%v)", source, target, *rttAvgMs, injected)
	} else {
		log.Printf("[Sampler] %s -> %s: rtt n/a (injected=%v)", source, target, injected)
	}
}
