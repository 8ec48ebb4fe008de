package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// PingMode selects how the reachability probe is executed.
const (
	PingModeExec   = "exec"   // docker exec <client> ping ...
	PingModeNative = "native" // in-process ICMP from the host
)

// Config represents the root configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Measure MeasureConfig `mapstructure:"measure"`
	Storage StorageConfig `mapstructure:"storage"`
	Lab     LabConfig     `mapstructure:"lab"`
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	LogFormat string `mapstructure:"log_format"`
}

// MeasureConfig holds the measurement-loop defaults. The start request may
// override any of them for a single run.
type MeasureConfig struct {
	ClientContainer string        `mapstructure:"client_container"`
	ServerContainer string        `mapstructure:"server_container"`
	ServerAddress   string        `mapstructure:"server_address"`
	Interval        time.Duration `mapstructure:"interval"`
	PingCount       int           `mapstructure:"ping_count"`
	ProbeDuration   time.Duration `mapstructure:"probe_duration"`
	UDPBandwidth    string        `mapstructure:"udp_bandwidth"`
	PingMode        string        `mapstructure:"ping_mode"`
}

// StorageConfig holds the sample-log settings
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
	CSVFile string `mapstructure:"csv_file"`
}

// LabConfig holds settings for talking to the container lab
type LabConfig struct {
	DockerBinary    string `mapstructure:"docker_binary"`
	ContainerPrefix string `mapstructure:"container_prefix"`
}

// Load reads configuration from the specified file. An empty path loads
// defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("measure.client_container", "clab-ospf-pc1")
	v.SetDefault("measure.server_container", "clab-ospf-pc2")
	v.SetDefault("measure.server_address", "192.168.12.10")
	v.SetDefault("measure.interval", "1s")
	v.SetDefault("measure.ping_count", 10)
	v.SetDefault("measure.probe_duration", "1s")
	v.SetDefault("measure.udp_bandwidth", "10M")
	v.SetDefault("measure.ping_mode", PingModeExec)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.csv_file", "result.csv")
	v.SetDefault("lab.docker_binary", "docker")
	v.SetDefault("lab.container_prefix", "clab-")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for required fields and valid values
func (c *Config) Validate() error {
	if c.Measure.ClientContainer == "" {
		return fmt.Errorf("measure.client_container is required")
	}
	if c.Measure.ServerContainer == "" {
		return fmt.Errorf("measure.server_container is required")
	}
	if c.Measure.ServerAddress == "" {
		return fmt.Errorf("measure.server_address is required")
	}
	if c.Measure.Interval < time.Second {
		return fmt.Errorf("measure.interval must be at least 1s")
	}
	if c.Measure.PingCount < 1 {
		return fmt.Errorf("measure.ping_count must be at least 1")
	}
	if c.Measure.ProbeDuration < time.Second {
		return fmt.Errorf("measure.probe_duration must be at least 1s")
	}
	if c.Measure.PingMode != PingModeExec && c.Measure.PingMode != PingModeNative {
		return fmt.Errorf("measure.ping_mode must be %q or %q, got %q",
			PingModeExec, PingModeNative, c.Measure.PingMode)
	}
	if c.Storage.CSVFile == "" {
		return fmt.Errorf("storage.csv_file is required")
	}
	if c.Lab.DockerBinary == "" {
		return fmt.Errorf("lab.docker_binary is required")
	}
	return nil
}

// CSVPath returns the resolved path of the sample log.
func (c *Config) CSVPath() string {
	if filepath.IsAbs(c.Storage.CSVFile) {
		return c.Storage.CSVFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.CSVFile)
}
