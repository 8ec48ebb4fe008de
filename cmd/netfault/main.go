package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soralab/netfault/internal/analysis"
	"github.com/soralab/netfault/internal/api"
	"github.com/soralab/netfault/internal/collector"
	"github.com/soralab/netfault/internal/config"
	"github.com/soralab/netfault/internal/fault"
	"github.com/soralab/netfault/internal/logging"
	"github.com/soralab/netfault/internal/probe"
	"github.com/soralab/netfault/internal/runner"
	"github.com/soralab/netfault/internal/store"
	"github.com/soralab/netfault/internal/topology"
)

var (
	cfgFile   string
	logFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "netfault",
		Short: "Fault-injection and link-quality measurement harness for containerlab topologies",
		Long: `netfault measures link quality (RTT, loss, throughput, jitter) between
two lab containers while synthetic faults are injected, and computes
before/after-fault statistics over the collected time series.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAnalyzeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the measurement and fault-injection API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if addr := viper.GetString("address"); addr != "" {
				cfg.Server.Address = addr
			}
			setupLogging(cfg)

			return serve(cfg)
		},
	}

	cmd.Flags().String("address", "", "API listen address (overrides config)")
	viper.BindPFlag("address", cmd.Flags().Lookup("address"))
	return cmd
}

func serve(cfg *config.Config) error {
	lab := runner.NewLab(runner.NewExecRunner(), cfg.Lab.DockerBinary)
	st := store.NewCSVStore(cfg.CSVPath())

	col := collector.New(cfg, st, func(params probe.Params) collector.CycleRunner {
		return probe.NewSampler(lab, params)
	})
	inj := fault.NewInjector(lab, col)
	disc := topology.NewDiscoverer(lab, cfg.Lab.ContainerPrefix)
	eng := analysis.NewEngine()

	server := api.NewServer(cfg, col, st, eng, inj, disc)
	server.StartAsync(cfg.Server.Address)
	logging.Info("Main", "netfault serving on "+cfg.Server.Address, nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info("Main", "shutting down", nil)
	col.Close()
	if err := server.Shutdown(10 * time.Second); err != nil {
		logging.Error("Main", "server shutdown", err)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <samples.csv>",
		Short: "Analyze a recorded sample log offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.NewCSVStore(args[0])
			samples, err := st.LoadAll()
			if err != nil {
				return err
			}

			result := analysis.NewEngine().Analyze(samples)
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func setupLogging(cfg *config.Config) {
	format := cfg.Server.LogFormat
	if logFormat != "" {
		format = logFormat
	}
	if format == string(logging.FormatJSON) {
		logging.SetFormat(logging.FormatJSON)
	}
}
