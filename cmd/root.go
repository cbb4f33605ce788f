package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/radio-sim/sim"
	"github.com/inference-sim/radio-sim/sim/observe"
	"github.com/inference-sim/radio-sim/sim/trace"
)

var (
	scenarioPath      string // YAML scenario file
	seed              int64  // Overrides the scenario seed when set
	simulationHorizon int64  // Overrides the scenario horizon when set (in ticks)
	logLevel          string // Log verbosity level
	traceLevel        string // Trace verbosity: none, receptions, events
	metricsOut        string // Path for the Prometheus text exposition, empty to skip
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "radio-sim",
	Short: "Discrete-event simulator for radio networks",
}

// setupLogging applies the --log flag to logrus.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// overrides holds CLI values that replace scenario fields. Nil means the flag
// was not given.
type overrides struct {
	seed    *int64
	horizon *int64
}

func overridesFrom(cmd *cobra.Command) overrides {
	var o overrides
	if cmd.Flags().Changed("seed") {
		o.seed = &seed
	}
	if cmd.Flags().Changed("horizon") {
		o.horizon = &simulationHorizon
	}
	return o
}

// applyOverrides replaces the scenario seed and horizon with explicit CLI values.
func applyOverrides(scn *sim.Scenario, o overrides) {
	if o.seed != nil {
		scn.Seed = *o.seed
	}
	if o.horizon != nil {
		scn.Horizon = *o.horizon
	}
}

// loadScenario reads the --scenario file and applies CLI overrides.
func loadScenario(o overrides) (*sim.Scenario, error) {
	if scenarioPath == "" {
		return nil, fmt.Errorf("no scenario given (--scenario)")
	}
	scn, err := sim.LoadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(scn, o)
	return scn, nil
}

// runCmd executes a scenario and prints the run metrics
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a radio network scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		scn, err := loadScenario(overridesFrom(cmd))
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		var reg *prometheus.Registry
		var collector *observe.Collector
		if metricsOut != "" {
			reg = prometheus.NewRegistry()
			if collector, err = observe.NewCollector(reg); err != nil {
				logrus.Fatalf("creating metrics collector: %v", err)
			}
		}

		s, err := sim.BuildSimulator(scn, sim.BuildOptions{
			TraceLevel: trace.TraceLevel(traceLevel),
			Collector:  collector,
		})
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting simulation: %d nodes, horizon=%dticks, seed=%d, propagation=%s",
			len(s.Nodes), s.Horizon, scn.Seed, s.Propagation.Name())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		startTime := time.Now()
		metrics := s.Run(ctx)
		metrics.Print(os.Stdout)
		if s.Trace != nil {
			printTraceSummary(trace.Summarize(s.Trace))
		}

		if metricsOut != "" {
			if err := writeMetrics(collector, metricsOut); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// validateCmd loads and checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file for errors",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		scn, err := loadScenario(overridesFrom(cmd))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := scn.Validate(); err != nil {
			logrus.Fatalf("invalid scenario: %v", err)
		}
		fmt.Printf("%s: ok (%d nodes, %d transmissions, %d traffic sources)\n",
			scenarioPath, len(scn.Nodes), len(scn.Transmissions), len(scn.Traffic))
	},
}

func printTraceSummary(summary *trace.TraceSummary) {
	fmt.Println("=== Trace Summary ===")
	fmt.Printf("Traced Events        : %d\n", summary.TotalEvents)
	fmt.Printf("Traced Receptions    : %d\n", summary.TotalReceptions)
	for _, outcome := range []string{"delivered", "collided", "busy", "deaf", "aborted"} {
		if n := summary.ByOutcome[outcome]; n > 0 {
			fmt.Printf("  %-18s : %d\n", outcome, n)
		}
	}
	if summary.ByOutcome["delivered"] > 0 {
		fmt.Printf("Mean SINR (delivered): %.2f dB\n", summary.MeanSINRDb)
		fmt.Printf("Min SINR (delivered) : %.2f dB\n", summary.MinSINRDb)
	}
}

// writeMetrics dumps the collector in Prometheus text format to path.
func writeMetrics(c *observe.Collector, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer f.Close()
	if err := c.WriteText(f); err != nil {
		return err
	}
	return f.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario file")
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for traffic generation (overrides the scenario)")
		c.Flags().Int64Var(&simulationHorizon, "horizon", 0, "Simulation horizon in ticks, 0 runs until idle (overrides the scenario)")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, receptions, events)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
