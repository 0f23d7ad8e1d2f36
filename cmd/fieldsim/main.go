package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/metrics"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFile    string

	cycles     int
	cycleMs    int
	integrator string
	sets       []string
	scenario   string
	live       bool
	frameRate  int
	noSave     bool
	jsonOut    bool
	window     int

	httpAddr string
	brokers  []string
	mqttURL  string

	plotPoints []string

	sweepMin     float64
	sweepMax     float64
	sweepSteps   int
	sweepObserve string
	sweepCycles  int

	mcTrials  int
	mcPerturb float64
	mcSeed    int64
	mcCycles  int

	benchCycles int
)

// main registers the commands and runs the dashboard when no subcommand is
// given.
func main() {
	rootCmd := &cobra.Command{
		Use:           "fieldsim",
		Short:         "industrial field equipment simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDashboard,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".fieldsim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "also write logs to this file")
	pf.IntVar(&cycleMs, "cycle-ms", 0, "cycle period in milliseconds")
	pf.StringArrayVar(&sets, "set", nil, "point=value written before the first cycle (repeatable)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the plant headless and record the run",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&cycles, "cycles", config.DefaultCycles, "number of cycles")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "separator integrator (euler, rk4)")
	runCmd.Flags().StringVar(&scenario, "scenario", "", "scenario file (yaml)")
	runCmd.Flags().BoolVar(&live, "live", false, "draw a text frame while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 10, "frame rate for --live")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "write every snapshot to stdout as JSON")
	runCmd.Flags().IntVar(&window, "window", metrics.DefaultWindow, "drift window in cycles")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the plant in real time behind the HTTP API, Kafka and MQTT",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address")
	serveCmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers, enables telemetry and commands")
	serveCmd.Flags().StringVar(&mqttURL, "mqtt", "", "MQTT broker URL, enables the MQTT bridge")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive dashboard",
		Args:  cobra.NoArgs,
		RunE:  runDashboard,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotPoints, "points", []string{"separator.h_oil", "separator.h_water", "separator.pressure"}, "points to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	pointsCmd := &cobra.Command{
		Use:   "points [owner]",
		Short: "list the point table with current values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPoints,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [point]",
		Short: "run a fresh plant for each value of a point",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 100, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 11, "number of values")
	sweepCmd.Flags().IntVar(&sweepCycles, "cycles", 600, "cycles per value")
	sweepCmd.Flags().StringVar(&sweepObserve, "observe", "valve.flow", "point to record")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "perturb separator inflows and count stable trials",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 0.2, "relative inflow perturbation")
	mcCmd.Flags().IntVar(&mcCycles, "cycles", config.DefaultCycles, "cycles per trial")
	mcCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed, 0 for time based")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark cycles per second for each integrator",
		Args:  cobra.NoArgs,
		RunE:  benchPlant,
	}
	benchCmd.Flags().IntVar(&benchCycles, "cycles", 10000, "cycles per integrator")

	rootCmd.AddCommand(runCmd, serveCmd, liveCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, deleteCmd,
		pointsCmd, presetsCmd, initCmd, sweepCmd, mcCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
