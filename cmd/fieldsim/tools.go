package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldsim/internal/automation"
	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/integrators"
	"github.com/san-kum/fieldsim/internal/plant"
)

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := initLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweep := &automation.ParameterSweep{
		Point:    args[0],
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
		Cycles:   sweepCycles,
		Observe:  sweepObserve,
	}
	results, err := automation.RunSweep(ctx, sweep, cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("sweep %s over [%g, %g], %d cycles each\n\n", sweep.Point, sweep.Min, sweep.Max, sweep.Cycles)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\tLAST_STEP\n", sweep.Point, sweep.Observe)
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.6g\t%.3g\n", r.Value, r.Final, r.Drift)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := initLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc := &automation.MonteCarloConfig{
		Perturbation: mcPerturb,
		NumTrials:    mcTrials,
		Cycles:       mcCycles,
		Seed:         mcSeed,
	}
	results, err := automation.RunMonteCarlo(ctx, mc, cfg, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tQ_OIL\tQ_WATER\tQ_GAS\tH_OIL\tH_WATER\tPRESSURE\tSTABLE")
	for _, r := range results {
		s := r.Final.Separator
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%.3f\t%.3f\t%.0f\t%v\n",
			r.TrialID, r.QInOil, r.QInWater, r.QInGas, s.HOil, s.HWater, s.Pressure, r.Stable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("\nstable: %d  unstable: %d\n", stable, unstable)
	return nil
}

// benchPlant times a headless run with each integrator.
func benchPlant(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %d cycles\n\n", benchCycles)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEG\tCYCLES\tTIME\tCYCLES/SEC")

	for _, name := range integrators.Names() {
		c := *cfg
		c.Integrator = name
		p, err := plant.New(&c, nil)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := p.Run(context.Background(), benchCycles)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		rate := float64(res.Cycles) / elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\n", name, res.Cycles, elapsed.Round(time.Microsecond), rate)
	}
	return w.Flush()
}
