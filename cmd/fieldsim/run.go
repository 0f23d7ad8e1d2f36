package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldsim/internal/automation"
	"github.com/san-kum/fieldsim/internal/metrics"
	"github.com/san-kum/fieldsim/internal/plant"
	"github.com/san-kum/fieldsim/internal/storage"
	"github.com/san-kum/fieldsim/internal/tui"
)

func runHeadless(cmd *cobra.Command, args []string) error {
	var sc *automation.Scenario
	if scenario != "" {
		var err error
		sc, err = automation.LoadScenario(scenario)
		if err != nil {
			return err
		}
		if sc.Preset != "" && preset == "" {
			preset = sc.Preset
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := initLogger(cfg.Log, live)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := newPlant(cfg, logger)
	if err != nil {
		return err
	}
	for _, m := range metrics.Standard(window) {
		p.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if live {
		r := tui.NewLiveRenderer(os.Stdout, frameRate, vesselHeight(cfg))
		r.Start()
		defer r.Stop()
		p.AddObserver(r)
	}

	start := time.Now()
	var result *plant.Result
	if sc != nil {
		snaps, err := automation.RunScenario(ctx, sc, p, logger)
		if err != nil {
			return err
		}
		result = &plant.Result{Snapshots: snaps, Cycles: len(snaps), Metrics: p.MetricValues()}
	} else {
		result, err = p.Run(ctx, cfg.Cycles)
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Preset:      presetName(),
		CycleTimeMs: cfg.CycleTimeMs,
		Integrator:  cfg.Integrator,
		Scenario:    scenario,
	}

	if jsonOut {
		return storage.ExportJSON(os.Stdout, meta, result)
	}

	runID := "(not saved)"
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err = st.Save(meta, result)
		if err != nil {
			return err
		}
	}

	last := p.Last()
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("cycles: %d (%.1fs simulated)\n", result.Cycles, last.Cycle.Now)
	fmt.Println("\nfinal state:")
	fmt.Printf("  separator   h_oil=%.3f m  h_water=%.3f m  pressure=%.0f Pa\n", last.Separator.HOil, last.Separator.HWater, last.Separator.Pressure)
	fmt.Printf("  valve       signal=%.1f%%  opening=%.1f%%  flow=%.3f m3/h\n", last.ValveSignal, last.Valve.Opening, last.Valve.Flow)
	fmt.Printf("  actuator    %s\n", last.Actuator.Current)
	fmt.Printf("  transmitter %.3f fault=%v\n", last.Transmitter.CurrentValue, last.Transmitter.Fault)

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return nil
}
