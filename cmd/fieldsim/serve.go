package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldsim/internal/api"
	"github.com/san-kum/fieldsim/internal/observability"
	"github.com/san-kum/fieldsim/internal/telemetry"
	"github.com/san-kum/fieldsim/internal/tui"
)

// runServe steps the plant in real time and exposes it over HTTP and, when
// configured, Kafka and MQTT. The first component to fail stops the rest.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := initLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := newPlant(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 8)
	launch := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("component failed", "component", name, "error", err)
				errc <- err
				cancel()
			}
		}()
	}

	m := observability.NewMetrics()
	p.AddObserver(m)

	launch("plant", p.RunRealtime)
	launch("http", func(ctx context.Context) error {
		return api.Serve(ctx, cfg.HTTP.Addr, p, m, logger)
	})

	if cfg.Kafka.Enabled() {
		pub := telemetry.NewPublisher(cfg.Kafka, logger)
		p.AddObserver(pub)
		launch("telemetry", pub.Run)
		defer pub.Close()

		consumer := telemetry.NewCommandConsumer(cfg.Kafka, p, logger)
		launch("commands", consumer.Run)
		defer consumer.Close()
	}

	if cfg.MQTT.Enabled() {
		bridge := telemetry.NewMQTTBridge(cfg.MQTT, p, logger)
		p.AddObserver(bridge)
		launch("mqtt", bridge.Run)
		defer bridge.Close()
	}

	wg.Wait()
	close(errc)
	return <-errc
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(dataDir, "fieldsim.log")
	}
	logger, closeLog, err := initLogger(cfg.Log, true)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := newPlant(cfg, logger)
	if err != nil {
		return err
	}
	return tui.RunDashboard(p, vesselHeight(cfg))
}
