package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/aggregator"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/config"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/dashboard"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/logging"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/preferences"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/simulator"
)

const headlessReportInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "smart_trainer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logs := dashboard.NewLogBuffer()
	logOpts := logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stderr:     cfg.Headless,
	}
	if !cfg.Headless {
		logOpts.Extra = []io.Writer{logs}
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", cfg.Log.File, err)
	}
	defer closeLog()

	logger.Printf("SmartTrainer: starting (config %q, simulate %v, headless %v)", cfg.ConfigFile, cfg.Simulate, cfg.Headless)

	connector, stopConnector, err := newConnector(cfg, logger)
	if err != nil {
		logger.Printf("SmartTrainer: %v", err)
		return err
	}
	defer stopConnector()

	prefs := preferences.NewStore(logger, cfg.PreferencesFile)
	profiles := prefs.Profiles(sensor.DefaultProfiles())
	for role, address := range cfg.Addresses {
		if p, ok := profiles[role]; ok && address != "" {
			profiles[role] = p.WithAddress(address)
		}
	}

	manager := connection.NewManager(logger, connector, profiles)
	defer manager.Shutdown()
	defer prefs.Track(manager)()

	agg := aggregator.NewAggregator(logger)
	defer agg.Attach(manager)()

	dispatcher, err := command.NewDispatcher(logger, manager, cfg.Limits)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	if cfg.Headless {
		return runHeadless(logger, cfg, manager, agg)
	}
	return runDashboard(logger, cfg, logs, manager, agg, dispatcher)
}

// newConnector returns the BLE stack, or the simulated devices with their
// debug servers running.
func newConnector(cfg *config.Config, logger *log.Logger) (bt.Connector, func(), error) {
	if cfg.Simulate {
		ports := make(map[sensor.Role]int, len(sensor.AllRoles))
		for _, role := range sensor.AllRoles {
			ports[role] = cfg.SimulatorPort(role)
		}
		sim := simulator.New(logger, simulator.Options{
			Ports:        ports,
			ConnectDelay: simulator.DefaultConnectDelay,
		})
		if err := sim.Start(); err != nil {
			return nil, nil, err
		}
		return sim.Connector(), sim.Shutdown, nil
	}

	ble := bt.NewBLEConnector(bluetooth.DefaultAdapter, logger)
	if err := ble.Enable(); err != nil {
		return nil, nil, fmt.Errorf("failed to enable BLE stack: %w", err)
	}
	return ble, ble.Shutdown, nil
}

func runDashboard(
	logger *log.Logger,
	cfg *config.Config,
	logs *dashboard.LogBuffer,
	manager *connection.Manager,
	agg *aggregator.Aggregator,
	dispatcher *command.Dispatcher,
) error {
	model := dashboard.NewModel(dashboard.NewModelArgs{
		Logger:    logger,
		Source:    manager,
		Snapshots: agg,
		Logs:      logs,
	})
	defer model.Shutdown()

	controller := dashboard.NewController(dashboard.NewControllerArgs{
		Logger:         logger,
		Model:          model,
		Connector:      manager,
		Commands:       dispatcher,
		PowerStep:      cfg.PowerStepWatts,
		ResistanceStep: cfg.ResistanceStep,
	})
	defer controller.Shutdown()

	view := dashboard.NewView(dashboard.NewViewArgs{
		Renderer:   dashboard.NewTviewRenderer(logger, tview.NewApplication()),
		Model:      model,
		Controller: controller,
		Logger:     logger,
	})
	defer view.Shutdown()

	if cfg.AutoConnect {
		controller.ConnectAll()
	}
	if err := view.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	logger.Println("SmartTrainer: dashboard closed")
	return nil
}

// runHeadless logs the merged snapshot until interrupted.
func runHeadless(logger *log.Logger, cfg *config.Config, manager *connection.Manager, agg *aggregator.Aggregator) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	if cfg.AutoConnect {
		for _, role := range manager.Roles() {
			go_func_utils.SafeGoGroup(logger, &wg, func() {
				if err := manager.Connect(ctx, role); err != nil {
					logger.Printf("SmartTrainer: %v", err)
				}
			})
		}
	}

	ticker := time.NewTicker(headlessReportInterval)
	defer ticker.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Println("SmartTrainer: interrupted")
			return nil
		case <-ticker.C:
			s := agg.Snapshot()
			if s.UpdatedAt.Equal(last) {
				continue
			}
			last = s.UpdatedAt
			logger.Printf("SmartTrainer: power %dW cadence %.0frpm speed %.1fkm/h hr %dbpm resistance %d",
				s.PowerWatts, s.CadenceRpm, s.SpeedKmh, s.HeartRateBpm, s.ResistanceLevel)
		}
	}
}
