package master

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/config"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/metrics"
	"github.com/core-tools/hsu-game-master/pkg/probe"
	"github.com/core-tools/hsu-game-master/pkg/process"
	"github.com/core-tools/hsu-game-master/pkg/processfile"
	"github.com/core-tools/hsu-game-master/pkg/supervisor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"vawter.tech/stopper"
)

const (
	backgroundStopGrace = 5 * time.Second
	metricsShutdownWait = 5 * time.Second
)

// RunOptions carries what the command line and tests inject into Run. Zero values
// select the real terminal, signals, processes and probe.
type RunOptions struct {
	// ConfigFile is watched when app_config.watch_config is set
	ConfigFile  string
	RunDuration time.Duration

	Input      io.Reader
	Output     io.Writer
	Interrupts <-chan os.Signal

	Launcher     process.Launcher
	Prober       probe.Prober
	ProcessFiles processfile.ProcessFileConfig
}

// Run supervises the configured servers until Terminate, a forced exit or the end
// of the run duration. It returns supervisor.ErrForcedExit after a second interrupt.
func Run(cfg *config.Config, options RunOptions, coreLogger coreLogging.Logger, masterLogger logging.Logger) error {
	if cfg == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	masterLogger.Infof("Master runner starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if options.RunDuration > 0 {
		masterLogger.Infof("Using RUN DURATION of %v", options.RunDuration)
		ctx, cancel = context.WithTimeout(ctx, options.RunDuration)
		defer cancel()
	}

	if options.Input == nil {
		options.Input = os.Stdin
	}
	if options.Output == nil {
		options.Output = os.Stdout
	}

	files := processfile.NewProcessFileManager(options.ProcessFiles, masterLogger)
	if cfg.App.PIDFile != "" {
		pidPath := files.ResolvePath(cfg.App.PIDFile)
		if err := files.AcquirePIDFile(pidPath, os.Getpid()); err != nil {
			return err
		}
		defer files.ReleasePIDFile(pidPath, os.Getpid())
	}

	sctx := stopper.WithContext(ctx)
	defer func() {
		sctx.Stop(backgroundStopGrace)
		if err := sctx.Wait(); err != nil {
			masterLogger.Warnf("Background task finished with error: %v", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.App.MetricsPort != 0 {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(registry)
		serveMetrics(sctx, cfg.App.MetricsPort, registry, masterLogger)
	}

	launcher := options.Launcher
	if launcher == nil {
		launcher = process.NewLauncher(process.LauncherOptions{GracePeriod: process.DefaultGracePeriod}, masterLogger)
	}
	prober := options.Prober
	if prober == nil {
		prober = probe.NewClient(probe.DefaultTimeout)
	}

	var onCheckIn func(*supervisor.StatusReport)
	if cfg.App.StatusFile != "" {
		statusPath := files.ResolvePath(cfg.App.StatusFile)
		masterLogger.Infof("Writing status snapshots to %s", statusPath)
		onCheckIn = func(report *supervisor.StatusReport) {
			if err := files.WriteJSONFile(statusPath, report); err != nil {
				masterLogger.Warnf("Failed to write status file: %v", err)
			}
		}
	}

	sup, err := supervisor.NewSupervisor(cfg.Servers, supervisor.Options{
		StartupDelay:           cfg.App.StartupDelayDuration(),
		ContinueOnHealthyProbe: cfg.App.ContinueOnSteamQuery,
		ProbeTimeout:           probe.DefaultTimeout,
		Launcher:               launcher,
		Prober:                 prober,
		Metrics:                m,
		Out:                    options.Output,
		OnCheckIn:              onCheckIn,
	}, masterLogger)
	if err != nil {
		return errors.NewInternalError("failed to create supervisor", err)
	}

	console := supervisor.NewConsole(supervisor.ConsoleOptions{
		Timeout:          cfg.App.CommandModeTimeoutDuration(),
		TerminateTimeout: supervisor.DefaultTerminateTimeout,
		Out:              options.Output,
	}, supervisor.NewLineReader(options.Input), masterLogger)

	interrupts := options.Interrupts
	if interrupts == nil {
		masterLogger.Infof("Enabling signal handling...")
		// Only the interrupt is captured, every other signal keeps its default behavior
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		defer signal.Stop(sig)
		interrupts = sig
	}

	scheduler := supervisor.NewScheduler(sup, console, cfg.App.UpdateIntervalDuration(), interrupts, masterLogger)

	master, err := NewMaster(MasterOptions{Port: cfg.App.ControlPort}, scheduler, coreLogger, masterLogger)
	if err != nil {
		return err
	}
	master.Start(ctx)
	defer master.Stop(context.Background())

	if cfg.App.WatchConfig && options.ConfigFile != "" {
		if err := watchConfig(sctx, options.ConfigFile, masterLogger); err != nil {
			masterLogger.Warnf("Configuration watching disabled: %v", err)
		}
	}

	masterLogger.Infof("Master is ready, supervising %d servers", len(cfg.Servers))

	err = scheduler.Run(ctx)
	if stderrors.Is(err, supervisor.ErrForcedExit) {
		masterLogger.Warnf("Forced exit, servers may still be running")
		return err
	}
	if err != nil {
		return err
	}

	masterLogger.Infof("Master runner stopped")
	return nil
}

func serveMetrics(sctx *stopper.Context, port int, gatherer prometheus.Gatherer, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sctx.Go(func(sctx *stopper.Context) error {
		logger.Infof("Serving metrics on %s/metrics", server.Addr)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
		return nil
	})

	sctx.Go(func(sctx *stopper.Context) error {
		<-sctx.Stopping()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownWait)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

func watchConfig(sctx *stopper.Context, configFile string, logger logging.Logger) error {
	watcher, err := config.NewWatcher(configFile, logger)
	if err != nil {
		return err
	}

	sctx.Go(func(sctx *stopper.Context) error {
		return watcher.Run(sctx, func() {
			logger.Warnf("Configuration file %s changed, restart the manager to apply it", configFile)
		})
	})
	return nil
}

// ValidateConfigFile loads and validates a configuration file without running anything
func ValidateConfigFile(configFile string) error {
	_, err := config.LoadConfigFromFile(configFile)
	return err
}

// GetConfigSummary returns a human-readable summary of the configuration
func GetConfigSummary(cfg *config.Config) ConfigSummary {
	if cfg == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		StartupDelay:   cfg.App.StartupDelay,
		UpdateInterval: cfg.App.UpdateInterval,
		ControlPort:    cfg.App.ControlPort,
		MetricsPort:    cfg.App.MetricsPort,
		LogLevel:       cfg.App.LogLevel,
		Servers:        make([]ServerSummary, 0, len(cfg.Servers)),
	}

	for _, server := range cfg.Servers {
		summary.Servers = append(summary.Servers, ServerSummary{
			Name:           server.ID(),
			DisplayName:    server.Name,
			ExecutablePath: server.ExecutablePath(),
			Port:           server.Port,
			SteamQueryPort: server.SteamQueryPort,
			RestartMinutes: server.RestartTime,
			Mods:           len(server.Mods),
		})
	}
	summary.TotalServers = len(summary.Servers)

	return summary
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	StartupDelay   int             `json:"startup_delay"`
	UpdateInterval int             `json:"update_interval"`
	ControlPort    int             `json:"control_port,omitempty"`
	MetricsPort    int             `json:"metrics_port,omitempty"`
	LogLevel       string          `json:"log_level"`
	TotalServers   int             `json:"total_servers"`
	Servers        []ServerSummary `json:"servers"`
	Error          string          `json:"error,omitempty"`
}

type ServerSummary struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name,omitempty"`
	ExecutablePath string `json:"executable_path"`
	Port           int    `json:"port"`
	SteamQueryPort int    `json:"steamquery_port,omitempty"`
	RestartMinutes int    `json:"restart_minutes"`
	Mods           int    `json:"mods"`
}
