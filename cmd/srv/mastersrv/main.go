package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/config"
	"github.com/core-tools/hsu-game-master/pkg/master"
	masterLogging "github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

// exitForced matches the conventional status of a process ended by SIGINT
const exitForced = 130

type flagOptions struct {
	Config       string `long:"config" short:"c" default:"config.yaml" description:"path to the configuration file"`
	Verbose      bool   `long:"verbose" short:"v" description:"enable debug logging"`
	ValidateOnly bool   `long:"validate-only" description:"validate the configuration, print a summary and exit"`
	LogFormat    string `long:"log-format" default:"console" choice:"console" choice:"json" description:"log encoding"`
	RunDuration  int    `long:"run-duration" description:"duration in seconds to run the manager (debug feature)"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		var flagsErr *flags.Error
		if stderrors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return 0
		}
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		return 1
	}

	cfg, err := config.LoadConfigFromFile(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if opts.ValidateOnly {
		summary, _ := json.MarshalIndent(master.GetConfigSummary(cfg), "", "  ")
		fmt.Printf("Configuration is valid: %s\n%s\n", opts.Config, summary)
		return 0
	}

	level := cfg.App.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logFuncs, syncLogs, err := masterLogging.NewZapLogFuncs(masterLogging.ZapConfig{
		Level:  level,
		Format: opts.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer syncLogs()

	coreLogger := coreLogging.NewLogger(
		logPrefix("hsu-core"), coreLogging.LogFuncs{
			Debugf: logFuncs.Debugf,
			Infof:  logFuncs.Infof,
			Warnf:  logFuncs.Warnf,
			Errorf: logFuncs.Errorf,
		})
	masterLogger := masterLogging.NewLogger(logPrefix("hsu-game-master"), logFuncs)

	masterLogger.Infof("Using CONFIGURATION FILE: %s", opts.Config)

	err = master.Run(cfg, master.RunOptions{
		ConfigFile:  opts.Config,
		RunDuration: time.Duration(opts.RunDuration) * time.Second,
	}, coreLogger, masterLogger)

	switch {
	case stderrors.Is(err, supervisor.ErrForcedExit):
		return exitForced
	case err != nil:
		masterLogger.Errorf("Master failed: %v", err)
		return 1
	}
	return 0
}
