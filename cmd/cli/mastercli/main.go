package main

import (
	"context"
	"fmt"
	"os"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	coreControl "github.com/core-tools/hsu-core/pkg/control"
	coreDomain "github.com/core-tools/hsu-core/pkg/domain"
	coreLogging "github.com/core-tools/hsu-core/pkg/logging"

	masterControl "github.com/core-tools/hsu-game-master/pkg/control"
	masterLogging "github.com/core-tools/hsu-game-master/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	AttachPort int    `long:"port" required:"true" description:"control port of the running manager"`
	Status     bool   `long:"status" description:"print the current status of every server"`
	Restart    string `long:"restart" value-name:"NAME" description:"restart the server with this server_name"`
	Timeout    int    `long:"timeout" default:"60" description:"request timeout in seconds"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-client , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if !opts.Status && opts.Restart == "" {
		fmt.Println("One of --status or --restart is required")
		os.Exit(1)
	}

	logger := sprintfLogging.NewStdSprintfLogger()

	coreLogger := coreLogging.NewLogger(
		logPrefix("hsu-core"), coreLogging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		})
	masterLogger := masterLogging.NewLogger(
		logPrefix("hsu-game-master"), masterLogging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		})

	coreConnectionOptions := coreControl.ConnectionOptions{
		AttachPort: opts.AttachPort,
	}
	coreConnection, err := coreControl.NewConnection(coreConnectionOptions, coreLogger)
	if err != nil {
		logger.Errorf("Failed to create core connection: %v", err)
		os.Exit(1)
	}

	coreClientGateway := coreControl.NewGRPCClientGateway(coreConnection.GRPC(), coreLogger)
	masterClientGateway := masterControl.NewGRPCClientGateway(coreConnection.GRPC(), masterLogger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.Timeout)*time.Second)
	defer cancel()

	retryPingOptions := coreDomain.RetryPingOptions{
		RetryAttempts: 5,
		RetryInterval: 1 * time.Second,
	}
	err = coreDomain.RetryPing(ctx, coreClientGateway, retryPingOptions, coreLogger)
	if err != nil {
		logger.Errorf("Failed to ping manager: %v", err)
		os.Exit(1)
	}

	if opts.Restart != "" {
		// A restart is executed between check-ins and may wait out a server stop
		if err := masterClientGateway.RestartServer(ctx, opts.Restart); err != nil {
			logger.Errorf("Failed to restart %s: %v", opts.Restart, err)
			os.Exit(1)
		}
		fmt.Printf("Restarted %s\n", opts.Restart)
	}

	if opts.Status {
		report, err := masterClientGateway.Status(ctx)
		if err != nil {
			logger.Errorf("Failed to get status: %v", err)
			os.Exit(1)
		}

		fmt.Printf("Status at %s, running: %t\n", report.Time.Format(time.RFC3339), report.Running)
		for _, server := range report.Servers {
			fmt.Println(server.Line())
		}
		if report.PendingStart != "" {
			fmt.Printf("Pending start: %s, backoff remaining: %ds\n", report.PendingStart, report.BackoffRemainingSeconds)
		}
	}
}
