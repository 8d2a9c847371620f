package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/logging"
)

const (
	DefaultCommandTimeout   = 10 * time.Second
	DefaultTerminateTimeout = 300 * time.Second
)

// Command is a console menu entry. The set is closed.
type Command int

const (
	CommandRestartServer Command = iota + 1
	CommandTerminate
)

var commands = []Command{CommandRestartServer, CommandTerminate}

func (c Command) String() string {
	switch c {
	case CommandRestartServer:
		return "Restart specific server"
	case CommandTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// Outcome tells the scheduler how a console session ended
type Outcome int

const (
	// OutcomeResume returns to polling
	OutcomeResume Outcome = iota
	// OutcomeTerminated means every server was stopped and the supervisor shut down
	OutcomeTerminated
	// OutcomeForcedExit means a second interrupt arrived during terminate
	OutcomeForcedExit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResume:
		return "resume"
	case OutcomeTerminated:
		return "terminated"
	case OutcomeForcedExit:
		return "forced_exit"
	default:
		return "unknown"
	}
}

type ConsoleOptions struct {
	Timeout          time.Duration
	TerminateTimeout time.Duration
	Out              io.Writer
}

// Console is the interactive menu entered on operator interrupt
type Console struct {
	options ConsoleOptions
	input   *LineReader
	logger  logging.Logger
}

func NewConsole(options ConsoleOptions, input *LineReader, logger logging.Logger) *Console {
	if options.Timeout <= 0 {
		options.Timeout = DefaultCommandTimeout
	}
	if options.TerminateTimeout <= 0 {
		options.TerminateTimeout = DefaultTerminateTimeout
	}
	if options.Out == nil {
		options.Out = io.Discard
	}
	return &Console{
		options: options,
		input:   input,
		logger:  logger,
	}
}

type readResult int

const (
	readLine readResult = iota
	readTimeout
	readClosed
	readInterrupted
	readCancelled
)

// Run performs one session: menu, one selection, dispatch. The deadline aborts pending
// reads only; a dispatched restart always runs to completion.
func (c *Console) Run(ctx context.Context, sup *Supervisor, interrupts <-chan os.Signal) Outcome {
	c.input.Drain()

	deadline := NewDeadline(c.options.Timeout)
	defer deadline.Stop()

	c.logger.Infof("Entered command mode, timeout: %v", c.options.Timeout)
	fmt.Fprintf(c.options.Out, "Command mode (%v timeout):\n", c.options.Timeout)
	for _, command := range commands {
		fmt.Fprintf(c.options.Out, "  %d. %s\n", command, command)
	}
	fmt.Fprint(c.options.Out, "Select command: ")

	line, result := c.read(ctx, deadline, interrupts)
	if result != readLine {
		c.leave(result)
		return OutcomeResume
	}

	selection, err := strconv.Atoi(line)
	if err != nil || selection < 1 || selection > len(commands) {
		fmt.Fprintf(c.options.Out, "Invalid selection: %q\n", line)
		c.logger.Warnf("Invalid command selection: %q", line)
		return OutcomeResume
	}

	switch Command(selection) {
	case CommandRestartServer:
		return c.restartServer(ctx, sup, deadline, interrupts)
	case CommandTerminate:
		return c.terminate(ctx, sup, deadline, interrupts)
	}
	return OutcomeResume
}

func (c *Console) restartServer(ctx context.Context, sup *Supervisor, deadline *Deadline, interrupts <-chan os.Signal) Outcome {
	deadline.Extend(c.options.Timeout)

	units := sup.Units()
	fmt.Fprintln(c.options.Out, "Servers:")
	for i, unit := range units {
		fmt.Fprintf(c.options.Out, "  %d. %s\n", i+1, unit.Name())
	}
	fmt.Fprint(c.options.Out, "Select server: ")

	line, result := c.read(ctx, deadline, interrupts)
	if result != readLine {
		c.leave(result)
		return OutcomeResume
	}

	index, err := strconv.Atoi(line)
	if err != nil || index < 1 || index > len(units) {
		fmt.Fprintf(c.options.Out, "Invalid server selection: %q\n", line)
		c.logger.Warnf("Invalid server selection: %q", line)
		return OutcomeResume
	}

	name := units[index-1].Name()
	if err := sup.RestartServer(ctx, name); err != nil {
		fmt.Fprintf(c.options.Out, "Restart of %s failed: %v\n", name, err)
		c.logger.Errorf("Restart of server %s failed: %v", name, err)
		return OutcomeResume
	}
	if unit, ok := sup.Unit(name); ok && !unit.IsAlive() {
		fmt.Fprintf(c.options.Out, "Stopped %s, start deferred to the next check-in\n", name)
		return OutcomeResume
	}
	fmt.Fprintf(c.options.Out, "Restarted %s\n", name)
	return OutcomeResume
}

// terminate stops every server. The extended deadline escalates the remaining stops to a
// kill; a second interrupt abandons them.
func (c *Console) terminate(ctx context.Context, sup *Supervisor, deadline *Deadline, interrupts <-chan os.Signal) Outcome {
	deadline.Extend(c.options.TerminateTimeout)

	fmt.Fprintln(c.options.Out, "Terminating, stopping all servers...")
	c.logger.Infof("Terminate requested, stopping all servers")

	stopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sup.StopAll(stopCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-deadline.C():
		c.logger.Warnf("Terminate timeout reached, killing remaining servers")
		cancel()
		err = <-done
	case <-interrupts:
		c.logger.Warnf("Second interrupt during terminate, exiting immediately")
		return OutcomeForcedExit
	}

	if err != nil {
		c.logger.Errorf("Errors while stopping servers: %v", err)
	}
	sup.Shutdown()
	fmt.Fprintln(c.options.Out, "All servers stopped")
	return OutcomeTerminated
}

func (c *Console) read(ctx context.Context, deadline *Deadline, interrupts <-chan os.Signal) (string, readResult) {
	select {
	case line, ok := <-c.input.Lines():
		if !ok {
			return "", readClosed
		}
		return line, readLine
	case <-deadline.C():
		return "", readTimeout
	case <-interrupts:
		return "", readInterrupted
	case <-ctx.Done():
		return "", readCancelled
	}
}

func (c *Console) leave(result readResult) {
	fmt.Fprintln(c.options.Out)
	switch result {
	case readTimeout:
		fmt.Fprintln(c.options.Out, "No input, leaving command mode")
		c.logger.Infof("Command mode timed out")
	case readClosed:
		c.logger.Warnf("Console input closed, leaving command mode")
	case readInterrupted:
		c.logger.Infof("Interrupted, leaving command mode")
	case readCancelled:
		c.logger.Debugf("Command mode cancelled")
	}
}
