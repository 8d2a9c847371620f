package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
)

// DefaultGracePeriod is how long a stop waits after the termination signal before killing
const DefaultGracePeriod = 30 * time.Second

// killWait bounds the wait for the exit after a forced kill
const killWait = 5 * time.Second

// ExecutionConfig is one game server command line. An empty WorkingDirectory
// means the directory holding the executable.
type ExecutionConfig struct {
	ExecutablePath   string
	Args             []string
	WorkingDirectory string
}

// Handle is a started OS process
type Handle interface {
	PID() int
	// IsAlive reports false once the process has exited
	IsAlive() bool
	// Stop requests graceful termination and force-kills after the grace period
	// or when ctx is done. Stopping an exited process is a no-op.
	Stop(ctx context.Context) error
}

// Launcher spawns processes
type Launcher interface {
	Launch(ctx context.Context, id string, execution ExecutionConfig) (Handle, error)
}

type LauncherOptions struct {
	GracePeriod time.Duration
	// Output receives the child's stdout and stderr. Nil discards it.
	Output io.Writer
}

type execLauncher struct {
	options LauncherOptions
	logger  logging.Logger
}

func NewLauncher(options LauncherOptions, logger logging.Logger) Launcher {
	if options.GracePeriod <= 0 {
		options.GracePeriod = DefaultGracePeriod
	}
	return &execLauncher{
		options: options,
		logger:  logger,
	}
}

func (l *execLauncher) Launch(ctx context.Context, id string, execution ExecutionConfig) (Handle, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("launch cancelled", err).WithContext("id", id)
	}

	workDir, err := validateExecution(execution)
	if err != nil {
		l.logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
		return nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	if err := ensureExecutable(execution.ExecutablePath); err != nil {
		return nil, errors.NewPermissionError("failed to ensure process is executable", err).WithContext("id", id).WithContext("executable_path", execution.ExecutablePath)
	}

	l.logger.Debugf("Executing process: id: %s, executable path: '%s', args: %v, working directory: '%s'",
		id, execution.ExecutablePath, execution.Args, workDir)

	// Not CommandContext: the game server must outlive the request that started it
	cmd := exec.Command(execution.ExecutablePath, execution.Args...)
	cmd.Dir = workDir
	cmd.Stdout = l.options.Output
	cmd.Stderr = l.options.Output

	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProcessError("failed to start the process", err).WithContext("id", id).WithContext("executable_path", execution.ExecutablePath)
	}

	handle := &execHandle{
		id:          id,
		cmd:         cmd,
		done:        make(chan struct{}),
		gracePeriod: l.options.GracePeriod,
		logger:      l.logger,
	}
	go handle.wait()

	l.logger.Infof("Successfully executed process, id: %s, PID: %d", id, cmd.Process.Pid)
	return handle, nil
}

// validateExecution checks the executable is a file and returns the resolved
// working directory, which must be an existing directory since the server
// resolves its config and profiles relative to it
func validateExecution(execution ExecutionConfig) (string, error) {
	if execution.ExecutablePath == "" {
		return "", errors.NewValidationError("executable path is required", nil)
	}

	info, err := os.Stat(execution.ExecutablePath)
	if err != nil {
		return "", errors.NewValidationError("executable not found", err).WithContext("executable_path", execution.ExecutablePath)
	}
	if info.IsDir() {
		return "", errors.NewValidationError("executable path is a directory", nil).WithContext("executable_path", execution.ExecutablePath)
	}

	workDir := execution.WorkingDirectory
	if workDir == "" {
		absPath, err := filepath.Abs(execution.ExecutablePath)
		if err != nil {
			return "", errors.NewIOError("failed to get absolute path", err).WithContext("executable_path", execution.ExecutablePath)
		}
		workDir = filepath.Dir(absPath)
	}
	if !filepath.IsAbs(workDir) {
		return "", errors.NewValidationError("working directory must be absolute", nil).WithContext("working_directory", workDir)
	}

	dirInfo, err := os.Stat(workDir)
	if err != nil {
		return "", errors.NewValidationError("working directory not accessible", err).WithContext("working_directory", workDir)
	}
	if !dirInfo.IsDir() {
		return "", errors.NewValidationError("working directory is not a directory", nil).WithContext("working_directory", workDir)
	}

	return workDir, nil
}

// ensureExecutable checks if a file is executable and makes it executable if it's not
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIOError("file does not exist", err).WithContext("path", path)
	}

	if runtime.GOOS == "windows" {
		ext := filepath.Ext(path)
		if ext == ".exe" || ext == ".bat" || ext == ".cmd" {
			return nil
		}
	}

	mode := info.Mode()
	if mode&0111 != 0 {
		return nil
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, mode|0111); err != nil {
			return errors.NewPermissionError("failed to make file executable", err).WithContext("path", path)
		}
	}

	return nil
}
