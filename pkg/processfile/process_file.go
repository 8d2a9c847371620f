package processfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/processstate"

	"github.com/google/renameio/v2"
)

const DefaultAppName = "hsu-game-master"

// ProcessFileConfig controls where relative pid and status file names are placed
type ProcessFileConfig struct {
	// Base directory for relative names. If empty, uses OS-appropriate default
	BaseDirectory string

	ServiceContext ServiceContext

	AppName string

	UseSubdirectory bool
}

// ServiceContext defines the context in which the supervisor runs
type ServiceContext string

const (
	SystemService  ServiceContext = "system"
	UserService    ServiceContext = "user"
	SessionService ServiceContext = "session"
)

// ProcessFileManager writes the supervisor pid file and status snapshots
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}

	if config.ServiceContext == "" {
		config.ServiceContext = UserService
	}

	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

// ResolvePath returns name unchanged when absolute, otherwise places it in the base directory
func (m *ProcessFileManager) ResolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	baseDir := m.getBaseDirectory()
	if m.config.UseSubdirectory {
		baseDir = filepath.Join(baseDir, m.config.AppName)
	}
	return filepath.Join(baseDir, name)
}

// AcquirePIDFile writes pid to path. It fails with a conflict error when the file names
// another live process.
func (m *ProcessFileManager) AcquirePIDFile(path string, pid int) error {
	if existing, err := ReadPIDFile(path); err == nil && existing != pid {
		running, _ := processstate.IsProcessRunning(existing)
		if running {
			return errors.NewConflictError("another supervisor is running", nil).
				WithContext("pid_file", path).
				WithContext("pid", existing)
		}
		m.logger.Warnf("Replacing stale PID file, path: %s, stale pid: %d", path, existing)
	}

	if err := ValidatePIDFileDirectory(path); err != nil {
		m.logger.Errorf("PID file directory validation failed, path: %s, error: %v", path, err)
		return err
	}

	if err := renameio.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", path).WithContext("pid", pid)
	}

	m.logger.Infof("PID file written, pid: %d, path: %s", pid, path)
	return nil
}

// ReleasePIDFile removes path if it still holds pid
func (m *ProcessFileManager) ReleasePIDFile(path string, pid int) {
	existing, err := ReadPIDFile(path)
	if err != nil || existing != pid {
		return
	}
	if err := os.Remove(path); err != nil {
		m.logger.Warnf("Failed to remove PID file, path: %s, error: %v", path, err)
	}
}

func ReadPIDFile(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", path)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid PID in PID file", err).WithContext("pid_file", path).WithContext("content", pidStr)
	}
	return pid, nil
}

// WriteJSONFile atomically replaces path with the indented JSON encoding of v
func (m *ProcessFileManager) WriteJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewInternalError("failed to encode status", err)
	}

	if err := ValidatePIDFileDirectory(path); err != nil {
		return err
	}

	if err := renameio.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.NewIOError("failed to write status file", err).WithContext("status_file", path)
	}

	m.logger.Debugf("Status file written, path: %s", path)
	return nil
}

func (m *ProcessFileManager) getBaseDirectory() string {
	if m.config.BaseDirectory != "" {
		return m.config.BaseDirectory
	}

	switch m.config.ServiceContext {
	case SystemService:
		return m.getSystemServiceDirectory()
	case SessionService:
		return os.TempDir()
	default:
		return m.getUserServiceDirectory()
	}
}

func (m *ProcessFileManager) getSystemServiceDirectory() string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = "C:\\ProgramData"
		}
		return programData
	case "darwin":
		return "/var/run"
	default:
		if _, err := os.Stat("/run"); err == nil {
			return "/run"
		}
		return "/var/run"
	}
}

func (m *ProcessFileManager) getUserServiceDirectory() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return localAppData
		}
		return os.TempDir()
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return os.TempDir()
		}
		return filepath.Join(homeDir, "Library", "Application Support")
	default:
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			return runtimeDir
		}
		return os.TempDir()
	}
}

// ValidatePIDFileDirectory creates the parent directory of path when missing
func ValidatePIDFileDirectory(path string) error {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("failed to create directory", err).WithContext("directory", dir)
		}
		return nil
	}
	if !info.IsDir() {
		return errors.NewValidationError("parent path is not a directory", nil).WithContext("path", dir)
	}
	return nil
}
