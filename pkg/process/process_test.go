//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

func waitDead(t *testing.T, h Handle) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.IsAlive() }, 5*time.Second, 10*time.Millisecond)
}

func TestLauncher_LaunchAndExit(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{}, &TestLogger{})

	handle, err := launcher.Launch(context.Background(), "short", ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
	assert.Greater(t, handle.PID(), 0)

	waitDead(t, handle)
	assert.NoError(t, handle.Stop(context.Background()))
}

func TestLauncher_GracefulStop(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{GracePeriod: 5 * time.Second}, &TestLogger{})

	handle, err := launcher.Launch(context.Background(), "sleeper", ExecutionConfig{
		ExecutablePath: "/bin/sleep",
		Args:           []string{"30"},
	})
	require.NoError(t, err)
	assert.True(t, handle.IsAlive())

	start := time.Now()
	require.NoError(t, handle.Stop(context.Background()))
	assert.False(t, handle.IsAlive())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLauncher_KillAfterGracePeriod(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{GracePeriod: 200 * time.Millisecond}, &TestLogger{})

	handle, err := launcher.Launch(context.Background(), "stubborn", ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "trap '' TERM; sleep 30"},
	})
	require.NoError(t, err)
	// let the shell install its trap
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, handle.Stop(context.Background()))
	assert.False(t, handle.IsAlive())
}

func TestLauncher_StopCancelledContextKills(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{GracePeriod: time.Minute}, &TestLogger{})

	handle, err := launcher.Launch(context.Background(), "stubborn", ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "trap '' TERM; sleep 30"},
	})
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, handle.Stop(ctx))
	assert.False(t, handle.IsAlive())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLauncher_SurvivesLaunchContextCancel(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{GracePeriod: time.Second}, &TestLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := launcher.Launch(ctx, "sleeper", ExecutionConfig{
		ExecutablePath: "/bin/sleep",
		Args:           []string{"30"},
	})
	require.NoError(t, err)
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.True(t, handle.IsAlive())
	require.NoError(t, handle.Stop(context.Background()))
}

func TestLauncher_Errors(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{}, &TestLogger{})

	_, err := launcher.Launch(context.Background(), "missing", ExecutionConfig{
		ExecutablePath: filepath.Join(t.TempDir(), "absent"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = launcher.Launch(ctx, "cancelled", ExecutionConfig{ExecutablePath: "/bin/sleep"})
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))
}

func TestEnsureExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))

	require.NoError(t, ensureExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)
}

func TestValidateExecution(t *testing.T) {
	baseDir := t.TempDir()
	notDir := filepath.Join(baseDir, "serverDZ.cfg")
	require.NoError(t, os.WriteFile(notDir, nil, 0o644))

	tests := []struct {
		name        string
		execution   ExecutionConfig
		wantWorkDir string
		wantErr     bool
	}{
		{"base path", ExecutionConfig{ExecutablePath: "/bin/sleep", WorkingDirectory: baseDir}, baseDir, false},
		{"executable directory", ExecutionConfig{ExecutablePath: "/bin/sleep"}, "/bin", false},
		{"empty path", ExecutionConfig{}, "", true},
		{"missing executable", ExecutionConfig{ExecutablePath: filepath.Join(baseDir, "none")}, "", true},
		{"executable is a directory", ExecutionConfig{ExecutablePath: baseDir}, "", true},
		{"relative base path", ExecutionConfig{ExecutablePath: "/bin/sleep", WorkingDirectory: "rel"}, "", true},
		{"missing base path", ExecutionConfig{ExecutablePath: "/bin/sleep", WorkingDirectory: filepath.Join(baseDir, "gone")}, "", true},
		{"base path is a file", ExecutionConfig{ExecutablePath: "/bin/sleep", WorkingDirectory: notDir}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workDir, err := validateExecution(tt.execution)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWorkDir, workDir)
		})
	}
}

func TestLauncher_MissingBasePath(t *testing.T) {
	launcher := NewLauncher(LauncherOptions{}, &TestLogger{})

	_, err := launcher.Launch(context.Background(), "cherno", ExecutionConfig{
		ExecutablePath:   "/bin/sleep",
		Args:             []string{"30"},
		WorkingDirectory: filepath.Join(t.TempDir(), "DayZServer"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
