package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vawter.tech/stopper"
)

type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

const chernoConfig = `
global:
  base_path: C:\Program Files (x86)\Steam\steamapps\common\DayZServer
  restart_time: 240
  cpu: 2
servers:
  - server_name: cherno_test
    name: Cherno DayZ Server
    port: 2331
    config_file: serverDZ_test.cfg
    executable: DayZServer_x64_test.exe
    profiles: C:\Program Files (x86)\Steam\steamapps\common\DayZServer\config_chernotest
    mods:
      - CF
      - Code Lock
      - Easy Signs [by Cl0ud]
    extra_args:
      - dologs
      - adminlog
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:       "legacy global section",
			configYAML: chernoConfig,
			validate: func(t *testing.T, config *Config) {
				require.Len(t, config.Servers, 1)
				server := config.Servers[0]
				assert.Equal(t, "cherno_test", server.ID())
				assert.Equal(t, "Cherno DayZ Server", server.Name)
				assert.Equal(t, 240, server.RestartTime)
				assert.Equal(t, 4*time.Hour, server.RestartThreshold())
				assert.Equal(t, []string{"CF", "Code Lock", "Easy Signs [by Cl0ud]"}, server.Mods)
				assert.Equal(t, DefaultAppConfig(), config.App)
			},
		},
		{
			name: "entry keys override shared keys",
			configYAML: `
app_config:
  startup_delay: 120
  update_interval: 15
  continue_on_steamquery: true
  command_mode_timeout: 20
shared:
  executable: /opt/dayz/DayZServer
  restart_time: 240
  cpu: 4
servers:
  - server_name: alpha
    port: 2302
    steamquery_port: 27016
  - server_name: bravo
    port: 2402
    restart_time: 60
    cpu: 8
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, 120*time.Second, config.App.StartupDelayDuration())
				assert.Equal(t, 15*time.Second, config.App.UpdateIntervalDuration())
				assert.Equal(t, 20*time.Second, config.App.CommandModeTimeoutDuration())
				assert.True(t, config.App.ContinueOnSteamQuery)

				require.Len(t, config.Servers, 2)
				assert.Equal(t, 240, config.Servers[0].RestartTime)
				assert.Equal(t, 4, config.Servers[0].CPU)
				assert.Equal(t, "127.0.0.1:27016", config.Servers[0].QueryAddress())
				assert.Equal(t, 60, config.Servers[1].RestartTime)
				assert.Equal(t, 8, config.Servers[1].CPU)
				assert.Equal(t, "", config.Servers[1].QueryAddress())
			},
		},
		{
			name: "explicit zero startup delay is kept",
			configYAML: `
app_config:
  startup_delay: 0
servers:
  - server_name: alpha
    executable: /opt/dayz/DayZServer
    port: 2302
    restart_time: 240
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, 0, config.App.StartupDelay)
				assert.Equal(t, DefaultUpdateInterval, config.App.UpdateInterval)
				assert.Equal(t, DefaultCPU, config.Servers[0].CPU)
			},
		},
		{
			name: "invalid YAML",
			configYAML: `
servers:
  - server_name: [unclosed
`,
			expectError: true,
		},
		{
			name: "unknown server key",
			configYAML: `
servers:
  - server_name: alpha
    executable: /opt/dayz/DayZServer
    port: 2302
    restart_time: 240
    restart_minutes: 10
`,
			expectError: true,
		},
		{
			name: "duplicate server names",
			configYAML: `
shared:
  executable: /opt/dayz/DayZServer
  restart_time: 240
servers:
  - server_name: alpha
    port: 2302
  - server_name: alpha
    port: 2402
`,
			expectError: true,
		},
		{
			name:        "no servers",
			configYAML:  "app_config:\n  startup_delay: 10\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configYAML)

			config, err := LoadConfigFromFile(path)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err), "got %v", err)
				return
			}

			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, config)
			}
		})
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestValidateServerConfig(t *testing.T) {
	valid := ServerConfig{ServerName: "alpha", Executable: "/bin/true", Port: 2302, RestartTime: 240, CPU: 2}
	require.NoError(t, ValidateServerConfig(valid))

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"missing name", func(s *ServerConfig) { s.ServerName = "" }},
		{"missing executable", func(s *ServerConfig) { s.Executable = "" }},
		{"port too high", func(s *ServerConfig) { s.Port = 70000 }},
		{"port zero", func(s *ServerConfig) { s.Port = 0 }},
		{"bad query port", func(s *ServerConfig) { s.SteamQueryPort = -1 }},
		{"zero restart time", func(s *ServerConfig) { s.RestartTime = 0 }},
		{"zero cpu", func(s *ServerConfig) { s.CPU = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := valid
			tt.mutate(&server)
			assert.True(t, errors.IsValidationError(ValidateServerConfig(server)))
		})
	}
}

func TestValidateAppConfig(t *testing.T) {
	require.NoError(t, ValidateAppConfig(DefaultAppConfig()))

	app := DefaultAppConfig()
	app.UpdateInterval = 0
	assert.Error(t, ValidateAppConfig(app))

	app = DefaultAppConfig()
	app.LogLevel = "trace"
	assert.Error(t, ValidateAppConfig(app))

	app = DefaultAppConfig()
	app.ControlPort = 65536
	assert.Error(t, ValidateAppConfig(app))
}

func TestServerConfig_LaunchArgs(t *testing.T) {
	server := ServerConfig{
		ServerName:     "cherno",
		BasePath:       "/srv/dayz",
		Executable:     "DayZServer",
		ConfigFile:     "serverDZ.cfg",
		Port:           2302,
		SteamQueryPort: 27016,
		Profiles:       "/srv/dayz/profiles",
		CPU:            4,
		Mods:           []string{"CF", "Code Lock"},
		ServerMods:     []string{"AdminTools"},
		ExtraArgs:      []string{"dologs", "-freezecheck"},
	}

	assert.Equal(t, filepath.Join("/srv/dayz", "DayZServer"), server.ExecutablePath())
	assert.Equal(t, []string{
		"-config=serverDZ.cfg",
		"-port=2302",
		"-profiles=/srv/dayz/profiles",
		"-cpuCount=4",
		"-steamQueryPort=27016",
		"-mod=@CF;@Code Lock;",
		"-servermod=@AdminTools;",
		"-dologs",
		"-freezecheck",
	}, server.LaunchArgs())
}

func TestServerConfig_LaunchArgsMinimal(t *testing.T) {
	server := ServerConfig{Executable: "/opt/DayZServer", BasePath: "/srv", ConfigFile: "a.cfg", Port: 1, Profiles: "p", CPU: 2}

	assert.Equal(t, "/opt/DayZServer", server.ExecutablePath())
	assert.Equal(t, []string{"-config=a.cfg", "-port=1", "-profiles=p", "-cpuCount=2"}, server.LaunchArgs())
}

func TestWatcher_ReportsChange(t *testing.T) {
	path := writeConfig(t, chernoConfig)

	watcher, err := NewWatcher(path, &TestLogger{})
	require.NoError(t, err)

	changed := make(chan struct{}, 4)
	sctx := stopper.WithContext(context.Background())
	sctx.Go(func(sctx *stopper.Context) error {
		return watcher.Run(sctx, func() { changed <- struct{}{} })
	})

	require.NoError(t, os.WriteFile(path, []byte(chernoConfig+"\n# edited\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}

	sctx.Stop(time.Second)
	assert.NoError(t, sctx.Wait())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, chernoConfig)

	watcher, err := NewWatcher(path, &TestLogger{})
	require.NoError(t, err)

	changed := make(chan struct{}, 4)
	sctx := stopper.WithContext(context.Background())
	sctx.Go(func(sctx *stopper.Context) error {
		return watcher.Run(sctx, func() { changed <- struct{}{} })
	})

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("hello"), 0o644))

	select {
	case <-changed:
		t.Fatal("unexpected change notification")
	case <-time.After(300 * time.Millisecond):
	}

	sctx.Stop(time.Second)
	assert.NoError(t, sctx.Wait())
}
