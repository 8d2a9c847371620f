package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Config is the loaded manager configuration file
type Config struct {
	App     AppConfig
	Servers []ServerConfig
}

// AppConfig holds manager-level options. Durations are expressed in seconds in the file.
type AppConfig struct {
	StartupDelay         int    `yaml:"startup_delay"`
	UpdateInterval       int    `yaml:"update_interval"`
	ContinueOnSteamQuery bool   `yaml:"continue_on_steamquery"`
	CommandModeTimeout   int    `yaml:"command_mode_timeout"`
	LogLevel             string `yaml:"log_level"`
	ControlPort          int    `yaml:"control_port"`
	MetricsPort          int    `yaml:"metrics_port"`
	StatusFile           string `yaml:"status_file"`
	PIDFile              string `yaml:"pid_file"`
	WatchConfig          bool   `yaml:"watch_config"`
}

// ServerConfig describes one game server. It is immutable once loaded.
type ServerConfig struct {
	Name           string   `yaml:"name"`
	ServerName     string   `yaml:"server_name"`
	BasePath       string   `yaml:"base_path"`
	ConfigFile     string   `yaml:"config_file"`
	Executable     string   `yaml:"executable"`
	Port           int      `yaml:"port"`
	SteamQueryPort int      `yaml:"steamquery_port"`
	RestartTime    int      `yaml:"restart_time"`
	Profiles       string   `yaml:"profiles"`
	ExtraArgs      []string `yaml:"extra_args"`
	Mods           []string `yaml:"mods"`
	ServerMods     []string `yaml:"server_mods"`
	CPU            int      `yaml:"cpu"`
	Debug          bool     `yaml:"debug"`
}

const (
	DefaultStartupDelay       = 60
	DefaultUpdateInterval     = 30
	DefaultCommandModeTimeout = 10
	DefaultCPU                = 2
	DefaultLogLevel           = "info"
)

// DefaultAppConfig returns the documented app_config defaults
func DefaultAppConfig() AppConfig {
	return AppConfig{
		StartupDelay:       DefaultStartupDelay,
		UpdateInterval:     DefaultUpdateInterval,
		CommandModeTimeout: DefaultCommandModeTimeout,
		LogLevel:           DefaultLogLevel,
	}
}

func (a AppConfig) StartupDelayDuration() time.Duration {
	return time.Duration(a.StartupDelay) * time.Second
}

func (a AppConfig) UpdateIntervalDuration() time.Duration {
	return time.Duration(a.UpdateInterval) * time.Second
}

func (a AppConfig) CommandModeTimeoutDuration() time.Duration {
	return time.Duration(a.CommandModeTimeout) * time.Second
}

// ID is the unique key of the server inside the supervisor
func (s ServerConfig) ID() string {
	return s.ServerName
}

func (s ServerConfig) RestartThreshold() time.Duration {
	return time.Duration(s.RestartTime) * time.Minute
}

// ExecutablePath resolves a relative executable against base_path
func (s ServerConfig) ExecutablePath() string {
	if s.BasePath == "" || filepath.IsAbs(s.Executable) {
		return s.Executable
	}
	return filepath.Join(s.BasePath, s.Executable)
}

// QueryAddress is the local steam query endpoint, empty when the server has none
func (s ServerConfig) QueryAddress() string {
	if s.SteamQueryPort == 0 {
		return ""
	}
	return "127.0.0.1:" + strconv.Itoa(s.SteamQueryPort)
}

// LaunchArgs builds the game server command line, without the executable itself
func (s ServerConfig) LaunchArgs() []string {
	args := []string{
		"-config=" + s.ConfigFile,
		"-port=" + strconv.Itoa(s.Port),
		"-profiles=" + s.Profiles,
		"-cpuCount=" + strconv.Itoa(s.CPU),
	}
	if s.SteamQueryPort != 0 {
		args = append(args, "-steamQueryPort="+strconv.Itoa(s.SteamQueryPort))
	}
	if len(s.Mods) > 0 {
		args = append(args, modsArg("mod", s.Mods))
	}
	if len(s.ServerMods) > 0 {
		args = append(args, modsArg("servermod", s.ServerMods))
	}
	for _, extra := range s.ExtraArgs {
		args = append(args, "-"+strings.TrimPrefix(extra, "-"))
	}
	return args
}

func modsArg(section string, mods []string) string {
	var b strings.Builder
	b.WriteString("-" + section + "=")
	for _, mod := range mods {
		b.WriteString("@" + mod + ";")
	}
	return b.String()
}

type fileConfig struct {
	AppConfig AppConfig                `yaml:"app_config"`
	Shared    map[string]interface{}   `yaml:"shared"`
	Global    map[string]interface{}   `yaml:"global"`
	Servers   []map[string]interface{} `yaml:"servers"`
}

// LoadConfigFromFile reads, merges, defaults and validates a manager configuration file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("filename", filename)
		}
		return nil, err
	}
	return config, nil
}

// ParseConfig decodes configuration bytes. Keys of a servers entry override keys of shared.
func ParseConfig(data []byte) (*Config, error) {
	raw := fileConfig{AppConfig: DefaultAppConfig()}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}

	// Older files name the shared section "global"
	shared := raw.Shared
	if shared == nil {
		shared = raw.Global
	}

	config := &Config{
		App:     raw.AppConfig,
		Servers: make([]ServerConfig, 0, len(raw.Servers)),
	}

	for i, entry := range raw.Servers {
		server, err := decodeServer(mergeEntry(shared, entry))
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid server entry at index %d", i), err)
		}
		config.Servers = append(config.Servers, server)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func mergeEntry(shared, entry map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(shared)+len(entry))
	for k, v := range shared {
		merged[k] = v
	}
	for k, v := range entry {
		merged[k] = v
	}
	return merged
}

func decodeServer(fields map[string]interface{}) (ServerConfig, error) {
	server := ServerConfig{CPU: DefaultCPU}

	data, err := yaml.Marshal(fields)
	if err != nil {
		return server, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&server); err != nil {
		return server, err
	}
	return server, nil
}
