package config

import (
	"fmt"

	"github.com/core-tools/hsu-game-master/pkg/errors"
)

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := ValidateAppConfig(config.App); err != nil {
		return errors.NewValidationError("invalid app_config", err)
	}

	if err := validateServersConfig(config.Servers); err != nil {
		return errors.NewValidationError("invalid servers configuration", err)
	}

	return nil
}

func ValidateAppConfig(app AppConfig) error {
	if app.StartupDelay < 0 {
		return errors.NewValidationError(fmt.Sprintf("startup_delay cannot be negative: %d", app.StartupDelay), nil)
	}
	if app.UpdateInterval <= 0 {
		return errors.NewValidationError(fmt.Sprintf("update_interval must be positive: %d", app.UpdateInterval), nil)
	}
	if app.CommandModeTimeout <= 0 {
		return errors.NewValidationError(fmt.Sprintf("command_mode_timeout must be positive: %d", app.CommandModeTimeout), nil)
	}
	if err := validateOptionalPort("control_port", app.ControlPort); err != nil {
		return err
	}
	if err := validateOptionalPort("metrics_port", app.MetricsPort); err != nil {
		return err
	}

	switch app.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError(
			fmt.Sprintf("invalid log level: %s", app.LogLevel),
			nil,
		).WithContext("valid_levels", "debug, info, warn, error")
	}

	return nil
}

func validateServersConfig(servers []ServerConfig) error {
	if len(servers) == 0 {
		return errors.NewValidationError("at least one server must be configured", nil)
	}

	seen := make(map[string]int)
	for i, server := range servers {
		if err := ValidateServerConfig(server); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid server at index %d", i),
				err,
			).WithContext("server", server.ServerName)
		}

		if prevIndex, exists := seen[server.ServerName]; exists {
			return errors.NewConflictError(
				fmt.Sprintf("duplicate server_name '%s' found at indices %d and %d", server.ServerName, prevIndex, i),
				nil,
			)
		}
		seen[server.ServerName] = i
	}

	return nil
}

// ValidateServerConfig validates one merged server entry
func ValidateServerConfig(server ServerConfig) error {
	if server.ServerName == "" {
		return errors.NewValidationError("server_name is required", nil)
	}
	if server.Executable == "" {
		return errors.NewValidationError("executable is required", nil)
	}
	if server.Port <= 0 || server.Port > 65535 {
		return errors.NewValidationError(
			fmt.Sprintf("invalid port number: %d", server.Port),
			nil,
		).WithContext("valid_range", "1-65535")
	}
	if err := validateOptionalPort("steamquery_port", server.SteamQueryPort); err != nil {
		return err
	}
	if server.RestartTime <= 0 {
		return errors.NewValidationError(fmt.Sprintf("restart_time must be a positive number of minutes: %d", server.RestartTime), nil)
	}
	if server.CPU <= 0 {
		return errors.NewValidationError(fmt.Sprintf("cpu must be positive: %d", server.CPU), nil)
	}
	return nil
}

func validateOptionalPort(field string, port int) error {
	if port == 0 {
		return nil
	}
	if port < 0 || port > 65535 {
		return errors.NewValidationError(
			fmt.Sprintf("invalid %s: %d", field, port),
			nil,
		).WithContext("valid_range", "1-65535")
	}
	return nil
}
