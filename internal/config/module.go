// Package config provides configuration infrastructure and Fx modules.
package config

import (
	"go.uber.org/fx"
)

// Environment overrides applied after the file is read.
const (
	// EnvBotToken keeps the Discord token out of the config file.
	EnvBotToken = "VOICECOMM_BOT_TOKEN"
	EnvLogLevel = "VOICECOMM_LOG_LEVEL"
)

// Module provides the validated *Config loaded from the supplied path.
var Module = fx.Module("config",
	fx.Provide(LoadConfig),
)

// applyEnv overrides file values with set, non-empty environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBotToken); ok && v != "" {
		c.Transport.BotToken = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}
