package config

import (
	"strings"
)

type EnvVars struct {
	Port        string `env:"PORT" envDefault:"5000"`
	AppName     string `env:"APP_NAME" envDefault:"OAuth Proxy"`
	Environment string `env:"ENV" envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Environment
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetFrontendURL is where the browser lands after login, and where login failures are sent
// (with a /login suffix).
func (e EnvVars) GetFrontendURL() string {
	return strings.TrimSuffix(e.FrontendURL, "/")
}
