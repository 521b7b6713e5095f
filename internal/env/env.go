// Package env loads the runtime configuration DataBeam modules read from the
// process environment (spec.md §6).
package env

import (
	"fmt"
	"os"
)

// Config holds every environment-derived setting a module needs to boot.
type Config struct {
	ModuleName     string
	LogLevel       string
	DataDir        string
	ConfigDir      string
	DeployVersion  string
	DBID           string
	RouterHost     string
	FrontendPort   string
	BackendPort    string
	SubPort        string
	PubPort        string
	HealthPort     string
	RedisAddr      string
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads all environment variables defined in spec.md §6. It returns an
// error if DB_ID is unset or empty, matching "abort if empty".
func Load() (Config, error) {
	cfg := Config{
		ModuleName:    getenvDefault("MODULE_NAME", "Module"),
		LogLevel:      getenvDefault("LOGLEVEL", "DEBUG"),
		DataDir:       getenvDefault("DATA_DIR", "/opt/databeam/data"),
		ConfigDir:     getenvDefault("CONFIG_DIR", "/opt/databeam/config"),
		DeployVersion: getenvDefault("DEPLOY_VERSION", "latest"),
		DBID:          os.Getenv("DB_ID"),
		RouterHost:    os.Getenv("DB_ROUTER"),
		FrontendPort:  os.Getenv("DB_ROUTER_FRONTEND_PORT"),
		BackendPort:   os.Getenv("DB_ROUTER_BACKEND_PORT"),
		SubPort:       os.Getenv("DB_ROUTER_SUB_PORT"),
		PubPort:       os.Getenv("DB_ROUTER_PUB_PORT"),
		HealthPort:    getenvDefault("DB_HEALTH_PORT", "8080"),
		RedisAddr:     os.Getenv("DB_REDIS_ADDR"),
	}
	if cfg.DBID == "" {
		return cfg, fmt.Errorf("env: DB_ID is required and must not be empty")
	}
	return cfg, nil
}

// ControllerAddress returns the bus address of the controller for this
// deployment, "<DB_ID>/c".
func (c Config) ControllerAddress() string {
	return c.DBID + "/c"
}

// ModuleAddress returns the bus address of a named module, "<DB_ID>/m/<name>".
func (c Config) ModuleAddress(name string) string {
	return c.DBID + "/m/" + name
}
