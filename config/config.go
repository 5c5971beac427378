package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "bllvm-fuzz.yaml"

type AppConfig struct {
	ProjectRoot  string        // working directory for toolchain invocations
	CargoBin     string        // toolchain binary
	BuildTimeout time.Duration // zero means unbounded builds
	LogLevel     string
	ServiceName  string
}

// fileConfig mirrors the optional YAML config file. Durations are strings so
// the file can say "10m" like the environment does.
type fileConfig struct {
	ProjectRoot  string `yaml:"project_root"`
	CargoBin     string `yaml:"cargo_bin"`
	BuildTimeout string `yaml:"build_timeout"`
	LogLevel     string `yaml:"log_level"`
	ServiceName  string `yaml:"service_name"`
}

// LoadConfig resolves the app configuration: process env wins over the YAML
// file, which wins over built-in defaults. A .env file is folded into the
// process env first.
func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	fileCfg := loadConfigFile(logger)

	config := &AppConfig{
		ProjectRoot:  firstOf(os.Getenv("PROJECT_ROOT"), fileCfg.ProjectRoot, "."),
		CargoBin:     firstOf(os.Getenv("CARGO_BIN"), fileCfg.CargoBin, "cargo"),
		BuildTimeout: parseDuration(firstOf(os.Getenv("BUILD_TIMEOUT"), fileCfg.BuildTimeout), 0),
		LogLevel:     firstOf(os.Getenv("LOG_LEVEL"), fileCfg.LogLevel, "info"),
		ServiceName:  firstOf(os.Getenv("SERVICE_NAME"), fileCfg.ServiceName, "bllvm-fuzz"),
	}

	return config
}

// loadConfigFile reads the YAML config file if one exists. The path can be
// overridden with BLLVMFUZZ_CONFIG; a missing file is not an error.
func loadConfigFile(logger *zap.Logger) fileConfig {
	path := os.Getenv("BLLVMFUZZ_CONFIG")
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("Ignoring malformed config file", zap.String("path", path), zap.Error(err))
		return fileConfig{}
	}
	return cfg
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
