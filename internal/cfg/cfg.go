package cfg

import (
	"fmt"
	"os"
	"time"

	"stroke-risk/internal/common"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPPort          int
	Locale            string
	CatalogPath       string
	ModelBackend      string
	ModelPath         string
	FallbackModelPath string
	PythonPath        string
	ModelServerURL    string
	ModelServerPort   int
	PredictTimeout    time.Duration
	RiskMediumAbove   float64
	RiskHighAbove     float64
	LogLevel          string
	LogFormat         string
}

type ConfigFile struct {
	Server struct {
		HTTPPort        int `yaml:"httpPort"`
		ModelServerPort int `yaml:"modelServerPort"`
	} `yaml:"server"`

	UI struct {
		Locale      string `yaml:"locale"`
		CatalogPath string `yaml:"catalogPath"`
	} `yaml:"ui"`

	ML struct {
		Backend           string `yaml:"backend"`
		ModelPath         string `yaml:"modelPath"`
		FallbackModelPath string `yaml:"fallbackModelPath"`
		PythonPath        string `yaml:"pythonPath"`
		ServerURL         string `yaml:"serverURL"`
		PredictTimeout    string `yaml:"predictTimeout"`
	} `yaml:"ml"`

	Risk struct {
		MediumAbove float64 `yaml:"mediumAbove"`
		HighAbove   float64 `yaml:"highAbove"`
	} `yaml:"risk"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	predictTimeout, err := time.ParseDuration(config.ML.PredictTimeout)
	if err != nil {
		predictTimeout = 10 * time.Second
	}

	// Environment variables win over the file
	settings := Settings{
		HTTPPort:          getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		Locale:            getEnvOrDefault(common.EnvLocale, orDefault(config.UI.Locale, common.DefaultLocale)),
		CatalogPath:       getEnvOrDefault(common.EnvCatalogPath, config.UI.CatalogPath),
		ModelBackend:      getEnvOrDefault(common.EnvModelBackend, orDefault(config.ML.Backend, common.DefaultModelBackend)),
		ModelPath:         getEnvOrDefault(common.EnvModelPath, orDefault(config.ML.ModelPath, common.DefaultModelPath)),
		FallbackModelPath: getEnvOrDefault(common.EnvFallbackModelPath, config.ML.FallbackModelPath),
		PythonPath:        getEnvOrDefault(common.EnvPythonPath, config.ML.PythonPath),
		ModelServerURL:    getEnvOrDefault(common.EnvModelServerURL, orDefault(config.ML.ServerURL, common.DefaultModelServerURL)),
		ModelServerPort:   getIntFromEnvOrConfig(common.EnvModelServerPort, config.Server.ModelServerPort, common.DefaultModelServerPort),
		PredictTimeout:    getDurationOrDefault(common.EnvPredictTimeout, predictTimeout),
		RiskMediumAbove:   getFloatFromEnvOrConfig(common.EnvRiskMediumAbove, config.Risk.MediumAbove, common.DefaultRiskMediumAbove),
		RiskHighAbove:     getFloatFromEnvOrConfig(common.EnvRiskHighAbove, config.Risk.HighAbove, common.DefaultRiskHighAbove),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, orDefault(config.Log.Format, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:          getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		Locale:            getEnvOrDefault(common.EnvLocale, common.DefaultLocale),
		CatalogPath:       os.Getenv(common.EnvCatalogPath), // optional
		ModelBackend:      getEnvOrDefault(common.EnvModelBackend, common.DefaultModelBackend),
		ModelPath:         getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		FallbackModelPath: os.Getenv(common.EnvFallbackModelPath), // optional
		PythonPath:        os.Getenv(common.EnvPythonPath),        // discovered when empty
		ModelServerURL:    getEnvOrDefault(common.EnvModelServerURL, common.DefaultModelServerURL),
		ModelServerPort:   getIntOrDefault(common.EnvModelServerPort, common.DefaultModelServerPort),
		PredictTimeout:    getDurationOrDefault(common.EnvPredictTimeout, 10*time.Second),
		RiskMediumAbove:   getFloatOrDefault(common.EnvRiskMediumAbove, common.DefaultRiskMediumAbove),
		RiskHighAbove:     getFloatOrDefault(common.EnvRiskHighAbove, common.DefaultRiskHighAbove),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.ModelServerPort < common.MinPort || settings.ModelServerPort > common.MaxPort {
		return fmt.Errorf("model server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ModelServerPort)
	}

	if settings.Locale == "" && settings.CatalogPath == "" {
		return fmt.Errorf("either a locale or a catalog path must be specified")
	}

	switch settings.ModelBackend {
	case common.BackendPython, common.BackendJSON:
		if settings.ModelPath == "" {
			return fmt.Errorf("model path cannot be empty for %s backend", settings.ModelBackend)
		}
	case common.BackendRemote:
		if settings.ModelServerURL == "" {
			return fmt.Errorf("model server URL cannot be empty for remote backend")
		}
	default:
		return fmt.Errorf("unknown model backend %q (want python, json or remote)", settings.ModelBackend)
	}

	if settings.PredictTimeout < 100*time.Millisecond || settings.PredictTimeout > time.Minute {
		return fmt.Errorf("predict timeout must be between 100ms and 1m, got %v", settings.PredictTimeout)
	}

	if !(settings.RiskMediumAbove > 0 && settings.RiskMediumAbove < 100) {
		return fmt.Errorf("medium risk threshold must be between 0 and 100 percent, got %f", settings.RiskMediumAbove)
	}
	if !(settings.RiskHighAbove > settings.RiskMediumAbove && settings.RiskHighAbove < 100) {
		return fmt.Errorf("high risk threshold must be above the medium threshold and below 100 percent, got %f", settings.RiskHighAbove)
	}

	switch settings.LogFormat {
	case common.LogFormatConsole, common.LogFormatJSON:
	default:
		return fmt.Errorf("log format must be console or json, got %q", settings.LogFormat)
	}

	return nil
}
