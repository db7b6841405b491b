package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	DetectorONNX = "onnx"
	DetectorHTTP = "http"
)

type Config struct {
	Port                int     `mapstructure:"port"`
	UploadDirectory     string  `mapstructure:"upload_dir"`
	StaticDirectory     string  `mapstructure:"static_dir"`
	PlaceholderPath     string  `mapstructure:"placeholder_path"`
	HistoryBackend      string  `mapstructure:"history_backend"` // json albo sqlite
	HistoryFile         string  `mapstructure:"history_file"`
	DatabasePath        string  `mapstructure:"database_path"`
	ReportsDirectory    string  `mapstructure:"reports_dir"`
	FontPath            string  `mapstructure:"font_path"`
	Detector            string  `mapstructure:"detector"` // onnx albo http
	ModelPath           string  `mapstructure:"model_path"`
	ModelName           string  `mapstructure:"model_name"`
	Labels              string  `mapstructure:"labels"`
	InferenceURL        string  `mapstructure:"inference_url"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxUploadSize       int64   `mapstructure:"max_upload_size"` // w bajtach
	HistoryPageSize     int     `mapstructure:"history_page_size"`
	ReportHistoryLimit  int     `mapstructure:"report_history_limit"`
	LogDirectory        string  `mapstructure:"log_dir"`
}

var defaults = map[string]any{
	"port":                 5000,
	"upload_dir":           filepath.Join(".", "static", "uploads"),
	"static_dir":           filepath.Join(".", "static"),
	"placeholder_path":     filepath.Join(".", "static", "placeholder.jpg"),
	"history_backend":      BackendJSON,
	"history_file":         filepath.Join(".", "history.json"),
	"database_path":        filepath.Join(".", "data", "history.db"),
	"reports_dir":          filepath.Join(".", "reports"),
	"font_path":            filepath.Join(".", "DejaVuSans.ttf"),
	"detector":             DetectorONNX,
	"model_path":           filepath.Join(".", "models", "best_muzzle_model.onnx"),
	"model_name":           "YOLOv26m",
	"labels":               "with_muzzle,without_muzzle",
	"inference_url":        "http://localhost:8000/predict",
	"confidence_threshold": 0.5,
	"max_upload_size":      16 << 20,
	"history_page_size":    50,
	"report_history_limit": 50,
	"log_dir":              filepath.Join(".", "logs"),
}

// Load reads .env (if present), an optional config file and the environment.
// Environment variables use the upper-case key names, e.g. PORT or UPLOAD_DIR.
// An empty configFile skips the file; a missing one is not an error.
func Load(configFile string) (*Config, error) {
	// .env jest opcjonalny
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.HistoryBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid history backend %q (want %q or %q)", c.HistoryBackend, BackendJSON, BackendSQLite)
	}
	switch c.Detector {
	case DetectorONNX, DetectorHTTP:
	default:
		return fmt.Errorf("invalid detector %q (want %q or %q)", c.Detector, DetectorONNX, DetectorHTTP)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("invalid max upload size: %d", c.MaxUploadSize)
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 50
	}
	return nil
}
