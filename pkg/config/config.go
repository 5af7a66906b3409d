package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

//EnvPrefix is prepended to environment overrides, e.g. MATCHAI_HTTP_PORT for http.port
const EnvPrefix = "MATCHAI"

//Config is the typed view of config.yaml
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Results   ResultsConfig   `mapstructure:"results"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
}

type HTTPConfig struct {
	Port        string `mapstructure:"port"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

//DirectoryConfig lists the data directories created at startup. Annotated is optional, empty disables snapshots.
type DirectoryConfig struct {
	Root      string `mapstructure:"root"`
	Uploads   string `mapstructure:"uploads"`
	Results   string `mapstructure:"results"`
	Annotated string `mapstructure:"annotated"`
}

type AnalysisConfig struct {
	SamplingInterval int  `mapstructure:"sampling_interval"`
	MaxSeconds       int  `mapstructure:"max_seconds"`
	RateRelative     bool `mapstructure:"rate_relative"`
}

type DetectorConfig struct {
	Kind       string  `mapstructure:"kind"`
	ModelName  string  `mapstructure:"model_name"`
	ModelPath  string  `mapstructure:"model_path"`
	Confidence float32 `mapstructure:"confidence"`
	NMS        float32 `mapstructure:"nms"`
	InputSize  int     `mapstructure:"input_size"`
	Backend    string  `mapstructure:"backend"`
	//Command runs the external worker for the "process" kind
	Command []string `mapstructure:"command"`
}

type ResultsConfig struct {
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	MaxRecords int    `mapstructure:"max_records"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type FrontendConfig struct {
	StaticFilesPath string `mapstructure:"static-files-path"`
}

//Detector kinds
const (
	DetectorONNX    = "onnx"
	DetectorHOG     = "hog"
	DetectorProcess = "process"
)

//SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8000")
	v.SetDefault("http.max_upload_mb", 25)

	v.SetDefault("directory.root", "./data")
	v.SetDefault("directory.uploads", "./data/uploads")
	v.SetDefault("directory.results", "./data/results")
	v.SetDefault("directory.annotated", "")

	v.SetDefault("analysis.sampling_interval", 30)
	v.SetDefault("analysis.max_seconds", 10)
	v.SetDefault("analysis.rate_relative", false)

	v.SetDefault("detector.kind", DetectorONNX)
	v.SetDefault("detector.model_name", "yolov8n")
	v.SetDefault("detector.model_path", "./models/yolov8n.onnx")
	v.SetDefault("detector.confidence", 0.25)
	v.SetDefault("detector.nms", 0.7)
	v.SetDefault("detector.input_size", 640)
	v.SetDefault("detector.backend", "default")
	v.SetDefault("detector.command", []string{"python3", "scripts/yolo_worker.py", "--model", "yolov8n.pt"})

	v.SetDefault("results.format", "json")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.max_records", 0)
	v.SetDefault("store.sqlite_path", "./data/analyses.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("frontend.static-files-path", "")
}

//Load reads the yaml config file at path, or "config.yaml" in the working directory when path is empty.
//A missing file is not an error when path is empty, defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file, got '%v'", err)
		}
	}

	return FromViper(v)
}

//FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("could not decode config, got '%v'", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

//Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return errors.New("missing critical configuration: http.port")
	}
	if c.HTTP.MaxUploadMB <= 0 {
		return fmt.Errorf("http.max_upload_mb must be positive, got %d", c.HTTP.MaxUploadMB)
	}
	if c.Directory.Uploads == "" || c.Directory.Results == "" {
		return errors.New("missing critical configuration: directory.uploads and directory.results are required")
	}
	if c.Analysis.SamplingInterval < 1 {
		return fmt.Errorf("analysis.sampling_interval must be at least 1, got %d", c.Analysis.SamplingInterval)
	}
	if c.Analysis.MaxSeconds < 0 {
		return fmt.Errorf("analysis.max_seconds must not be negative, got %d", c.Analysis.MaxSeconds)
	}

	switch c.Detector.Kind {
	case DetectorONNX:
		if c.Detector.ModelPath == "" {
			return errors.New("detector.model_path is required for the onnx detector")
		}
		if c.Detector.InputSize <= 0 {
			return fmt.Errorf("detector.input_size must be positive, got %d", c.Detector.InputSize)
		}
	case DetectorHOG:
	case DetectorProcess:
		if len(c.Detector.Command) == 0 {
			return errors.New("detector.command is required for the process detector")
		}
	default:
		return fmt.Errorf("unsupported detector.kind '%s'", c.Detector.Kind)
	}

	if c.Results.Format != "json" && c.Results.Format != "yaml" {
		return fmt.Errorf("unsupported results.format '%s'", c.Results.Format)
	}

	switch c.Store.Backend {
	case "memory":
		if c.Store.MaxRecords < 0 {
			return fmt.Errorf("store.max_records must not be negative, got %d", c.Store.MaxRecords)
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unsupported store.backend '%s'", c.Store.Backend)
	}

	return nil
}

//Directories returns every configured data directory, root first
func (c *Config) Directories() []string {
	dirs := make([]string, 0, 4)
	for _, d := range []string{c.Directory.Root, c.Directory.Uploads, c.Directory.Results, c.Directory.Annotated} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
