package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	EventsURL   string        `validate:"omitempty,url"`
	CostsURL    string        `validate:"omitempty,url"`
	SinkURL     string        `validate:"omitempty,url"`
	SinkSecret  string        `validate:"required_with=SinkURL"`
	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	LogLevel    slog.Level
	LogFile     string
	Pipeline    Pipeline
}

// Pipeline holds the knobs that may also come from the PIPELINE_CONFIG
// YAML file. Environment variables win over the file.
type Pipeline struct {
	MaxUploadBytes   int64   `yaml:"max_upload_bytes" validate:"gt=0"`
	MaxDiscardRatio  float64 `yaml:"max_discard_ratio" validate:"gte=0,lte=1"`
	TopN             int     `yaml:"top_n" validate:"gt=0"`
	UploadRatePerSec float64 `yaml:"upload_rate_per_sec" validate:"gt=0"`
	UploadBurst      int     `yaml:"upload_burst" validate:"gt=0"`
}

func defaultPipeline() Pipeline {
	return Pipeline{
		MaxUploadBytes:   10 << 20,
		MaxDiscardRatio:  0.25,
		TopN:             10,
		UploadRatePerSec: 5,
		UploadBurst:      10,
	}
}

func FromEnv() (Config, error) {
	to := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			to = d
		}
	}
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	p := defaultPipeline()
	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		var err error
		if p, err = loadPipeline(path, p); err != nil {
			return Config{}, err
		}
	}
	if err := overlayEnv(&p); err != nil {
		return Config{}, err
	}

	cfg := Config{
		EventsURL:   os.Getenv("EVENTS_CSV_URL"),
		CostsURL:    os.Getenv("COSTS_CSV_URL"),
		SinkURL:     os.Getenv("SINK_URL"),
		SinkSecret:  os.Getenv("SINK_SECRET"),
		Port:        envOr("PORT", "8080"),
		HTTPTimeout: to,
		LogLevel:    lvl,
		LogFile:     os.Getenv("LOG_FILE"),
		Pipeline:    p,
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadPipeline(path string, p Pipeline) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return p, nil
}

func overlayEnv(p *Pipeline) error {
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		p.MaxUploadBytes = n
	}
	if v := os.Getenv("MAX_DISCARD_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MAX_DISCARD_RATIO: %w", err)
		}
		p.MaxDiscardRatio = f
	}
	if v := os.Getenv("TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TOP_N: %w", err)
		}
		p.TopN = n
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
