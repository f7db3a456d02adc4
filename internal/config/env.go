package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskgantt/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket   string `envconfig:"S3_BUCKET"`
	S3Prefix   string `envconfig:"S3_PREFIX" default:"taskgantt/"`
	S3Region   string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	S3Endpoint string `envconfig:"S3_ENDPOINT"`
}

type ViewEnv struct {
	File  string `envconfig:"VIEW_FILE" default:"gantt.yaml"`
	Watch bool   `envconfig:"VIEW_WATCH" default:"true"`
	// FlushWindow delays record writes so that a burst of chart edits
	// reaches the store as one batch.
	FlushWindow time.Duration `envconfig:"FLUSH_WINDOW" default:"0s"`
}

type Env struct {
	BaseEnv
	StorageEnv
	ViewEnv
}

const namespace = "GANTT"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.StorageEnv.Type == "s3" && env.S3Bucket == "" {
		return nil, fmt.Errorf("failed to load env: %s_S3_BUCKET is required for s3 storage", namespace)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}
