package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "NEWSROOM_CONFIG"
	mongoURIEnv      = "MONGO_URI"
	openAIKeyEnv     = "OPENAI_API_KEY"
	openAIBaseEnv    = "OPENAI_BASE_URL"
	storageKeyEnv    = "STORAGE_ACCESS_KEY"
	storageSecretEnv = "STORAGE_SECRET_KEY"
	fixturesKeyEnv   = "FIXTURES_API_KEY"
	telegramToken    = "TELEGRAM_BOT_TOKEN"
	telegramChatID   = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Mongo         MongoConfig        `yaml:"mongo"`
	Generation    GenerationConfig   `yaml:"generation"`
	Storage       StorageConfig      `yaml:"storage"`
	Images        ImageConfig        `yaml:"images"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Fixtures      FixturesConfig     `yaml:"fixtures"`
	Reconciler    ReconcilerConfig   `yaml:"reconciler"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig is the inbound trigger listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MongoConfig describes the document store holding both collections.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// GenerationConfig wires the text generation service.
type GenerationConfig struct {
	APIKey           string  `yaml:"apiKey"`
	BaseURL          string  `yaml:"baseUrl"`
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	TitleTimeoutSec  int     `yaml:"titleTimeoutSec"`
	BodyTimeoutSec   int     `yaml:"bodyTimeoutSec"`
	MaxAttempts      int     `yaml:"maxAttempts"`
	RetryDelayMillis int     `yaml:"retryDelayMillis"`
}

// StorageConfig describes the S3-compatible object store for image assets.
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	UseSSL        bool   `yaml:"useSSL"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

// ImageConfig bounds the image processor output.
type ImageConfig struct {
	MaxWidth    int `yaml:"maxWidth"`
	MaxHeight   int `yaml:"maxHeight"`
	JPEGQuality int `yaml:"jpegQuality"`
	TimeoutSec  int `yaml:"timeoutSec"`
}

// PipelineConfig tunes context assembly and categorization.
type PipelineConfig struct {
	ContextCharBudget int    `yaml:"contextCharBudget"`
	MinContextChars   int    `yaml:"minContextChars"`
	DefaultCategory   string `yaml:"defaultCategory"`
}

// FixturesConfig points at the sports-data provider.
type FixturesConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// ReconcilerConfig controls the stuck-processing sweep.
type ReconcilerConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalMin   int  `yaml:"intervalMin"`
	StaleAfterMin int  `yaml:"staleAfterMin"`
	BatchSize     int  `yaml:"batchSize"`
}

// NotificationConfig encapsulates outbound alert channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send alerts.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load builds the effective configuration: defaults, then the YAML file
// named by NEWSROOM_CONFIG (or the supplied path), then env overrides for
// secrets.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyFloors()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(mongoURIEnv); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Generation.APIKey = v
	}
	if v := os.Getenv(openAIBaseEnv); v != "" {
		c.Generation.BaseURL = v
	}
	if v := os.Getenv(storageKeyEnv); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv(storageSecretEnv); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv(fixturesKeyEnv); v != "" {
		c.Fixtures.APIKey = v
	}
	if v := os.Getenv(telegramToken); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatID); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// applyFloors keeps file-provided values inside workable bounds.
func (c *Config) applyFloors() {
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Generation.TitleTimeoutSec <= 0 {
		c.Generation.TitleTimeoutSec = 20
	}
	if c.Generation.BodyTimeoutSec <= 0 {
		c.Generation.BodyTimeoutSec = 120
	}
	if c.Pipeline.ContextCharBudget <= 0 {
		c.Pipeline.ContextCharBudget = 8000
	}
	if c.Pipeline.MinContextChars <= 0 {
		c.Pipeline.MinContextChars = 250
	}
	if c.Reconciler.BatchSize <= 0 {
		c.Reconciler.BatchSize = 50
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "newsroom",
		},
		Generation: GenerationConfig{
			Model:            "gpt-4o-mini",
			Temperature:      0.4,
			TitleTimeoutSec:  20,
			BodyTimeoutSec:   120,
			MaxAttempts:      3,
			RetryDelayMillis: 1500,
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "newsroom-assets",
		},
		Images: ImageConfig{
			MaxWidth:    1200,
			MaxHeight:   675,
			JPEGQuality: 80,
			TimeoutSec:  15,
		},
		Pipeline: PipelineConfig{
			ContextCharBudget: 8000,
			MinContextChars:   250,
			DefaultCategory:   "news",
		},
		Fixtures: FixturesConfig{
			BaseURL: "https://api.example.org/v1",
		},
		Reconciler: ReconcilerConfig{
			Enabled:       true,
			IntervalMin:   10,
			StaleAfterMin: 30,
			BatchSize:     50,
		},
	}
}
