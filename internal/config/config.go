package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Transcription backend
	Provider       string        `env:"STT_PROVIDER" envDefault:"whisper"`
	WhisperURL     string        `env:"WHISPER_URL" envDefault:"http://localhost:9000/v1/audio/transcriptions"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whispy/whisper_italian"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"120s"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	Language       string        `env:"LANGUAGE" envDefault:"it"`
	Temperature    float64       `env:"TEMPERATURE" envDefault:"0"`

	// Capture / chunking
	InputDevice string `env:"INPUT_DEVICE"`
	BufferSize  int    `env:"BUFFER_SIZE"` // seconds per stream chunk; required in stream mode

	// Outputs
	OSCAddress string `env:"OSC_ADDRESS"`
	OSCPort    int    `env:"OSC_PORT" envDefault:"8080"`
	OSCRoute   string `env:"OSC_ROUTE" envDefault:"/speech"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"transcribe/results"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"transcribe"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Transcript store (serve mode, optional)
	DatabaseURL string `env:"DATABASE_URL"`

	// Audio archive (serve mode)
	AudioDir string `env:"AUDIO_DIR" envDefault:"./audio"`
	WatchDir string `env:"WATCH_DIR"`

	S3 S3Config

	// Worker pool
	Workers   int `env:"WORKERS" envDefault:"2"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`

	// HTTP server (serve mode)
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config enables archiving audio to an S3-compatible object store.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
	Retention     time.Duration `env:"S3_RETENTION"`
}

// Enabled reports whether S3 archiving is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	WhisperURL  string
	Language    string
	OSCAddress  string
	AudioDir    string
	WatchDir    string
	InputDevice string
	BufferSize  int
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.OSCAddress != "" {
		cfg.OSCAddress = overrides.OSCAddress
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}
	if overrides.InputDevice != "" {
		cfg.InputDevice = overrides.InputDevice
	}
	if overrides.BufferSize > 0 {
		cfg.BufferSize = overrides.BufferSize
	}

	return cfg, nil
}
