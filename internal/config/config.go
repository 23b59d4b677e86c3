package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	Transcoder  TranscoderConfig  `yaml:"transcoder"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
}

// ServerConfig holds status API HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
// Job history is optional; when disabled the service runs without a database.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Outbound   OutboundConfig   `yaml:"outbound"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// OutboundConfig names where chat replies and uploaded file notices are published
type OutboundConfig struct {
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// ObjectStoreConfig holds MinIO configuration for file transfer
type ObjectStoreConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	AccessKey       string        `yaml:"access_key"`
	SecretKey       string        `yaml:"secret_key"`
	Region          string        `yaml:"region"`
	UseSSL          bool          `yaml:"use_ssl"`
	InboundBucket   string        `yaml:"inbound_bucket"`
	OutboundBucket  string        `yaml:"outbound_bucket"`
	PresignExpiry   time.Duration `yaml:"presign_expiry"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
}

// TranscoderConfig holds scratch layout, ffmpeg settings and stage timeouts
type TranscoderConfig struct {
	InboundDir       string        `yaml:"inbound_dir"`
	OutboundDir      string        `yaml:"outbound_dir"`
	SourceExt        string        `yaml:"source_ext"`
	TargetExt        string        `yaml:"target_ext"`
	UploadDir        string        `yaml:"upload_dir"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path"`
	Threads          int           `yaml:"threads"`
	ExtraArgs        []string      `yaml:"extra_args"`
	ResolveTimeout   time.Duration `yaml:"resolve_timeout"`
	DownloadTimeout  time.Duration `yaml:"download_timeout"`
	TranscodeTimeout time.Duration `yaml:"transcode_timeout"`
	UploadTimeout    time.Duration `yaml:"upload_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	t := &c.Transcoder
	if t.SourceExt == "" {
		t.SourceExt = ".webm"
	}
	if t.TargetExt == "" {
		t.TargetExt = ".mp4"
	}
	if t.UploadDir == "" {
		t.UploadDir = "/"
	}
	if t.FFmpegPath == "" {
		t.FFmpegPath = "ffmpeg"
	}
	if t.FFprobePath == "" {
		t.FFprobePath = "ffprobe"
	}
	if t.Threads == 0 {
		t.Threads = 4
	}
	// every stage is bounded even when the file leaves the timeouts out
	if t.ResolveTimeout == 0 {
		t.ResolveTimeout = 30 * time.Second
	}
	if t.DownloadTimeout == 0 {
		t.DownloadTimeout = 10 * time.Minute
	}
	if t.TranscodeTimeout == 0 {
		t.TranscodeTimeout = time.Hour
	}
	if t.UploadTimeout == 0 {
		t.UploadTimeout = 10 * time.Minute
	}
	if c.ObjectStore.PresignExpiry == 0 {
		c.ObjectStore.PresignExpiry = 15 * time.Minute
	}
	if c.ObjectStore.DownloadTimeout == 0 {
		c.ObjectStore.DownloadTimeout = t.DownloadTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}

		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}

		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.RabbitMQ.Outbound.Exchange == "" {
		return fmt.Errorf("rabbitmq outbound exchange is required")
	}

	if c.ObjectStore.Endpoint == "" {
		return fmt.Errorf("objectstore endpoint is required")
	}

	if c.ObjectStore.InboundBucket == "" || c.ObjectStore.OutboundBucket == "" {
		return fmt.Errorf("objectstore inbound and outbound buckets are required")
	}

	return c.ValidateTranscoderConfig()
}

// ValidateTranscoderConfig checks the scratch layout and ffmpeg settings
func (c *Config) ValidateTranscoderConfig() error {
	t := c.Transcoder

	if t.InboundDir == "" || t.OutboundDir == "" {
		return fmt.Errorf("transcoder inbound_dir and outbound_dir are required")
	}

	if t.InboundDir == t.OutboundDir {
		return fmt.Errorf("transcoder inbound_dir and outbound_dir must differ")
	}

	if !strings.HasPrefix(t.SourceExt, ".") || !strings.HasPrefix(t.TargetExt, ".") {
		return fmt.Errorf("transcoder source_ext and target_ext must start with a dot")
	}

	if t.SourceExt == t.TargetExt {
		return fmt.Errorf("transcoder source_ext and target_ext must differ")
	}

	if t.Threads < 0 {
		return fmt.Errorf("transcoder threads must not be negative")
	}

	if t.ResolveTimeout < 0 || t.DownloadTimeout < 0 || t.TranscodeTimeout < 0 || t.UploadTimeout < 0 {
		return fmt.Errorf("transcoder stage timeouts must not be negative")
	}

	return nil
}
