package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Issuance IssuanceConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Topics   TopicConfig
	MockMode bool
	Enabled  bool
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type TopicConfig struct {
	TicketScanned string
	JobCompleted  string
}

// IssuanceConfig carries the batch pipeline policy knobs.
type IssuanceConfig struct {
	ChunkSize      int           // tickets per chunk
	Workers        int           // bounded worker pool per job
	MaxQuantity    int           // hard ceiling per job
	SyncThreshold  int           // jobs at or below this run as one synchronous chunk
	QRSize         int           // QR raster size in pixels
	RenderDPI      int           // pixel to physical unit conversion
	StorageRetries int           // bounded retries on ticket persistence
	RetryBackoff   time.Duration // base backoff between storage retries
	ScanLockTTL    time.Duration // redis pre-lock on the scan path
}

func Load() *Config {
	kafkaEnabled := getEnvBool("KAFKA_ENABLED", true)
	mockMode := getEnvBool("KAFKA_MOCK_MODE", false)

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "issuance_user"),
			Password:     getEnv("DB_PASSWORD", "issuance_pass"),
			Database:     getEnv("DB_NAME", "ticket_issuance"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID:  getEnv("KAFKA_GROUP_ID", "ticket-issuance-group"),
			Enabled:  kafkaEnabled,
			MockMode: mockMode,
			Topics: TopicConfig{
				TicketScanned: getEnv("KAFKA_TOPIC_SCANNED", "ticketly.tickets.scanned"),
				JobCompleted:  getEnv("KAFKA_TOPIC_JOBS", "ticketly.jobs.completed"),
			},
		},
		Issuance: IssuanceConfig{
			ChunkSize:      getEnvInt("ISSUANCE_CHUNK_SIZE", 25),
			Workers:        getEnvInt("ISSUANCE_WORKERS", 4),
			MaxQuantity:    getEnvInt("ISSUANCE_MAX_QUANTITY", 500),
			SyncThreshold:  getEnvInt("ISSUANCE_SYNC_THRESHOLD", 50),
			QRSize:         getEnvInt("ISSUANCE_QR_SIZE", 256),
			RenderDPI:      getEnvInt("ISSUANCE_RENDER_DPI", 96),
			StorageRetries: getEnvInt("ISSUANCE_STORAGE_RETRIES", 3),
			RetryBackoff:   time.Duration(getEnvInt("ISSUANCE_RETRY_BACKOFF_MS", 100)) * time.Millisecond,
			ScanLockTTL:    time.Duration(getEnvInt("SCAN_LOCK_TTL_SECONDS", 5)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
