package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the agrodetect service
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	AllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Database configuration
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPingMaxWait time.Duration
	SQLitePath    string

	// Inference service configuration
	MLServiceURL     string
	InferenceTimeout time.Duration

	// LLM configuration
	LLMProvider string
	OllamaURL   string
	OllamaModel string
	LLMTimeout  time.Duration

	// Timeout applied to health probes of both AI services
	HealthTimeout time.Duration

	// Uploads
	UploadRoot     string
	MaxUploadBytes int64

	// Rate limiting of the /api/ai group
	AIRateLimitPerMinute int

	RabbitMQ RabbitMQConfig
	MQTT     MQTTConfig
}

// RabbitMQConfig holds the broker settings for the analysed scan fan-out
type RabbitMQConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Exchange   string
	RoutingKey string
}

// Enabled reports whether a broker has been configured
func (c RabbitMQConfig) Enabled() bool {
	return c.Host != ""
}

// GetAMQPURL returns the AMQP connection URL
func (c RabbitMQConfig) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// MQTTConfig holds the ESP heartbeat bridge settings
type MQTTConfig struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	StatusTopic  string
	ControlTopic string
}

// Enabled reports whether an MQTT broker has been configured
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	ProviderOllama = "ollama"
	ProviderStub   = "stub"
)

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port:           getEnv("PORT", "5000"),
		GinMode:        getEnv("GIN_MODE", "release"),
		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", "*"),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		// Database defaults
		DBDriver:      getEnv("DB_DRIVER", DriverMySQL),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "server"),
		DBPassword:    getEnv("DB_PASSWORD", "secret_app"),
		DBName:        getEnv("DB_NAME", "plantcare_ai"),
		DBPingMaxWait: getDurationEnv("DB_PING_MAX_WAIT", 60*time.Second),
		SQLitePath:    getEnv("SQLITE_PATH", "data/agrodetect.db"),

		// Inference defaults
		MLServiceURL:     getEnv("ML_SERVICE_URL", "http://localhost:5001"),
		InferenceTimeout: getDurationEnv("INFERENCE_TIMEOUT", 30*time.Second),

		// LLM defaults
		LLMProvider: getEnv("LLM_PROVIDER", ProviderOllama),
		OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: getEnv("OLLAMA_MODEL", "llama3"),
		LLMTimeout:  getDurationEnv("LLM_TIMEOUT", 30*time.Second),

		HealthTimeout: getDurationEnv("HEALTH_TIMEOUT", 5*time.Second),

		// Upload defaults (10 MiB)
		UploadRoot:     getEnv("UPLOAD_ROOT", "uploads"),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 10*1024*1024)),

		AIRateLimitPerMinute: getIntEnv("AI_RATE_LIMIT_PER_MINUTE", 60),

		RabbitMQ: RabbitMQConfig{
			Host:       getEnv("AMQP_HOST", ""),
			Port:       getEnv("AMQP_PORT", "5672"),
			User:       getEnv("AMQP_USER", "guest"),
			Password:   getEnv("AMQP_PASSWORD", "guest"),
			Exchange:   getEnv("AMQP_EXCHANGE", "agrodetect"),
			RoutingKey: getEnv("AMQP_ROUTING_KEY", "scan.analysed"),
		},

		MQTT: MQTTConfig{
			Broker:       getEnv("MQTT_BROKER", ""),
			ClientID:     getEnv("MQTT_CLIENT_ID", "agrodetect-backend"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			StatusTopic:  getEnv("MQTT_STATUS_TOPIC", "agrodetect/esp/+/status"),
			ControlTopic: getEnv("MQTT_CONTROL_TOPIC", "agrodetect/esp/{device_id}/control"),
		},
	}

	return config
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.LLMProvider {
	case ProviderOllama, ProviderStub:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.InferenceTimeout <= 0 || c.LLMTimeout <= 0 || c.HealthTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.AIRateLimitPerMinute <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// MySQLDSN returns the go-sql-driver DSN for the configured database
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getStringSliceEnv gets a comma-separated string environment variable and returns it as a string slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
