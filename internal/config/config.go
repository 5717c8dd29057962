package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	MQTT       MQTTConfig
	Kafka      KafkaConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Pipeline   PipelineConfig
	Thresholds models.Thresholds
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type MQTTConfig struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	ReadingTopic   string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

type KafkaConfig struct {
	Brokers      []string
	EventsTopic  string
	RequiredAcks int
	WriteTimeout time.Duration
}

// Enabled reports whether the event mirror should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.EventsTopic != ""
}

type SecurityConfig struct {
	JWTSecret          string
	DeviceAPIKeys      []string
	APIKeyHeader       string
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

const (
	SourceMock = "mock"
	SourceMQTT = "mqtt"
	SourceNone = "none"
)

type PipelineConfig struct {
	Interval         time.Duration
	Source           string
	SnapshotReadings int
	BroadcastBuffer  int
	SubscriberBuffer int
}

var postgresEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server:     loadServerConfig(),
		Database:   loadDatabaseConfig(),
		MQTT:       loadMQTTConfig(),
		Kafka:      loadKafkaConfig(),
		Security:   loadSecurityConfig(),
		Logging:    loadLoggingConfig(),
		Pipeline:   loadPipelineConfig(),
		Thresholds: loadThresholds(),
	}

	if cfg.Database.Driver == DriverPostgres {
		if err := validateRequired(postgresEnvVars); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func validateRequired(keys []string) error {
	var missing []string

	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 3001),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "30s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", DriverPostgres),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "soil_admin"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "soil_monitoring"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "soil-monitor-backend"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		ReadingTopic:   getEnv("MQTT_READING_TOPIC", "soil/sensors/+/readings"),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      getEnvAsList("KAFKA_BROKERS", ""),
		EventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "soil.monitor.events"),
		RequiredAcks: getEnvAsInt("KAFKA_REQUIRED_ACKS", 1),
		WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", "10s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DeviceAPIKeys:      getEnvAsList("DEVICE_API_KEYS", ""),
		APIKeyHeader:       getEnv("API_KEY_HEADER", "X-API-Key"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", "GET,POST,PATCH,OPTIONS"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Interval:         getEnvAsDuration("INGEST_INTERVAL", "5s"),
		Source:           getEnv("READING_SOURCE", SourceMock),
		SnapshotReadings: getEnvAsInt("SNAPSHOT_READINGS", 10),
		BroadcastBuffer:  getEnvAsInt("BROADCAST_BUFFER", 256),
		SubscriberBuffer: getEnvAsInt("SUBSCRIBER_BUFFER", 64),
	}
}

func loadThresholds() models.Thresholds {
	d := models.DefaultThresholds
	return models.Thresholds{
		MoistureCritical: getEnvAsFloat("THRESHOLD_MOISTURE_CRITICAL", d.MoistureCritical),
		MoistureWarning:  getEnvAsFloat("THRESHOLD_MOISTURE_WARNING", d.MoistureWarning),
		PHMin:            getEnvAsFloat("THRESHOLD_PH_MIN", d.PHMin),
		PHMax:            getEnvAsFloat("THRESHOLD_PH_MAX", d.PHMax),
		TemperatureMax:   getEnvAsFloat("THRESHOLD_TEMPERATURE_MAX", d.TemperatureMax),
		BatteryMin:       getEnvAsFloat("THRESHOLD_BATTERY_MIN", d.BatteryMin),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			errors = append(errors, "DB_PASSWORD cannot be empty")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
	case DriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be %q or %q", DriverPostgres, DriverMemory))
	}

	switch c.Pipeline.Source {
	case SourceMock, SourceNone:
	case SourceMQTT:
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errors = append(errors, "MQTT_PORT must be between 1 and 65535")
		}
	default:
		errors = append(errors, fmt.Sprintf("READING_SOURCE must be one of %s, %s, %s", SourceMock, SourceMQTT, SourceNone))
	}

	if c.Pipeline.Interval <= 0 {
		errors = append(errors, "INGEST_INTERVAL must be positive")
	}

	if c.Pipeline.SnapshotReadings < 0 {
		errors = append(errors, "SNAPSHOT_READINGS cannot be negative")
	}

	if c.Thresholds.MoistureCritical > c.Thresholds.MoistureWarning {
		errors = append(errors, "THRESHOLD_MOISTURE_CRITICAL must not exceed THRESHOLD_MOISTURE_WARNING")
	}

	if c.Thresholds.PHMin > c.Thresholds.PHMax {
		errors = append(errors, "THRESHOLD_PH_MIN must not exceed THRESHOLD_PH_MAX")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║            Soil Monitor - Configuration                  ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	if c.Database.Driver == DriverPostgres {
		fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	} else {
		fmt.Printf("Database:        in-memory\n")
	}
	fmt.Printf("Reading source:  %s (every %s)\n", c.Pipeline.Source, c.Pipeline.Interval)
	if c.Pipeline.Source == SourceMQTT {
		fmt.Printf("MQTT Broker:     %s:%d (%s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.ReadingTopic)
	}
	if c.Kafka.Enabled() {
		fmt.Printf("Kafka mirror:    %s -> %s\n", strings.Join(c.Kafka.Brokers, ","), c.Kafka.EventsTopic)
	}
	fmt.Println("──────────────────────────────────────────────────────────")
}
