package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	AvailBox AvailBoxConfig `yaml:"availbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                         string `yaml:"host"`
	Port                         int    `yaml:"port"`
	AvailabilityChangedTopicName string `yaml:"availability_changed_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	if k.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

func (k KafkaConfig) Topic() string {
	if k.AvailabilityChangedTopicName == "" {
		return "availability.changed"
	}
	return k.AvailabilityChangedTopicName
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AvailBoxConfig struct {
	HTTPAddr                      string `yaml:"http_addr"`
	KafkaConsumerGroup            string `yaml:"kafka_consumer_group"`
	CurrentAvailabilityTTLSeconds int    `yaml:"current_availability_ttl_seconds"`

	WorkerHTTPAddr           string `yaml:"worker_http_addr"`
	WorkerRunIntervalSeconds int    `yaml:"worker_run_interval_seconds"`

	BatchSize         int    `yaml:"batch_size"`
	Days              int    `yaml:"days"`
	StartDate         string `yaml:"start_date"` // "now" | "weekend" | date
	RequestIntervalMs int    `yaml:"request_interval_ms"`

	// Staleness thresholds; zero means default (30/180/1440/10080 minutes, 14 days).
	LookaheadDays           int `yaml:"lookahead_days"`
	HighPriorityMinutes     int `yaml:"high_priority_minutes"`
	MediumPriorityMinutes   int `yaml:"medium_priority_minutes"`
	LowPriorityMinutes      int `yaml:"low_priority_minutes"`
	InactivePriorityMinutes int `yaml:"inactive_priority_minutes"`

	ExtendHistoryDuration bool `yaml:"extend_history_duration"`

	BookingMode               string `yaml:"booking_mode"` // "http" | "fake"
	BookingBaseURL            string `yaml:"booking_base_url"`
	BookingAPIKey             string `yaml:"booking_api_key"`
	BookingRateLimitPerMinute int    `yaml:"booking_rate_limit_per_minute"`

	LogLevel string `yaml:"log_level"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
