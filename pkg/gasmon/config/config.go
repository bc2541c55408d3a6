// Package config loads and validates the application's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Source names for the event receiver.
const (
	SourceSQS   = "sqs"
	SourceKafka = "kafka"
)

// Config is the application configuration.
type Config struct {
	RunTimeSeconds int             `yaml:"run_time_seconds"`
	LogLevel       string          `yaml:"log_level"`
	Locations      LocationsConfig `yaml:"locations"`
	Receiver       ReceiverConfig  `yaml:"receiver"`
	Deduplicator   DedupeConfig    `yaml:"deduplicator"`
	Averager       AveragerConfig  `yaml:"averager"`
	Output         OutputConfig    `yaml:"output"`
}

// LocationsConfig locates the valid-locations document in S3.
type LocationsConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Key    string `yaml:"s3_key"`
}

// ReceiverConfig selects and configures the event source.
type ReceiverConfig struct {
	Source      string      `yaml:"source"`
	SNSTopicARN string      `yaml:"sns_topic_arn"`
	Kafka       KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds Kafka consumer settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// DedupeConfig holds deduplication cache settings.
type DedupeConfig struct {
	CacheTimeToLiveSeconds int `yaml:"cache_time_to_live_seconds"`
}

// AveragerConfig holds moving-average settings.
type AveragerConfig struct {
	AveragePeriodSeconds int `yaml:"average_period_seconds"`
	ExpiryTimeSeconds    int `yaml:"expiry_time_seconds"`
}

// OutputConfig selects the aggregate outputs. The CSV files are always
// written; SQLite and InfluxDB are enabled when configured.
type OutputConfig struct {
	AveragesCSV string       `yaml:"averages_csv"`
	SpatialCSV  string       `yaml:"spatial_csv"`
	SQLitePath  string       `yaml:"sqlite_path"`
	Influx      InfluxConfig `yaml:"influx"`
}

// InfluxConfig holds InfluxDB output settings. An empty URL disables the
// output.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Token  string `yaml:"token"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the InfluxDB output is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// RunTime returns the bounded run duration.
func (c *Config) RunTime() time.Duration {
	return time.Duration(c.RunTimeSeconds) * time.Second
}

// CacheTTL returns the deduplication record time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Deduplicator.CacheTimeToLiveSeconds) * time.Second
}

// AveragingPeriod returns the bin width.
func (c *Config) AveragingPeriod() time.Duration {
	return time.Duration(c.Averager.AveragePeriodSeconds) * time.Second
}

// ExpiryTime returns the bin retention period.
func (c *Config) ExpiryTime() time.Duration {
	return time.Duration(c.Averager.ExpiryTimeSeconds) * time.Second
}

// applyDefaults fills in the optional settings.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Receiver.Source == "" {
		c.Receiver.Source = SourceSQS
	}
	if c.Output.AveragesCSV == "" {
		c.Output.AveragesCSV = "Gas_Averages.csv"
	}
	if c.Output.SpatialCSV == "" {
		c.Output.SpatialCSV = "Location_Average.csv"
	}
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.RunTimeSeconds <= 0 {
		errs = append(errs, errors.New("run_time_seconds must be positive"))
	}
	if c.Locations.S3Bucket == "" || c.Locations.S3Key == "" {
		errs = append(errs, errors.New("locations.s3_bucket and locations.s3_key are required"))
	}
	if c.Deduplicator.CacheTimeToLiveSeconds < 0 {
		errs = append(errs, errors.New("deduplicator.cache_time_to_live_seconds must not be negative"))
	}
	if c.Averager.AveragePeriodSeconds <= 0 {
		errs = append(errs, errors.New("averager.average_period_seconds must be positive"))
	}
	if c.Averager.ExpiryTimeSeconds < c.Averager.AveragePeriodSeconds {
		errs = append(errs, errors.New("averager.expiry_time_seconds must be at least average_period_seconds"))
	}

	switch c.Receiver.Source {
	case SourceSQS:
		if c.Receiver.SNSTopicARN == "" {
			errs = append(errs, errors.New("receiver.sns_topic_arn is required for the sqs source"))
		}
	case SourceKafka:
		if len(c.Receiver.Kafka.Brokers) == 0 || c.Receiver.Kafka.Topic == "" || c.Receiver.Kafka.GroupID == "" {
			errs = append(errs, errors.New("receiver.kafka.brokers, topic, and group_id are required for the kafka source"))
		}
	default:
		errs = append(errs, fmt.Errorf("receiver.source must be %q or %q", SourceSQS, SourceKafka))
	}

	return errors.Join(errs...)
}
