// Package config loads the runtime configuration of the order queue
// commands. Values are resolved with precedence ENV > file > defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slackmgr/orderqueue/pubsub"
	"github.com/slackmgr/orderqueue/queue"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by [Loader].
const EnvPrefix = "ORDERQUEUE"

// Backend names accepted by the backend key.
const (
	BackendSQS      = "sqs"
	BackendPostgres = "postgres"
	BackendPubSub   = "pubsub"
	BackendMemory   = "memory"
)

// Config is the complete configuration.
type Config struct {
	Backend     string            `mapstructure:"backend"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Request     RequestConfig     `mapstructure:"request"`
	Producer    ProducerConfig    `mapstructure:"producer"`
	Processor   ProcessorConfig   `mapstructure:"processor"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	AWS         AWSConfig         `mapstructure:"aws"`
	SQS         SQSConfig         `mapstructure:"sqs"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// QueueConfig holds the lease and polling settings of the consumer.
type QueueConfig struct {
	Name              string        `mapstructure:"name"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	ExtensionWindow   time.Duration `mapstructure:"extension_window"`
	RenewalInterval   time.Duration `mapstructure:"renewal_interval"`
	PollBackoff       time.Duration `mapstructure:"poll_backoff"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
	MaxLeaseExtension time.Duration `mapstructure:"max_lease_extension"`
}

// RetryConfig is the retry policy attached to every queue call.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// RequestConfig bounds a single queue call.
type RequestConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProducerConfig controls which orders placeorders enqueues.
type ProducerConfig struct {
	FirstOrder int     `mapstructure:"first_order"`
	Count      int     `mapstructure:"count"`
	Rate       float64 `mapstructure:"rate"`
	Burst      int     `mapstructure:"burst"`
}

// ProcessorConfig controls the sample order processor.
type ProcessorConfig struct {
	WorkDuration time.Duration `mapstructure:"work_duration"`
}

// IdempotencyConfig selects the ledger used to skip orders that were
// already handled. An empty table name selects the in-memory ledger.
type IdempotencyConfig struct {
	DynamoDBTable string        `mapstructure:"dynamodb_table"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// AWSConfig is shared by the SQS backend and the DynamoDB ledger. An empty
// region leaves the choice to the default AWS configuration chain.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// SQSConfig configures the SQS backend.
type SQSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	WaitTimeSeconds int32  `mapstructure:"wait_time_seconds"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PubSubConfig configures the Pub/Sub backend. The topic is named after the
// queue; an empty subscription is also named after the queue.
type PubSubConfig struct {
	Project      string `mapstructure:"project"`
	Subscription string `mapstructure:"subscription"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint of processorders. An
// empty address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// defaults maps every config key to its default value. It is also the list
// of keys bound to environment variables.
var defaults = map[string]any{
	"backend":                    BackendMemory,
	"queue.name":                 "orders",
	"queue.visibility_timeout":   60 * time.Second,
	"queue.extension_window":     time.Duration(0),
	"queue.renewal_interval":     45 * time.Second,
	"queue.poll_backoff":         5 * time.Second,
	"queue.error_backoff":        5 * time.Second,
	"queue.max_lease_extension":  time.Duration(0),
	"retry.max_attempts":         10,
	"retry.backoff":              2 * time.Second,
	"request.timeout":            30 * time.Second,
	"producer.first_order":       1000,
	"producer.count":             100,
	"producer.rate":              0.0,
	"producer.burst":             1,
	"processor.work_duration":    500 * time.Millisecond,
	"idempotency.dynamodb_table": "",
	"idempotency.ttl":            24 * time.Hour,
	"aws.region":                 "",
	"sqs.endpoint":               "",
	"sqs.wait_time_seconds":      20,
	"postgres.dsn":               "",
	"pubsub.project":             "",
	"pubsub.subscription":        "",
	"log.level":                  "info",
	"log.format":                 "json",
	"metrics.address":            "",
}

// Loader reads a [Config] with viper.
type Loader struct {
	configFile string
	envPrefix  string
}

// NewLoader creates a Loader. configFile is optional; when set the file
// must exist and be readable.
func NewLoader(configFile string) *Loader {
	return &Loader{
		configFile: configFile,
		envPrefix:  EnvPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	for key := range defaults {
		if err := v.BindEnv(key, l.envName(key)); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envName maps a key such as queue.poll_backoff to ORDERQUEUE_QUEUE_POLL_BACKOFF.
func (l *Loader) envName(key string) string {
	return l.envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate checks the values that are not validated by the components that
// consume them.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQS:
		if c.SQS.WaitTimeSeconds < 0 || c.SQS.WaitTimeSeconds > 20 {
			return errors.New("sqs.wait_time_seconds must be between 0 and 20")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
	case BackendPubSub:
		if c.PubSub.Project == "" {
			return errors.New("pubsub.project is required for the pubsub backend")
		}

		if c.Queue.VisibilityTimeout > pubsub.MaxAckDeadline || c.Queue.ExtensionWindow > pubsub.MaxAckDeadline {
			return fmt.Errorf("queue.visibility_timeout and queue.extension_window must not exceed %s for the pubsub backend", pubsub.MaxAckDeadline)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q, expected one of sqs, postgres, pubsub, memory", c.Backend)
	}

	if c.Queue.Name == "" {
		return errors.New("queue.name is required")
	}

	if c.Producer.Count < 0 {
		return errors.New("producer.count must be non-negative")
	}

	if c.Processor.WorkDuration < 0 {
		return errors.New("processor.work_duration must be non-negative")
	}

	if c.Idempotency.TTL < 0 {
		return errors.New("idempotency.ttl must be non-negative")
	}

	return nil
}

// RequestOptions returns the retry policy and timeout for queue calls.
func (c *Config) RequestOptions() *queue.RequestOptions {
	return &queue.RequestOptions{
		Retry: queue.RetryPolicy{
			MaxAttempts: c.Retry.MaxAttempts,
			Backoff:     c.Retry.Backoff,
		},
		Timeout: c.Request.Timeout,
	}
}

// ConsumerOptions returns the consumer options derived from the queue
// section. They are validated by [queue.NewConsumer].
func (c *Config) ConsumerOptions() []queue.Option {
	return []queue.Option{
		queue.WithVisibilityTimeout(c.Queue.VisibilityTimeout),
		queue.WithExtensionWindow(c.Queue.ExtensionWindow),
		queue.WithRenewalInterval(c.Queue.RenewalInterval),
		queue.WithPollBackoff(c.Queue.PollBackoff),
		queue.WithErrorBackoff(c.Queue.ErrorBackoff),
		queue.WithMaxLeaseExtension(c.Queue.MaxLeaseExtension),
		queue.WithRequestOptions(c.RequestOptions()),
	}
}
