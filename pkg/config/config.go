package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Bus struct {
		Type  string `yaml:"type" default:"redis" validate:"oneof=redis kafka ws"`
		Redis struct {
			Addr           string `yaml:"addr" default:"localhost:6379"`
			Password       string `yaml:"password"`
			DB             int    `yaml:"db"`
			Pattern        string `yaml:"pattern" default:"titan:prod:signals:*"`
			OutcomeChannel string `yaml:"outcome_channel" default:"titan:prod:execution_orchestrator"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers      []string `yaml:"brokers"`
			Topics       []string `yaml:"topics"`
			GroupID      string   `yaml:"group_id" default:"titangate"`
			OutcomeTopic string   `yaml:"outcome_topic"`
		} `yaml:"kafka"`
		WS struct {
			URL            string        `yaml:"url"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
		} `yaml:"ws"`
	} `yaml:"bus"`
	Executor struct {
		Type     string        `yaml:"type" default:"sim" validate:"oneof=sim http"`
		URL      string        `yaml:"url"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
		MinDelay time.Duration `yaml:"min_delay" default:"100ms"`
		MaxDelay time.Duration `yaml:"max_delay" default:"500ms"`
	} `yaml:"executor"`
	Pipeline struct {
		MaxConcurrent          int           `yaml:"max_concurrent" default:"50" validate:"gte=1"`
		RatePermitsPerInterval int           `yaml:"rate_permits_per_interval" default:"100" validate:"gte=1"`
		Interval               time.Duration `yaml:"interval" default:"1s"`
		DedupWindow            time.Duration `yaml:"dedup_window" default:"10s"`
		DecayRate              float64       `yaml:"decay_rate" default:"0.01" validate:"gte=0"`
		MaxHoldTime            time.Duration `yaml:"max_hold_time" default:"60s"`
		ConfidenceThreshold    float64       `yaml:"confidence_threshold" default:"0.97" validate:"gte=0,lte=1"`
		MaxSafeChaos           float64       `yaml:"max_safe_chaos" default:"0.3" validate:"gte=0,lte=1"`
		DispatchTimeout        time.Duration `yaml:"dispatch_timeout" default:"5s"`
		DefaultTTL             time.Duration `yaml:"default_ttl" default:"30s"`
		ReapInterval           time.Duration `yaml:"reap_interval" default:"5s"`
		QueueSize              int           `yaml:"queue_size" default:"256" validate:"gte=1"`
		RequeueRetry           bool          `yaml:"requeue_retry" default:"true"`
		RetryDelay             time.Duration `yaml:"retry_delay" default:"100ms"`
	} `yaml:"pipeline"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BUS_TYPE"); v != "" {
		c.Bus.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Bus.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Bus.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Bus.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPICS"); v != "" {
		c.Bus.Kafka.Topics = strings.Split(v, ",")
	}
	if v := os.Getenv("EXECUTOR_URL"); v != "" {
		c.Executor.URL = v
		c.Executor.Type = "http"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Bus.Type {
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return fmt.Errorf("bus.kafka.brokers cannot be empty")
		}
		if len(c.Bus.Kafka.Topics) == 0 {
			return fmt.Errorf("bus.kafka.topics cannot be empty")
		}
	case "ws":
		if c.Bus.WS.URL == "" {
			return fmt.Errorf("bus.ws.url is required")
		}
	}

	if c.Executor.Type == "http" && c.Executor.URL == "" {
		return fmt.Errorf("executor.url is required for http executor")
	}

	// The queue holds only admitted signals, so it must be able to
	// absorb everything that can be in flight at once.
	if c.Pipeline.QueueSize < c.Pipeline.MaxConcurrent {
		return fmt.Errorf("pipeline.queue_size must be >= pipeline.max_concurrent")
	}

	return nil
}
