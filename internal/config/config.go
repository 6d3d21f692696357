package config

import (
	"os"
	"time"

	"support-mail-ingest/internal/models"

	"gopkg.in/yaml.v2"
)

// Defaults applied to fields omitted from the configuration file.
const (
	DefaultMailbox      = "INBOX"
	DefaultQueueName    = "email_queue"
	DefaultPollInterval = 5 * time.Minute
	DefaultBatchSize    = 5
	DefaultCooldown     = 3 * time.Second
	DefaultPopTimeout   = 2 * time.Second
	DefaultMaxAttempts  = 3
)

// Load reads the configuration from the specified YAML file and returns a Config struct
func Load(filepath string) (*models.Config, error) {
	configFile, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := yaml.Unmarshal(configFile, &config); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.IMAP.Mailbox == "" {
		cfg.IMAP.Mailbox = DefaultMailbox
	}
	if cfg.Redis.QueueName == "" {
		cfg.Redis.QueueName = DefaultQueueName
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = DefaultPollInterval
	}
	if cfg.Poller.BatchSize <= 0 {
		cfg.Poller.BatchSize = DefaultBatchSize
	}
	if cfg.Worker.Cooldown <= 0 {
		cfg.Worker.Cooldown = DefaultCooldown
	}
	if cfg.Worker.PopTimeout <= 0 {
		cfg.Worker.PopTimeout = DefaultPopTimeout
	}
	if cfg.Worker.MaxAttempts <= 0 {
		cfg.Worker.MaxAttempts = DefaultMaxAttempts
	}
}
