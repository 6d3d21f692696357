package models

import (
	"net"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	IMAP      IMAPConfig      `yaml:"imap"`
	Redis     RedisConfig     `yaml:"redis"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Tickets   TicketsConfig   `yaml:"tickets"`
	Poller    PollerConfig    `yaml:"poller"`
	Worker    WorkerConfig    `yaml:"worker"`
	LogLevel  string          `yaml:"logLevel"`
}

// IMAPConfig represents the mailbox the poller watches
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
}

// Addr returns the host:port address of the IMAP server
func (c IMAPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisConfig represents the queue backend connection
type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DB        int    `yaml:"db"`
	QueueName string `yaml:"queueName"`
}

// Addr returns the host:port address of the Redis server
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ExtractorConfig represents the extraction backend endpoints and credentials
type ExtractorConfig struct {
	OAuthURL string `yaml:"oauthURL"`
	ChatURL  string `yaml:"chatURL"`
	AuthKey  string `yaml:"authKey"`
	Scope    string `yaml:"scope"`
	Model    string `yaml:"model"`
}

// TicketsConfig represents the ticket creation API
type TicketsConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// PollerConfig represents the poll schedule and batch bound
type PollerConfig struct {
	Interval  time.Duration `yaml:"interval"` // ex: "5m"
	BatchSize int           `yaml:"batchSize"`
}

// WorkerConfig represents the extraction worker tuning knobs
type WorkerConfig struct {
	Cooldown    time.Duration `yaml:"cooldown"`   // pause after a processing failure
	PopTimeout  time.Duration `yaml:"popTimeout"` // blocking dequeue timeout
	MaxAttempts int           `yaml:"maxAttempts"`
}
