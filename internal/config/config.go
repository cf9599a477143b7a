package config

import (
	"time"

	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/pkg/tracing"
)

type Config struct {
	SMTP           SMTPConfig           `mapstructure:"smtp"`
	Admin          AdminConfig          `mapstructure:"admin"`
	Slack          SlackConfig          `mapstructure:"slack"`
	BuildState     BuildStateConfig     `mapstructure:"buildstate"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Rules          RulesConfig          `mapstructure:"rules"`
	Managers       []ManagerConfig      `mapstructure:"managers"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        tracing.Config       `mapstructure:"tracing"`
}

// SMTPConfig describes the proxy: Listen is the local address messages arrive
// on, Remote the upstream MTA they are forwarded to.
type SMTPConfig struct {
	Listen          string        `mapstructure:"listen"`
	Remote          string        `mapstructure:"remote"`
	Domain          string        `mapstructure:"domain"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	StartTLS        bool          `mapstructure:"starttls"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	MaxRecipients   int           `mapstructure:"max_recipients"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type AdminConfig struct {
	Enabled             bool            `mapstructure:"enabled"`
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  int             `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int             `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type SlackConfig struct {
	Token  string  `mapstructure:"token"`
	APIURL string  `mapstructure:"api_url"`
	RPS    float64 `mapstructure:"rps"`
	Burst  int     `mapstructure:"burst"`
}

func (c SlackConfig) Enabled() bool {
	return c.Token != ""
}

type BuildStateConfig struct {
	Store string      `mapstructure:"store"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	HashKey  string `mapstructure:"hash_key"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// IntakeTopic carries envelopes to route, DecisionsTopic receives one record
	// per processed message. Either side is off unless its flag is set.
	IntakeTopic      string      `mapstructure:"intake_topic"`
	DecisionsTopic   string      `mapstructure:"decisions_topic"`
	IntakeEnabled    bool        `mapstructure:"intake_enabled"`
	DecisionsEnabled bool        `mapstructure:"decisions_enabled"`
	Retry            RetryConfig `mapstructure:"retry"`
}

func (c KafkaConfig) Enabled() bool {
	return c.IntakeEnabled || c.DecisionsEnabled
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type RulesConfig struct {
	OnError string `mapstructure:"on_error"` // "skip_rule" (default) or "fail"
}

// ManagerConfig is one notification domain. Type defaults to Name, so a block
// named "gocd" or "mail" needs no type.
type ManagerConfig struct {
	Name           string          `mapstructure:"name"`
	Type           string          `mapstructure:"type"`
	MessagesWeWant router.Criteria `mapstructure:"messages_we_want"`
	URL            string          `mapstructure:"url"`
	User           string          `mapstructure:"user"`
	Password       string          `mapstructure:"passwd"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	TopologyTTL    time.Duration   `mapstructure:"topology_ttl"`
	CCTrayInterval time.Duration   `mapstructure:"cctray_interval"`
	OnError        string          `mapstructure:"on_error"`
	Rules          []rules.Rule    `mapstructure:"rules"`
}

// ErrorPolicy is the manager override, else the global rules.on_error.
func (m ManagerConfig) ErrorPolicy(global string) string {
	if m.OnError != "" {
		return m.OnError
	}
	return global
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
