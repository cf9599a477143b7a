package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
)

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func LoadConfig(configFile string) (*Config, error) {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return Parse(raw)
}

// Parse builds a validated Config from YAML. Environment references in the
// document are expanded before parsing.
func Parse(raw []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadConfig(bytes.NewReader(ExpandEnv(raw))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	applyManagerDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// ExpandEnv replaces $VAR and ${VAR} with the variable's value. References to
// unset variables are left as written.
func ExpandEnv(raw []byte) []byte {
	return envReference.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := envReference.FindSubmatch(ref)
		name := m[1]
		if len(name) == 0 {
			name = m[2]
		}
		if value, ok := os.LookupEnv(string(name)); ok {
			return []byte(value)
		}
		return ref
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("smtp.listen", "localhost:8025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	v.SetDefault("smtp.max_recipients", 100)
	v.SetDefault("smtp.read_timeout", "60s")
	v.SetDefault("smtp.write_timeout", "60s")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.read_timeout_seconds", 10)
	v.SetDefault("admin.write_timeout_seconds", 30)
	v.SetDefault("admin.rate_limit.rps", 10)
	v.SetDefault("admin.rate_limit.burst", 20)

	v.SetDefault("slack.rps", 1)
	v.SetDefault("slack.burst", 1)

	v.SetDefault("buildstate.store", constants.StoreTypeMemory)
	v.SetDefault("buildstate.redis.port", 6379)
	v.SetDefault("buildstate.redis.hash_key", constants.DefaultBuildStateHashKey)

	v.SetDefault("broker.kafka.group_id", constants.DefaultConsumerGroup)
	v.SetDefault("broker.kafka.intake_topic", constants.DefaultIntakeTopic)
	v.SetDefault("broker.kafka.decisions_topic", constants.DefaultDecisionsTopic)
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "100ms")
	v.SetDefault("broker.kafka.retry.max_interval", "5s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)
	v.SetDefault("broker.kafka.retry.max_elapsed_time", "30s")

	v.SetDefault("rules.on_error", constants.ErrorHandlingSkipRule)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.consecutive_failures", 5)

	v.SetDefault("tracing.service_name", "mail2alert")
	v.SetDefault("tracing.sampler.type", "always_on")
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("smtp.listen", "SMTP_LISTEN")
	v.BindEnv("smtp.remote", "SMTP_REMOTE")
	v.BindEnv("smtp.user", "SMTP_USER")
	v.BindEnv("smtp.starttls", "SMTP_STARTTLS")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")

	v.BindEnv("admin.port", "ADMIN_PORT")

	v.BindEnv("slack.token", "SLACK_TOKEN")
	v.BindEnv("slack.api_url", "SLACK_API_URL")

	v.BindEnv("buildstate.store", "BUILDSTATE_STORE")
	v.BindEnv("buildstate.redis.host", "BUILDSTATE_REDIS_HOST")
	v.BindEnv("buildstate.redis.port", "BUILDSTATE_REDIS_PORT")
	v.BindEnv("buildstate.redis.password", "BUILDSTATE_REDIS_PASSWORD")
	v.BindEnv("buildstate.redis.db", "BUILDSTATE_REDIS_DB")

	v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	v.BindEnv("broker.kafka.intake_topic", "BROKER_KAFKA_INTAKE_TOPIC")
	v.BindEnv("broker.kafka.decisions_topic", "BROKER_KAFKA_DECISIONS_TOPIC")

	v.BindEnv("rules.on_error", "RULES_ON_ERROR")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) error {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := v.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func applyManagerDefaults(cfg *Config) {
	for i := range cfg.Managers {
		m := &cfg.Managers[i]
		if m.Type == "" {
			m.Type = m.Name
		}
		m.Type = strings.ToLower(m.Type)
		if m.TopologyTTL == 0 {
			m.TopologyTTL = constants.DefaultTopologyTTL
		}
		if m.CCTrayInterval == 0 {
			m.CCTrayInterval = constants.DefaultCCTrayInterval
		}
		if m.Timeout == 0 {
			m.Timeout = constants.DefaultHTTPTimeout
		}
	}
}

// Watch reloads configFile whenever it changes and passes every configuration
// that loads and validates to onChange. Invalid edits are logged and ignored.
func Watch(configFile string, log logger.Logger, onChange func(*Config)) {
	w := viper.New()
	w.SetConfigFile(configFile)
	w.SetConfigType("yaml")

	w.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := LoadConfig(configFile)
		if err != nil {
			log.Errorw("Ignoring invalid configuration change",
				"file", configFile,
				"error", err,
			)
			return
		}
		log.Infow("Configuration file changed", "file", configFile)
		onChange(cfg)
	})
	w.WatchConfig()
}
