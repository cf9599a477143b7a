package config

import (
	"fmt"
	"net"
	"strings"

	"mail2alert/internal/constants"
	"mail2alert/pkg/tracing"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateSMTP(cfg.SMTP); err != nil {
		errors = append(errors, err)
	}

	if err := validateAdmin(cfg.Admin); err != nil {
		errors = append(errors, err)
	}

	if err := validateBuildState(cfg.BuildState); err != nil {
		errors = append(errors, err)
	}

	if err := validateKafka(cfg.Broker.Kafka); err != nil {
		errors = append(errors, err)
	}

	if err := validateOnError("rules.on_error", cfg.Rules.OnError); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, validateManagers(cfg.Managers)...)

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if err := validateTracing(cfg.Tracing); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateHostPort(field, addr string) error {
	if addr == "" {
		return &ValidationError{
			Field:   field,
			Message: "address is required",
		}
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("address must be host:port, got %q", addr),
		}
	}
	return nil
}

func validateSMTP(cfg SMTPConfig) error {
	if err := validateHostPort("smtp.listen", cfg.Listen); err != nil {
		return err
	}

	if err := validateHostPort("smtp.remote", cfg.Remote); err != nil {
		return err
	}

	if cfg.User != "" && cfg.Password == "" {
		return &ValidationError{
			Field:   "smtp.password",
			Message: "password is required when user is set",
		}
	}

	if cfg.MaxMessageBytes < 0 {
		return &ValidationError{
			Field:   "smtp.max_message_bytes",
			Message: "max_message_bytes must be non-negative",
		}
	}

	return nil
}

func validateAdmin(cfg AdminConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "admin.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "admin.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "admin.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RPS <= 0 {
		return &ValidationError{
			Field:   "admin.rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	return nil
}

func validateBuildState(cfg BuildStateConfig) error {
	switch strings.ToLower(cfg.Store) {
	case constants.StoreTypeMemory:
		return nil
	case constants.StoreTypeRedis:
		return validateRedis(cfg.Redis)
	default:
		return &ValidationError{
			Field:   "buildstate.store",
			Message: fmt.Sprintf("unknown store type: %s (supported: memory, redis)", cfg.Store),
		}
	}
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "buildstate.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "buildstate.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.HashKey == "" {
		return &ValidationError{
			Field:   "buildstate.redis.hash_key",
			Message: "hash key is required",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if !cfg.Enabled() {
		return nil
	}

	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.IntakeEnabled {
		if cfg.GroupID == "" {
			return &ValidationError{
				Field:   "broker.kafka.group_id",
				Message: "Kafka consumer group ID is required",
			}
		}
		if cfg.IntakeTopic == "" {
			return &ValidationError{
				Field:   "broker.kafka.intake_topic",
				Message: "intake topic is required when intake is enabled",
			}
		}
	}

	if cfg.DecisionsEnabled && cfg.DecisionsTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.decisions_topic",
			Message: "decisions topic is required when decisions are enabled",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateOnError(field, value string) error {
	switch value {
	case "", constants.ErrorHandlingSkipRule, constants.ErrorHandlingFail:
		return nil
	default:
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid on_error value: %s (valid: skip_rule, fail)", value),
		}
	}
}

func validateManagers(managers []ManagerConfig) []error {
	if len(managers) == 0 {
		return []error{&ValidationError{
			Field:   "managers",
			Message: "at least one manager is required",
		}}
	}

	var errors []error
	seen := make(map[string]bool, len(managers))
	for i, m := range managers {
		prefix := fmt.Sprintf("managers[%d]", i)

		if m.Name == "" {
			errors = append(errors, &ValidationError{Field: prefix + ".name", Message: "manager name is required"})
			continue
		}
		if seen[m.Name] {
			errors = append(errors, &ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate manager name: %s", m.Name)})
		}
		seen[m.Name] = true

		switch m.Type {
		case constants.ManagerTypeGoCD:
			if m.URL == "" {
				errors = append(errors, &ValidationError{Field: prefix + ".url", Message: "GoCD url is required"})
			}
			if m.TopologyTTL <= 0 {
				errors = append(errors, &ValidationError{Field: prefix + ".topology_ttl", Message: "topology_ttl must be positive"})
			}
		case constants.ManagerTypeMail:
		default:
			errors = append(errors, &ValidationError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unknown manager type: %s (supported: gocd, mail)", m.Type),
			})
		}

		if m.MessagesWeWant.IsZero() {
			errors = append(errors, &ValidationError{
				Field:   prefix + ".messages_we_want",
				Message: "either to or from is required",
			})
		}

		if err := validateOnError(prefix+".on_error", m.OnError); err != nil {
			errors = append(errors, err)
		}

		for j, r := range m.Rules {
			if r.Filter.Function == "" {
				errors = append(errors, &ValidationError{
					Field:   fmt.Sprintf("%s.rules[%d].filter.function", prefix, j),
					Message: "filter function is required",
				})
			}
		}
	}

	return errors
}

func validateLogging(cfg LoggingConfig) error {
	switch cfg.Format {
	case "", "json", "console":
		return nil
	default:
		return &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: json, console)", cfg.Format),
		}
	}
}

func validateTracing(cfg tracing.Config) error {
	if cfg.Enabled && cfg.OTLP.Endpoint == "" {
		return &ValidationError{
			Field:   "tracing.otlp.endpoint",
			Message: "OTLP endpoint is required when tracing is enabled",
		}
	}
	return nil
}
