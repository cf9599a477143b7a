package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultIntakeTopic    = "mail2alert.envelopes"
	DefaultDecisionsTopic = "mail2alert.decisions"
	DefaultConsumerGroup  = "mail2alert"
)

const (
	DefaultBuildStateHashKey = "mail2alert:buildstate"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTopologyTTL    = 30 * time.Second
	DefaultCCTrayInterval = 60 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	ErrorHandlingFail     = "fail"
	ErrorHandlingSkipRule = "skip_rule"
)

const (
	ManagerTypeGoCD = "gocd"
	ManagerTypeMail = "mail"
)

const (
	ActionKindMailto = "mailto"
	ActionKindSlack  = "slack"
)

const (
	SlackStyleBrief = "brief"
	SlackStyleFull  = "full"
)

const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)
