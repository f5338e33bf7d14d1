package config

import "time"

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medislot"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStorageDriver     = StorageMongo

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultRedisDB = 0

	DefaultKafkaEnabled           = false
	DefaultAppointmentEventsTopic = "appointment-events"
	DefaultNotificationRelayTopic = "notification-relay"

	DefaultWSSendBuffer   = 32
	DefaultWSWriteTimeout = 10 * time.Second
	DefaultWSPongTimeout  = 60 * time.Second

	// MinWSPongTimeout keeps the derived ping interval well above zero.
	MinWSPongTimeout = time.Second
)
