package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStorageDriver     = "STORAGE_DRIVER"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvJWTSecret = "JWT_SECRET"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTimeSlots = "TIME_SLOTS"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvAppointmentEventsTopic = "APPOINTMENT_EVENTS_TOPIC"
	EnvNotificationRelayTopic = "NOTIFICATION_RELAY_TOPIC"
	EnvInstanceID             = "INSTANCE_ID"

	EnvWSSendBuffer   = "WS_SEND_BUFFER"
	EnvWSWriteTimeout = "WS_WRITE_TIMEOUT"
	EnvWSPongTimeout  = "WS_PONG_TIMEOUT"
	EnvAllowedOrigins = "WS_ALLOWED_ORIGINS"
)
