package main

import (
	"context"
	"errors"
	"time"

	"medislot/internal/appointments/events"
	appointmentshandler "medislot/internal/appointments/handler"
	appointmentsrepo "medislot/internal/appointments/repository"
	"medislot/internal/appointments/service"
	"medislot/internal/appointments/validator"
	"medislot/internal/health"
	mongoMigration "medislot/internal/migrations/mongo"
	notificationshandler "medislot/internal/notifications/handler"
	"medislot/internal/notifications/relay"
	notificationsrepo "medislot/internal/notifications/repository"
	notificationsservice "medislot/internal/notifications/service"
	"medislot/internal/presence"
	"medislot/pkg/app"
	"medislot/pkg/auth"
	"medislot/pkg/config"
	"medislot/pkg/contracts"
	"medislot/pkg/kafka"
	kafka_config "medislot/pkg/kafka/config"
	kafka_middleware "medislot/pkg/kafka/middleware"
	"medislot/pkg/metrics"
	"medislot/pkg/middleware"
)

const (
	ServiceName = "appointments"

	indexBuildTimeout = 60 * time.Second
)

func main() {
	cfg := config.Load(ServiceName)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Appointments service")
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(initComponents(cfg, serverApp))
	serverApp.Run()
}

func initComponents(cfg *config.Config, serverApp *app.Application) app.Components {
	m := metrics.New()
	verifier := auth.NewVerifier(cfg.JWTSecret)
	healthHandler := health.NewHealthHandler(cfg.Log)

	slots, err := cfg.SlotSet()
	if err != nil {
		cfg.Log.Fatal("Invalid time slots", "error", err)
	}

	var (
		appointmentRepo  appointmentsrepo.AppointmentRepository
		notificationRepo notificationsrepo.NotificationRepository
	)
	if cfg.UsesMongo() {
		cfg.SetMongo()
		ensureAppointmentIndexes(cfg)
		appointmentRepo = appointmentsrepo.NewMongoAppointmentRepository(cfg)
		notificationRepo = notificationsrepo.NewMongoNotificationRepository(cfg)
		healthHandler.AddCheck("mongo", health.MongoCheck(cfg.Client.Mongo))
	} else {
		cfg.Log.Warn("Using in-memory storage; data is lost on restart")
		appointmentRepo = appointmentsrepo.NewMemoryAppointmentRepository()
		notificationRepo = notificationsrepo.NewMemoryNotificationRepository()
	}

	var idempotencyStore middleware.IdempotencyStore
	if cfg.RedisAddr != "" {
		cfg.SetRedis()
		idempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL, cfg.Log)
		healthHandler.AddCheck("redis", health.RedisCheck(cfg.Client.Redis))
	}

	registry := presence.NewRegistry(cfg.Log, m)
	healthHandler.WithConnections(registry.Count)
	dispatcher := notificationsservice.NewDispatcher(notificationRepo, registry, m, cfg.Log)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled {
		publisher = initKafka(cfg, serverApp, dispatcher, m)
	}

	scheduler := service.NewScheduler(
		appointmentRepo,
		validator.NewAppointmentValidator(slots, cfg.Log),
		slots,
		dispatcher,
		publisher,
		m,
		cfg.Log,
	)
	cfg.Log.Info("Appointment service initialized", "storage", cfg.StorageDriver, "slots", len(slots.Labels()))

	channelCfg := presence.ChannelConfig{
		SendBuffer:   cfg.WSSendBuffer,
		WriteTimeout: cfg.WSWriteTimeout,
		PongTimeout:  cfg.WSPongTimeout,
	}

	// Hijacked websocket connections are not drained by the HTTP server.
	serverApp.OnShutdown(func(context.Context) { registry.Close() })
	serverApp.OnShutdown(func(context.Context) { cfg.GracefulShutdown() })

	return app.Components{
		Handlers: []contracts.Handler{
			appointmentshandler.NewAppointmentHandler(scheduler, cfg.Log),
			notificationshandler.NewNotificationHandler(dispatcher, cfg.Log),
		},
		Realtime:         presence.NewHandler(registry, verifier, channelCfg, cfg.AllowedOrigins, cfg.Log),
		Health:           healthHandler,
		Metrics:          m,
		Verifier:         verifier,
		IdempotencyStore: idempotencyStore,
	}
}

// ensureAppointmentIndexes builds the unique live-slot index before any
// booking is accepted. Without it the Mongo store cannot detect double bookings.
func ensureAppointmentIndexes(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), indexBuildTimeout)
	defer cancel()

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.EnsureIndexes(ctx, db, appointmentsrepo.CollectionName, cfg.Log); err != nil {
		cfg.Log.Fatal("Failed to ensure appointment indexes", "error", err)
	}
}

// initKafka wires the appointment event producer and the cross-instance
// notification relay. The relay consumer group is unique per instance so
// every instance sees every relayed notification.
func initKafka(cfg *config.Config, serverApp *app.Application, dispatcher *notificationsservice.Dispatcher, m *metrics.Metrics) events.Publisher {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	eventsProducer, err := kafka.NewProducer(kafkaCfg, cfg.AppointmentEventsTopic, cfg.AppointmentEventsTopic+".dlq", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create appointment events producer", "error", err)
	}
	relayProducer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationRelayTopic, "", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create notification relay producer", "error", err)
	}

	notificationRelay := relay.New(relayProducer, cfg.InstanceID, cfg.Log)
	dispatcher.SetRelay(notificationRelay)

	relayConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.NotificationRelayTopic,
		kafkaCfg.GroupID("relay."+cfg.InstanceID),
		"",
		notificationRelay.Handler(dispatcher),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create notification relay consumer", "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		for _, p := range []*kafka.Producer{eventsProducer, relayProducer} {
			p.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			p.Use(kafka_middleware.MetricsProducerMiddleware(m))
		}
		relayConsumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		relayConsumer.Use(kafka_middleware.MetricsConsumerMiddleware(m))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := relayConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Notification relay consumer stopped", "error", err)
		}
	}()

	serverApp.OnShutdown(func(context.Context) {
		cancel()
		if err := relayConsumer.Close(); err != nil {
			cfg.Log.Error("Failed to close relay consumer", "error", err)
		}
		for _, p := range []*kafka.Producer{eventsProducer, relayProducer} {
			if err := p.Close(); err != nil {
				cfg.Log.Error("Failed to close producer", "topic", p.Topic(), "error", err)
			}
		}
	})

	cfg.Log.Info("Kafka wired",
		"events_topic", cfg.AppointmentEventsTopic,
		"relay_topic", cfg.NotificationRelayTopic,
		"instance_id", cfg.InstanceID,
	)
	return events.NewKafkaPublisher(eventsProducer, cfg.InstanceID)
}
