package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	httputil "medislot/pkg/http"
	"medislot/pkg/logger"
)

const (
	StatusOK          = "ok"
	StatusReady       = "ready"
	StatusUnavailable = "unavailable"
	StatusError       = "error"

	DefaultCheckTimeout = 2 * time.Second
)

// Check reports whether a dependency can serve traffic.
type Check func(ctx context.Context) error

type Response struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks,omitempty"`
	Connections *int              `json:"connections,omitempty"`
}

type HealthHandler struct {
	checks      map[string]Check
	connections func() int
	timeout     time.Duration
	log         *logger.Logger
}

func NewHealthHandler(log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  make(map[string]Check),
		timeout: DefaultCheckTimeout,
		log:     log,
	}
}

// AddCheck registers a readiness dependency. Not safe for use after serving starts.
func (h *HealthHandler) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// WithConnections reports the live websocket count on /health.
func (h *HealthHandler) WithConnections(count func() int) {
	h.connections = count
}

func MongoCheck(client *mongo.Client) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

func RedisCheck(client *redis.Client) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := Response{Status: StatusOK}
	if h.connections != nil {
		n := h.connections()
		resp.Connections = &n
	}
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := Response{Status: StatusReady, Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Error("Readiness check failed",
				"check", name,
				"error", err,
				"path", r.URL.Path,
			)
			resp.Checks[name] = StatusError
			resp.Status = StatusUnavailable
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = StatusOK
	}

	if err := httputil.WriteJSON(w, code, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}
