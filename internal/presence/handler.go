package presence

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"medislot/pkg/auth"
	apperrors "medislot/pkg/errors"
	httputil "medislot/pkg/http"
	"medislot/pkg/logger"
)

const WebsocketPath = "/api/v1/ws"

type Handler struct {
	registry *Registry
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	cfg      ChannelConfig
	log      *logger.Logger
}

func NewHandler(registry *Registry, verifier *auth.Verifier, cfg ChannelConfig, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET(WebsocketPath, h.Connect)
}

// Connect authenticates the caller, upgrades the connection and registers it
// as the caller's delivery channel. Identity always comes from the token.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := h.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Authentication required")); writeErr != nil {
			h.log.Error("failed to write error response",
				"handler", "presence",
				"operation", "Connect",
				"error", writeErr,
			)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.Warn("Websocket upgrade failed", "user_id", actor.ID, "error", err)
		return
	}

	ch := newWSChannel(conn, h.cfg)
	if err := h.registry.Connect(actor.ID, ch); err != nil {
		h.log.Warn("Rejected websocket connection", "user_id", actor.ID, "error", err)
		_ = ch.Close()
		return
	}

	go ch.writePump()
	go ch.readPump(func() { h.registry.Disconnect(ch) })
}

// originChecker allows any origin when the list is empty.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
