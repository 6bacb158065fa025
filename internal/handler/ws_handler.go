package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/middleware"
	"github.com/medsimlab/clinsim-backend/internal/service"
	ws "github.com/medsimlab/clinsim-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session events (stress, scores, readiness, alerts)
// to the learner UI over WebSocket.
type WSHandler struct {
	rdb            *redis.Client
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket and forwards the session's PubSub channel. The
// stream is read-only for the client; all mutations go through the REST API.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Ownership check before any data flows.
	orch, err := h.sessionService.Get(sessionID, claims.LearnerID)
	if err != nil {
		ws.WriteError(conn, "no live session with that id")
		return
	}

	wsLog := h.log.With().
		Int("learner_id", claims.LearnerID).
		Str("session_id", sessionID).
		Logger()

	wsLog.Info().Msg("Learner connected to session stream")

	pubsub := h.rdb.Subscribe(c.Request.Context(), config.CacheKey.SessionStreamChannel(sessionID))
	defer pubsub.Close()

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to observe close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Push the current derived view first so the client never starts blind.
	if event, err := ws.NewStreamEvent(ws.EventReadiness, sessionID, ws.ReadinessPayload{
		PassProbability: orch.PassProbability(),
		Progress:        orch.Progress(),
	}); err == nil {
		ws.WriteTyped(conn, event)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Connection closed")
			return
		case msg, ok := <-ch:
			if !ok {
				wsLog.Warn().Msg("PubSub channel closed")
				return
			}
			if err := ws.WriteRaw(conn, []byte(msg.Payload)); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, dropping connection")
				return
			}
		}
	}
}
