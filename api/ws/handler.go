package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/realtime"
	"github.com/chartduel/chartduel-backend/internal/users"
	pkgAuth "github.com/chartduel/chartduel-backend/pkg/auth"
	"github.com/chartduel/chartduel-backend/pkg/config"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
	"github.com/chartduel/chartduel-backend/pkg/metrics"
)

const authDeadline = 10 * time.Second

// Handler upgrades websocket connections and drives the per-connection read
// loop. Authentication happens in-band: the first frame must be an auth
// message carrying a JWT, the same token the HTTP middleware accepts.
type Handler struct {
	jwt      config.JWTConfig
	cfg      config.RealtimeConfig
	registry *realtime.Registry
	arenas   arenas.Service
	users    users.Service
	metrics  *metrics.RealtimeMetrics
	logg     *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler wires the realtime entrypoint.
func NewHandler(jwtCfg config.JWTConfig, rtCfg config.RealtimeConfig, registry *realtime.Registry, arenaSvc arenas.Service, userSvc users.Service, m *metrics.RealtimeMetrics, logg *logger.Logger) (*Handler, error) {
	if registry == nil || arenaSvc == nil || userSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "realtime handler dependencies missing")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if rtCfg.PingInterval <= 0 {
		rtCfg.PingInterval = 30 * time.Second
	}
	if rtCfg.WriteTimeout <= 0 {
		rtCfg.WriteTimeout = 10 * time.Second
	}
	if rtCfg.ReadLimitBytes <= 0 {
		rtCfg.ReadLimitBytes = 4096
	}
	return &Handler{
		jwt:      jwtCfg,
		cfg:      rtCfg,
		registry: registry,
		arenas:   arenaSvc,
		users:    userSvc,
		metrics:  m,
		logg:     logg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

// ServeHTTP upgrades the request and runs the connection to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logg.Error(r.Context(), "websocket upgrade failed", err)
		return
	}

	conn := realtime.NewConn(raw, h.cfg.WriteTimeout)
	raw.SetReadLimit(h.cfg.ReadLimitBytes)

	claims, ok := h.authenticate(r.Context(), conn)
	if !ok {
		conn.Close()
		return
	}

	h.run(r.Context(), conn, claims)
}

// authenticate waits for the first frame and verifies the token it carries.
// Anything else closes the connection with an auth_error.
func (h *Handler) authenticate(ctx context.Context, conn *realtime.Conn) (*pkgAuth.AccessTokenClaims, bool) {
	conn.Raw().SetReadDeadline(time.Now().Add(authDeadline))
	defer conn.Raw().SetReadDeadline(time.Time{})

	var frame realtime.InboundEnvelope
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, false
	}
	if frame.Type != realtime.MessageAuth {
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageAuthError, realtime.ErrorPayload{
			Code:    string(pkgerrors.CodeUnauthorized),
			Message: "first message must be auth",
		}))
		return nil, false
	}

	var payload realtime.AuthPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Token == "" {
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageAuthError, realtime.ErrorPayload{
			Code:    string(pkgerrors.CodeUnauthorized),
			Message: "missing credentials",
		}))
		return nil, false
	}

	claims, err := pkgAuth.ParseAccessToken(h.jwt, payload.Token)
	if err != nil {
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageAuthError, realtime.ErrorPayload{
			Code:    string(pkgerrors.CodeUnauthorized),
			Message: "invalid token",
		}))
		return nil, false
	}
	return claims, true
}

// run registers the authenticated connection, announces presence, and loops
// on inbound frames until the peer goes away or misses a liveness probe.
func (h *Handler) run(ctx context.Context, conn *realtime.Conn, claims *pkgAuth.AccessTokenClaims) {
	userID := claims.UserID
	ctx = h.logg.WithUserID(ctx, userID.String())

	if prev := h.registry.Register(userID, conn); prev != nil {
		// Newest device wins; the replaced session is torn down silently.
		prev.Close()
	}

	conn.WriteJSON(realtime.NewEnvelope(realtime.MessageAuthSuccess, realtime.AuthSuccessPayload{
		UserID:   userID,
		Username: claims.Username,
	}))

	h.setPresence(ctx, userID, enums.UserStatusOnline)

	var alive atomic.Bool
	alive.Store(true)
	conn.Raw().SetPongHandler(func(string) error {
		alive.Store(true)
		return nil
	})

	stop := make(chan struct{})
	go h.livenessLoop(conn, &alive, stop)

	h.logg.Info(ctx, "realtime connection established")

	for {
		var frame realtime.InboundEnvelope
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		alive.Store(true)
		h.metrics.MessageIn(string(frame.Type))
		h.dispatch(ctx, conn, userID, frame)
	}

	close(stop)
	conn.Close()

	if h.registry.Unregister(userID, conn) {
		h.setPresence(ctx, userID, enums.UserStatusOffline)
	}
	h.logg.Info(ctx, "realtime connection closed")
}

// livenessLoop pings on a fixed interval and closes connections that failed
// to answer the previous probe.
func (h *Handler) livenessLoop(conn *realtime.Conn, alive *atomic.Bool, stop <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !alive.Swap(false) {
				conn.Close()
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *realtime.Conn, userID uuid.UUID, frame realtime.InboundEnvelope) {
	switch frame.Type {
	case realtime.MessagePing:
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessagePong, nil))

	case realtime.MessageJoinArena:
		var payload realtime.JoinArenaPayload
		if !h.decode(conn, frame.Payload, &payload) {
			return
		}
		state, err := h.arenas.JoinAsSpectator(ctx, payload.ArenaID, userID)
		if err != nil {
			h.sendError(ctx, conn, err)
			return
		}
		if state == nil {
			// Unknown arena: the frame is dropped without a reply.
			return
		}
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageArenaState, state))

	case realtime.MessageArenaChat:
		var payload realtime.ChatPayload
		if !h.decode(conn, frame.Payload, &payload) {
			return
		}
		if _, err := h.arenas.PostChat(ctx, payload.ArenaID, userID, payload.Message); err != nil {
			h.sendError(ctx, conn, err)
		}

	case realtime.MessageUpdateScore:
		var payload realtime.UpdateScorePayload
		if !h.decode(conn, frame.Payload, &payload) {
			return
		}
		if err := h.arenas.UpdateScore(ctx, payload.ArenaID, userID, payload.PlayerID, payload.Score, payload.Moves); err != nil {
			h.sendError(ctx, conn, err)
		}

	case realtime.MessageLeaveArena:
		var payload realtime.LeaveArenaPayload
		if !h.decode(conn, frame.Payload, &payload) {
			return
		}
		if err := h.arenas.Leave(ctx, payload.ArenaID, userID); err != nil {
			h.sendError(ctx, conn, err)
		}

	default:
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageError, realtime.ErrorPayload{
			Code:    string(pkgerrors.CodeValidation),
			Message: "unknown message type",
		}))
	}
}

// decode unmarshals an inbound payload; malformed payloads earn the sender an
// error envelope and nothing else.
func (h *Handler) decode(conn *realtime.Conn, raw json.RawMessage, dest any) bool {
	if err := json.Unmarshal(raw, dest); err != nil {
		conn.WriteJSON(realtime.NewEnvelope(realtime.MessageError, realtime.ErrorPayload{
			Code:    string(pkgerrors.CodeValidation),
			Message: "malformed payload",
		}))
		return false
	}
	return true
}

// sendError maps a service error onto an error envelope for the offending
// connection only.
func (h *Handler) sendError(ctx context.Context, conn *realtime.Conn, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "internal error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	msg := meta.PublicMessage
	if m := typed.Message(); m != "" && meta.HTTPStatus < http.StatusInternalServerError {
		msg = m
	}
	conn.WriteJSON(realtime.NewEnvelope(realtime.MessageError, realtime.ErrorPayload{
		Code:    string(typed.Code()),
		Message: msg,
	}))
	if meta.HTTPStatus >= http.StatusInternalServerError {
		h.logg.Error(ctx, "realtime operation failed", err)
	}
}

// setPresence persists the status flip and announces it to everyone else.
func (h *Handler) setPresence(ctx context.Context, userID uuid.UUID, status enums.UserStatus) {
	if err := h.users.SetPresence(ctx, userID, status); err != nil {
		h.logg.Error(ctx, "presence update failed", err)
		return
	}
	h.registry.BroadcastAll(realtime.NewEnvelope(realtime.MessageUserStatus, realtime.UserStatusPayload{
		UserID: userID,
		Status: string(status),
	}), userID)
}
