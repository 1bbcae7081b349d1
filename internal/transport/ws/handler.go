package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courier-dispatch/internal/auth"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
)

const (
	msgTypeRegister = "register"
	eventError      = "error"
)

// Registry is the part of notify.Router the handler needs.
type Registry interface {
	Add(ch notify.Channel) error
	Register(ch notify.Channel, userID string) error
	Unregister(ch notify.Channel) bool
}

// Config tunes keepalive and limits.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the keepalive settings used in production.
func DefaultConfig() Config {
	return Config{
		WriteWait:      5 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     50 * time.Second,
		MaxMessageSize: 4 << 10,
	}
}

type clientMessage struct {
	Type  string `json:"type"`
	UID   string `json:"uid"`
	Token string `json:"token,omitempty"`
}

// Handler upgrades HTTP requests to realtime channels.
//
// A client registers with {"type":"register","uid":...,"token":...}. When
// the verifier is enabled the token subject must equal uid.
type Handler struct {
	registry Registry
	verifier *auth.Verifier
	logger   logx.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(registry Registry, verifier *auth.Verifier, cfg Config, logger logx.Logger) *Handler {
	def := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Handler{
		registry: registry,
		verifier: verifier,
		logger:   logger,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// identity comes from the register message, not from cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs the channel until the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logx.Err(err))
		return
	}

	conn := newConn(uuid.NewString(), raw, h.cfg.WriteWait)
	log := h.logger.With(logx.String("channel", conn.ID()), logx.String("remote", r.RemoteAddr))

	if err := h.registry.Add(conn); err != nil {
		log.Warn("channel rejected", logx.Err(err))
		_ = conn.Close()
		return
	}
	log.Debug("channel opened")

	defer func() {
		h.registry.Unregister(conn)
		_ = conn.Close()
		log.Debug("channel closed")
	}()

	go h.keepalive(conn, log)
	h.readLoop(r.Context(), conn, log)
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn, log logx.Logger) {
	raw := conn.ws
	raw.SetReadLimit(h.cfg.MaxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("channel read failed", logx.Err(err))
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, conn, domain.Notification{Event: eventError, Fields: map[string]any{"reason": "bad_message"}})
			continue
		}
		if msg.Type != msgTypeRegister {
			continue
		}
		h.register(ctx, conn, msg, log)
	}
}

func (h *Handler) register(ctx context.Context, conn *Conn, msg clientMessage, log logx.Logger) {
	uid := strings.TrimSpace(msg.UID)
	if uid == "" {
		h.reply(ctx, conn, domain.Notification{Event: eventError, Fields: map[string]any{"reason": "validation"}})
		return
	}
	if h.verifier.Enabled() {
		sub, err := h.verifier.Verify(msg.Token)
		if err != nil || sub != uid {
			log.Info("channel registration refused", logx.String("uid", uid))
			h.reply(ctx, conn, domain.Notification{Event: eventError, Fields: map[string]any{"reason": "unauthorized"}})
			return
		}
	}
	if err := h.registry.Register(conn, uid); err != nil {
		log.Warn("channel registration failed", logx.String("uid", uid), logx.Err(err))
		return
	}
	log.Info("channel registered", logx.String("uid", uid))
	h.reply(ctx, conn, domain.Notification{Event: domain.EventRegistered, Fields: map[string]any{"uid": uid}})
}

func (h *Handler) reply(ctx context.Context, conn *Conn, n domain.Notification) {
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.WriteWait)
	defer cancel()
	_ = conn.Send(ctx, b)
}

func (h *Handler) keepalive(conn *Conn, log logx.Logger) {
	t := time.NewTicker(h.cfg.PingPeriod)
	defer t.Stop()
	for {
		select {
		case <-conn.Done():
			return
		case <-t.C:
			if err := conn.ping(); err != nil {
				log.Debug("ping failed", logx.Err(err))
				_ = conn.Close()
				return
			}
		}
	}
}
