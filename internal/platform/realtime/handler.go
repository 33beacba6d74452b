package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// DefaultAuthTimeout is how long a channel may stay unauthenticated.
const DefaultAuthTimeout = 10 * time.Second

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is not an access boundary here; the token handshake is.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections and runs the authenticate handshake.
type Handler struct {
	hub         *Hub
	verifier    auth.TokenVerifier
	logger      zerolog.Logger
	authTimeout time.Duration
}

func NewHandler(hub *Hub, verifier auth.TokenVerifier, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:         hub,
		verifier:    verifier,
		logger:      logger.With().Str("component", "realtime").Logger(),
		authTimeout: DefaultAuthTimeout,
	}
}

// SetAuthTimeout overrides DefaultAuthTimeout.
func (h *Handler) SetAuthTimeout(d time.Duration) {
	h.authTimeout = d
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades to WebSocket, registers the channel and starts the
// read and write pumps. Channels that do not authenticate within the auth
// timeout are closed.
func (h *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(sendBufferSize)
	h.hub.Register(client)
	h.logger.Debug().Str("client_id", client.ID).Msg("channel connected")

	time.AfterFunc(h.authTimeout, func() {
		if h.hub.State(client) == StateConnected {
			h.logger.Info().Str("client_id", client.ID).Msg("closing unauthenticated channel")
			ws.Close()
		}
	})

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// HandleMessage processes one raw inbound frame for client.
func (h *Handler) HandleMessage(client *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Action {
	case "authenticate":
		h.authenticate(client, msg.Token)
	}
}

func (h *Handler) authenticate(client *Client, token string) {
	id, err := h.verifier.Verify(token)
	if err != nil {
		h.reply(client, EventAuthError, map[string]string{"error": "invalid token"})
		return
	}
	if err := h.hub.Authenticate(client, id.UserID); err != nil {
		h.reply(client, EventAuthError, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Debug().
		Str("client_id", client.ID).
		Str("user_id", id.UserID.String()).
		Msg("channel authenticated")
	h.reply(client, EventAuthenticated, map[string]string{"user_id": id.UserID.String()})
}

func (h *Handler) reply(client *Client, typ string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = h.hub.SendTo(client, Event{
		Type:      typ,
		UserID:    client.UserID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		h.logger.Debug().Str("client_id", client.ID).Msg("channel disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.HandleMessage(client, message)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
