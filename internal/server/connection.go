package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gravitas-games/hexrts/internal/construction"
	"github.com/gravitas-games/hexrts/internal/game"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/network"
	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time a game command may wait for the simulation goroutine
	commandTimeout = 5 * time.Second

	commandBurst = 10
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	// WebSocket connection
	ws *websocket.Conn

	// Session the player plays in
	session *Session

	// Player information (set after authentication)
	player *models.Player

	// Buffered channel for outbound messages
	send      chan []byte
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once

	// Is connection authenticated
	authenticated bool
	joined        bool

	commands *rate.Limiter
	chat     *rate.Limiter

	maxChatLength int
	logger        *slog.Logger
}

// NewConnection creates a new connection. ws may be nil for connections
// that only receive messages.
func NewConnection(ws *websocket.Conn, session *Session, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := session.config
	perMinute := max(1, cfg.Chat.RateLimit)
	return &Connection{
		ws:            ws,
		session:       session,
		send:          make(chan []byte, 256),
		commands:      rate.NewLimiter(rate.Limit(max(1, cfg.Server.TickRate)), commandBurst),
		chat:          rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), min(perMinute, 3)),
		maxChatLength: cfg.Chat.MaxMessageLength,
		logger:        logger,
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle(ctx context.Context) {
	// Set up connection parameters
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start read and write pumps
	go c.writePump(ctx)
	c.readPump(ctx) // Blocking
}

// readPump pumps messages from the WebSocket connection to the session
func (c *Connection) readPump(ctx context.Context) {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.logger.Debug("failed to parse client message", "error", err)
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		c.handleMessage(ctx, &clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			// Server shutting down
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(ctx context.Context, msg *network.ClientMessage) {
	c.logger.Debug("received message", "type", msg.Type)

	switch msg.Type {
	case network.MsgTypeJoin:
		c.handleJoin(ctx)
	case network.MsgTypeLeave:
		c.handleLeave()
	case network.MsgTypeChat:
		c.handleChat(msg.Payload)
	case network.MsgTypePing:
		c.handlePing()
	case network.MsgTypeClaimTile, network.MsgTypeReleaseTile, network.MsgTypePlaceBuilding,
		network.MsgTypeCancelBuild, network.MsgTypeEndTurn, network.MsgTypeRequestState:
		c.handleCommand(ctx, msg)
	default:
		c.SendError("unknown_message_type", "Unknown message type")
	}
}

// handleJoin handles player join requests
func (c *Connection) handleJoin(ctx context.Context) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Connection not authenticated")
		return
	}
	if c.joined {
		c.SendError("already_joined", "Already in the session")
		return
	}

	c.player.Connected = true
	c.player.ConnectedAt = time.Now()

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	welcome, err := c.session.Join(ctx, c.player, c)
	if errors.Is(err, ErrSessionFull) {
		c.SendError("session_full", "Session is full")
		return
	}
	if err != nil {
		c.logger.Error("failed to add player to session", "player", c.player.ID, "error", err)
		c.SendError("join_failed", "Failed to join session")
		return
	}
	c.joined = true

	c.SendMessage(&network.ServerMessage{Type: network.MsgTypeWelcome, Payload: welcome})
	c.session.BroadcastExcept(c, &network.ServerMessage{
		Type: network.MsgTypePlayerJoined,
		Payload: network.PlayerJoinedPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
			Email:    c.player.Email,
			OwnerID:  c.player.OwnerID,
		},
	})
}

// handleLeave handles player leave requests
func (c *Connection) handleLeave() {
	if c.player == nil || !c.joined {
		return
	}
	c.joined = false
	c.player.Connected = false
	c.player.LastSeen = time.Now()
	c.session.RemovePlayer(c.player.ID)

	c.session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypePlayerLeft,
		Payload: network.PlayerLeftPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handleChat handles chat messages
func (c *Connection) handleChat(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Must be authenticated to chat")
		return
	}

	var chatMsg network.ChatPayload
	if err := json.Unmarshal(payload, &chatMsg); err != nil {
		c.SendError("invalid_chat", "Invalid chat message")
		return
	}
	if chatMsg.Message == "" || utf8.RuneCountInString(chatMsg.Message) > c.maxChatLength {
		c.SendError("invalid_chat", "Message is empty or too long")
		return
	}
	if !c.chat.Allow() {
		c.SendError("rate_limited", "Too many chat messages")
		return
	}

	c.session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypeChatBroadcast,
		Payload: network.ChatBroadcastPayload{
			PlayerID:  c.player.ID,
			Username:  c.player.Username,
			Message:   chatMsg.Message,
			Timestamp: time.Now().Unix(),
		},
	})
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]any{"timestamp": time.Now().Unix()},
	})
}

// handleCommand runs a game command on the simulation goroutine.
func (c *Connection) handleCommand(ctx context.Context, msg *network.ClientMessage) {
	if !c.joined {
		c.SendError("not_joined", ErrNotJoined.Error())
		return
	}
	if !c.commands.Allow() {
		c.SendError("rate_limited", "Too many commands")
		return
	}
	fn, err := c.command(msg)
	if err != nil {
		c.SendError("invalid_payload", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := c.session.Exec(ctx, fn); err != nil {
		c.SendError(errorCode(err), err.Error())
	}
}

// command decodes msg into a function over the world.
func (c *Connection) command(msg *network.ClientMessage) (func(*game.World) error, error) {
	owner := c.player.OwnerID
	switch msg.Type {
	case network.MsgTypeClaimTile, network.MsgTypeReleaseTile:
		var p network.TilePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		at := hex.Axial{Q: p.Coord.Q, R: p.Coord.R}
		if msg.Type == network.MsgTypeReleaseTile {
			return func(w *game.World) error { return w.Release(owner, at) }, nil
		}
		return func(w *game.World) error { return w.ClaimTile(owner, at) }, nil

	case network.MsgTypePlaceBuilding:
		var p network.PlaceBuildingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		at := hex.Axial{Q: p.Coord.Q, R: p.Coord.R}
		return func(w *game.World) error {
			_, err := w.PlaceBuilding(owner, at, models.BuildingKind(p.Kind))
			return err
		}, nil

	case network.MsgTypeCancelBuild:
		var p network.CancelBuildingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(w *game.World) error {
			return w.CancelBuilding(owner, construction.JobID(p.JobID))
		}, nil

	case network.MsgTypeEndTurn:
		return func(w *game.World) error {
			_, _, err := c.session.VoteEndTurn(w, owner)
			return err
		}, nil

	case network.MsgTypeRequestState:
		return func(w *game.World) error {
			c.SendMessage(&network.ServerMessage{Type: network.MsgTypeState, Payload: State(w)})
			return nil
		}, nil
	}
	return nil, errors.New("unsupported command")
}

// errorCode maps command errors to wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNoTile), errors.Is(err, construction.ErrNoTile):
		return "no_tile"
	case errors.Is(err, game.ErrTileOwned), errors.Is(err, construction.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, game.ErrNotAdjacent):
		return "not_adjacent"
	case errors.Is(err, construction.ErrNotBuildable):
		return "not_buildable"
	case errors.Is(err, construction.ErrOccupied):
		return "occupied"
	case errors.Is(err, game.ErrUnknownBlueprint):
		return "unknown_building"
	case errors.Is(err, construction.ErrJobNotFound):
		return "job_not_found"
	case errors.Is(err, tick.ErrNotTurnBased):
		return "not_turn_based"
	case errors.Is(err, ErrSessionStopped):
		return "session_stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "command_failed"
	}
}

// SendMessage queues a message for the client. It drops the message when
// the buffer is full or the connection is closed.
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close leaves the session and closes the connection. It is safe to call
// more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.authenticated && c.player != nil {
			c.handleLeave()
		}

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		if c.ws != nil {
			c.ws.Close()
		}
	})
}
