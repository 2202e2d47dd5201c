// Package websocket hosts the per-client session gateway. Each connected
// client gets its own session service; text frames carry commands, binary
// frames carry caller audio, and session events stream back as JSON frames.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/almawell/alma/adapters/tts"
	"github.com/almawell/alma/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Sessions with no committed turn for this long are force-ended.
	idleTimeout = 30 * time.Minute

	sweepPeriod = time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// AudioIngest accepts raw caller audio frames. The Google recognizer
// implements it; mocks ignore the frames.
type AudioIngest interface {
	WriteAudio(data []byte) error
}

// SessionFactory builds the per-client session service and its audio ingest.
// The sink receives the synthesized audio for that client.
type SessionFactory func(ctx context.Context, sink tts.AudioSink) (*usecase.SessionService, AudioIngest, error)

// Hub maintains the set of active clients and sweeps idle sessions.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	factory SessionFactory
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(factory SessionFactory, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		factory:    factory,
		logger:     logger,
	}
}

// Run starts the hub's main loop: registration bookkeeping plus the idle
// session sweep.
func (h *Hub) Run(ctx context.Context) {
	sweep := time.NewTicker(sweepPeriod)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientId", client.id),
				zap.String("userId", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			client.cancel()
			h.logger.Info("Client unregistered",
				zap.String("clientId", client.id),
				zap.String("userId", client.userID))

		case <-sweep.C:
			h.sweepIdle()
		}
	}
}

// sweepIdle force-ends sessions that have gone quiet. The session service
// finalizes and persists as usual; the client sees a session_finalized frame.
func (h *Hub) sweepIdle() {
	cutoff := time.Now().Add(-idleTimeout).Unix()

	h.mu.RLock()
	var stale []*Client
	for _, client := range h.clients {
		if client.lastActivity.Load() < cutoff {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Info("Ending idle session",
			zap.String("clientId", client.id),
			zap.String("userId", client.userID))
		client.service.EndSession()
		client.touch()
	}
}

// WriteData is one outbound websocket frame
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is the gateway between one websocket connection and its session
type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan WriteData

	id     string
	userID string

	service *usecase.SessionService
	ingest  AudioIngest
	cancel  context.CancelFunc

	validator *MessageValidator
	logger    *zap.Logger

	// Unix time of the last command or committed turn, for the idle sweep.
	lastActivity atomic.Int64
}

// HandleWebSocket upgrades an authenticated request and runs a session for it.
// The caller has already validated the user's token.
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		id:        uuid.NewString(),
		userID:    userID,
		cancel:    cancel,
		validator: NewMessageValidator(),
		logger:    logger.With(zap.String("userId", userID)),
	}
	client.touch()

	service, ingest, err := hub.factory(ctx, client)
	if err != nil {
		logger.Error("Failed to build session", zap.Error(err))
		cancel()
		conn.Close()
		return err
	}
	client.service = service
	client.ingest = ingest

	client.hub.register <- client

	go client.writePump()
	go client.eventPump(ctx)
	go client.runSession(ctx)
	go client.readPump()

	return nil
}

// runSession drives the session loop. Connection loss cancels the context,
// which finalizes and persists the session on the way out.
func (c *Client) runSession(ctx context.Context) {
	record, err := c.service.Run(ctx, c.userID)
	if err != nil {
		c.logger.Error("Session ended with error",
			zap.String("sessionId", record.ID.Hex()),
			zap.Error(err))
		return
	}
	c.logger.Info("Session ended",
		zap.String("sessionId", record.ID.Hex()),
		zap.Int("turns", len(record.Transcript)))
}

// WriteAudio implements tts.AudioSink: synthesized audio reaches the client
// as binary frames.
func (c *Client) WriteAudio(ctx context.Context, chunk []byte) error {
	data := make([]byte, len(chunk))
	copy(data, chunk)
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump pumps frames from the websocket connection into the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processCommand(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// eventPump translates session events into outbound frames
func (c *Client) eventPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.service.Events():
			if frame := c.translateEvent(ev); frame != nil {
				c.sendEvent(frame)
			}
		}
	}
}

func (c *Client) translateEvent(ev usecase.SessionEvent) *EventMessage {
	switch ev.Kind {
	case usecase.SessionEventPhase:
		frame := NewEventMessage(MessageTypePhase)
		frame.Phase = string(ev.Phase)
		return frame

	case usecase.SessionEventPartial:
		frame := NewEventMessage(MessageTypePartial)
		frame.Text = ev.Text
		return frame

	case usecase.SessionEventTurn:
		c.touch()
		frame := NewEventMessage(MessageTypeTurn)
		frame.Role = string(ev.Role)
		frame.Text = ev.Text
		return frame

	case usecase.SessionEventCrisis:
		frame := NewEventMessage(MessageTypeCrisis)
		frame.Text = ev.Text
		return frame

	case usecase.SessionEventMicUnavailable:
		return NewEventMessage(MessageTypeMicUnavailable)

	case usecase.SessionEventBreathing:
		frame := NewEventMessage(MessageTypeBreathing)
		frame.Breathing = ev.Breathing
		return frame

	case usecase.SessionEventFinalized:
		frame := NewEventMessage(MessageTypeFinalized)
		frame.Session = ev.Record
		return frame

	case usecase.SessionEventError:
		return CreateErrorMessage("SESSION_ERROR", ev.Err.Error())
	}
	return nil
}

// processCommand validates one text frame and routes it to the session
func (c *Client) processCommand(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid command frame", zap.Error(err))
		c.sendEvent(CreateErrorMessage("INVALID_MESSAGE", err.Error()))
		return
	}
	c.touch()

	switch msg.Type {
	case MessageTypeStartListening:
		c.service.StartListening()
	case MessageTypeStopListening:
		c.service.StopListening()
	case MessageTypeTextInput:
		c.service.SubmitText(msg.Text)
	case MessageTypeEndSession:
		c.service.EndSession()
	case MessageTypeDismissCrisis:
		c.service.DismissCrisis()
	case MessageTypeBreathingStart:
		c.service.StartBreathing()
	case MessageTypeBreathingSkip:
		c.service.SkipBreathing()
	case MessageTypePing:
		c.sendEvent(NewEventMessage(MessageTypePong))
	}
}

// processAudioFrame feeds one binary frame into the recognizer
func (c *Client) processAudioFrame(data []byte) {
	if c.ingest == nil {
		return
	}
	if err := c.ingest.WriteAudio(data); err != nil {
		c.logger.Warn("Failed to forward audio frame", zap.Error(err))
	}
}

func (c *Client) sendEvent(event *EventMessage) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("Failed to marshal event frame", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Client send buffer full, dropping frame",
			zap.String("type", string(event.Type)))
	}
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().Unix())
}
