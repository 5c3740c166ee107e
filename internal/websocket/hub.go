package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/internal/jobs"
	"github.com/satriahrh/mathvoice/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed for one speak request, synthesis included.
	speakTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Speaker composes speech text and streams its audio
type Speaker interface {
	Speak(ctx context.Context, text, latex, voice string) (string, <-chan repositories.AudioChunk, error)
	AudioContentType() string
}

var _ Speaker = (*usecase.NarrationService)(nil)

// Hub maintains the set of active clients and broadcasts messages to the clients.
type Hub struct {
	// Registered clients, keyed by connection ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	speaker Speaker
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(speaker Speaker, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		speaker:    speaker,
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done and
// disconnects every remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("connectionID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("connectionID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a JSON message to every client. Clients whose send
// buffer is full miss the message.
func (h *Hub) Broadcast(message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dropping broadcast for slow client", zap.String("connectionID", client.id))
		}
	}
	return nil
}

// ForwardJobEvents broadcasts job events until ctx is done or events closes
func (h *Hub) ForwardJobEvents(ctx context.Context, events <-chan jobs.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			err := h.Broadcast(&JobEventMessage{
				BaseMessage: BaseMessage{
					Type:      MessageTypeJobEvent,
					Timestamp: event.Timestamp.Format(time.RFC3339),
				},
				JobID:  string(event.JobID),
				StepID: string(event.StepID),
				Event:  event.Type,
				Data:   event.Data,
			})
			if err != nil {
				h.logger.Error("Failed to broadcast job event",
					zap.String("jobID", string(event.JobID)),
					zap.Error(err))
			}
		}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Connection ID for this client
	id string

	logger    *zap.Logger
	validator *MessageValidator

	// Cancelled when the connection goes away.
	ctx    context.Context
	cancel context.CancelFunc

	// Serializes speak requests so their audio never interleaves.
	speakMu sync.Mutex
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		id:        id,
		logger:    logger.With(zap.String("connectionID", id)),
		validator: NewMessageValidator(),
		ctx:       ctx,
		cancel:    cancel,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
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
			c.processMessage(message)
		default:
			c.sendJSON(CreateErrorMessage("", ErrorCodeInvalidMessage, "only JSON text messages are accepted", ""))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue hands data to writePump unless the connection is gone
func (c *Client) enqueue(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) sendJSON(message interface{}) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// processMessage processes incoming messages from the peer
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("", ErrorCodeInvalidMessage, "invalid message", err.Error()))
		return
	}

	switch msg := msg.(type) {
	case *SpeakMessage:
		go c.handleSpeak(msg)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// handleSpeak sends speech_text, the audio as binary frames, then speaking_end.
// A broken audio stream ends with an error message instead.
func (c *Client) handleSpeak(msg *SpeakMessage) {
	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, speakTimeout)
	defer cancel()

	requestID := msg.RequestID
	speech, audio, err := c.hub.speaker.Speak(ctx, msg.Text, msg.Latex, msg.Voice)
	if err != nil {
		code := ErrorCodeSpeechFailed
		if errors.Is(err, usecase.ErrNothingToNarrate) {
			code = ErrorCodeNothingToSay
		}
		c.logger.Error("Failed to speak", zap.String("requestID", requestID), zap.Error(err))
		c.sendJSON(CreateErrorMessage(requestID, code, "failed to narrate", err.Error()))
		return
	}

	if !c.sendJSON(CreateSpeechTextMessage(requestID, speech, c.hub.speaker.AudioContentType())) {
		return
	}

	chunks, size := 0, 0
	for {
		select {
		case chunk, ok := <-audio:
			if !ok {
				c.logger.Info("Finished speaking",
					zap.String("requestID", requestID),
					zap.Int("chunks", chunks),
					zap.Int("bytes", size))
				c.sendJSON(CreateSpeakingEndMessage(requestID, chunks, size))
				return
			}
			if chunk.Err != nil {
				c.logger.Error("Audio stream failed",
					zap.String("requestID", requestID),
					zap.Int("chunks", chunks),
					zap.Int("bytes", size),
					zap.Error(chunk.Err))
				c.sendJSON(CreateErrorMessage(requestID, ErrorCodeSpeechFailed, "speech interrupted", chunk.Err.Error()))
				return
			}
			if !c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: chunk.Data}) {
				return
			}
			chunks++
			size += len(chunk.Data)

		case <-ctx.Done():
			c.sendJSON(CreateErrorMessage(requestID, ErrorCodeSpeechFailed, "speech interrupted", ctx.Err().Error()))
			return
		}
	}
}
