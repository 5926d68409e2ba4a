package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// Client event types.
const (
	ActionJoin     = "join-cotacao"
	ActionSend     = "send-message"
	ActionMarkRead = "mark-as-read"
	ActionTyping   = "user-typing"
)

// Server event types.
const (
	EventJoined       = "joined"
	EventNewMessage   = "new-message"
	EventMessagesRead = "messages-read"
	EventUserOnline   = "user-online"
	EventUserOffline  = "user-offline"
	EventUserTyping   = "user-typing"
	EventError        = "error"
)

// ClientEvent is the inbound frame. Fields beyond Type are action-specific.
type ClientEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Body           string   `json:"body,omitempty"`
	MessageIDs     []string `json:"message_ids,omitempty"`
	Typing         bool     `json:"typing,omitempty"`
}

// ServerEvent is the outbound frame.
type ServerEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	UserName       string          `json:"user_name,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	MessageIDs     []string        `json:"message_ids,omitempty"`
	Typing         bool            `json:"typing,omitempty"`
	Error          string          `json:"error,omitempty"`
	Detail         string          `json:"detail,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 32
)

// Client is one authenticated websocket connection. A client sits in at most
// one conversation room at a time.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	userID         utils.SixID
	userName       string
	conversationID utils.SixID
	send           chan []byte
	done           chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID utils.SixID, userName string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		userName: userName,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Run pumps the connection until it drops. Blocks; call from the upgrade
// handler's goroutine.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Leave(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("chat: websocket error for user %s: %v", c.userID.String(), err)
			}
			return
		}
		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.sendError("invalid_payload", "mensagem inválida")
			continue
		}
		c.handle(ctx, event)
	}
}

func (c *Client) handle(ctx context.Context, event ClientEvent) {
	switch event.Type {
	case ActionJoin:
		conversationID, err := utils.ParseSixID(event.ConversationID)
		if err != nil {
			c.sendError("invalid_payload", "conversation_id inválido")
			return
		}
		if err := c.hub.Join(ctx, c, conversationID); err != nil {
			c.sendServiceError(err)
		}
	case ActionSend:
		if err := c.hub.Send(ctx, c, event.Body); err != nil {
			c.sendServiceError(err)
		}
	case ActionMarkRead:
		ids := make([]utils.SixID, 0, len(event.MessageIDs))
		for _, raw := range event.MessageIDs {
			id, err := utils.ParseSixID(raw)
			if err != nil {
				c.sendError("invalid_payload", "message_ids inválido")
				return
			}
			ids = append(ids, id)
		}
		if err := c.hub.MarkRead(ctx, c, ids); err != nil {
			c.sendServiceError(err)
		}
	case ActionTyping:
		c.hub.Typing(c, event.Typing)
	default:
		c.sendError("unknown_event", "tipo de evento desconhecido")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent queues an event without blocking. A full buffer means the reader
// is stuck; the frame is dropped and the ping cycle will reap the connection.
func (c *Client) sendEvent(event ServerEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat: failed to marshal %s event: %v", event.Type, err)
		return
	}
	select {
	case c.send <- raw:
	case <-c.done:
	default:
		log.Printf("chat: dropping %s event for slow client %s", event.Type, c.userID.String())
	}
}

func (c *Client) sendError(code, detail string) {
	c.sendEvent(ServerEvent{Type: EventError, Error: code, Detail: detail})
}

func (c *Client) sendServiceError(err error) {
	switch {
	case services.IsPermission(err):
		c.sendError("permission_denied", err.Error())
	case services.IsValidation(err):
		c.sendError("validation_error", err.Error())
	case services.IsConflict(err):
		c.sendError("conflict", err.Error())
	default:
		log.Printf("chat: internal error for user %s: %v", c.userID.String(), err)
		c.sendError("internal_error", "erro interno")
	}
}
