package chat

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ConversationStore is the durable tier the hub writes through. Messages are
// persisted here before any broadcast; the hub itself holds no message state.
type ConversationStore interface {
	FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, senderID utils.SixID, body string) (*models.Message, error)
	AppendSystemMessage(ctx context.Context, conversationID utils.SixID, body string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID utils.SixID, messageIDs []utils.SixID) error
	MarkDelivered(ctx context.Context, messageID utils.SixID) error
}

// Hub tracks live connections per conversation. Everything in here is
// volatile: a restart loses presence, never messages.
type Hub struct {
	store ConversationStore
	mu    sync.RWMutex
	rooms map[utils.SixID]map[*Client]bool
	// sendMu serializes persist+broadcast per conversation so the room sees
	// messages in commit order. Entries live for the hub's lifetime.
	sendMu map[utils.SixID]*sync.Mutex
}

func NewHub(store ConversationStore) *Hub {
	return &Hub{
		store:  store,
		rooms:  make(map[utils.SixID]map[*Client]bool),
		sendMu: make(map[utils.SixID]*sync.Mutex),
	}
}

func (h *Hub) sendLock(conversationID utils.SixID) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.sendMu[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		h.sendMu[conversationID] = lock
	}
	return lock
}

// Join attaches the client to a conversation room. Participation is checked
// against the conversation record, and the join is announced both as a
// volatile presence event and a persisted system message.
func (h *Hub) Join(ctx context.Context, client *Client, conversationID utils.SixID) error {
	conv, err := h.store.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(client.userID) {
		return services.NewPermissionError("usuário não participa desta conversa")
	}

	h.mu.Lock()
	if client.conversationID != (utils.SixID{}) && client.conversationID != conversationID {
		h.detachLocked(client)
	}
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[conversationID] = room
	}
	room[client] = true
	client.conversationID = conversationID
	h.mu.Unlock()

	if _, err := h.store.AppendSystemMessage(ctx, conversationID, fmt.Sprintf("%s entrou na conversa", client.userName)); err != nil {
		log.Printf("chat: failed to persist join notice for conversation %s: %v", conversationID.String(), err)
	}
	h.broadcast(conversationID, client, ServerEvent{
		Type:           EventUserOnline,
		ConversationID: conversationID.String(),
		UserID:         client.userID.String(),
		UserName:       client.userName,
	})
	client.sendEvent(ServerEvent{Type: EventJoined, ConversationID: conversationID.String()})
	return nil
}

// Send persists the message and only then fans it out. If any counterpart
// session is in the room the message is immediately flagged delivered.
// Concurrent sends in the same conversation are serialized: a later commit
// must not reach the room before an earlier one.
func (h *Hub) Send(ctx context.Context, client *Client, body string) error {
	conversationID := client.conversationID
	if conversationID == (utils.SixID{}) {
		return services.NewValidationError("entre em uma conversa antes de enviar mensagens")
	}

	lock := h.sendLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	message, err := h.store.AppendMessage(ctx, conversationID, client.userID, body)
	if err != nil {
		return err
	}

	if h.counterpartPresent(conversationID, client.userID) {
		if err := h.store.MarkDelivered(ctx, message.ID); err != nil {
			log.Printf("chat: failed to flag message %s delivered: %v", message.ID.String(), err)
		} else {
			message.Delivered = true
		}
	}

	event := ServerEvent{
		Type:           EventNewMessage,
		ConversationID: conversationID.String(),
		Message:        message,
	}
	h.broadcast(conversationID, nil, event)
	return nil
}

// MarkRead records read receipts and echoes them to the counterpart's live
// sessions so sender UIs can flip their ticks.
func (h *Hub) MarkRead(ctx context.Context, client *Client, messageIDs []utils.SixID) error {
	conversationID := client.conversationID
	if conversationID == (utils.SixID{}) {
		return services.NewValidationError("entre em uma conversa antes de marcar mensagens")
	}
	if err := h.store.MarkRead(ctx, conversationID, client.userID, messageIDs); err != nil {
		return err
	}

	ids := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		ids = append(ids, id.String())
	}
	h.broadcast(conversationID, client, ServerEvent{
		Type:           EventMessagesRead,
		ConversationID: conversationID.String(),
		UserID:         client.userID.String(),
		MessageIDs:     ids,
	})
	return nil
}

// Typing relays a typing indicator. Volatile only, nothing is persisted.
func (h *Hub) Typing(client *Client, typing bool) {
	conversationID := client.conversationID
	if conversationID == (utils.SixID{}) {
		return
	}
	h.broadcast(conversationID, client, ServerEvent{
		Type:           EventUserTyping,
		ConversationID: conversationID.String(),
		UserID:         client.userID.String(),
		UserName:       client.userName,
		Typing:         typing,
	})
}

// Leave detaches the client and announces the departure. Explicit leave and
// dropped connections take the same path.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	conversationID := client.conversationID
	h.detachLocked(client)
	h.mu.Unlock()

	if conversationID == (utils.SixID{}) {
		return
	}
	if _, err := h.store.AppendSystemMessage(context.Background(), conversationID, fmt.Sprintf("%s saiu da conversa", client.userName)); err != nil {
		log.Printf("chat: failed to persist leave notice for conversation %s: %v", conversationID.String(), err)
	}
	h.broadcast(conversationID, client, ServerEvent{
		Type:           EventUserOffline,
		ConversationID: conversationID.String(),
		UserID:         client.userID.String(),
		UserName:       client.userName,
	})
}

func (h *Hub) detachLocked(client *Client) {
	room, ok := h.rooms[client.conversationID]
	if ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.conversationID)
		}
	}
	client.conversationID = utils.SixID{}
}

func (h *Hub) counterpartPresent(conversationID, userID utils.SixID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[conversationID] {
		if client.userID != userID {
			return true
		}
	}
	return false
}

// broadcast fans an event out to the room, skipping exclude. Slow clients
// with a full send buffer are dropped rather than allowed to stall the room.
func (h *Hub) broadcast(conversationID utils.SixID, exclude *Client, event ServerEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		if client != exclude {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.sendEvent(event)
	}
}
