package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/db"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ChatWindow is the availability rule gating conversation creation and
// writes. Satisfied by chat.AvailabilityWindow; an interface here keeps this
// package from importing the hub's package.
type ChatWindow interface {
	CanOpen(now time.Time) bool
	CanWrite(conv *models.Conversation, now time.Time) bool
	ExpiryFor(t time.Time) time.Time
}

// IConversationService owns the durable tier of the negotiation channel: the
// conversation record and its append-only message log. The volatile presence
// tier lives in the chat hub.
type IConversationService interface {
	OpenConversation(ctx context.Context, quoteID, shipperID utils.SixID) (*models.Conversation, error)
	FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error)
	FindByQuote(ctx context.Context, quoteID utils.SixID) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error)
	AppendMessage(ctx context.Context, conversationID, senderID utils.SixID, body string) (*models.Message, error)
	AppendSystemMessage(ctx context.Context, conversationID utils.SixID, body string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID utils.SixID, messageIDs []utils.SixID) error
	MarkDelivered(ctx context.Context, messageID utils.SixID) error
	CloseForQuote(ctx context.Context, quoteID utils.SixID) error
	UnreadTotal(ctx context.Context, userID utils.SixID) (int, error)
	EnsureIndexes(ctx context.Context) error
}

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type conversationService struct {
	db              *mongo.Database
	window          ChatWindow
	clock           utils.Clock
	quoteService    IQuoteService
	responseService IResponseService
	publisher       events.Publisher
}

// NewConversationService creates a new ConversationService.
func NewConversationService(database *mongo.Database, window ChatWindow, clock utils.Clock, quoteService IQuoteService, responseService IResponseService, publisher events.Publisher) IConversationService {
	return &conversationService{db: database, window: window, clock: clock, quoteService: quoteService, responseService: responseService, publisher: publisher}
}

// EnsureIndexes creates the unique quote index: one conversation per quote,
// ever.
func (s *conversationService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(conversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}
	return nil
}

// OpenConversation creates the quote's single negotiation channel. Only the
// shipper may open it, only after a response was accepted, and only inside
// the daily availability window. Calling it again returns the existing
// conversation unchanged.
func (s *conversationService) OpenConversation(ctx context.Context, quoteID, shipperID utils.SixID) (*models.Conversation, error) {
	quote, err := s.quoteService.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.ShipperID != shipperID {
		return nil, NewPermissionError("apenas o embarcador da cotação pode abrir o chat")
	}
	if !quote.Status.AcceptedOrLater() || quote.Status.Terminal() {
		return nil, NewValidationError("cotação em status %s não permite chat", quote.Status)
	}

	if existing, err := s.FindByQuote(ctx, quoteID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	if !s.window.CanOpen(now) {
		return nil, NewValidationError("chat disponível apenas durante o horário comercial da plataforma")
	}

	accepted, err := s.responseService.FindResponseByID(ctx, *quote.AcceptedResponseID)
	if err != nil {
		return nil, fmt.Errorf("quote %s references missing accepted response: %w", quoteID.String(), err)
	}

	conv := &models.Conversation{
		QuoteID:   quoteID,
		ShipperID: shipperID,
		CarrierID: accepted.CarrierID,
		Status:    models.ConversationOpen,
		CreatedAt: now.UTC(),
		ExpiresAt: s.window.ExpiryFor(now),
	}
	operation := func() error {
		conv.GenID()
		_, insertErr := s.db.Collection(conversationsCollection).InsertOne(ctx, conv)
		return insertErr
	}
	if err := db.WithRetries(operation, 0, db.IsMongoDuplicateKeyError); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			// Lost a create race; the existing one wins.
			return s.FindByQuote(ctx, quoteID)
		}
		return nil, fmt.Errorf("failed to create conversation for quote %s: %w", quoteID.String(), err)
	}
	return conv, nil
}

func (s *conversationService) FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	return s.load(ctx, bson.M{"_id": conversationID})
}

func (s *conversationService) FindByQuote(ctx context.Context, quoteID utils.SixID) (*models.Conversation, error) {
	return s.load(ctx, bson.M{"quote_id": quoteID})
}

// load fetches a conversation and lazily flips it to read-only if its expiry
// has passed. Expiry is discovered on access, never by a timer.
func (s *conversationService) load(ctx context.Context, filter bson.M) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Collection(conversationsCollection).FindOne(ctx, filter).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding conversation: %w", err)
	}
	if conv.Status == models.ConversationOpen && conv.Expired(s.clock.Now()) {
		_, err := s.db.Collection(conversationsCollection).UpdateOne(ctx,
			bson.M{"_id": conv.ID, "status": models.ConversationOpen},
			bson.M{"$set": bson.M{"status": models.ConversationReadOnly}})
		if err != nil {
			return nil, fmt.Errorf("failed to mark conversation %s read-only: %w", conv.ID.String(), err)
		}
		conv.Status = models.ConversationReadOnly
	}
	return &conv, nil
}

// ListMessages returns the full log in persistence order. Messages addressed
// to the reader are flagged delivered, since they have now been fetched.
func (s *conversationService) ListMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error) {
	conv, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Participant(userID) {
		return nil, NewPermissionError("usuário não participa desta conversa")
	}

	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing messages for conversation %s: %w", conversationID.String(), err)
	}
	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("error decoding messages: %w", err)
	}

	_, err = s.db.Collection(messagesCollection).UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_id": bson.M{"$ne": userID}, "delivered": false},
		bson.M{"$set": bson.M{"delivered": true}})
	if err != nil {
		return nil, fmt.Errorf("error flagging delivered messages: %w", err)
	}
	return messages, nil
}

// AppendMessage durably persists one message. This is the write the
// availability window gates; the caller only broadcasts after it returns.
func (s *conversationService) AppendMessage(ctx context.Context, conversationID, senderID utils.SixID, body string) (*models.Message, error) {
	if body == "" {
		return nil, NewValidationError("mensagem vazia")
	}
	conv, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Participant(senderID) {
		return nil, NewPermissionError("usuário não participa desta conversa")
	}
	now := s.clock.Now()
	if !s.window.CanWrite(conv, now) {
		return nil, NewValidationError("conversa expirada, somente leitura")
	}

	role := models.SenderCarrier
	unreadField := "shipper_unread"
	if conv.ShipperID == senderID {
		role = models.SenderShipper
		unreadField = "carrier_unread"
	}

	message, err := s.insertMessage(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     role,
		Body:           body,
		SentAt:         now.UTC(),
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{unreadField: 1}, "$set": bson.M{"last_message_at": message.SentAt}})
	if err != nil {
		return nil, fmt.Errorf("failed to update unread counter on conversation %s: %w", conversationID.String(), err)
	}

	s.emit(ctx, events.KeyMessageSent, events.NewEnvelope(events.KeyMessageSent, events.MessageSent{
		ConversationID: conversationID,
		MessageID:      message.ID,
		SenderRole:     role,
		RecipientID:    conv.Counterpart(senderID),
		SentAt:         message.SentAt,
	}))
	return message, nil
}

func (s *conversationService) emit(ctx context.Context, key string, env events.Envelope) {
	if err := s.publisher.Publish(ctx, key, env); err != nil {
		log.Printf("Failed to publish %s: %v", key, err)
	}
}

// AppendSystemMessage records presence notices. System messages bypass the
// window (they are a side effect of join/leave, not user writes) and never
// touch unread counters.
func (s *conversationService) AppendSystemMessage(ctx context.Context, conversationID utils.SixID, body string) (*models.Message, error) {
	if _, err := s.FindByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.insertMessage(ctx, &models.Message{
		ConversationID: conversationID,
		SenderRole:     models.SenderSystem,
		Body:           body,
		SentAt:         s.clock.Now().UTC(),
		Delivered:      true,
		Read:           true,
	})
}

func (s *conversationService) insertMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	operation := func() error {
		message.GenID()
		_, insertErr := s.db.Collection(messagesCollection).InsertOne(ctx, message)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to persist message in conversation %s: %w", message.ConversationID.String(), err)
	}
	return message, nil
}

// MarkRead flips read flags on the given messages and recomputes the
// reader's unread counter from the log (the log is authoritative).
func (s *conversationService) MarkRead(ctx context.Context, conversationID, readerID utils.SixID, messageIDs []utils.SixID) error {
	conv, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(readerID) {
		return NewPermissionError("usuário não participa desta conversa")
	}
	if len(messageIDs) == 0 {
		return nil
	}

	_, err = s.db.Collection(messagesCollection).UpdateMany(ctx,
		bson.M{
			"_id":             bson.M{"$in": messageIDs},
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": readerID},
			"sender_role":     bson.M{"$ne": models.SenderSystem},
		},
		bson.M{"$set": bson.M{"read": true, "delivered": true}})
	if err != nil {
		return fmt.Errorf("failed to mark messages read in conversation %s: %w", conversationID.String(), err)
	}

	remaining, err := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"sender_role":     bson.M{"$ne": models.SenderSystem},
		"read":            false,
	})
	if err != nil {
		return fmt.Errorf("failed to count unread messages: %w", err)
	}
	unreadField := "carrier_unread"
	if conv.ShipperID == readerID {
		unreadField = "shipper_unread"
	}
	_, err = s.db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{unreadField: remaining}})
	if err != nil {
		return fmt.Errorf("failed to reset unread counter: %w", err)
	}
	return nil
}

// MarkDelivered flags a message as handed to a live counterpart connection.
func (s *conversationService) MarkDelivered(ctx context.Context, messageID utils.SixID) error {
	_, err := s.db.Collection(messagesCollection).UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"delivered": true}})
	if err != nil {
		return fmt.Errorf("failed to mark message %s delivered: %w", messageID.String(), err)
	}
	return nil
}

// CloseForQuote permanently closes the quote's channel, if one exists. Driven
// by terminal quote transitions.
func (s *conversationService) CloseForQuote(ctx context.Context, quoteID utils.SixID) error {
	_, err := s.db.Collection(conversationsCollection).UpdateMany(ctx,
		bson.M{"quote_id": quoteID, "status": bson.M{"$ne": models.ConversationClosed}},
		bson.M{"$set": bson.M{"status": models.ConversationClosed}})
	if err != nil {
		return fmt.Errorf("failed to close conversation for quote %s: %w", quoteID.String(), err)
	}
	return nil
}

// UnreadTotal sums the caller's unread counters across all conversations.
func (s *conversationService) UnreadTotal(ctx context.Context, userID utils.SixID) (int, error) {
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, bson.M{
		"$or": []bson.M{{"shipper_id": userID}, {"carrier_id": userID}},
	})
	if err != nil {
		return 0, fmt.Errorf("error listing conversations for user %s: %w", userID.String(), err)
	}
	var convs []models.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return 0, fmt.Errorf("error decoding conversations: %w", err)
	}
	total := 0
	for _, conv := range convs {
		if conv.ShipperID == userID {
			total += conv.ShipperUnread
		} else {
			total += conv.CarrierUnread
		}
	}
	return total, nil
}
