package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// stubWindow gives tests direct control over the availability rule.
type stubWindow struct {
	open   bool
	expiry time.Time
}

func (w stubWindow) CanOpen(time.Time) bool { return w.open }

func (w stubWindow) CanWrite(conv *models.Conversation, now time.Time) bool {
	return conv.Status == models.ConversationOpen && !conv.Expired(now)
}

func (w stubWindow) ExpiryFor(time.Time) time.Time { return w.expiry }

// capturingPublisher records emitted envelopes by routing key.
type capturingPublisher struct {
	published map[string][]events.Envelope
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{published: make(map[string][]events.Envelope)}
}

func (p *capturingPublisher) Publish(ctx context.Context, key string, env events.Envelope) error {
	p.published[key] = append(p.published[key], env)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func setupConversationTest(t *testing.T, dbName string, window ChatWindow, publisher events.Publisher) (*mongo.Database, IConversationService, IQuoteService, IResponseService) {
	db, quoteSvc, responseSvc := setupQuoteTest(t, dbName, utils.RealClock{})
	convSvc := NewConversationService(db, window, utils.RealClock{}, quoteSvc, responseSvc, publisher)
	quoteSvc.SetConversationService(convSvc)
	require.NoError(t, convSvc.EnsureIndexes(context.Background()))
	return db, convSvc, quoteSvc, responseSvc
}

// acceptedQuote drives a fresh quote to the accepted stage and returns the
// carrier bound to it.
func acceptedQuote(t *testing.T, quoteSvc IQuoteService, responseSvc IResponseService, shipperID utils.SixID) (*models.Quote, utils.SixID) {
	ctx := context.Background()
	carrierID := utils.NewSixID()
	quote, err := quoteSvc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)
	response := submitResponse(t, responseSvc, quote.ID, carrierID, 3500)
	quote, err = quoteSvc.AcceptResponse(ctx, quote.ID, shipperID, response.ID)
	require.NoError(t, err)
	return quote, carrierID
}

func TestConversationService_OpenConversation(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_open", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, carrierID := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	// Only the shipper opens the channel.
	_, err := svc.OpenConversation(ctx, quote.ID, carrierID)
	assert.True(t, IsPermission(err))

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)
	assert.Equal(t, shipperID, conv.ShipperID)
	assert.Equal(t, carrierID, conv.CarrierID)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.True(t, conv.ExpiresAt.Equal(window.expiry))

	// Reopening returns the same conversation.
	again, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestConversationService_OpenRequiresAcceptance(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, _ := setupConversationTest(t, "testdb_conv_open_unaccepted", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()

	quote, err := quoteSvc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)

	_, err = svc.OpenConversation(ctx, quote.ID, shipperID)
	assert.True(t, IsValidation(err))
}

func TestConversationService_OpenOutsideBusinessHours(t *testing.T) {
	window := stubWindow{open: false, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_open_closed_window", window, events.NoopPublisher{})
	shipperID := utils.NewSixID()
	quote, _ := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	_, err := svc.OpenConversation(context.Background(), quote.ID, shipperID)
	assert.True(t, IsValidation(err))
}

func TestConversationService_MessagesAndUnread(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_messages", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, carrierID := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)

	// Strangers cannot write.
	_, err = svc.AppendMessage(ctx, conv.ID, utils.NewSixID(), "oi")
	assert.True(t, IsPermission(err))
	_, err = svc.AppendMessage(ctx, conv.ID, shipperID, "")
	assert.True(t, IsValidation(err))

	first, err := svc.AppendMessage(ctx, conv.ID, shipperID, "Coleta confirmada para amanhã?")
	require.NoError(t, err)
	assert.Equal(t, models.SenderShipper, first.SenderRole)
	second, err := svc.AppendMessage(ctx, conv.ID, shipperID, "Preciso da resposta hoje")
	require.NoError(t, err)

	conv, err = svc.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.CarrierUnread)
	assert.Equal(t, 0, conv.ShipperUnread)
	require.NotNil(t, conv.LastMessageAt)

	unread, err := svc.UnreadTotal(ctx, carrierID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	// Fetching the log flags the counterpart's messages delivered.
	messages, err := svc.ListMessages(ctx, conv.ID, carrierID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)

	// Reading one message leaves one unread.
	require.NoError(t, svc.MarkRead(ctx, conv.ID, carrierID, []utils.SixID{first.ID}))
	conv, err = svc.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.CarrierUnread)

	require.NoError(t, svc.MarkRead(ctx, conv.ID, carrierID, []utils.SixID{second.ID}))
	unread, err = svc.UnreadTotal(ctx, carrierID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestConversationService_SystemMessagesSkipCounters(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_system", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, carrierID := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)

	msg, err := svc.AppendSystemMessage(ctx, conv.ID, "embarcador entrou na conversa")
	require.NoError(t, err)
	assert.Equal(t, models.SenderSystem, msg.SenderRole)
	assert.True(t, msg.Read)

	conv, err = svc.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.ShipperUnread)
	assert.Equal(t, 0, conv.CarrierUnread)

	unread, err := svc.UnreadTotal(ctx, carrierID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestConversationService_ExpiryFlipsToReadOnly(t *testing.T) {
	// Expiry already in the past: the first access after it flips the status.
	window := stubWindow{open: true, expiry: time.Now().Add(-time.Second)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_expiry", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, _ := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)

	conv, err = svc.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationReadOnly, conv.Status)

	_, err = svc.AppendMessage(ctx, conv.ID, shipperID, "ainda está aí?")
	assert.True(t, IsValidation(err))

	// Read access survives expiry.
	_, err = svc.ListMessages(ctx, conv.ID, shipperID)
	assert.NoError(t, err)
}

func TestConversationService_MessagePublishesEvent(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	publisher := newCapturingPublisher()
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_events", window, publisher)
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, carrierID := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)

	message, err := svc.AppendMessage(ctx, conv.ID, shipperID, "Coleta confirmada?")
	require.NoError(t, err)

	envelopes := publisher.published[events.KeyMessageSent]
	require.Len(t, envelopes, 1)
	assert.Equal(t, events.KeyMessageSent, envelopes[0].Meta.Kind)
	payload, ok := envelopes[0].Payload.(events.MessageSent)
	require.True(t, ok)
	assert.Equal(t, conv.ID, payload.ConversationID)
	assert.Equal(t, message.ID, payload.MessageID)
	assert.Equal(t, models.SenderShipper, payload.SenderRole)
	assert.Equal(t, carrierID, payload.RecipientID)

	// System notices are side effects of presence, not chat traffic.
	_, err = svc.AppendSystemMessage(ctx, conv.ID, "embarcador entrou na conversa")
	require.NoError(t, err)
	assert.Len(t, publisher.published[events.KeyMessageSent], 1)
}

func TestConversationService_TerminalQuoteClosesChannel(t *testing.T) {
	window := stubWindow{open: true, expiry: time.Now().Add(6 * time.Hour)}
	_, svc, quoteSvc, responseSvc := setupConversationTest(t, "testdb_conv_close", window, events.NoopPublisher{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	quote, _ := acceptedQuote(t, quoteSvc, responseSvc, shipperID)

	conv, err := svc.OpenConversation(ctx, quote.ID, shipperID)
	require.NoError(t, err)

	_, err = quoteSvc.CancelQuote(ctx, quote.ID, shipperID, false)
	require.NoError(t, err)

	conv, err = svc.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, conv.Status)

	_, err = svc.AppendMessage(ctx, conv.ID, shipperID, "cancelei")
	assert.True(t, IsValidation(err))
}
