package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// Routing keys on the topic exchange.
const (
	KeyQuoteCreated       = "quote.created"
	KeyQuoteStatusChanged = "quote.status_changed"
	KeyMessageSent        = "conversation.message_sent"
)

// Meta identifies one emitted event.
type Meta struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
}

// Envelope wraps every published event.
type Envelope struct {
	Meta    Meta        `json:"meta"`
	Payload interface{} `json:"payload"`
}

// NewEnvelope stamps a payload with fresh meta.
func NewEnvelope(kind string, payload interface{}) Envelope {
	return Envelope{
		Meta: Meta{
			EventID:    uuid.NewString(),
			Kind:       kind,
			OccurredAt: time.Now().UTC(),
			Source:     "acheimeufrete-api",
		},
		Payload: payload,
	}
}

// QuoteCreated is emitted once when a shipper posts a quote. The notification
// fan-out worker uses it to evaluate carrier eligibility.
type QuoteCreated struct {
	QuoteID       utils.SixID `json:"quote_id"`
	ShipperID     utils.SixID `json:"shipper_id"`
	DestinationUF string      `json:"destination_uf"`
	GoodsCode     string      `json:"goods_code"`
	VisibleUntil  time.Time   `json:"visible_until"`
}

// QuoteStatusChanged is emitted on every executed transition.
type QuoteStatusChanged struct {
	QuoteID utils.SixID        `json:"quote_id"`
	From    models.QuoteStatus `json:"from"`
	To      models.QuoteStatus `json:"to"`
	Event   string             `json:"event"`
	At      time.Time          `json:"at"`
}

// MessageSent is emitted after a chat message is durably persisted.
type MessageSent struct {
	ConversationID utils.SixID       `json:"conversation_id"`
	MessageID      utils.SixID       `json:"message_id"`
	SenderRole     models.SenderRole `json:"sender_role"`
	RecipientID    utils.SixID       `json:"recipient_id"`
	SentAt         time.Time         `json:"sent_at"`
}
