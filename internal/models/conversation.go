package models

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ConversationStatus tracks whether a negotiation channel still accepts writes.
// read_only is reached lazily when the expiry is observed, closed when the
// quote hits a terminal state.
type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "open"
	ConversationReadOnly ConversationStatus = "read_only"
	ConversationClosed   ConversationStatus = "closed"
)

// Conversation is the single negotiation channel bound to a quote. It is
// created once by the shipper after acceptance and expires at midnight of its
// creation day in the platform timezone, permanently.
type Conversation struct {
	Base          `bson:",inline"`
	QuoteID       utils.SixID        `bson:"quote_id" json:"quote_id"`
	ShipperID     utils.SixID        `bson:"shipper_id" json:"shipper_id"`
	CarrierID     utils.SixID        `bson:"carrier_id" json:"carrier_id"`
	Status        ConversationStatus `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt     time.Time          `bson:"expires_at" json:"expires_at"`
	ShipperUnread int                `bson:"shipper_unread" json:"shipper_unread"`
	CarrierUnread int                `bson:"carrier_unread" json:"carrier_unread"`
	LastMessageAt *time.Time         `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
}

// Participant reports whether userID is one of the two bound participants.
func (c *Conversation) Participant(userID utils.SixID) bool {
	return c.ShipperID == userID || c.CarrierID == userID
}

// Counterpart returns the other bound participant.
func (c *Conversation) Counterpart(userID utils.SixID) utils.SixID {
	if c.ShipperID == userID {
		return c.CarrierID
	}
	return c.ShipperID
}

// Expired reports whether the hard per-day expiry has passed. Once true the
// conversation is read-only forever, regardless of later quote events.
func (c *Conversation) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// SenderRole distinguishes user messages from system notices. System messages
// never bump unread counters.
type SenderRole string

const (
	SenderShipper SenderRole = "embarcador"
	SenderCarrier SenderRole = "transportador"
	SenderSystem  SenderRole = "system"
)

// Message is one append-only chat entry.
type Message struct {
	Base           `bson:",inline"`
	ConversationID utils.SixID `bson:"conversation_id" json:"conversation_id"`
	SenderID       utils.SixID `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	SenderRole     SenderRole  `bson:"sender_role" json:"sender_role"`
	Body           string      `bson:"body" json:"body"`
	SentAt         time.Time   `bson:"sent_at" json:"sent_at"`
	Delivered      bool        `bson:"delivered" json:"delivered"`
	Read           bool        `bson:"read" json:"read"`
}
