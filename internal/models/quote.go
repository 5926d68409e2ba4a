package models

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// Money defines the structure for monetary values.
type Money struct {
	Value        float64 `bson:"value" json:"value"`
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
}

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteStatusOpen                QuoteStatus = "open"
	QuoteStatusVisualized          QuoteStatus = "visualized"
	QuoteStatusInProgress          QuoteStatus = "in_progress"
	QuoteStatusAccepted            QuoteStatus = "accepted"
	QuoteStatusAwaitingPayment     QuoteStatus = "awaiting_payment"
	QuoteStatusAwaitingCollection  QuoteStatus = "awaiting_collection"
	QuoteStatusCollected           QuoteStatus = "collected"
	QuoteStatusInTransit           QuoteStatus = "in_transit"
	QuoteStatusAwaitingCteApproval QuoteStatus = "awaiting_cte_approval"
	QuoteStatusFinalized           QuoteStatus = "finalized"
	QuoteStatusExpired             QuoteStatus = "expired"
	QuoteStatusCancelled           QuoteStatus = "cancelled"
)

// quoteTransitions is the forward edge set of the lifecycle graph. The two
// terminal states expired/cancelled are handled separately: cancelled is
// reachable from any non-terminal state, expired only from respondable ones.
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusOpen:                {QuoteStatusVisualized, QuoteStatusInProgress},
	QuoteStatusVisualized:          {QuoteStatusInProgress},
	QuoteStatusInProgress:          {QuoteStatusAccepted},
	QuoteStatusAccepted:            {QuoteStatusAwaitingPayment},
	QuoteStatusAwaitingPayment:     {QuoteStatusAwaitingCollection},
	QuoteStatusAwaitingCollection:  {QuoteStatusCollected},
	QuoteStatusCollected:           {QuoteStatusInTransit},
	QuoteStatusInTransit:           {QuoteStatusAwaitingCteApproval},
	QuoteStatusAwaitingCteApproval: {QuoteStatusFinalized},
}

// Terminal reports whether no further transition may leave this status.
func (s QuoteStatus) Terminal() bool {
	return s == QuoteStatusFinalized || s == QuoteStatusExpired || s == QuoteStatusCancelled
}

// Respondable reports whether carriers may still submit responses.
func (s QuoteStatus) Respondable() bool {
	return s == QuoteStatusOpen || s == QuoteStatusVisualized || s == QuoteStatusInProgress
}

// AcceptedOrLater reports whether the quote has passed acceptance. Statuses in
// this set are exactly the ones where AcceptedResponseID must be non-nil.
func (s QuoteStatus) AcceptedOrLater() bool {
	switch s {
	case QuoteStatusAccepted, QuoteStatusAwaitingPayment, QuoteStatusAwaitingCollection,
		QuoteStatusCollected, QuoteStatusInTransit, QuoteStatusAwaitingCteApproval,
		QuoteStatusFinalized:
		return true
	}
	return false
}

// CanTransitionTo validates an edge of the lifecycle graph.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	if next == QuoteStatusCancelled {
		return !s.Terminal()
	}
	if next == QuoteStatusExpired {
		return s.Respondable()
	}
	for _, t := range quoteTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// StatusChange records one executed transition on a quote.
type StatusChange struct {
	From  QuoteStatus `bson:"from" json:"from"`
	To    QuoteStatus `bson:"to" json:"to"`
	Event string      `bson:"event" json:"event"`
	At    time.Time   `bson:"at" json:"at"`
}

// CargoDetails describes what is being shipped.
type CargoDetails struct {
	Description   string  `bson:"description" json:"description"`
	WeightKg      float64 `bson:"weight_kg" json:"weight_kg"`
	WidthCm       float64 `bson:"width_cm" json:"width_cm"`
	HeightCm      float64 `bson:"height_cm" json:"height_cm"`
	LengthCm      float64 `bson:"length_cm" json:"length_cm"`
	DeclaredValue Money   `bson:"declared_value" json:"declared_value"`
	GoodsCode     string  `bson:"goods_code" json:"goods_code"` // NCM classification
}

// TrackingEvent is a carrier-reported position update while in transit.
type TrackingEvent struct {
	Description string    `bson:"description" json:"description"`
	City        string    `bson:"city,omitempty" json:"city,omitempty"`
	UF          string    `bson:"uf,omitempty" json:"uf,omitempty"`
	At          time.Time `bson:"at" json:"at"`
}

// Quote represents one shipment request posted by a shipper.
// Quotes are never hard-deleted; they terminate via status only.
type Quote struct {
	Base            `bson:",inline"`
	ShipperID       utils.SixID  `bson:"shipper_id" json:"shipper_id"`
	OriginZip       string       `bson:"origin_zip" json:"origin_zip"`
	OriginCity      string       `bson:"origin_city" json:"origin_city"`
	OriginUF        string       `bson:"origin_uf" json:"origin_uf"`
	DestinationZip  string       `bson:"destination_zip" json:"destination_zip"`
	DestinationCity string       `bson:"destination_city" json:"destination_city"`
	DestinationUF   string       `bson:"destination_uf" json:"destination_uf"` // region used by coverage matching
	CollectionAt    time.Time    `bson:"collection_at" json:"collection_at"`
	Cargo           CargoDetails `bson:"cargo" json:"cargo"`

	Status             QuoteStatus  `bson:"status" json:"status"`
	AcceptedResponseID *utils.SixID `bson:"accepted_response_id,omitempty" json:"accepted_response_id,omitempty"`
	ResponseCount      int          `bson:"response_count" json:"response_count"` // denormalized

	// CollectionCode is issued when payment is approved and must be echoed
	// back by the carrier at pickup. Never serialized to carriers.
	CollectionCode string `bson:"collection_code,omitempty" json:"-"`

	DocumentKey  string          `bson:"document_key,omitempty" json:"document_key,omitempty"` // S3 key of CT-e/CIOT
	DocumentType string          `bson:"document_type,omitempty" json:"document_type,omitempty"`
	ProofKey     string          `bson:"proof_key,omitempty" json:"proof_key,omitempty"` // S3 key of delivery proof
	Tracking     []TrackingEvent `bson:"tracking,omitempty" json:"tracking,omitempty"`

	VisibleUntil  time.Time      `bson:"visible_until" json:"visible_until"`
	StatusHistory []StatusChange `bson:"status_history" json:"status_history"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}
