package models

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// QuoteResponse is a carrier's priced proposal against a quote.
// At most one exists per (quote, carrier) pair, enforced by a unique index.
// Responses are never deleted; losing ones stay with Accepted == false.
type QuoteResponse struct {
	Base         `bson:",inline"`
	QuoteID      utils.SixID `bson:"quote_id" json:"quote_id"`
	CarrierID    utils.SixID `bson:"carrier_id" json:"carrier_id"`
	Price        Money       `bson:"price" json:"price"`
	DeliveryDate time.Time   `bson:"delivery_date" json:"delivery_date"`
	Note         string      `bson:"note,omitempty" json:"note,omitempty"`
	Accepted     bool        `bson:"accepted" json:"accepted"`
	CreatedAt    time.Time   `bson:"created_at" json:"created_at"`
}
