package models

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// PaymentStatus mirrors the gateway's view of a charge.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRefused  PaymentStatus = "refused"
)

// Payment is the single charge record gating the awaiting_payment →
// awaiting_collection transition. Capture itself happens at an external
// gateway; we only track its outcome. Exactly one payment exists per quote.
type Payment struct {
	Base        `bson:",inline"`
	QuoteID     utils.SixID   `bson:"quote_id" json:"quote_id"`
	ResponseID  utils.SixID   `bson:"response_id" json:"response_id"`
	Amount      Money         `bson:"amount" json:"amount"`
	Status      PaymentStatus `bson:"status" json:"status"`
	PlatformFee *Money        `bson:"platform_fee,omitempty" json:"platform_fee,omitempty"` // set on settlement
	ExternalRef string        `bson:"external_ref,omitempty" json:"external_ref,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updated_at"`
}
