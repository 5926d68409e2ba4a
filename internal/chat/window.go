package chat

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
)

// AvailabilityWindow holds the daily business-hours rule for opening
// conversations. All checks run in the platform timezone, never the client's.
// Opening is only allowed inside [OpenHour, CloseHour); writing to an already
// open conversation is allowed at any hour until its expiry.
type AvailabilityWindow struct {
	OpenHour  int
	CloseHour int
	Location  *time.Location
}

// NewAvailabilityWindow builds the window rule. loc must not be nil.
func NewAvailabilityWindow(openHour, closeHour int, loc *time.Location) *AvailabilityWindow {
	return &AvailabilityWindow{OpenHour: openHour, CloseHour: closeHour, Location: loc}
}

// CanOpen reports whether a new conversation may be created at now.
func (w *AvailabilityWindow) CanOpen(now time.Time) bool {
	h := now.In(w.Location).Hour()
	return h >= w.OpenHour && h < w.CloseHour
}

// CanWrite reports whether the conversation still accepts messages at now.
// The daily open/close hours do not apply here: once opened, a conversation
// is writable until midnight of its creation day.
func (w *AvailabilityWindow) CanWrite(conv *models.Conversation, now time.Time) bool {
	if conv.Status == models.ConversationClosed {
		return false
	}
	return !conv.Expired(now)
}

// ExpiryFor computes the hard expiry for a conversation created at t:
// the start of the next calendar day in the platform timezone.
func (w *AvailabilityWindow) ExpiryFor(t time.Time) time.Time {
	local := t.In(w.Location)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, w.Location)
}
