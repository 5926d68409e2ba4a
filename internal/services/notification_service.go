package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// NotificationSummary is the badge-count payload. Aggregation only; all the
// underlying state belongs to the quote machine and the message log.
type NotificationSummary struct {
	UnreadMessages   int `json:"unread_messages"`
	AvailableQuotes  int `json:"available_quotes"`
	PendingResponses int `json:"pending_responses"`
}

// INotificationService is the read interface consumed by clients polling for
// badge counts.
type INotificationService interface {
	Summary(ctx context.Context, userID utils.SixID, role models.Role) (*NotificationSummary, error)
}

type notificationService struct {
	db                  *mongo.Database
	matcherService      IMatcherService
	conversationService IConversationService
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(database *mongo.Database, matcherService IMatcherService, conversationService IConversationService) INotificationService {
	return &notificationService{db: database, matcherService: matcherService, conversationService: conversationService}
}

func (s *notificationService) Summary(ctx context.Context, userID utils.SixID, role models.Role) (*NotificationSummary, error) {
	summary := &NotificationSummary{}

	unread, err := s.conversationService.UnreadTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.UnreadMessages = unread

	switch role {
	case models.RoleCarrier:
		quotes, err := s.matcherService.ListAvailableQuotes(ctx, userID)
		if err != nil {
			return nil, err
		}
		summary.AvailableQuotes = len(quotes)
	case models.RoleShipper:
		// Quotes with carrier proposals awaiting the shipper's decision.
		count, err := s.db.Collection(quotesCollection).CountDocuments(ctx, bson.M{
			"shipper_id": userID,
			"status":     models.QuoteStatusInProgress,
		})
		if err != nil {
			return nil, fmt.Errorf("error counting in-progress quotes: %w", err)
		}
		summary.PendingResponses = int(count)
	}
	return summary, nil
}
