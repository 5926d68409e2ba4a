package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// --- Mocks ---

// MockQuoteService implements services.IQuoteService
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) CreateQuote(ctx context.Context, shipperID utils.SixID, input services.CreateQuoteInput) (*models.Quote, error) {
	args := m.Called(ctx, shipperID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) FindQuoteByID(ctx context.Context, quoteID utils.SixID) (*models.Quote, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) ListQuotesByShipper(ctx context.Context, shipperID utils.SixID) ([]models.Quote, error) {
	args := m.Called(ctx, shipperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Quote), args.Error(1)
}

func (m *MockQuoteService) ListActiveQuotes(ctx context.Context) ([]models.Quote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Quote), args.Error(1)
}

func (m *MockQuoteService) MarkVisualized(ctx context.Context, quoteID utils.SixID) error {
	args := m.Called(ctx, quoteID)
	return args.Error(0)
}

func (m *MockQuoteService) AcceptResponse(ctx context.Context, quoteID, shipperID, responseID utils.SixID) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, shipperID, responseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) ConfirmPayment(ctx context.Context, quoteID utils.SixID, approved bool, externalRef string) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, approved, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) ConfirmCollection(ctx context.Context, quoteID, carrierID utils.SixID, code string) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, carrierID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) AttachDocument(ctx context.Context, quoteID, carrierID utils.SixID, docType string, payload []byte) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, carrierID, docType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) AddTracking(ctx context.Context, quoteID, carrierID utils.SixID, event models.TrackingEvent) error {
	args := m.Called(ctx, quoteID, carrierID, event)
	return args.Error(0)
}

func (m *MockQuoteService) FinalizeDelivery(ctx context.Context, quoteID, carrierID utils.SixID, proof []byte) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, carrierID, proof)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) ApproveCte(ctx context.Context, quoteID utils.SixID) (*models.Quote, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) CancelQuote(ctx context.Context, quoteID, requesterID utils.SixID, isAdmin bool) (*models.Quote, error) {
	args := m.Called(ctx, quoteID, requesterID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteService) ExpireOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockQuoteService) SetConversationService(convService services.IConversationService) {
	m.Called(convService)
}

func (m *MockQuoteService) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockMatcherService implements services.IMatcherService
type MockMatcherService struct {
	mock.Mock
}

func (m *MockMatcherService) ListAvailableQuotes(ctx context.Context, carrierID utils.SixID) ([]models.Quote, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Quote), args.Error(1)
}

func (m *MockMatcherService) EligibleCarriers(ctx context.Context, quote *models.Quote) ([]utils.SixID, error) {
	args := m.Called(ctx, quote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]utils.SixID), args.Error(1)
}

func (m *MockMatcherService) FindCoverage(ctx context.Context, carrierID utils.SixID) (*models.CarrierCoverage, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CarrierCoverage), args.Error(1)
}

func (m *MockMatcherService) UpsertCoverage(ctx context.Context, coverage *models.CarrierCoverage) error {
	args := m.Called(ctx, coverage)
	return args.Error(0)
}

// MockResponseService implements services.IResponseService
type MockResponseService struct {
	mock.Mock
}

func (m *MockResponseService) CreateResponse(ctx context.Context, carrierID utils.SixID, input services.CreateResponseInput) (*models.QuoteResponse, error) {
	args := m.Called(ctx, carrierID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuoteResponse), args.Error(1)
}

func (m *MockResponseService) FindResponseByID(ctx context.Context, responseID utils.SixID) (*models.QuoteResponse, error) {
	args := m.Called(ctx, responseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuoteResponse), args.Error(1)
}

func (m *MockResponseService) ListByQuote(ctx context.Context, quoteID utils.SixID) ([]models.QuoteResponse, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QuoteResponse), args.Error(1)
}

func (m *MockResponseService) ListByCarrier(ctx context.Context, carrierID utils.SixID) ([]models.QuoteResponse, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QuoteResponse), args.Error(1)
}

func (m *MockResponseService) RespondedQuoteIDs(ctx context.Context, carrierID utils.SixID) (map[utils.SixID]bool, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]bool), args.Error(1)
}

func (m *MockResponseService) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockConversationService implements services.IConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) OpenConversation(ctx context.Context, quoteID, shipperID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, quoteID, shipperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) FindByID(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) FindByQuote(ctx context.Context, quoteID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) ListMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockConversationService) AppendMessage(ctx context.Context, conversationID, senderID utils.SixID, body string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockConversationService) AppendSystemMessage(ctx context.Context, conversationID utils.SixID, body string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockConversationService) MarkRead(ctx context.Context, conversationID, readerID utils.SixID, messageIDs []utils.SixID) error {
	args := m.Called(ctx, conversationID, readerID, messageIDs)
	return args.Error(0)
}

func (m *MockConversationService) MarkDelivered(ctx context.Context, messageID utils.SixID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockConversationService) CloseForQuote(ctx context.Context, quoteID utils.SixID) error {
	args := m.Called(ctx, quoteID)
	return args.Error(0)
}

func (m *MockConversationService) UnreadTotal(ctx context.Context, userID utils.SixID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockConversationService) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockNotificationService implements services.INotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Summary(ctx context.Context, userID utils.SixID, role models.Role) (*services.NotificationSummary, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.NotificationSummary), args.Error(1)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
