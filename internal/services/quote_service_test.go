package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// memDocStore keeps uploaded documents in memory so lifecycle tests don't
// need S3.
type memDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string][]byte)}
}

func (m *memDocStore) PutDocument(ctx context.Context, quoteID, kind string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("documents/%s/%s_%d", quoteID, kind, len(m.docs))
	m.docs[key] = payload
	return key, nil
}

func testConfig() *config.Config {
	return &config.Config{
		QuoteVisibility:    72 * time.Hour,
		PlatformFeePercent: 5,
	}
}

func setupQuoteTest(t *testing.T, dbName string, clock utils.Clock) (*mongo.Database, IQuoteService, IResponseService) {
	db := utils.SetupTestDB(t, dbName, "quotes", "quote_responses", "payments", "conversations", "messages")
	cfg := testConfig()
	quoteSvc := NewQuoteService(db, cfg, clock, events.NoopPublisher{}, newMemDocStore())
	responseSvc := NewResponseService(db, cfg, clock)
	require.NoError(t, quoteSvc.EnsureIndexes(context.Background()))
	require.NoError(t, responseSvc.EnsureIndexes(context.Background()))
	return db, quoteSvc, responseSvc
}

func validQuoteInput() CreateQuoteInput {
	return CreateQuoteInput{
		OriginZip:       "01310-100",
		OriginCity:      "São Paulo",
		OriginUF:        "SP",
		DestinationZip:  "30130-010",
		DestinationCity: "Belo Horizonte",
		DestinationUF:   "MG",
		CollectionAt:    time.Now().Add(48 * time.Hour),
		Cargo: models.CargoDetails{
			Description:   "Paletes de eletrônicos",
			WeightKg:      1200,
			DeclaredValue: models.Money{Value: 50000, CurrencyCode: "BRL"},
			GoodsCode:     "8517",
		},
	}
}

func submitResponse(t *testing.T, svc IResponseService, quoteID, carrierID utils.SixID, price float64) *models.QuoteResponse {
	response, err := svc.CreateResponse(context.Background(), carrierID, CreateResponseInput{
		QuoteID:      quoteID,
		Price:        models.Money{Value: price, CurrencyCode: "BRL"},
		DeliveryDate: time.Now().Add(5 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	return response
}

func TestQuoteService_CreateQuote(t *testing.T) {
	_, svc, _ := setupQuoteTest(t, "testdb_quote_create", utils.RealClock{})
	ctx := context.Background()
	shipperID := utils.NewSixID()

	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusOpen, quote.Status)
	assert.Equal(t, shipperID, quote.ShipperID)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), quote.VisibleUntil, time.Minute)

	// Validation failures
	bad := validQuoteInput()
	bad.Cargo.WeightKg = 0
	_, err = svc.CreateQuote(ctx, shipperID, bad)
	assert.True(t, IsValidation(err))

	bad = validQuoteInput()
	bad.Cargo.GoodsCode = ""
	_, err = svc.CreateQuote(ctx, shipperID, bad)
	assert.True(t, IsValidation(err))
}

func TestQuoteService_FullLifecycle(t *testing.T) {
	db, svc, responseSvc := setupQuoteTest(t, "testdb_quote_lifecycle", utils.RealClock{})
	ctx := context.Background()
	shipperID := utils.NewSixID()
	carrierID := utils.NewSixID()

	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)

	require.NoError(t, svc.MarkVisualized(ctx, quote.ID))
	response := submitResponse(t, responseSvc, quote.ID, carrierID, 3500)

	current, err := svc.FindQuoteByID(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusInProgress, current.Status)
	assert.Equal(t, 1, current.ResponseCount)

	// Accept lands on awaiting_payment because the payment record is created
	// in the same operation.
	current, err = svc.AcceptResponse(ctx, quote.ID, shipperID, response.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingPayment, current.Status)
	require.NotNil(t, current.AcceptedResponseID)
	assert.Equal(t, response.ID, *current.AcceptedResponseID)

	current, err = svc.ConfirmPayment(ctx, quote.ID, true, "gw-123")
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingCollection, current.Status)
	assert.Len(t, current.CollectionCode, 6)

	// Wrong collection code is rejected without moving the quote.
	_, err = svc.ConfirmCollection(ctx, quote.ID, carrierID, "WRONG1")
	assert.True(t, IsValidation(err))

	current, err = svc.ConfirmCollection(ctx, quote.ID, carrierID, current.CollectionCode)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusCollected, current.Status)

	current, err = svc.AttachDocument(ctx, quote.ID, carrierID, "cte", []byte("<cte/>"))
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusInTransit, current.Status)
	assert.NotEmpty(t, current.DocumentKey)

	require.NoError(t, svc.AddTracking(ctx, quote.ID, carrierID, models.TrackingEvent{Description: "Saiu de São Paulo", City: "São Paulo", UF: "SP"}))

	current, err = svc.FinalizeDelivery(ctx, quote.ID, carrierID, []byte("assinatura"))
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingCteApproval, current.Status)
	assert.NotEmpty(t, current.ProofKey)

	current, err = svc.ApproveCte(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusFinalized, current.Status)
	assert.Len(t, current.Tracking, 1)

	// 5% platform fee recorded on the payment.
	var payment models.Payment
	require.NoError(t, db.Collection("payments").FindOne(ctx, map[string]interface{}{"quote_id": quote.ID}).Decode(&payment))
	require.NotNil(t, payment.PlatformFee)
	assert.InDelta(t, 175.0, payment.PlatformFee.Value, 0.001)

	// Every hop is in the history.
	assert.GreaterOrEqual(t, len(current.StatusHistory), 9)
}

func TestQuoteService_ConcurrentAccept(t *testing.T) {
	_, svc, responseSvc := setupQuoteTest(t, "testdb_quote_concurrent_accept", utils.RealClock{})
	ctx := context.Background()
	shipperID := utils.NewSixID()

	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)

	responseA := submitResponse(t, responseSvc, quote.ID, utils.NewSixID(), 3000)
	responseB := submitResponse(t, responseSvc, quote.ID, utils.NewSixID(), 2800)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, responseID := range []utils.SixID{responseA.ID, responseB.ID} {
		wg.Add(1)
		go func(i int, responseID utils.SixID) {
			defer wg.Done()
			_, errs[i] = svc.AcceptResponse(ctx, quote.ID, shipperID, responseID)
		}(i, responseID)
	}
	wg.Wait()

	// Exactly one accept wins; the loser gets a typed error.
	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, IsConflict(err) || IsValidation(err), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)

	final, err := svc.FindQuoteByID(ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AcceptedResponseID)
}

func TestQuoteService_AcceptPermissions(t *testing.T) {
	_, svc, responseSvc := setupQuoteTest(t, "testdb_quote_accept_perms", utils.RealClock{})
	ctx := context.Background()
	shipperID := utils.NewSixID()

	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)
	response := submitResponse(t, responseSvc, quote.ID, utils.NewSixID(), 3000)

	// Someone else's shipper ID
	_, err = svc.AcceptResponse(ctx, quote.ID, utils.NewSixID(), response.ID)
	assert.True(t, IsPermission(err))

	// Response belonging to another quote
	other, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)
	otherResponse := submitResponse(t, responseSvc, other.ID, utils.NewSixID(), 1000)
	_, err = svc.AcceptResponse(ctx, quote.ID, shipperID, otherResponse.ID)
	assert.True(t, IsValidation(err))
}

func TestQuoteService_CancelQuote(t *testing.T) {
	_, svc, _ := setupQuoteTest(t, "testdb_quote_cancel", utils.RealClock{})
	ctx := context.Background()
	shipperID := utils.NewSixID()

	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)

	// Strangers cannot cancel.
	_, err = svc.CancelQuote(ctx, quote.ID, utils.NewSixID(), false)
	assert.True(t, IsPermission(err))

	// Admin can.
	cancelled, err := svc.CancelQuote(ctx, quote.ID, utils.NewSixID(), true)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusCancelled, cancelled.Status)

	// Terminal quotes stay cancelled.
	_, err = svc.CancelQuote(ctx, quote.ID, shipperID, false)
	assert.True(t, IsValidation(err))
}

func TestQuoteService_ExpireOverdue(t *testing.T) {
	past := utils.FixedClock{T: time.Now().Add(-100 * time.Hour)}
	db, svc, _ := setupQuoteTest(t, "testdb_quote_expire", past)
	ctx := context.Background()
	shipperID := utils.NewSixID()

	// Created 100 hours ago with a 72h window: overdue.
	quote, err := svc.CreateQuote(ctx, shipperID, validQuoteInput())
	require.NoError(t, err)

	nowSvc := NewQuoteService(db, testConfig(), utils.RealClock{}, events.NoopPublisher{}, newMemDocStore())
	expired, err := nowSvc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	final, err := nowSvc.FindQuoteByID(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusExpired, final.Status)

	// Sweep is idempotent.
	expired, err = nowSvc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}
