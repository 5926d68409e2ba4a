package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/db"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// IResponseService defines carrier proposal operations.
type IResponseService interface {
	CreateResponse(ctx context.Context, carrierID utils.SixID, input CreateResponseInput) (*models.QuoteResponse, error)
	FindResponseByID(ctx context.Context, responseID utils.SixID) (*models.QuoteResponse, error)
	ListByQuote(ctx context.Context, quoteID utils.SixID) ([]models.QuoteResponse, error)
	ListByCarrier(ctx context.Context, carrierID utils.SixID) ([]models.QuoteResponse, error)
	RespondedQuoteIDs(ctx context.Context, carrierID utils.SixID) (map[utils.SixID]bool, error)
	EnsureIndexes(ctx context.Context) error
}

// CreateResponseInput carries the carrier-provided proposal fields.
type CreateResponseInput struct {
	QuoteID      utils.SixID  `json:"quote_id"`
	Price        models.Money `json:"price"`
	DeliveryDate string       `json:"delivery_date"` // RFC 3339
	Note         string       `json:"note"`
}

const responsesCollection = "quote_responses"

type responseService struct {
	db    *mongo.Database
	cfg   *config.Config
	clock utils.Clock
}

// NewResponseService creates a new ResponseService.
func NewResponseService(database *mongo.Database, cfg *config.Config, clock utils.Clock) IResponseService {
	return &responseService{db: database, cfg: cfg, clock: clock}
}

// EnsureIndexes creates the unique (quote, carrier) index that makes duplicate
// proposals impossible even under concurrent submissions.
func (s *responseService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(responsesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}, {Key: "carrier_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create response indexes: %w", err)
	}
	return nil
}

// CreateResponse submits a proposal. Guards: quote must still be respondable
// and inside its visibility window; one response per (quote, carrier).
func (s *responseService) CreateResponse(ctx context.Context, carrierID utils.SixID, input CreateResponseInput) (*models.QuoteResponse, error) {
	if input.Price.Value <= 0 {
		return nil, NewValidationError("preço deve ser maior que zero")
	}
	deliveryDate, err := utils.ParseDate(input.DeliveryDate)
	if err != nil {
		return nil, NewValidationError("data de entrega inválida: %s", input.DeliveryDate)
	}

	now := s.clock.Now().UTC()

	var quote models.Quote
	err = s.db.Collection(quotesCollection).FindOne(ctx, bson.M{"_id": input.QuoteID}).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading quote %s: %w", input.QuoteID.String(), err)
	}
	if !quote.Status.Respondable() {
		return nil, NewValidationError("cotação em status %s não aceita respostas", quote.Status)
	}
	if !now.Before(quote.VisibleUntil) {
		return nil, NewValidationError("cotação fora do período de visibilidade")
	}

	response := &models.QuoteResponse{
		QuoteID:      input.QuoteID,
		CarrierID:    carrierID,
		Price:        input.Price,
		DeliveryDate: deliveryDate,
		Note:         input.Note,
		Accepted:     false,
		CreatedAt:    now,
	}
	operation := func() error {
		response.GenID()
		_, insertErr := s.db.Collection(responsesCollection).InsertOne(ctx, response)
		return insertErr
	}
	if err := db.WithRetries(operation, 0, db.IsMongoDuplicateKeyError); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, NewValidationError("transportador já respondeu esta cotação")
		}
		return nil, fmt.Errorf("failed to insert response for quote %s: %w", input.QuoteID.String(), err)
	}

	// Denormalized counter plus the open/visualized → in_progress hop. The
	// status filter keeps this from regressing anything later.
	collection := s.db.Collection(quotesCollection)
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": input.QuoteID}, bson.M{"$inc": bson.M{"response_count": 1}}); err != nil {
		return nil, fmt.Errorf("failed to bump response count on quote %s: %w", input.QuoteID.String(), err)
	}
	_, err = collection.UpdateOne(ctx,
		bson.M{"_id": input.QuoteID, "status": bson.M{"$in": []models.QuoteStatus{models.QuoteStatusOpen, models.QuoteStatusVisualized}}},
		bson.M{
			"$set":  bson.M{"status": models.QuoteStatusInProgress, "updated_at": now},
			"$push": bson.M{"status_history": models.StatusChange{From: quote.Status, To: models.QuoteStatusInProgress, Event: "response_submitted", At: now}},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to advance quote %s to in_progress: %w", input.QuoteID.String(), err)
	}

	return response, nil
}

func (s *responseService) FindResponseByID(ctx context.Context, responseID utils.SixID) (*models.QuoteResponse, error) {
	var response models.QuoteResponse
	err := s.db.Collection(responsesCollection).FindOne(ctx, bson.M{"_id": responseID}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding response %s: %w", responseID.String(), err)
	}
	return &response, nil
}

func (s *responseService) ListByQuote(ctx context.Context, quoteID utils.SixID) ([]models.QuoteResponse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(responsesCollection).Find(ctx, bson.M{"quote_id": quoteID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing responses for quote %s: %w", quoteID.String(), err)
	}
	var responses []models.QuoteResponse
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("error decoding responses: %w", err)
	}
	return responses, nil
}

func (s *responseService) ListByCarrier(ctx context.Context, carrierID utils.SixID) ([]models.QuoteResponse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(responsesCollection).Find(ctx, bson.M{"carrier_id": carrierID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing responses for carrier %s: %w", carrierID.String(), err)
	}
	var responses []models.QuoteResponse
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("error decoding responses: %w", err)
	}
	return responses, nil
}

// RespondedQuoteIDs returns the set of quotes the carrier already proposed on,
// used by the eligibility matcher.
func (s *responseService) RespondedQuoteIDs(ctx context.Context, carrierID utils.SixID) (map[utils.SixID]bool, error) {
	cursor, err := s.db.Collection(responsesCollection).Find(ctx, bson.M{"carrier_id": carrierID},
		options.Find().SetProjection(bson.M{"quote_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("error listing responded quotes for carrier %s: %w", carrierID.String(), err)
	}
	var rows []struct {
		QuoteID utils.SixID `bson:"quote_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error decoding responded quote ids: %w", err)
	}
	ids := make(map[utils.SixID]bool, len(rows))
	for _, row := range rows {
		ids[row.QuoteID] = true
	}
	return ids, nil
}
