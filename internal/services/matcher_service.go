package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// IMatcherService decides which carriers see which open quotes.
type IMatcherService interface {
	ListAvailableQuotes(ctx context.Context, carrierID utils.SixID) ([]models.Quote, error)
	EligibleCarriers(ctx context.Context, quote *models.Quote) ([]utils.SixID, error)
	FindCoverage(ctx context.Context, carrierID utils.SixID) (*models.CarrierCoverage, error)
	UpsertCoverage(ctx context.Context, coverage *models.CarrierCoverage) error
}

const coveragesCollection = "carrier_coverages"

type matcherService struct {
	db              *mongo.Database
	quoteService    IQuoteService
	responseService IResponseService
	clock           utils.Clock
}

// NewMatcherService creates a new MatcherService.
func NewMatcherService(database *mongo.Database, quoteService IQuoteService, responseService IResponseService, clock utils.Clock) IMatcherService {
	return &matcherService{db: database, quoteService: quoteService, responseService: responseService, clock: clock}
}

// Visible is the core eligibility rule: pure over its inputs, no hidden time
// or randomness beyond the explicit now.
func Visible(quote *models.Quote, coverage *models.CarrierCoverage, alreadyResponded bool, now time.Time) bool {
	if !quote.Status.Respondable() || !now.Before(quote.VisibleUntil) {
		return false
	}
	if alreadyResponded {
		return false
	}
	if coverage == nil || !coverage.HasActiveOffering() {
		return false
	}
	if coverage.DeniesGoods(quote.Cargo.GoodsCode) {
		return false
	}
	return coverage.RegionMode().Allows(quote.DestinationUF)
}

// ListAvailableQuotes returns the active quotes this carrier may discover.
func (s *matcherService) ListAvailableQuotes(ctx context.Context, carrierID utils.SixID) ([]models.Quote, error) {
	coverage, err := s.FindCoverage(ctx, carrierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No declared coverage means an incomplete profile: sees nothing.
			return []models.Quote{}, nil
		}
		return nil, err
	}

	responded, err := s.responseService.RespondedQuoteIDs(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	quotes, err := s.quoteService.ListActiveQuotes(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	visible := []models.Quote{}
	for i := range quotes {
		if Visible(&quotes[i], coverage, responded[quotes[i].ID], now) {
			visible = append(visible, quotes[i])
		}
	}
	return visible, nil
}

// EligibleCarriers fans the rule out over the carrier pool for new-quote
// notifications. Evaluations are independent and side-effect-free, so they
// run concurrently.
func (s *matcherService) EligibleCarriers(ctx context.Context, quote *models.Quote) ([]utils.SixID, error) {
	cursor, err := s.db.Collection(coveragesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing carrier coverages: %w", err)
	}
	var coverages []models.CarrierCoverage
	if err := cursor.All(ctx, &coverages); err != nil {
		return nil, fmt.Errorf("error decoding carrier coverages: %w", err)
	}

	respondedBy, err := s.respondedCarriers(ctx, quote.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		eligible []utils.SixID
	)
	for i := range coverages {
		coverage := &coverages[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Visible(quote, coverage, respondedBy[coverage.CarrierID], now) {
				mu.Lock()
				eligible = append(eligible, coverage.CarrierID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return eligible, nil
}

func (s *matcherService) respondedCarriers(ctx context.Context, quoteID utils.SixID) (map[utils.SixID]bool, error) {
	cursor, err := s.db.Collection(responsesCollection).Find(ctx, bson.M{"quote_id": quoteID})
	if err != nil {
		return nil, fmt.Errorf("error listing responses for quote %s: %w", quoteID.String(), err)
	}
	var responses []models.QuoteResponse
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("error decoding responses: %w", err)
	}
	out := make(map[utils.SixID]bool, len(responses))
	for _, r := range responses {
		out[r.CarrierID] = true
	}
	return out, nil
}

func (s *matcherService) FindCoverage(ctx context.Context, carrierID utils.SixID) (*models.CarrierCoverage, error) {
	var coverage models.CarrierCoverage
	err := s.db.Collection(coveragesCollection).FindOne(ctx, bson.M{"carrier_id": carrierID}).Decode(&coverage)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding coverage for carrier %s: %w", carrierID.String(), err)
	}
	return &coverage, nil
}

// UpsertCoverage stores a carrier's declared service capabilities.
func (s *matcherService) UpsertCoverage(ctx context.Context, coverage *models.CarrierCoverage) error {
	coverage.UpdatedAt = s.clock.Now().UTC()
	coverage.GenIDIfEmpty()
	_, err := s.db.Collection(coveragesCollection).ReplaceOne(ctx,
		bson.M{"carrier_id": coverage.CarrierID},
		coverage,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert coverage for carrier %s: %w", coverage.CarrierID.String(), err)
	}
	return nil
}
