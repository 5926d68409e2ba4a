package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/db"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/storage"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// IQuoteService owns the quote lifecycle. Every transition is executed as a
// single guarded FindOneAndUpdate so concurrent attempts on the same quote
// cannot both succeed; the loser observes the commit-time state and gets a
// typed error.
type IQuoteService interface {
	CreateQuote(ctx context.Context, shipperID utils.SixID, input CreateQuoteInput) (*models.Quote, error)
	FindQuoteByID(ctx context.Context, quoteID utils.SixID) (*models.Quote, error)
	ListQuotesByShipper(ctx context.Context, shipperID utils.SixID) ([]models.Quote, error)
	ListActiveQuotes(ctx context.Context) ([]models.Quote, error)
	MarkVisualized(ctx context.Context, quoteID utils.SixID) error
	AcceptResponse(ctx context.Context, quoteID, shipperID, responseID utils.SixID) (*models.Quote, error)
	ConfirmPayment(ctx context.Context, quoteID utils.SixID, approved bool, externalRef string) (*models.Quote, error)
	ConfirmCollection(ctx context.Context, quoteID, carrierID utils.SixID, code string) (*models.Quote, error)
	AttachDocument(ctx context.Context, quoteID, carrierID utils.SixID, docType string, payload []byte) (*models.Quote, error)
	AddTracking(ctx context.Context, quoteID, carrierID utils.SixID, event models.TrackingEvent) error
	FinalizeDelivery(ctx context.Context, quoteID, carrierID utils.SixID, proof []byte) (*models.Quote, error)
	ApproveCte(ctx context.Context, quoteID utils.SixID) (*models.Quote, error)
	CancelQuote(ctx context.Context, quoteID, requesterID utils.SixID, isAdmin bool) (*models.Quote, error)
	ExpireOverdue(ctx context.Context) (int, error)
	SetConversationService(convService IConversationService)
	EnsureIndexes(ctx context.Context) error
}

// CreateQuoteInput carries the shipper-provided quote fields.
type CreateQuoteInput struct {
	OriginZip       string              `json:"origin_zip"`
	OriginCity      string              `json:"origin_city"`
	OriginUF        string              `json:"origin_uf"`
	DestinationZip  string              `json:"destination_zip"`
	DestinationCity string              `json:"destination_city"`
	DestinationUF   string              `json:"destination_uf"`
	CollectionAt    time.Time           `json:"collection_at"`
	Cargo           models.CargoDetails `json:"cargo"`
}

const (
	quotesCollection   = "quotes"
	paymentsCollection = "payments"
)

type quoteService struct {
	db          *mongo.Database
	cfg         *config.Config
	clock       utils.Clock
	publisher   events.Publisher
	docStore    storage.IDocumentStore
	convService IConversationService // set after construction, see SetConversationService
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(database *mongo.Database, cfg *config.Config, clock utils.Clock, publisher events.Publisher, docStore storage.IDocumentStore) IQuoteService {
	return &quoteService{db: database, cfg: cfg, clock: clock, publisher: publisher, docStore: docStore}
}

// SetConversationService wires the negotiation channel so terminal transitions
// can close it. Set after construction because the conversation service also
// reads quotes.
func (s *quoteService) SetConversationService(convService IConversationService) {
	s.convService = convService
}

// EnsureIndexes creates the unique payments index: at most one payment record
// per quote, enforced at the database so a double accept cannot slip one in.
func (s *quoteService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(paymentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create payment indexes: %w", err)
	}
	return nil
}

func (s *quoteService) CreateQuote(ctx context.Context, shipperID utils.SixID, input CreateQuoteInput) (*models.Quote, error) {
	if input.OriginZip == "" || input.DestinationZip == "" || input.DestinationUF == "" {
		return nil, NewValidationError("origem e destino são obrigatórios")
	}
	if input.Cargo.WeightKg <= 0 {
		return nil, NewValidationError("peso da carga deve ser maior que zero")
	}
	if input.Cargo.GoodsCode == "" {
		return nil, NewValidationError("classificação da mercadoria é obrigatória")
	}
	if input.CollectionAt.IsZero() {
		return nil, NewValidationError("data de coleta é obrigatória")
	}

	now := s.clock.Now().UTC()
	quote := &models.Quote{
		ShipperID:       shipperID,
		OriginZip:       input.OriginZip,
		OriginCity:      input.OriginCity,
		OriginUF:        input.OriginUF,
		DestinationZip:  input.DestinationZip,
		DestinationCity: input.DestinationCity,
		DestinationUF:   input.DestinationUF,
		CollectionAt:    input.CollectionAt,
		Cargo:           input.Cargo,
		Status:          models.QuoteStatusOpen,
		VisibleUntil:    now.Add(s.cfg.QuoteVisibility),
		StatusHistory:   []models.StatusChange{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	collection := s.db.Collection(quotesCollection)
	operation := func() error {
		quote.GenID()
		_, insertErr := collection.InsertOne(ctx, quote)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert quote for shipper %s: %w", shipperID.String(), err)
	}

	s.emit(ctx, events.KeyQuoteCreated, events.NewEnvelope(events.KeyQuoteCreated, events.QuoteCreated{
		QuoteID:       quote.ID,
		ShipperID:     shipperID,
		DestinationUF: quote.DestinationUF,
		GoodsCode:     quote.Cargo.GoodsCode,
		VisibleUntil:  quote.VisibleUntil,
	}))

	return quote, nil
}

func (s *quoteService) FindQuoteByID(ctx context.Context, quoteID utils.SixID) (*models.Quote, error) {
	var quote models.Quote
	err := s.db.Collection(quotesCollection).FindOne(ctx, bson.M{"_id": quoteID}).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding quote %s: %w", quoteID.String(), err)
	}
	return &quote, nil
}

func (s *quoteService) ListQuotesByShipper(ctx context.Context, shipperID utils.SixID) ([]models.Quote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(quotesCollection).Find(ctx, bson.M{"shipper_id": shipperID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing quotes for shipper %s: %w", shipperID.String(), err)
	}
	var quotes []models.Quote
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, fmt.Errorf("error decoding quotes: %w", err)
	}
	return quotes, nil
}

// ListActiveQuotes returns quotes still offered to carriers, used as the
// matcher's candidate set.
func (s *quoteService) ListActiveQuotes(ctx context.Context) ([]models.Quote, error) {
	filter := bson.M{
		"status":        bson.M{"$in": respondableStatuses()},
		"visible_until": bson.M{"$gt": s.clock.Now().UTC()},
	}
	cursor, err := s.db.Collection(quotesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing active quotes: %w", err)
	}
	var quotes []models.Quote
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, fmt.Errorf("error decoding active quotes: %w", err)
	}
	return quotes, nil
}

// MarkVisualized records that a carrier has seen the quote. Idempotent and
// never regresses a later status.
func (s *quoteService) MarkVisualized(ctx context.Context, quoteID utils.SixID) error {
	now := s.clock.Now().UTC()
	res, err := s.db.Collection(quotesCollection).UpdateOne(ctx,
		bson.M{"_id": quoteID, "status": models.QuoteStatusOpen},
		bson.M{
			"$set":  bson.M{"status": models.QuoteStatusVisualized, "updated_at": now},
			"$push": bson.M{"status_history": models.StatusChange{From: models.QuoteStatusOpen, To: models.QuoteStatusVisualized, Event: "carrier_viewed", At: now}},
		})
	if err != nil {
		return fmt.Errorf("error marking quote %s visualized: %w", quoteID.String(), err)
	}
	if res.MatchedCount == 0 {
		// Already visualized or further along; that is fine.
		if _, err := s.FindQuoteByID(ctx, quoteID); err != nil {
			return err
		}
		return nil
	}
	s.emitStatusChange(ctx, quoteID, models.QuoteStatusOpen, models.QuoteStatusVisualized, "carrier_viewed", now)
	return nil
}

// AcceptResponse is the contended transition: two concurrent accepts on the
// same quote must not both succeed. The guard lives in the update filter, so
// the database commit order decides the winner.
func (s *quoteService) AcceptResponse(ctx context.Context, quoteID, shipperID, responseID utils.SixID) (*models.Quote, error) {
	var response models.QuoteResponse
	err := s.db.Collection(responsesCollection).FindOne(ctx, bson.M{"_id": responseID}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewValidationError("resposta %s não encontrada", responseID.String())
		}
		return nil, fmt.Errorf("error loading response %s: %w", responseID.String(), err)
	}
	if response.QuoteID != quoteID {
		return nil, NewValidationError("resposta não pertence a esta cotação")
	}

	now := s.clock.Now().UTC()
	filter := bson.M{
		"_id":                  quoteID,
		"shipper_id":           shipperID,
		"status":               models.QuoteStatusInProgress,
		"accepted_response_id": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": bson.M{
			"status":               models.QuoteStatusAccepted,
			"accepted_response_id": responseID,
			"updated_at":           now,
		},
		"$push": bson.M{"status_history": models.StatusChange{From: models.QuoteStatusInProgress, To: models.QuoteStatusAccepted, Event: "response_accepted", At: now}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var quote models.Quote
	err = s.db.Collection(quotesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainAcceptFailure(ctx, quoteID, shipperID)
		}
		return nil, fmt.Errorf("failed to accept response on quote %s: %w", quoteID.String(), err)
	}
	s.emitStatusChange(ctx, quoteID, models.QuoteStatusInProgress, models.QuoteStatusAccepted, "response_accepted", now)

	// Flag the winning response. Losing responses keep accepted == false and
	// are implicitly rejected.
	_, err = s.db.Collection(responsesCollection).UpdateOne(ctx,
		bson.M{"_id": responseID},
		bson.M{"$set": bson.M{"accepted": true}})
	if err != nil {
		return nil, fmt.Errorf("failed to flag accepted response %s: %w", responseID.String(), err)
	}

	// A payment record is created immediately; its confirmation is what moves
	// the quote onward. Exactly one payment per quote (unique index).
	payment := &models.Payment{
		QuoteID:    quoteID,
		ResponseID: responseID,
		Amount:     response.Price,
		Status:     models.PaymentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	operation := func() error {
		payment.GenID()
		_, insertErr := s.db.Collection(paymentsCollection).InsertOne(ctx, payment)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, NewConflictError("cotação %s já possui registro de pagamento", quoteID.String())
		}
		return nil, fmt.Errorf("failed to create payment for quote %s: %w", quoteID.String(), err)
	}

	return s.transition(ctx, quoteID, models.QuoteStatusAccepted,
		models.QuoteStatusAwaitingPayment, "payment_record_created", nil, nil)
}

func (s *quoteService) explainAcceptFailure(ctx context.Context, quoteID, shipperID utils.SixID) error {
	quote, err := s.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return err
	}
	if quote.ShipperID != shipperID {
		return NewPermissionError("cotação não pertence a este embarcador")
	}
	if quote.AcceptedResponseID != nil {
		return NewConflictError("cotação %s já possui resposta aceita", quoteID.String())
	}
	return NewValidationError("cotação em status %s não permite aceite", quote.Status)
}

// ConfirmPayment is driven by the gateway webhook.
func (s *quoteService) ConfirmPayment(ctx context.Context, quoteID utils.SixID, approved bool, externalRef string) (*models.Quote, error) {
	status := models.PaymentRefused
	if approved {
		status = models.PaymentApproved
	}
	now := s.clock.Now().UTC()
	res, err := s.db.Collection(paymentsCollection).UpdateOne(ctx,
		bson.M{"quote_id": quoteID, "status": models.PaymentPending},
		bson.M{"$set": bson.M{"status": status, "external_ref": externalRef, "updated_at": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to update payment for quote %s: %w", quoteID.String(), err)
	}
	if res.MatchedCount == 0 {
		return nil, NewValidationError("nenhum pagamento pendente para a cotação %s", quoteID.String())
	}
	if !approved {
		return s.FindQuoteByID(ctx, quoteID)
	}

	code, err := generateCollectionCode()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, quoteID, models.QuoteStatusAwaitingPayment,
		models.QuoteStatusAwaitingCollection, "payment_approved", nil,
		bson.M{"collection_code": code})
}

// ConfirmCollection compares the code presented by the carrier at pickup with
// the one issued on payment approval.
func (s *quoteService) ConfirmCollection(ctx context.Context, quoteID, carrierID utils.SixID, code string) (*models.Quote, error) {
	if err := s.requireAcceptedCarrier(ctx, quoteID, carrierID); err != nil {
		return nil, err
	}
	quote, err := s.transition(ctx, quoteID, models.QuoteStatusAwaitingCollection,
		models.QuoteStatusCollected, "collection_confirmed",
		bson.M{"collection_code": code}, nil)
	if err != nil {
		// Distinguish a wrong code from a wrong status.
		if IsValidation(err) {
			current, findErr := s.FindQuoteByID(ctx, quoteID)
			if findErr == nil && current.Status == models.QuoteStatusAwaitingCollection {
				return nil, NewValidationError("código de confirmação inválido")
			}
		}
		return nil, err
	}
	return quote, nil
}

// AttachDocument stores the transport document (CT-e/CIOT) and moves the
// quote into transit.
func (s *quoteService) AttachDocument(ctx context.Context, quoteID, carrierID utils.SixID, docType string, payload []byte) (*models.Quote, error) {
	if len(payload) == 0 {
		return nil, NewValidationError("documento de transporte vazio")
	}
	if docType != "cte" && docType != "ciot" {
		return nil, NewValidationError("tipo de documento inválido: %s", docType)
	}
	if err := s.requireAcceptedCarrier(ctx, quoteID, carrierID); err != nil {
		return nil, err
	}

	key, err := s.docStore.PutDocument(ctx, quoteID.String(), docType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s for quote %s: %w", docType, quoteID.String(), err)
	}

	return s.transition(ctx, quoteID, models.QuoteStatusCollected,
		models.QuoteStatusInTransit, "document_submitted", nil,
		bson.M{"document_key": key, "document_type": docType})
}

// AddTracking appends a tracking point; it is not a lifecycle transition.
func (s *quoteService) AddTracking(ctx context.Context, quoteID, carrierID utils.SixID, event models.TrackingEvent) error {
	if event.Description == "" {
		return NewValidationError("descrição do rastreamento é obrigatória")
	}
	if err := s.requireAcceptedCarrier(ctx, quoteID, carrierID); err != nil {
		return err
	}
	event.At = s.clock.Now().UTC()
	res, err := s.db.Collection(quotesCollection).UpdateOne(ctx,
		bson.M{"_id": quoteID, "status": models.QuoteStatusInTransit},
		bson.M{"$push": bson.M{"tracking": event}, "$set": bson.M{"updated_at": event.At}})
	if err != nil {
		return fmt.Errorf("failed to append tracking on quote %s: %w", quoteID.String(), err)
	}
	if res.MatchedCount == 0 {
		quote, findErr := s.FindQuoteByID(ctx, quoteID)
		if findErr != nil {
			return findErr
		}
		return NewValidationError("cotação em status %s não aceita rastreamento", quote.Status)
	}
	return nil
}

// FinalizeDelivery stores the proof of delivery and hands the quote to CT-e
// review. Settlement only happens after approval.
func (s *quoteService) FinalizeDelivery(ctx context.Context, quoteID, carrierID utils.SixID, proof []byte) (*models.Quote, error) {
	if len(proof) == 0 {
		return nil, NewValidationError("comprovante de entrega vazio")
	}
	if err := s.requireAcceptedCarrier(ctx, quoteID, carrierID); err != nil {
		return nil, err
	}

	key, err := s.docStore.PutDocument(ctx, quoteID.String(), "proof", proof)
	if err != nil {
		return nil, fmt.Errorf("failed to store delivery proof for quote %s: %w", quoteID.String(), err)
	}

	return s.transition(ctx, quoteID, models.QuoteStatusInTransit,
		models.QuoteStatusAwaitingCteApproval, "delivery_proof_submitted", nil,
		bson.M{"proof_key": key})
}

// ApproveCte finalizes the quote and records the platform fee on the payment.
func (s *quoteService) ApproveCte(ctx context.Context, quoteID utils.SixID) (*models.Quote, error) {
	quote, err := s.transition(ctx, quoteID, models.QuoteStatusAwaitingCteApproval,
		models.QuoteStatusFinalized, "cte_approved", nil, nil)
	if err != nil {
		return nil, err
	}

	var payment models.Payment
	err = s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"quote_id": quoteID}).Decode(&payment)
	if err != nil {
		return nil, fmt.Errorf("finalized quote %s has no payment record: %w", quoteID.String(), err)
	}
	fee := models.Money{
		Value:        payment.Amount.Value * s.cfg.PlatformFeePercent / 100,
		CurrencyCode: payment.Amount.CurrencyCode,
	}
	_, err = s.db.Collection(paymentsCollection).UpdateOne(ctx,
		bson.M{"_id": payment.ID},
		bson.M{"$set": bson.M{"platform_fee": fee, "updated_at": s.clock.Now().UTC()}})
	if err != nil {
		return nil, fmt.Errorf("failed to record platform fee for quote %s: %w", quoteID.String(), err)
	}

	return quote, nil
}

// CancelQuote terminates a quote from any non-terminal state. If a concurrent
// transition moves the quote first, the caller gets a conflict and should
// re-read before retrying.
func (s *quoteService) CancelQuote(ctx context.Context, quoteID, requesterID utils.SixID, isAdmin bool) (*models.Quote, error) {
	quote, err := s.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && quote.ShipperID != requesterID {
		return nil, NewPermissionError("apenas o embarcador ou um administrador pode cancelar")
	}
	if quote.Status.Terminal() {
		return nil, NewValidationError("cotação em status %s não pode ser cancelada", quote.Status)
	}
	return s.transition(ctx, quoteID, quote.Status, models.QuoteStatusCancelled, "cancelled", nil, nil)
}

// ExpireOverdue sweeps quotes whose visibility window has elapsed without an
// acceptance. Safe to run concurrently with user-triggered transitions: the
// status filter makes each document update a no-op if a transition won first.
func (s *quoteService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	filter := bson.M{
		"status":        bson.M{"$in": respondableStatuses()},
		"visible_until": bson.M{"$lte": now},
	}
	cursor, err := s.db.Collection(quotesCollection).Find(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error listing overdue quotes: %w", err)
	}
	var overdue []models.Quote
	if err := cursor.All(ctx, &overdue); err != nil {
		return 0, fmt.Errorf("error decoding overdue quotes: %w", err)
	}

	expired := 0
	for _, quote := range overdue {
		_, err := s.transition(ctx, quote.ID, quote.Status,
			models.QuoteStatusExpired, "visibility_elapsed",
			bson.M{"visible_until": bson.M{"$lte": now}}, nil)
		if err != nil {
			// Lost to a concurrent transition (e.g. an accept); skip.
			if IsValidation(err) || IsConflict(err) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// transition executes one guarded status change. The quote must currently be
// in from; extraFilter adds commit-time guards (e.g. collection code match)
// and extraSet additional fields to write.
func (s *quoteService) transition(ctx context.Context, quoteID utils.SixID, from, to models.QuoteStatus, event string, extraFilter, extraSet bson.M) (*models.Quote, error) {
	if !from.CanTransitionTo(to) {
		return nil, NewValidationError("transição %s → %s não existe no ciclo de vida", from, to)
	}
	now := s.clock.Now().UTC()

	filter := bson.M{"_id": quoteID, "status": from}
	for k, v := range extraFilter {
		filter[k] = v
	}
	set := bson.M{"status": to, "updated_at": now}
	for k, v := range extraSet {
		set[k] = v
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": models.StatusChange{From: from, To: to, Event: event, At: now}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var quote models.Quote
	err := s.db.Collection(quotesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, findErr := s.FindQuoteByID(ctx, quoteID)
			if findErr != nil {
				return nil, findErr
			}
			if current.Status == to {
				return nil, NewConflictError("cotação %s já está em %s", quoteID.String(), to)
			}
			return nil, NewValidationError("transição %s inválida a partir do status %s", event, current.Status)
		}
		return nil, fmt.Errorf("failed transition %s on quote %s: %w", event, quoteID.String(), err)
	}

	s.emitStatusChange(ctx, quoteID, from, to, event, now)
	if to.Terminal() {
		s.closeConversation(ctx, quoteID)
	}
	return &quote, nil
}

// requireAcceptedCarrier ensures the caller is the carrier whose response was
// accepted on this quote.
func (s *quoteService) requireAcceptedCarrier(ctx context.Context, quoteID, carrierID utils.SixID) error {
	quote, err := s.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return err
	}
	if quote.AcceptedResponseID == nil {
		return NewValidationError("cotação %s ainda não possui resposta aceita", quoteID.String())
	}
	var response models.QuoteResponse
	err = s.db.Collection(responsesCollection).FindOne(ctx, bson.M{"_id": *quote.AcceptedResponseID}).Decode(&response)
	if err != nil {
		// A quote pointing at a missing accepted response is a corrupted
		// invariant; halt the operation rather than guess.
		return fmt.Errorf("quote %s references missing accepted response: %w", quoteID.String(), err)
	}
	if response.CarrierID != carrierID {
		return NewPermissionError("transportador não é o responsável por esta cotação")
	}
	return nil
}

func (s *quoteService) closeConversation(ctx context.Context, quoteID utils.SixID) {
	if s.convService == nil {
		return
	}
	if err := s.convService.CloseForQuote(ctx, quoteID); err != nil {
		log.Printf("Failed to close conversation for quote %s: %v", quoteID.String(), err)
	}
}

func (s *quoteService) emitStatusChange(ctx context.Context, quoteID utils.SixID, from, to models.QuoteStatus, event string, at time.Time) {
	s.emit(ctx, events.KeyQuoteStatusChanged, events.NewEnvelope(events.KeyQuoteStatusChanged, events.QuoteStatusChanged{
		QuoteID: quoteID,
		From:    from,
		To:      to,
		Event:   event,
		At:      at,
	}))
}

func (s *quoteService) emit(ctx context.Context, key string, env events.Envelope) {
	if err := s.publisher.Publish(ctx, key, env); err != nil {
		log.Printf("Failed to publish %s: %v", key, err)
	}
}

func respondableStatuses() []models.QuoteStatus {
	return []models.QuoteStatus{models.QuoteStatusOpen, models.QuoteStatusVisualized, models.QuoteStatusInProgress}
}

const collectionCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

// generateCollectionCode issues the 6-character pickup code. Ambiguous
// characters are excluded because drivers read these over the phone.
func generateCollectionCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate collection code: %w", err)
	}
	for i := range buf {
		buf[i] = collectionCodeAlphabet[int(buf[i])%len(collectionCodeAlphabet)]
	}
	return string(buf), nil
}
