package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/email"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

const (
	TypeEmailDelivery = "email:deliver"
	TypeQuoteExpire   = "quote:expire"
	TypeQuoteNotify   = "quote:notify"
)

// ExpireSweepSpec schedules the overdue-quote sweep. Expiry is also applied
// lazily on read, so the sweep only has to catch quotes nobody is looking at.
const ExpireSweepSpec = "@every 1h"

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// NewQuoteNotifyTask builds the fan-out task enqueued right after a quote is
// created.
func NewQuoteNotifyTask(quoteID utils.SixID) (*asynq.Task, error) {
	payload, err := json.Marshal(QuoteNotifyPayload{QuoteID: quoteID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote notify payload: %w", err)
	}
	return asynq.NewTask(TypeQuoteNotify, payload), nil
}

// NewQuoteExpireTask builds the periodic sweep task, registered on the
// scheduler in bg mode.
func NewQuoteExpireTask() *asynq.Task {
	return asynq.NewTask(TypeQuoteExpire, nil)
}

// SetupScheduler registers the periodic tasks. The caller starts and stops
// the returned scheduler alongside the task server.
func SetupScheduler(rdb *redis.Client) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: rdb.Options().Addr}, nil)
	if _, err := scheduler.Register(ExpireSweepSpec, NewQuoteExpireTask()); err != nil {
		return nil, fmt.Errorf("failed to register quote expiry sweep: %w", err)
	}
	return scheduler, nil
}

// NewEmailDeliveryTask builds a plain email delivery task.
func NewEmailDeliveryTask(to, subject, body string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payload), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	quoteService   services.IQuoteService
	matcherService services.IMatcherService
	userService    services.IUserService
	taskClient     *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	quoteService services.IQuoteService,
	matcherService services.IMatcherService,
	userService services.IUserService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		quoteService:   quoteService,
		matcherService: matcherService,
		userService:    userService,
		taskClient:     taskClient,
	}
}

// SetupServer configures an Asynq server and the mux with all handlers
// registered. The caller starts and stops it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeQuoteExpire, processor.HandleQuoteExpireTask)
	mux.HandleFunc(TypeQuoteNotify, processor.HandleQuoteNotifyTask)

	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload carries a fully rendered email.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{payload.To}, payload.Subject, payload.Body)
	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, rawMessage); err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}
	return nil
}

// HandleQuoteExpireTask sweeps quotes past their visibility window.
func (p *TaskProcessor) HandleQuoteExpireTask(ctx context.Context, t *asynq.Task) error {
	expired, err := p.quoteService.ExpireOverdue(ctx)
	if err != nil {
		log.Printf("Quote expiry sweep failed: %v", err)
		return err
	}
	if expired > 0 {
		log.Printf("Quote expiry sweep: %d quote(s) expired", expired)
	}
	return nil
}

// QuoteNotifyPayload identifies the freshly created quote to announce.
type QuoteNotifyPayload struct {
	QuoteID string `json:"quote_id"`
}

// HandleQuoteNotifyTask evaluates carrier eligibility for a new quote and
// enqueues one email per eligible carrier.
func (p *TaskProcessor) HandleQuoteNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload QuoteNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal quote notify payload: %v: %w", err, asynq.SkipRetry)
	}
	quoteID, err := utils.ParseSixID(payload.QuoteID)
	if err != nil {
		return fmt.Errorf("invalid quote ID in payload: %w", asynq.SkipRetry)
	}

	quote, err := p.quoteService.FindQuoteByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("quote %s not found: %w", payload.QuoteID, asynq.SkipRetry)
		}
		return err
	}
	if !quote.Status.Respondable() {
		// Already moved on; nothing to announce.
		return nil
	}

	carrierIDs, err := p.matcherService.EligibleCarriers(ctx, quote)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Nova cotação de frete: %s → %s", quote.OriginCity, quote.DestinationCity)
	body := fmt.Sprintf(
		"Uma nova cotação compatível com sua cobertura está disponível.\r\n\r\nOrigem: %s/%s\r\nDestino: %s/%s\r\nColeta: %s\r\n\r\nAcesse a plataforma para enviar sua proposta.",
		quote.OriginCity, quote.OriginUF, quote.DestinationCity, quote.DestinationUF,
		quote.CollectionAt.Format("02/01/2006"),
	)

	for _, carrierID := range carrierIDs {
		carrier, err := p.userService.FindByID(ctx, carrierID)
		if err != nil {
			log.Printf("Skipping notification for unknown carrier %s: %v", carrierID.String(), err)
			continue
		}
		emailTask, err := NewEmailDeliveryTask(carrier.Email, subject, body)
		if err != nil {
			return err
		}
		if _, err := p.taskClient.EnqueueContext(ctx, emailTask, asynq.Queue("low")); err != nil {
			log.Printf("ERROR failed to enqueue notification email for carrier %s: %v", carrierID.String(), err)
			return err
		}
	}
	log.Printf("Quote %s announced to %d carrier(s)", payload.QuoteID, len(carrierIDs))
	return nil
}
