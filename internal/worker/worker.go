// Package worker runs the background delivery loop: it promotes due
// scheduled campaigns, drains the outbound queue through the mailer and
// marks campaigns completed once their queue is empty.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/mailer"
	"github.com/secsim/phishportal/internal/metrics"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/queue"
	"github.com/secsim/phishportal/internal/repository"
)

// Repos bundles the repositories the worker needs
type Repos struct {
	Campaigns  *repository.CampaignRepository
	Templates  *repository.TemplateRepository
	Recipients *repository.RecipientRepository
	Emails     *repository.EmailRepository
}

// Worker polls the queue and delivers pending messages
type Worker struct {
	cfg     config.Config
	repos   Repos
	queue   *queue.Storage
	mailer  *mailer.Mailer
	metrics *metrics.Metrics
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Config, repos Repos, q *queue.Storage, m *mailer.Mailer, mx *metrics.Metrics, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:     cfg,
		repos:   repos,
		queue:   q,
		mailer:  m,
		metrics: mx,
		logger:  logger.With("component", "worker"),
	}
}

// Start launches the poll loop. Call Stop to shut it down.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("worker started", "poll_interval", w.cfg.Queue.PollInterval.String())
}

// Stop signals the loop to exit and waits for it
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Queue.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.startDueCampaigns(ctx)
	w.drainQueue(ctx)
	w.completeDrainedCampaigns()
	w.updateQueueGauge()
}

// startDueCampaigns promotes SCHEDULED campaigns whose time has come
func (w *Worker) startDueCampaigns(ctx context.Context) {
	due, err := w.repos.Campaigns.DueScheduled(time.Now())
	if err != nil {
		w.logger.Error("failed to list due campaigns", "error", err)
		return
	}
	for i := range due {
		c := &due[i]
		if err := w.EnqueueCampaign(c); err != nil {
			w.logger.Error("failed to start scheduled campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		w.logger.Info("scheduled campaign started", "campaign_id", c.ID, "name", c.Name)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// EnqueueCampaign renders one message per active campaign recipient,
// enqueues them all and moves the campaign to ACTIVE. Handlers call it
// for immediate sends; the worker calls it for scheduled ones.
func (w *Worker) EnqueueCampaign(c *models.Campaign) error {
	tmpl, err := w.repos.Templates.GetByID(c.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if tmpl == nil {
		return fmt.Errorf("template %s not found", c.TemplateID)
	}

	links, recipients, err := w.repos.Recipients.ActiveLinks(c.ID)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}

	fromEmail := tmpl.SenderEmail
	fromName := tmpl.SenderName
	if fromEmail == "" {
		fromEmail = w.cfg.Mailer.FromEmail
	}
	if fromName == "" {
		fromName = w.cfg.Mailer.FromName
	}

	queued := 0
	for i := range links {
		link := &links[i]
		rec, ok := recipients[link.RecipientID]
		if !ok {
			continue
		}

		rctx := mailer.RecipientContext(&rec, w.cfg.Server.BaseURL, link.TrackingID)
		subject, html, text := mailer.Render(tmpl, rctx)

		msg := queue.NewMessage()
		msg.CampaignID = c.ID
		msg.CampaignRecipientID = link.ID
		msg.FromEmail = fromEmail
		msg.FromName = fromName
		msg.To = rec.Email
		msg.Subject = subject
		msg.BodyText = text
		msg.BodyHTML = html

		if err := w.queue.Enqueue(msg); err != nil {
			return fmt.Errorf("failed to enqueue message: %w", err)
		}
		w.metrics.EmailsQueuedTotal.Inc()
		queued++
	}

	if err := w.repos.Campaigns.SetStatus(c.ID, models.CampaignActive); err != nil {
		return fmt.Errorf("failed to activate campaign: %w", err)
	}

	w.logger.Info("campaign enqueued", "campaign_id", c.ID, "messages", queued)
	return nil
}

// drainQueue delivers one batch of pending messages
func (w *Worker) drainQueue(ctx context.Context) {
	batch, err := w.queue.DequeueBatch(w.cfg.Queue.BatchSize)
	if err != nil {
		w.logger.Error("failed to dequeue batch", "error", err)
		return
	}

	for _, msg := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.deliver(ctx, msg)
	}
}

func (w *Worker) deliver(ctx context.Context, msg *queue.Message) {
	env := &mailer.Envelope{
		FromEmail: msg.FromEmail,
		FromName:  msg.FromName,
		To:        msg.To,
		Subject:   msg.Subject,
		BodyText:  msg.BodyText,
		BodyHTML:  msg.BodyHTML,
	}

	if err := w.mailer.Send(ctx, env); err != nil {
		w.logger.Warn("delivery failed",
			"message_id", msg.ID,
			"to", msg.To,
			"attempts", msg.Attempts+1,
			"error", err,
		)
		if nerr := w.queue.Nack(msg, err, w.cfg.Queue.MaxAttempts); nerr != nil {
			w.logger.Error("failed to nack message", "message_id", msg.ID, "error", nerr)
		}
		if msg.Attempts >= w.cfg.Queue.MaxAttempts {
			w.metrics.EmailsFailedTotal.Inc()
		}
		return
	}

	if err := w.queue.Ack(msg); err != nil {
		w.logger.Error("failed to ack message", "message_id", msg.ID, "error", err)
	}
	w.metrics.EmailsSentTotal.Inc()

	email := &models.CampaignEmail{
		CampaignID:          msg.CampaignID,
		CampaignRecipientID: msg.CampaignRecipientID,
		Subject:             msg.Subject,
		BodyText:            msg.BodyText,
		BodyHTML:            msg.BodyHTML,
		SentAt:              time.Now(),
	}
	if err := w.repos.Emails.Create(email); err != nil {
		w.logger.Error("failed to record sent email", "message_id", msg.ID, "error", err)
	}
}

// completeDrainedCampaigns moves ACTIVE campaigns with an empty queue to
// COMPLETED and stamps their sent time.
func (w *Worker) completeDrainedCampaigns() {
	active, _, err := w.repos.Campaigns.List(models.CampaignFilter{Status: models.CampaignActive, Limit: 1000})
	if err != nil {
		w.logger.Error("failed to list active campaigns", "error", err)
		return
	}
	for i := range active {
		c := &active[i].Campaign
		pending, err := w.queue.PendingForCampaign(c.ID)
		if err != nil {
			w.logger.Error("failed to count pending messages", "campaign_id", c.ID, "error", err)
			continue
		}
		if pending > 0 {
			continue
		}
		if err := w.repos.Campaigns.MarkSent(c.ID, time.Now()); err != nil {
			w.logger.Error("failed to complete campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		w.logger.Info("campaign completed", "campaign_id", c.ID, "name", c.Name)
	}
}

func (w *Worker) updateQueueGauge() {
	stats, err := w.queue.Stats()
	if err != nil {
		return
	}
	w.metrics.QueuePending.Set(float64(stats.Pending))
}
