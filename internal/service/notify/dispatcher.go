package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/metrics"
)

// Extra carries optional template fields of a notification
type Extra struct {
	ActorName string
	Comment   string
}

// Dispatcher raises in-app notifications and sends the matching email to
// users who opted in. Nothing it does can fail the calling operation.
type Dispatcher struct {
	notifRepo repositories.NotificationRepository
	outbox    Outbox
	catalog   *Catalog
	metrics   *metrics.Metrics
	logger    *slog.Logger
	baseURL   string
}

// NewDispatcher creates a dispatcher. baseURL is used to build document
// links in emails and may be empty.
func NewDispatcher(
	notifRepo repositories.NotificationRepository,
	outbox Outbox,
	catalog *Catalog,
	m *metrics.Metrics,
	logger *slog.Logger,
	baseURL string,
) *Dispatcher {
	return &Dispatcher{
		notifRepo: notifRepo,
		outbox:    outbox,
		catalog:   catalog,
		metrics:   m,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Notify creates a notification for recipient about doc and, if the
// recipient wants email, queues one. Failures are logged and dropped.
// Call it after the transaction of the triggering change has committed.
func (d *Dispatcher) Notify(ctx context.Context, recipient *models.User, doc *models.Document, typ models.NotificationType, extra Extra) {
	n := &models.Notification{
		UserID:     recipient.ID,
		DocumentID: doc.ID,
		Type:       typ,
	}
	if err := d.notifRepo.Create(ctx, n); err != nil {
		d.metrics.Notifications.WithLabelValues(string(typ), "failed").Inc()
		d.logger.Error("create notification failed",
			"user_id", recipient.ID,
			"document_id", doc.ID,
			"type", typ,
			"error", err,
		)
	} else {
		d.metrics.Notifications.WithLabelValues(string(typ), "created").Inc()
		d.logger.Info("notification created", "user_id", recipient.ID, "document_id", doc.ID, "type", typ)
	}

	if !recipient.EmailNotifications {
		return
	}

	data := TemplateData{
		RecipientName: displayName(recipient),
		DocumentTitle: doc.Title,
		ActorName:     extra.ActorName,
		Comment:       extra.Comment,
		URL:           d.documentURL(doc.ID),
	}
	if err := d.send(ctx, recipient.Email, string(typ), data); err != nil {
		d.logger.Warn("notification email not queued",
			"user_id", recipient.ID,
			"document_id", doc.ID,
			"type", typ,
			"error", err,
		)
	}
}

// NotifyAll notifies every user in recipients
func (d *Dispatcher) NotifyAll(ctx context.Context, recipients []models.User, doc *models.Document, typ models.NotificationType, extra Extra) {
	for i := range recipients {
		d.Notify(ctx, &recipients[i], doc, typ, extra)
	}
}

// SendPasswordReset emails a reset link. Unlike notifications the error is
// returned, because the email is the whole point of the request.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error {
	return d.send(ctx, user.Email, TemplatePasswordReset, TemplateData{
		RecipientName: displayName(user),
		URL:           resetURL,
	})
}

func (d *Dispatcher) send(ctx context.Context, to, template string, data TemplateData) error {
	subject, body, err := d.catalog.Render(template, data)
	if err != nil {
		return err
	}
	if err := d.outbox.Enqueue(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func (d *Dispatcher) documentURL(id int64) string {
	if d.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/documents/%d", d.baseURL, id)
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
