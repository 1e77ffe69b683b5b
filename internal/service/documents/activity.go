package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"edms/internal/config"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/domain/services"
	"edms/internal/service/access"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

const dateLayout = "2006-01-02"

// activityService implements the ActivityService interface
type activityService struct {
	docRepo   repositories.DocumentRepository
	logRepo   repositories.DocumentLogRepository
	notifRepo repositories.NotificationRepository
	userRepo  repositories.UserRepository
	policy    *access.Policy
	logger    *slog.Logger
}

// NewActivityService creates the service behind dashboards, notifications,
// the audit log and recipient search
func NewActivityService(
	docRepo repositories.DocumentRepository,
	logRepo repositories.DocumentLogRepository,
	notifRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) services.ActivityService {
	return &activityService{
		docRepo:   docRepo,
		logRepo:   logRepo,
		notifRepo: notifRepo,
		userRepo:  userRepo,
		policy:    access.NewPolicy(docRepo),
		logger:    logger,
	}
}

// Dashboard counts incoming, sent and signed documents. Admins get a chart
// of every document by status; everyone else gets incoming vs signed.
func (s *activityService) Dashboard(ctx context.Context, actor *models.User) (*models.Dashboard, error) {
	incoming, err := s.docRepo.CountByStatus(ctx, models.DocumentFilter{RecipientID: &actor.ID})
	if err != nil {
		return nil, fmt.Errorf("count incoming: %w", err)
	}
	sent, err := s.docRepo.CountByStatus(ctx, models.DocumentFilter{OwnerID: &actor.ID})
	if err != nil {
		return nil, fmt.Errorf("count sent: %w", err)
	}

	notifications, err := s.notifRepo.ListByUser(ctx, actor.ID, true, config.RecentItemsLimit)
	if err != nil {
		return nil, err
	}
	comments, err := s.logRepo.ListCommentsOnOwned(ctx, actor.ID, config.RecentItemsLimit)
	if err != nil {
		return nil, err
	}

	dash := &models.Dashboard{
		IncomingCount:       total(incoming),
		SentCount:           total(sent),
		SignedCount:         incoming[models.StatusSigned],
		RecentNotifications: notifications,
		RecentComments:      comments,
	}

	if actor.IsAdmin() {
		all, err := s.docRepo.CountByStatus(ctx, models.DocumentFilter{})
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		dash.Chart = models.ChartData{
			Labels: []string{"Draft", "Sent", "Signed"},
			Data:   []int{all[models.StatusDraft], all[models.StatusSent], all[models.StatusSigned]},
		}
	} else {
		dash.Chart = models.ChartData{
			Labels: []string{"Incoming", "Signed"},
			Data:   []int{dash.IncomingCount, dash.SignedCount},
		}
	}
	return dash, nil
}

func total(counts map[models.DocumentStatus]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

func (s *activityService) ListNotifications(ctx context.Context, actor *models.User) ([]models.Notification, error) {
	return s.notifRepo.ListByUser(ctx, actor.ID, false, 0)
}

func (s *activityService) MarkNotificationRead(ctx context.Context, actor *models.User, id int64) error {
	if err := s.notifRepo.MarkRead(ctx, id, actor.ID); err != nil {
		return err
	}
	s.logger.Debug("notification marked read", "notification_id", id, "user_id", actor.ID)
	return nil
}

func (s *activityService) CheckNotifications(ctx context.Context, actor *models.User) (*models.NotificationCheck, error) {
	count, err := s.notifRepo.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	check := &models.NotificationCheck{Count: count}
	if count == 0 {
		return check, nil
	}
	latest, err := s.notifRepo.ListByUser(ctx, actor.ID, true, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		check.Latest = &latest[0]
	}
	return check, nil
}

func (s *activityService) ListAuditLog(ctx context.Context, actor *models.User, req *services.AuditLogRequest) ([]models.DocumentLog, error) {
	if !actor.IsAdmin() {
		return nil, &domain.ForbiddenError{Message: "audit log is available to administrators only"}
	}

	filter := models.LogFilter{UserID: req.UserID}
	if req.Action != "" {
		action, err := models.ParseLogAction(req.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		filter.Action = action
	}
	// Dates that do not parse are ignored
	if from, err := time.Parse(dateLayout, req.DateFrom); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(dateLayout, req.DateTo); err == nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	return s.logRepo.List(ctx, filter)
}

// SearchUsers matches users by email or name. Users that already receive the
// document are flagged as selected.
func (s *activityService) SearchUsers(ctx context.Context, actor *models.User, query string, documentID *int64) ([]models.UserSummary, error) {
	query = strings.TrimSpace(query)

	selected := map[int64]bool{}
	var current []models.User
	if documentID != nil {
		doc, err := s.docRepo.GetByID(ctx, *documentID)
		if err != nil {
			return nil, err
		}
		if _, err := s.policy.Authorize(ctx, actor, doc, access.View); err != nil {
			return nil, err
		}
		if current, err = s.docRepo.ListRecipients(ctx, doc.ID); err != nil {
			return nil, err
		}
		for _, u := range current {
			selected[u.ID] = true
		}
	}

	users := current
	if len([]rune(query)) >= config.MinUserSearchLength {
		var err error
		if users, err = s.userRepo.Search(ctx, query, nil, config.UserSearchLimit); err != nil {
			return nil, err
		}
	}

	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		sum := users[i].Summary()
		sum.Selected = selected[sum.ID]
		out = append(out, sum)
	}
	return out, nil
}
