// Package documents implements the document workflow: creation, routing to
// recipients, signing, comments and the views around them.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"edms/internal/config"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/domain/services"
	"edms/internal/service/access"
	"edms/internal/service/notify"
	"edms/internal/service/workflow"
	"edms/internal/storage"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Notifier raises notifications after a change has committed
type Notifier interface {
	Notify(ctx context.Context, recipient *models.User, doc *models.Document, typ models.NotificationType, extra notify.Extra)
	NotifyAll(ctx context.Context, recipients []models.User, doc *models.Document, typ models.NotificationType, extra notify.Extra)
}

// documentService implements the DocumentService interface
type documentService struct {
	docRepo   repositories.DocumentRepository
	sigRepo   repositories.SignatureRepository
	logRepo   repositories.DocumentLogRepository
	userRepo  repositories.UserRepository
	txManager repositories.TransactionManager
	lifecycle *workflow.Lifecycle
	audit     *workflow.AuditRecorder
	policy    *access.Policy
	notifier  Notifier
	files     storage.FileStore
	logger    *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docRepo repositories.DocumentRepository,
	sigRepo repositories.SignatureRepository,
	logRepo repositories.DocumentLogRepository,
	userRepo repositories.UserRepository,
	txManager repositories.TransactionManager,
	notifier Notifier,
	files storage.FileStore,
	logger *slog.Logger,
) services.DocumentService {
	return &documentService{
		docRepo:   docRepo,
		sigRepo:   sigRepo,
		logRepo:   logRepo,
		userRepo:  userRepo,
		txManager: txManager,
		lifecycle: workflow.NewLifecycle(docRepo, sigRepo, logger),
		audit:     workflow.NewAuditRecorder(logRepo),
		policy:    access.NewPolicy(docRepo),
		notifier:  notifier,
		files:     files,
		logger:    logger,
	}
}

func validateTitle(title string) error {
	return validation.Validate(strings.TrimSpace(title),
		validation.Required.Error("title is required"),
		validation.RuneLength(1, config.MaxDocumentTitleLength),
	)
}

func (s *documentService) validateCreate(req *services.CreateDocumentRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.By(func(any) error { return validateTitle(req.Title) })),
		validation.Field(&req.FileKey, validation.Length(0, 1024)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// resolveRecipients loads the users behind ids. Unknown ids are a
// validation error.
func (s *documentService) resolveRecipients(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	found := make(map[int64]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("recipient %d does not exist", id)}
		}
	}
	return users, nil
}

// pick returns the users whose id is in ids
func pick(users []models.User, ids []int64) []models.User {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []models.User{}
	for _, u := range users {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	return out
}

func (s *documentService) CreateDocument(ctx context.Context, actor *models.User, req *services.CreateDocumentRequest) (*models.Document, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	recipients, err := s.resolveRecipients(ctx, req.RecipientIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkFile(ctx, req.FileKey); err != nil {
		return nil, err
	}

	doc := &models.Document{
		Title:   strings.TrimSpace(req.Title),
		FileKey: req.FileKey,
		OwnerID: actor.ID,
		Status:  models.StatusDraft,
	}

	var added []int64
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.docRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		var err error
		if added, err = s.lifecycle.AddRecipients(txCtx, doc.ID, req.RecipientIDs); err != nil {
			return err
		}
		if _, err := s.lifecycle.Refresh(txCtx, doc); err != nil {
			return err
		}
		_, err = s.audit.Record(txCtx, doc.ID, actor.ID, models.ActionCreate, "Document created")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"document_id", doc.ID,
		"owner_id", actor.ID,
		"recipients", len(added),
		"status", doc.Status,
	)

	s.notifier.NotifyAll(ctx, pick(recipients, added), doc, models.NotificationNewDocument, notify.Extra{ActorName: actor.FullName})
	return doc, nil
}

func (s *documentService) UpdateDocument(ctx context.Context, actor *models.User, id int64, req *services.UpdateDocumentRequest) (*models.Document, error) {
	var doc *models.Document
	var recipients []models.User
	var added []int64
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		if doc, err = s.docRepo.GetForUpdate(txCtx, id); err != nil {
			return err
		}
		// Edit access is checked before the payload is inspected
		if _, err := s.policy.Authorize(txCtx, actor, doc, access.Edit); err != nil {
			return err
		}
		if recipients, err = s.validateUpdate(txCtx, req); err != nil {
			return err
		}

		if req.Title != nil {
			doc.Title = strings.TrimSpace(*req.Title)
		}
		if req.FileKey != nil {
			doc.FileKey = *req.FileKey
		}
		if err := s.docRepo.Update(txCtx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		if req.RecipientIDs != nil {
			if added, _, err = s.lifecycle.SyncRecipients(txCtx, doc.ID, *req.RecipientIDs); err != nil {
				return err
			}
		}
		if _, err := s.lifecycle.Refresh(txCtx, doc); err != nil {
			return err
		}
		_, err = s.audit.Record(txCtx, doc.ID, actor.ID, models.ActionEdit, "Document updated")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document updated",
		"document_id", doc.ID,
		"user_id", actor.ID,
		"added_recipients", len(added),
		"status", doc.Status,
	)

	s.notifier.NotifyAll(ctx, pick(recipients, added), doc, models.NotificationDocumentUpdated, notify.Extra{ActorName: actor.FullName})
	return doc, nil
}

// validateUpdate checks the fields present in req and resolves the new
// recipient list
func (s *documentService) validateUpdate(ctx context.Context, req *services.UpdateDocumentRequest) ([]models.User, error) {
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
		}
	}
	if req.FileKey != nil {
		if err := s.checkFile(ctx, *req.FileKey); err != nil {
			return nil, err
		}
	}
	if req.RecipientIDs == nil {
		return nil, nil
	}
	return s.resolveRecipients(ctx, *req.RecipientIDs)
}

func (s *documentService) DeleteDocument(ctx context.Context, actor *models.User, id int64) error {
	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if _, err := s.policy.Authorize(txCtx, actor, doc, access.Delete); err != nil {
			return err
		}
		if err := s.docRepo.Delete(txCtx, id); err != nil {
			return err
		}
		s.logger.Info("document deleted", "document_id", id, "user_id", actor.ID)
		return nil
	})
}

func (s *documentService) SignDocument(ctx context.Context, actor *models.User, id int64) (*models.Document, error) {
	var doc *models.Document
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		if doc, err = s.docRepo.GetForUpdate(txCtx, id); err != nil {
			return err
		}
		if _, err := s.policy.Authorize(txCtx, actor, doc, access.Sign); err != nil {
			return err
		}

		if _, err := s.sigRepo.Get(txCtx, doc.ID, actor.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.ValidationError{Message: "you are not a recipient of this document"}
			}
			return err
		}
		signed, err := s.sigRepo.MarkSigned(txCtx, doc.ID, actor.ID, nowUTC())
		if err != nil {
			return err
		}
		if !signed {
			return &domain.ConflictError{
				Message:      "document already signed",
				ResourceType: "signature",
				ResourceID:   fmt.Sprintf("%d/%d", doc.ID, actor.ID),
			}
		}

		if _, err := s.lifecycle.Refresh(txCtx, doc); err != nil {
			return err
		}
		_, err = s.audit.Record(txCtx, doc.ID, actor.ID, models.ActionSign, "Document signed")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document signed", "document_id", doc.ID, "user_id", actor.ID, "status", doc.Status)
	return doc, nil
}

func (s *documentService) AddComment(ctx context.Context, actor *models.User, id int64, req *services.CommentRequest) (*models.DocumentLog, error) {
	text := strings.TrimSpace(req.Comment)
	err := validation.Validate(text,
		validation.Required.Error("comment must not be empty"),
		validation.RuneLength(1, config.MaxCommentLength),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: comment: %v", domain.ErrValidation, err)
	}

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.policy.Authorize(ctx, actor, doc, access.Comment); err != nil {
		return nil, err
	}

	var entry *models.DocumentLog
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.audit.Record(txCtx, doc.ID, actor.ID, models.ActionComment, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	entry.DocumentTitle = doc.Title
	entry.UserEmail = actor.Email
	entry.UserFullName = actor.FullName

	s.logger.Info("comment added", "document_id", doc.ID, "user_id", actor.ID)

	owner, err := s.userRepo.GetByID(ctx, doc.OwnerID)
	if err != nil {
		s.logger.Warn("comment notification skipped", "document_id", doc.ID, "error", err)
		return entry, nil
	}
	s.notifier.Notify(ctx, owner, doc, models.NotificationNewComment, notify.Extra{
		ActorName: actor.FullName,
		Comment:   text,
	})
	return entry, nil
}

func (s *documentService) GetDocument(ctx context.Context, actor *models.User, id int64) (*models.DocumentDetail, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	standing, err := s.policy.Authorize(ctx, actor, doc, access.View)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetByID(ctx, doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	recipients, err := s.docRepo.ListRecipients(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	sigs, err := s.sigRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	comments, err := s.logRepo.List(ctx, models.LogFilter{DocumentID: &doc.ID, Action: models.ActionComment})
	if err != nil {
		return nil, err
	}

	detail := &models.DocumentDetail{
		Document:   *doc,
		Owner:      owner.Summary(),
		Recipients: make([]models.UserSummary, 0, len(recipients)),
		Signatures: sigs,
		Comments:   comments,
		CanEdit:    standing.Allows(access.Edit),
		CanComment: standing.Allows(access.Comment),
	}
	for i := range recipients {
		detail.Recipients = append(detail.Recipients, recipients[i].Summary())
	}
	for _, sig := range sigs {
		if sig.UserID == actor.ID && !sig.IsSigned() {
			detail.CanSign = true
		}
	}
	return detail, nil
}

func (s *documentService) ListDocuments(ctx context.Context, actor *models.User, req *services.ListDocumentsRequest) ([]models.DocumentListItem, error) {
	filter := models.DocumentFilter{
		Title:         strings.TrimSpace(req.Title),
		RecipientName: strings.TrimSpace(req.Recipient),
	}
	if req.Status != "" {
		status, err := models.ParseDocumentStatus(req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		filter.Status = status
	}
	if !actor.IsAdmin() {
		filter.OwnerID = &actor.ID
	}
	return s.docRepo.List(ctx, filter)
}

func (s *documentService) ListReceived(ctx context.Context, actor *models.User) ([]models.DocumentListItem, error) {
	return s.docRepo.List(ctx, models.DocumentFilter{RecipientID: &actor.ID})
}

func (s *documentService) GetDocumentLogs(ctx context.Context, actor *models.User, id int64) ([]models.DocumentLog, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.policy.Authorize(ctx, actor, doc, access.View); err != nil {
		return nil, err
	}
	return s.logRepo.List(ctx, models.LogFilter{DocumentID: &doc.ID})
}

func (s *documentService) FileURL(ctx context.Context, actor *models.User, id int64) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := s.policy.Authorize(ctx, actor, doc, access.View); err != nil {
		return "", err
	}
	if doc.FileKey == "" {
		return "", &domain.NotFoundError{Message: "document has no file"}
	}
	return s.files.PresignedURL(ctx, doc.FileKey, config.FileURLTTL)
}

func (s *documentService) UploadFile(ctx context.Context, actor *models.User, filename, contentType string, r io.Reader, size int64) (string, error) {
	if size > config.MaxUploadSize {
		return "", &domain.ValidationError{Message: fmt.Sprintf("file exceeds %d bytes", config.MaxUploadSize)}
	}
	if strings.TrimSpace(filename) == "" {
		return "", &domain.ValidationError{Message: "file name is required"}
	}
	key, err := s.files.Put(ctx, filename, contentType, r, size)
	if err != nil {
		return "", err
	}
	s.logger.Info("file uploaded", "key", key, "user_id", actor.ID, "size", size)
	return key, nil
}

// checkFile rejects keys that do not name a stored object. With storage
// disabled keys are accepted as is.
func (s *documentService) checkFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	ok, err := s.files.Exists(ctx, key)
	if errors.Is(err, storage.ErrDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check file: %w", err)
	}
	if !ok {
		return &domain.ValidationError{Message: fmt.Sprintf("file %q not found", key)}
	}
	return nil
}
