// Package transfer exports and imports users and documents as CSV or SQL
// files and produces full database dumps.
package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"edms/internal/auth"
	"edms/internal/config"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/domain/services"
	"edms/internal/metrics"
	"edms/internal/service/workflow"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type outcome string

const (
	outcomeCreated outcome = "created"
	outcomeUpdated outcome = "updated"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

// importComment is the audit comment of rows written by an import
const importComment = "Imported"

// transferService implements the TransferService interface
type transferService struct {
	userRepo  repositories.UserRepository
	docRepo   repositories.DocumentRepository
	txManager repositories.TransactionManager
	lifecycle *workflow.Lifecycle
	audit     *workflow.AuditRecorder
	registry  *Registry
	dumper    Dumper
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService creates the transfer service
func NewService(
	userRepo repositories.UserRepository,
	docRepo repositories.DocumentRepository,
	sigRepo repositories.SignatureRepository,
	logRepo repositories.DocumentLogRepository,
	txManager repositories.TransactionManager,
	registry *Registry,
	dumper Dumper,
	m *metrics.Metrics,
	logger *slog.Logger,
) services.TransferService {
	return &transferService{
		userRepo:  userRepo,
		docRepo:   docRepo,
		txManager: txManager,
		lifecycle: workflow.NewLifecycle(docRepo, sigRepo, logger),
		audit:     workflow.NewAuditRecorder(logRepo),
		registry:  registry,
		dumper:    dumper,
		metrics:   m,
		logger:    logger,
	}
}

func requireAdmin(actor *models.User) error {
	if !actor.IsAdmin() {
		return &domain.ForbiddenError{Message: "administrator role required"}
	}
	return nil
}

// Export reads everything inside one snapshot, then encodes it
func (s *transferService) Export(ctx context.Context, actor *models.User, entity services.Entity, format services.Format, w io.Writer) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	codec := s.registry.ForFormat(format)
	if codec == nil {
		return &domain.ValidationError{Message: fmt.Sprintf("unsupported format %q", format)}
	}

	switch entity {
	case services.EntityUsers:
		var records []UserRecord
		err := s.txManager.ExecSnapshot(ctx, func(txCtx context.Context) error {
			var err error
			records, err = s.exportUsers(txCtx)
			return err
		})
		if err != nil {
			return err
		}
		s.logger.Info("users exported", "format", format, "rows", len(records), "by", actor.ID)
		return codec.EncodeUsers(w, records)

	case services.EntityDocuments:
		var records []DocumentRecord
		err := s.txManager.ExecSnapshot(ctx, func(txCtx context.Context) error {
			var err error
			records, err = s.exportDocuments(txCtx)
			return err
		})
		if err != nil {
			return err
		}
		s.logger.Info("documents exported", "format", format, "rows", len(records), "by", actor.ID)
		return codec.EncodeDocuments(w, records)

	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unknown entity %q", entity)}
	}
}

// exportUsers lists users by id. Every row gets a fresh temporary password
// that an import will set; stored passwords never leave the database.
func (s *transferService) exportUsers(ctx context.Context) ([]UserRecord, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })

	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		temp, err := auth.GenerateTempPassword(config.TempPasswordLength)
		if err != nil {
			return nil, err
		}
		records = append(records, UserRecord{
			ID:           u.ID,
			Email:        u.Email,
			FullName:     u.FullName,
			Role:         u.Role.String(),
			DateJoined:   u.DateJoined,
			TempPassword: temp,
		})
	}
	return records, nil
}

func (s *transferService) exportDocuments(ctx context.Context) ([]DocumentRecord, error) {
	docs, err := s.docRepo.List(ctx, models.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, func(a, b models.DocumentListItem) int { return cmp.Compare(a.ID, b.ID) })

	records := make([]DocumentRecord, 0, len(docs))
	for _, d := range docs {
		rec := DocumentRecord{
			ID:         d.ID,
			Title:      d.Title,
			Status:     string(d.Status),
			Owner:      UserRef{ID: d.OwnerID, Email: d.OwnerEmail},
			Recipients: make([]UserRef, 0, len(d.Recipients)),
			CreatedAt:  d.CreatedAt,
		}
		for _, r := range d.Recipients {
			rec.Recipients = append(rec.Recipients, UserRef{ID: r.ID, Email: r.Email})
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *transferService) DumpDatabase(ctx context.Context, actor *models.User, w io.Writer) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	s.logger.Info("database dump requested", "by", actor.ID)
	return s.dumper.Dump(ctx, w)
}

// Import applies every row in its own transaction. A failing row is
// reported and skipped; the rest of the file is still applied.
func (s *transferService) Import(ctx context.Context, actor *models.User, entity services.Entity, filename string, r io.Reader) (*services.ImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	codec := s.registry.ForFile(filename)
	if codec == nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported file type %q", filename)}
	}

	result := &services.ImportResult{Errors: []services.ImportError{}}
	record := func(o outcome, line int, key string, err error) {
		result.Summary.TotalRows++
		switch o {
		case outcomeCreated:
			result.Summary.Created++
		case outcomeUpdated:
			result.Summary.Updated++
		case outcomeSkipped:
			result.Summary.Skipped++
		case outcomeFailed:
			result.Summary.Failed++
			result.Errors = append(result.Errors, services.ImportError{Line: line, Key: key, Error: err.Error()})
		}
		s.metrics.ImportRows.WithLabelValues(string(entity), string(o)).Inc()
	}

	switch entity {
	case services.EntityUsers:
		rows, err := codec.DecodeUsers(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		for i := range rows {
			rec := &rows[i]
			if rec.Err != nil {
				record(outcomeFailed, rec.Line, rec.Email, rec.Err)
				continue
			}
			o, err := s.importUser(ctx, actor, rec)
			if err != nil {
				o = outcomeFailed
			}
			record(o, rec.Line, rec.Email, err)
		}

	case services.EntityDocuments:
		rows, err := codec.DecodeDocuments(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		for i := range rows {
			rec := &rows[i]
			if rec.Err != nil {
				record(outcomeFailed, rec.Line, rec.Key(), rec.Err)
				continue
			}
			o, err := s.importDocument(ctx, actor, rec)
			if err != nil {
				o = outcomeFailed
			}
			record(o, rec.Line, rec.Key(), err)
		}
		if result.Summary.Created > 0 {
			if err := s.docRepo.SyncIDSequence(ctx); err != nil {
				return result, fmt.Errorf("sync document ids: %w", err)
			}
		}

	default:
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown entity %q", entity)}
	}

	s.logger.Info("import finished",
		"entity", entity,
		"file", filename,
		"by", actor.ID,
		"created", result.Summary.Created,
		"updated", result.Summary.Updated,
		"skipped", result.Summary.Skipped,
		"failed", result.Summary.Failed,
	)
	return result, nil
}

// importUser upserts a user by email. The importing admin's own row is
// skipped; unknown roles fall back to staff.
func (s *transferService) importUser(ctx context.Context, actor *models.User, rec *UserRecord) (outcome, error) {
	email := strings.ToLower(strings.TrimSpace(rec.Email))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return outcomeFailed, fmt.Errorf("email: %w", err)
	}
	if strings.EqualFold(email, actor.Email) {
		return outcomeSkipped, nil
	}
	role, err := models.ParseRole(rec.Role)
	if err != nil {
		role = models.RoleStaff
	}

	var hash string
	if rec.TempPassword != "" {
		if len([]rune(rec.TempPassword)) < config.MinPasswordLength {
			return outcomeFailed, fmt.Errorf("temporary password must be at least %d characters", config.MinPasswordLength)
		}
		if hash, err = auth.HashPassword(rec.TempPassword); err != nil {
			return outcomeFailed, err
		}
	}

	result := outcomeUpdated
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.GetByEmail(txCtx, email)
		if errors.Is(err, domain.ErrNotFound) {
			result = outcomeCreated
			return s.userRepo.Create(txCtx, &models.User{
				Email:              email,
				FullName:           rec.FullName,
				PasswordHash:       hash,
				Role:               role,
				EmailNotifications: true,
				IsActive:           true,
				DateJoined:         rec.DateJoined,
			})
		}
		if err != nil {
			return err
		}

		user.FullName = rec.FullName
		user.Role = role
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		if hash != "" {
			return s.userRepo.UpdatePassword(txCtx, user.ID, hash)
		}
		return nil
	})
	if err != nil {
		return outcomeFailed, err
	}
	return result, nil
}

func (s *transferService) resolveUser(ctx context.Context, ref UserRef) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if ref.Email != "" {
		user, err = s.userRepo.GetByEmail(ctx, ref.Email)
	} else {
		user, err = s.userRepo.GetByID(ctx, ref.ID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user %s not found", ref)
	}
	return user, err
}

// importDocument upserts a document by id. The owner of an existing
// document cannot change. Recipients go through the lifecycle so the
// stored status is recomputed; the status column of the file is ignored.
func (s *transferService) importDocument(ctx context.Context, actor *models.User, rec *DocumentRecord) (outcome, error) {
	title := strings.TrimSpace(rec.Title)
	err := validation.Validate(title, validation.Required, validation.RuneLength(1, config.MaxDocumentTitleLength))
	if err != nil {
		return outcomeFailed, fmt.Errorf("title: %w", err)
	}
	if rec.Owner.IsZero() {
		return outcomeFailed, errors.New("owner is required")
	}

	result := outcomeUpdated
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		owner, err := s.resolveUser(txCtx, rec.Owner)
		if err != nil {
			return fmt.Errorf("owner: %w", err)
		}
		recipientIDs := make([]int64, 0, len(rec.Recipients))
		for _, ref := range rec.Recipients {
			u, err := s.resolveUser(txCtx, ref)
			if err != nil {
				return fmt.Errorf("recipient: %w", err)
			}
			recipientIDs = append(recipientIDs, u.ID)
		}

		var doc *models.Document
		if rec.ID != 0 {
			doc, err = s.docRepo.GetForUpdate(txCtx, rec.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		action := models.ActionEdit
		if doc == nil {
			result = outcomeCreated
			action = models.ActionCreate
			doc = &models.Document{ID: rec.ID, Title: title, OwnerID: owner.ID, CreatedAt: rec.CreatedAt}
			if err := s.docRepo.Create(txCtx, doc); err != nil {
				return err
			}
			if _, err := s.lifecycle.AddRecipients(txCtx, doc.ID, recipientIDs); err != nil {
				return err
			}
		} else {
			if doc.OwnerID != owner.ID {
				return fmt.Errorf("owner of document %d cannot change", doc.ID)
			}
			doc.Title = title
			if err := s.docRepo.Update(txCtx, doc); err != nil {
				return err
			}
			if _, _, err := s.lifecycle.SyncRecipients(txCtx, doc.ID, recipientIDs); err != nil {
				return err
			}
		}

		status, err := s.lifecycle.Refresh(txCtx, doc)
		if err != nil {
			return err
		}
		if declared, perr := models.ParseDocumentStatus(rec.Status); perr == nil && declared != status {
			s.logger.Debug("imported status differs from signatures",
				"document_id", doc.ID,
				"declared", declared,
				"stored", status,
			)
		}
		_, err = s.audit.Record(txCtx, doc.ID, actor.ID, action, importComment)
		return err
	})
	if err != nil {
		return outcomeFailed, err
	}
	return result, nil
}
