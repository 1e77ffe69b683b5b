package users

import (
	"context"
	"fmt"
	"strings"

	"edms/internal/auth"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/services"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *userService) GetProfile(ctx context.Context, actor *models.User) (*models.User, error) {
	return s.userRepo.GetByID(ctx, actor.ID)
}

// UpdateProfile changes the caller's name, notification preference and,
// when NewPassword is set, password
func (s *userService) UpdateProfile(ctx context.Context, actor *models.User, req *services.UpdateProfileRequest) (*models.User, error) {
	if req.FullName != nil {
		if err := validation.Validate(*req.FullName, fullNameRules...); err != nil {
			return nil, validationErr(fmt.Errorf("full_name: %w", err))
		}
	}
	changePassword := req.NewPassword != "" || req.PasswordConfirm != ""
	if changePassword {
		if err := checkNewPassword(req.NewPassword, req.PasswordConfirm); err != nil {
			return nil, err
		}
	}

	var user *models.User
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = s.userRepo.GetByID(txCtx, actor.ID); err != nil {
			return err
		}
		if req.FullName != nil {
			user.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.EmailNotifications != nil {
			user.EmailNotifications = *req.EmailNotifications
		}
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		if changePassword {
			hash, err := auth.HashPassword(req.NewPassword)
			if err != nil {
				return err
			}
			return s.userRepo.UpdatePassword(txCtx, user.ID, hash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "user_id", user.ID, "password_changed", changePassword)
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx)
}

func parseRole(raw string) (models.Role, error) {
	if raw == "" {
		return models.RoleStaff, nil
	}
	role, err := models.ParseRole(raw)
	if err != nil {
		return role, validationErr(err)
	}
	return role, nil
}

func (s *userService) CreateUser(ctx context.Context, actor *models.User, req *services.CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	err := validation.ValidateStruct(req,
		validation.Field(&req.Email, emailRules...),
		validation.Field(&req.FullName, fullNameRules...),
	)
	if err != nil {
		return nil, validationErr(err)
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if err := checkNewPassword(req.Password, req.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:              req.Email,
		FullName:           strings.TrimSpace(req.FullName),
		PasswordHash:       hash,
		Role:               role,
		EmailNotifications: req.EmailNotifications == nil || *req.EmailNotifications,
		IsActive:           true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", actor.ID)
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor *models.User, id int64, req *services.UpdateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if err := validation.Validate(email, emailRules...); err != nil {
			return nil, validationErr(fmt.Errorf("email: %w", err))
		}
		req.Email = &email
	}
	if req.FullName != nil {
		if err := validation.Validate(*req.FullName, fullNameRules...); err != nil {
			return nil, validationErr(fmt.Errorf("full_name: %w", err))
		}
	}
	var role *models.Role
	if req.Role != nil {
		r, err := models.ParseRole(*req.Role)
		if err != nil {
			return nil, validationErr(err)
		}
		role = &r
	}
	if req.Password != "" {
		if err := checkNewPassword(req.Password, req.Password); err != nil {
			return nil, err
		}
	}
	if id == actor.ID && ((role != nil && *role != models.RoleAdmin) || (req.IsActive != nil && !*req.IsActive)) {
		return nil, &domain.ValidationError{Message: "you cannot demote or deactivate yourself"}
	}

	var user *models.User
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = s.userRepo.GetByID(txCtx, id); err != nil {
			return err
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.FullName != nil {
			user.FullName = strings.TrimSpace(*req.FullName)
		}
		if role != nil {
			user.Role = *role
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.EmailNotifications != nil {
			user.EmailNotifications = *req.EmailNotifications
		}
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				return err
			}
			return s.userRepo.UpdatePassword(txCtx, user.ID, hash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user updated", "user_id", user.ID, "by", actor.ID)
	return user, nil
}

// DeleteUser removes an account with everything it owns. Admins cannot
// delete themselves.
func (s *userService) DeleteUser(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return &domain.ValidationError{Message: "you cannot delete your own account"}
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "by", actor.ID)
	return nil
}

func (s *userService) ToggleEmailNotifications(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = s.userRepo.GetByID(txCtx, id); err != nil {
			return err
		}
		user.EmailNotifications = !user.EmailNotifications
		return s.userRepo.Update(txCtx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("email notifications toggled", "user_id", id, "enabled", user.EmailNotifications)
	return user, nil
}

// ListUserDocuments lists the documents owned by a user
func (s *userService) ListUserDocuments(ctx context.Context, actor *models.User, id int64) ([]models.DocumentListItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.docRepo.List(ctx, models.DocumentFilter{OwnerID: &id})
}
