package handler

import (
	"errors"
	"fmt"
	"net/http"

	"edms/internal/domain"
)

// asUploadError keeps the size limit error intact and treats every other
// multipart failure as bad input
func asUploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	if errors.Is(err, http.ErrMissingFile) {
		return &domain.ValidationError{Message: "file is required"}
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}
