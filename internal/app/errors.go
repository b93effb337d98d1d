package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"editorial/api/internal/store"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
	CodeForbidden    = "FORBIDDEN"
	CodeUnavailable  = "UNAVAILABLE"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeValidation, message, details)
}

func notFoundError(subject string, id int64) *DomainError {
	return domainError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %d not found", subject, id), map[string]any{
		"subject": subject,
		"id":      id,
	})
}

func conflictError(message string, details any) *DomainError {
	return domainError(http.StatusConflict, CodeConflict, message, details)
}

func invalidStateError(message string, details any) *DomainError {
	return domainError(http.StatusConflict, CodeInvalidState, message, details)
}

func forbiddenError(message string) *DomainError {
	return domainError(http.StatusForbidden, CodeForbidden, message, nil)
}

func unavailableError(feature string) *DomainError {
	return domainError(http.StatusServiceUnavailable, CodeUnavailable, feature+" is not configured", nil)
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func IsValidation(err error) bool   { return hasCode(err, CodeValidation) }
func IsNotFound(err error) bool     { return hasCode(err, CodeNotFound) }
func IsConflict(err error) bool     { return hasCode(err, CodeConflict) }
func IsInvalidState(err error) bool { return hasCode(err, CodeInvalidState) }
func IsForbidden(err error) bool    { return hasCode(err, CodeForbidden) }

func kindSubject(kind store.NodeKind) string {
	return strings.ToLower(string(kind))
}

// storeError translates store sentinels for the node kind/id the caller
// was working on. Unknown errors pass through unchanged.
func storeError(err error, subject string, id int64) error {
	if err == nil {
		return nil
	}
	if inUse, ok := store.IsParagraphInUse(err); ok {
		return conflictError("paragraphs are referenced by learning content", map[string]any{
			"paragraphIds": inUse.ParagraphIDs,
		})
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(subject, id)
	case errors.Is(err, store.ErrParentNotFound):
		return validationError("parent does not exist", map[string]any{"parentId": id})
	case errors.Is(err, store.ErrDuplicatePosition):
		return conflictError(fmt.Sprintf("%s position is already taken", subject), nil)
	case errors.Is(err, store.ErrVersionNotFound):
		return domainError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s version not found", subject), map[string]any{"subject": subject})
	case errors.Is(err, store.ErrVersionMismatch):
		return validationError(fmt.Sprintf("version does not belong to %s %d", subject, id), nil)
	case errors.Is(err, store.ErrNoVersion):
		return validationError(fmt.Sprintf("%s %d has no version to publish", subject, id), nil)
	case errors.Is(err, store.ErrReviewPending):
		return conflictError(fmt.Sprintf("%s %d already has a pending review", subject, id), map[string]any{
			"subject": subject,
			"id":      id,
		})
	}
	return err
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return validationError("userId is required", nil)
	}
	return nil
}

func requireID(name string, id int64) error {
	if id <= 0 {
		return validationError(name+" is required", nil)
	}
	return nil
}

func requireKind(kind store.NodeKind) error {
	if !kind.Valid() {
		return validationError(fmt.Sprintf("unknown node kind %q", kind), nil)
	}
	return nil
}
