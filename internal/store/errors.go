package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrParentNotFound    = errors.New("store: parent not found")
	ErrDuplicatePosition = errors.New("store: position already taken")
	ErrVersionMismatch   = errors.New("store: version does not belong to node")
	ErrVersionNotFound   = errors.New("store: version not found")
	ErrNoVersion         = errors.New("store: node has no version")
	ErrReviewPending     = errors.New("store: review already pending")
	ErrReviewNotPending  = errors.New("store: review is not pending")
)

// DeleteGuard vetoes a cascading delete before anything is removed. It
// receives every paragraph id in the subtree and q, the delete transaction
// (nil for stores without one). Queries must go through q; the delete holds
// row locks and a pooled connection while the guard runs.
type DeleteGuard func(ctx context.Context, q Querier, paragraphIDs []int64) error

// ParagraphInUseError reports paragraphs that other modules still reference.
type ParagraphInUseError struct {
	ParagraphIDs []int64
}

func (e *ParagraphInUseError) Error() string {
	ids := make([]string, 0, len(e.ParagraphIDs))
	for _, id := range e.ParagraphIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("store: paragraphs in use: %s", strings.Join(ids, ","))
}

func IsParagraphInUse(err error) (*ParagraphInUseError, bool) {
	var target *ParagraphInUseError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
