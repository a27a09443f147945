// Package repositories persists issue records. Records are only ever
// inserted; there is no update or delete.
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fixmycity-be/errs"
	"fixmycity-be/models"
)

// IssueRepository stores and retrieves issues.
type IssueRepository interface {
	Insert(ctx context.Context, issue models.NewIssue) (int64, error)
	// ListAll returns every issue, newest first. Same-second ties are
	// ordered by ascending id.
	ListAll(ctx context.Context) ([]models.Issue, error)
	// GetImagePath returns errs.ErrNotFound for unknown ids and for issues
	// submitted without an image.
	GetImagePath(ctx context.Context, id int64) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Clock supplies insert timestamps.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC().Truncate(time.Second)
	}
	return c().UTC().Truncate(time.Second)
}

// prepareInsert validates required fields and applies the email default.
func prepareInsert(issue models.NewIssue) (models.NewIssue, error) {
	if strings.TrimSpace(issue.Category) == "" {
		return issue, fmt.Errorf("%w: category is required", errs.ErrValidation)
	}
	if strings.TrimSpace(issue.Description) == "" {
		return issue, fmt.Errorf("%w: description is required", errs.ErrValidation)
	}
	if strings.TrimSpace(issue.UserEmail) == "" {
		issue.UserEmail = models.AnonymousEmail
	}
	if issue.ImagePath != nil && *issue.ImagePath == "" {
		issue.ImagePath = nil
	}
	return issue, nil
}
