package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/sirupsen/logrus"

	"fixmycity-be/errs"
	"fixmycity-be/metrics"
	"fixmycity-be/models"
	"fixmycity-be/notifications"
	"fixmycity-be/repositories"
	"fixmycity-be/storage"
)

// IssueService runs the submission pipeline: optional image write, record
// insert, then a best-effort notification.
type IssueService struct {
	repo     repositories.IssueRepository
	images   storage.ImageStore
	notifier notifications.Notifier
	log      *logrus.Entry
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewIssueService wires the pipeline. A nil notifier drops notifications and
// a nil metrics disables counting.
func NewIssueService(
	repo repositories.IssueRepository,
	images storage.ImageStore,
	notifier notifications.Notifier,
	log *logrus.Entry,
	m *metrics.Metrics,
) *IssueService {
	if notifier == nil {
		notifier = notifications.NewHook(nil)
	}

	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &IssueService{
		repo:     repo,
		images:   images,
		notifier: notifier,
		log:      log.WithField("component", "issue_service"),
		metrics:  m,
		validate: v,
	}
}

// Submit records a new issue and returns its id. Image processing happens
// before the insert so a bad image never leaves a row behind.
func (s *IssueService) Submit(ctx context.Context, sub models.IssueSubmission) (int64, error) {
	if err := s.validateSubmission(sub); err != nil {
		s.metrics.ObserveSubmission("invalid")
		return 0, err
	}

	var imagePath *string
	if sub.Image != "" {
		path, err := s.images.Store(ctx, sub.Image)
		if err != nil {
			if errors.Is(err, errs.ErrDecode) {
				s.metrics.ObserveSubmission("decode_error")
			} else {
				s.metrics.ObserveSubmission("storage_error")
			}
			return 0, err
		}
		imagePath = &path
	}

	newIssue := models.NewIssue{
		Category:    sub.Category,
		Description: sub.Description,
		ImagePath:   imagePath,
		Latitude:    sub.Latitude,
		Longitude:   sub.Longitude,
		UserEmail:   sub.UserEmail,
	}

	id, err := s.repo.Insert(ctx, newIssue)
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			s.metrics.ObserveSubmission("invalid")
		} else {
			s.metrics.ObserveSubmission("storage_error")
		}
		// The image, if any, stays on disk.
		return 0, err
	}
	s.metrics.ObserveSubmission("created")

	issue := models.Issue{
		ID:          id,
		Category:    newIssue.Category,
		Description: newIssue.Description,
		ImagePath:   imagePath,
		Latitude:    newIssue.Latitude,
		Longitude:   newIssue.Longitude,
		Status:      models.Pending,
		UserEmail:   newIssue.UserEmail,
	}
	if _, err := s.notifier.Notify(ctx, issue); err != nil {
		s.log.WithError(err).WithField("issue_id", id).Warn("Notification failed")
	}

	s.log.WithField("issue_id", id).Info("Issue created")
	return id, nil
}

func (s *IssueService) validateSubmission(sub models.IssueSubmission) error {
	err := s.validate.Struct(sub)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s is required", errs.ErrValidation, jsonName(fieldErrs[0].Field()))
	}
	return fmt.Errorf("%w: %v", errs.ErrValidation, err)
}

func jsonName(field string) string {
	switch field {
	case "Category":
		return "category"
	case "Description":
		return "description"
	}
	return field
}

// ListIssues returns every issue, newest first.
func (s *IssueService) ListIssues(ctx context.Context) ([]models.Issue, error) {
	return s.repo.ListAll(ctx)
}

// OpenImage returns the stored image for an issue and its path.
// errs.ErrNotFound covers unknown ids, issues without images and files that
// have disappeared since they were written.
func (s *IssueService) OpenImage(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	path, err := s.repo.GetImagePath(ctx, id)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.images.Open(ctx, path)
	if err != nil {
		return nil, path, err
	}
	return rc, path, nil
}

// Ping checks the repository.
func (s *IssueService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
