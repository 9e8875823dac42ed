package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type notificationRepository interface {
	ListForStudent(ctx context.Context, studentID string, page, size int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, studentID string) (int, error)
	MarkRead(ctx context.Context, id, studentID string) error
	MarkAllRead(ctx context.Context, studentID string) error
}

// NotificationService exposes a student's notification inbox.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the student's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, studentID string, page, size int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.ListForStudent(ctx, studentID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UnreadCount returns how many notifications the student has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags a single notification as read for the owning student.
func (s *NotificationService) MarkRead(ctx context.Context, id, studentID string) error {
	if err := s.repo.MarkRead(ctx, id, studentID); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags the student's whole inbox as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, studentID string) error {
	if err := s.repo.MarkAllRead(ctx, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
