package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AllenCortuna/omnhs-api/internal/models"
)

// NotificationRepository manages persistence for student notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, student_id, title, message, read, created_at)
        VALUES (:id, :student_id, :title, :message, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForStudent returns a page of the student's notifications, newest first.
func (r *NotificationRepository) ListForStudent(ctx context.Context, studentID string, page, size int) ([]models.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, title, message, read, created_at
        FROM notifications WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, size, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, studentID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications WHERE student_id = $1", studentID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread returns the number of unread notifications for a student.
func (r *NotificationRepository) CountUnread(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications WHERE student_id = $1 AND read = FALSE", studentID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// MarkRead flags a notification as read. Scoped to the owning student so one
// student cannot touch another's notifications.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, studentID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND student_id = $2`, id, studentID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark notification read: no matching row")
	}
	return nil
}

// MarkAllRead flags every unread notification for the student as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, studentID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE student_id = $1 AND read = FALSE`, studentID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
