package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/jobs"
)

const (
	jobTypeNotification = "notification"
	jobTypeAudit        = "audit"
)

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DispatchService delivers post-commit side effects through a background
// queue. Callers enqueue after their transaction commits; a full buffer or a
// failed handler never rolls the commit back.
type DispatchService struct {
	notifications notificationWriter
	audits        auditWriter
	queue         *jobs.Queue
	logger        *zap.Logger
}

// NewDispatchService constructs the dispatcher and its queue.
func NewDispatchService(notifications notificationWriter, audits auditWriter, cfg jobs.QueueConfig, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DispatchService{notifications: notifications, audits: audits, logger: logger}
	s.queue = jobs.NewQueue("side-effects", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *DispatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *DispatchService) Stop() {
	s.queue.Stop()
}

// QueueNotification enqueues an in-app notification for a student.
func (s *DispatchService) QueueNotification(studentID, title, message string) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: jobTypeNotification,
		Payload: &models.Notification{
			StudentID: studentID,
			Title:     title,
			Message:   message,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("student_id", studentID), zap.Error(err))
	}
}

// QueueAudit enqueues an audit trail entry.
func (s *DispatchService) QueueAudit(log *models.AuditLog) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeAudit,
		Payload: log,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *DispatchService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeNotification:
		notification, ok := job.Payload.(*models.Notification)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", job.Payload)
		}
		return s.notifications.Create(ctx, notification)
	case jobTypeAudit:
		log, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return s.audits.CreateAuditLog(ctx, log)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
