package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type countReader interface {
	Count(ctx context.Context) (int, error)
}

type enrollmentCounter interface {
	CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error)
}

// DashboardSummary aggregates headline numbers for the admin landing page.
type DashboardSummary struct {
	Students            int       `json:"students"`
	Teachers            int       `json:"teachers"`
	Sections            int       `json:"sections"`
	PendingEnrollments  int       `json:"pending_enrollments"`
	ApprovedEnrollments int       `json:"approved_enrollments"`
	RejectedEnrollments int       `json:"rejected_enrollments"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// DashboardService computes the summary, with a short redis cache in front
// so the landing page does not hammer the count queries.
type DashboardService struct {
	students    countReader
	teachers    countReader
	sections    countReader
	enrollments enrollmentCounter
	redis       *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs the dashboard service. The redis client may
// be nil, in which case every call recomputes.
func NewDashboardService(students, teachers, sections countReader, enrollments enrollmentCounter, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &DashboardService{
		students:    students,
		teachers:    teachers,
		sections:    sections,
		enrollments: enrollments,
		redis:       redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Summary returns the cached summary, recomputing on miss.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, dashboardCacheKey).Bytes()
		if err == nil {
			var summary DashboardSummary
			if err := json.Unmarshal(cached, &summary); err == nil {
				return &summary, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.redis.Set(ctx, dashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary, used after enrollment decisions.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, dashboardCacheKey).Err(); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) compute(ctx context.Context) (*DashboardSummary, error) {
	summary := &DashboardSummary{GeneratedAt: time.Now().UTC()}

	var err error
	if summary.Students, err = s.students.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if summary.Teachers, err = s.teachers.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	if summary.Sections, err = s.sections.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}
	if summary.PendingEnrollments, err = s.enrollments.CountByStatus(ctx, models.EnrollmentStatusPending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending enrollments")
	}
	if summary.ApprovedEnrollments, err = s.enrollments.CountByStatus(ctx, models.EnrollmentStatusApproved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved enrollments")
	}
	if summary.RejectedEnrollments, err = s.enrollments.CountByStatus(ctx, models.EnrollmentStatusRejected); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count rejected enrollments")
	}
	return summary, nil
}
